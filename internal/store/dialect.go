package store

import (
	"fmt"
	"strings"
)

// Dialect abstracts database-specific SQL generation and behavior.
type Dialect interface {
	// Name returns "postgres" or "sqlite".
	Name() string

	// DriverName returns the database/sql driver name ("pgx" or "sqlite").
	DriverName() string

	// Placeholder returns the parameter placeholder for the given 1-based index.
	Placeholder(index int) string

	// NewParamBuilder creates a dialect-aware parameter builder.
	NewParamBuilder() ParamBuilder

	// SchemaSQL returns the DDL for every table the portal owns.
	SchemaSQL() string

	// InIDs builds a SQL expression matching field against a list of ids.
	// PostgreSQL: "field = ANY($n)" with a single array param.
	// SQLite: "field IN (?n, ?n+1, ...)" expanding the slice.
	InIDs(field string, pb ParamBuilder, ids []int64) string

	// IntervalDeleteExpr returns SQL matching rows older than N days.
	IntervalDeleteExpr(createdAtCol string, pb ParamBuilder, days string) string

	// RowLockClause returns the suffix that locks selected rows until commit.
	// PostgreSQL: "FOR UPDATE". SQLite: "" (a single connection serializes writers).
	RowLockClause() string

	// ArrayParam encodes a string slice for storage.
	// PostgreSQL: returns the slice as-is (pgx handles TEXT[]).
	// SQLite: JSON-encodes to string.
	ArrayParam(values []string) any

	// ScanArray decodes a TEXT[] (PostgreSQL) or JSON string (SQLite) into []string.
	ScanArray(src any) ([]string, error)

	// MapError inspects a driver error and returns a well-known sentinel error if applicable.
	MapError(err error) error
}

// ParamBuilder accumulates query parameters and generates dialect-specific placeholders.
type ParamBuilder interface {
	// Add appends a value and returns the placeholder string.
	Add(v any) string

	// Params returns all accumulated parameter values.
	Params() []any
}

// NewDialect creates a Dialect for the given driver name ("postgres" or "sqlite").
func NewDialect(driver string) Dialect {
	switch driver {
	case "sqlite":
		return &SQLiteDialect{}
	default:
		return &PostgresDialect{}
	}
}

// Rebind rewrites $n placeholders into the dialect's own form.
func Rebind(d Dialect, query string) string {
	if d.Name() == "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte(c)
			continue
		}
		var n int
		fmt.Sscanf(query[i+1:j], "%d", &n)
		b.WriteString(d.Placeholder(n))
		i = j - 1
	}
	return b.String()
}

type paramBuilder struct {
	params []any
	format string
}

func (p *paramBuilder) Add(v any) string {
	p.params = append(p.params, v)
	return fmt.Sprintf(p.format, len(p.params))
}

func (p *paramBuilder) Params() []any { return p.params }
