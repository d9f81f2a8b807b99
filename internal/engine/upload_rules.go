package engine

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"qa-portal/internal/config"
)

// UploadFacts is what an upload rule can see about one file.
type UploadFacts struct {
	DocType     string
	Filename    string
	Ext         string
	ContentType string
	Size        int64
	MaxSize     int64
}

func (f UploadFacts) env() map[string]any {
	return map[string]any{
		"doc_type":     f.DocType,
		"filename":     f.Filename,
		"ext":          f.Ext,
		"content_type": f.ContentType,
		"size":         f.Size,
		"max_size":     f.MaxSize,
	}
}

type uploadRule struct {
	expression string
	message    string
	program    *vm.Program
}

// UploadPolicy holds compiled upload rules. A rule passes when its
// expression evaluates to true.
type UploadPolicy struct {
	rules   []uploadRule
	maxSize int64
}

// NewUploadPolicy compiles rules against the upload environment so that
// unknown variables or type mismatches fail at startup.
func NewUploadPolicy(rules []config.UploadRule, maxSize int64) (*UploadPolicy, error) {
	p := &UploadPolicy{maxSize: maxSize}
	sample := UploadFacts{}.env()
	for _, r := range rules {
		prog, err := expr.Compile(r.Expression, expr.Env(sample), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile upload rule %q: %w", r.Expression, err)
		}
		msg := r.Message
		if msg == "" {
			msg = "Upload rule violated: " + r.Expression
		}
		p.rules = append(p.rules, uploadRule{expression: r.Expression, message: msg, program: prog})
	}
	return p, nil
}

// Check evaluates every rule and returns one detail per violation.
func (p *UploadPolicy) Check(field string, f UploadFacts) []ErrorDetail {
	if f.MaxSize == 0 {
		f.MaxSize = p.maxSize
	}
	env := f.env()
	var details []ErrorDetail
	for _, r := range p.rules {
		out, err := expr.Run(r.program, env)
		if err != nil {
			details = append(details, ErrorDetail{Field: field, Rule: "expression", Message: fmt.Sprintf("rule evaluation error: %v", err)})
			continue
		}
		if ok, _ := out.(bool); !ok {
			details = append(details, ErrorDetail{Field: field, Rule: "expression", Message: r.message})
		}
	}
	return details
}
