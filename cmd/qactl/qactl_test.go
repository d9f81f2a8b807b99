package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qa-portal/internal/auth"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, "", "hash-password", "qa-admin")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("qa-admin", strings.TrimSpace(out)))

	out, err = run(t, "from-stdin\n", "hash-password")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("from-stdin", strings.TrimSpace(out)))

	_, err = run(t, "", "hash-password")
	assert.Error(t, err)
}

func TestParseSeed(t *testing.T) {
	standards, err := parseSeed(strings.NewReader(`
standards:
  - code: "1"
    name: คุณภาพของผู้เรียน
    indicators:
      - code: "1.1"
        name: ผลสัมฤทธิ์ทางวิชาการของผู้เรียน
      - code: "1.2"
        name: คุณลักษณะที่พึงประสงค์ของผู้เรียน
`))
	require.NoError(t, err)
	require.Len(t, standards, 1)
	assert.Equal(t, "1.2", standards[0].Indicators[1].Code)

	_, err = parseSeed(strings.NewReader("standards:\n  - code: \"1\"\n"))
	assert.Error(t, err, "name missing")

	_, err = parseSeed(strings.NewReader("standards:\n  - code: \"1\"\n    name: a\n    colour: red\n"))
	assert.Error(t, err, "unknown field")

	_, err = parseSeed(strings.NewReader("standards:\n  - {code: \"1\", name: a}\n  - {code: \"1\", name: b}\n"))
	assert.Error(t, err, "duplicate code")
}

func TestMigrateAndSeed(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
database:
  driver: sqlite
  path: `+dir+`
  name: qactl
storage:
  driver: memory
auth:
  password: qa-admin
`), 0o600))

	out, err := run(t, "", "--config", cfgPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "schema ready (sqlite)")

	out, err = run(t, "", "--config", cfgPath, "seed", "--file", filepath.Join("testdata", "standards.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 3 standards")

	// seeding twice is an upsert
	_, err = run(t, "", "--config", cfgPath, "seed", "--file", filepath.Join("testdata", "standards.yaml"))
	require.NoError(t, err)
}
