package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "duckdb", cfg.Dialect)
	assert.Equal(t, "fhir_resources", cfg.Table)
	assert.Equal(t, "resource", cfg.Column)
	assert.Nil(t, cfg.TerminologyClient())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dialect: postgresql
table: patients
parameters:
  threshold: "18"
valuesets:
  http://example.org/fhir/ValueSet/diabetes:
    - system: http://snomed.info/sct
      code: "44054006"
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgresql", cfg.Dialect)
	assert.Equal(t, "patients", cfg.Table)
	// unset keys keep their defaults
	assert.Equal(t, "resource", cfg.Column)
	assert.Equal(t, map[string]string{"threshold": "18"}, cfg.Parameters)
	assert.NotNil(t, cfg.TerminologyClient())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dialect: [oops"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "parsing config")
}

func TestConfigApplyPrecedence(t *testing.T) {
	cfg := &Config{Dialect: "postgresql", Table: "patients", Column: "doc"}

	opts := &RootOptions{Dialect: "duckdb"}
	cfg.apply(opts)
	assert.Equal(t, "duckdb", opts.Dialect, "flag value must win over config")
	assert.Equal(t, "patients", opts.Table)
	assert.Equal(t, "doc", opts.Column)
}
