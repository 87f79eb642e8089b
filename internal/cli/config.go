package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joelmontavon/fhir4ds/terminology"
)

// Config holds the defaults a config file can provide. Flags given on the
// command line take precedence over config file values.
type Config struct {
	Dialect    string              `yaml:"dialect"`
	Table      string              `yaml:"table"`
	Column     string              `yaml:"column"`
	Parameters map[string]string   `yaml:"parameters"`
	ValueSets  map[string][]Coding `yaml:"valuesets"`
}

// Coding is a system/code pair inside a config value set.
type Coding struct {
	System string `yaml:"system"`
	Code   string `yaml:"code"`
}

// LoadConfig reads a YAML config file. An empty path returns defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Dialect: "duckdb",
		Table:   "fhir_resources",
		Column:  "resource",
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// apply fills unset flag values from the config file defaults.
func (c *Config) apply(opts *RootOptions) {
	if opts.Dialect == "" {
		opts.Dialect = c.Dialect
	}
	if opts.Table == "" {
		opts.Table = c.Table
	}
	if opts.Column == "" {
		opts.Column = c.Column
	}
}

// TerminologyClient builds a static terminology client from the configured
// value sets, or nil when none are configured.
func (c *Config) TerminologyClient() *terminology.StaticClient {
	if len(c.ValueSets) == 0 {
		return nil
	}
	sets := make(map[string][]terminology.Coding, len(c.ValueSets))
	for url, codings := range c.ValueSets {
		for _, cd := range codings {
			sets[url] = append(sets[url], terminology.Coding{System: cd.System, Code: cd.Code})
		}
	}
	return terminology.NewStaticClient(sets)
}
