// Package cli implements the fhir4ds command line interface.
package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	ConfigFile string
	Dialect    string
	Table      string
	Column     string
	Verbose    bool

	config *Config
}

// NewRootCommand creates the root command for the fhir4ds CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fhir4ds",
		Short: "Compile FHIRPath and CQL to SQL",
		Long: `fhir4ds compiles FHIRPath expressions and CQL libraries into SQL
queries over FHIR resources stored as JSON in an analytical database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

			cfg, err := LoadConfig(opts.ConfigFile)
			if err != nil {
				return err
			}
			cfg.apply(opts)
			opts.config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (YAML)")
	cmd.PersistentFlags().StringVarP(&opts.Dialect, "dialect", "d", "", "target dialect (duckdb|postgresql)")
	cmd.PersistentFlags().StringVar(&opts.Table, "table", "", "resource table name")
	cmd.PersistentFlags().StringVar(&opts.Column, "column", "", "JSON column name")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewLibraryCommand(opts))

	return cmd
}

// ExitError carries a process exit code alongside an error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode returns the exit code for err, printing it to stderr first.
// Compilation and parse failures exit 1, usage errors exit 2.
func ExitCode(err error) int {
	fmt.Fprintln(os.Stderr, "Error:", err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 2
}
