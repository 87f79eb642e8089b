package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joelmontavon/fhir4ds/cql"
)

// NewLibraryCommand creates the library command, which compiles every define
// in a CQL library file to SQL.
func NewLibraryCommand(rootOpts *RootOptions) *cobra.Command {
	var define string

	cmd := &cobra.Command{
		Use:   "library <file.cql>",
		Short: "Compile a CQL library to SQL",
		Long: `Compile every define statement in a CQL library to SQL.

With --define, only the query for the named define is printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLibrary(cmd, rootOpts, args[0], define)
		},
	}

	cmd.Flags().StringVar(&define, "define", "", "compile only the named define")

	return cmd
}

func runLibrary(cmd *cobra.Command, opts *RootOptions, path, define string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading library: %w", err)
	}

	lib, err := cql.ParseLibrary(string(source))
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("parsing library: %w", err)}
	}
	slog.Debug("parsed library", "name", lib.Name, "version", lib.Version, "defines", len(lib.Defines))

	ctx, err := newContext(opts)
	if err != nil {
		return err
	}

	result, err := cql.CompileLibrary(lib, ctx, opts.Table, opts.Column)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("compiling library: %w", err)}
	}

	if define != "" {
		query, err := result.Query(define)
		if err != nil {
			return &ExitError{Code: 1, Err: err}
		}
		printSQL(cmd.OutOrStdout(), query)
		return nil
	}

	out := cmd.OutOrStdout()
	for i, d := range result.Defines {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "-- define %q\n", d.Name)
		query, err := result.Query(d.Name)
		if err != nil {
			return &ExitError{Code: 1, Err: err}
		}
		printSQL(out, query)
	}
	return nil
}
