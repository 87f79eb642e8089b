package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/joelmontavon/fhir4ds/dialect"
	"github.com/joelmontavon/fhir4ds/fhirpath"
	"github.com/joelmontavon/fhir4ds/pipeline"
)

// NewCompileCommand creates the compile command, which compiles a single
// FHIRPath expression to a SQL query.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	var fragment bool

	cmd := &cobra.Command{
		Use:   "compile <expression>",
		Short: "Compile a FHIRPath expression to SQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, rootOpts, args[0], fragment)
		},
	}

	cmd.Flags().BoolVar(&fragment, "fragment", false, "print only the SQL fragment, not a full query")

	return cmd
}

func runCompile(cmd *cobra.Command, opts *RootOptions, source string, fragment bool) error {
	ctx, err := newContext(opts)
	if err != nil {
		return err
	}

	parsed, err := fhirpath.Parse(source)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("parsing expression: %w", err)}
	}
	slog.Debug("parsed expression", "canonical", parsed.String())

	result, err := pipeline.Compile(parsed.Tree(), ctx, opts.Table, opts.Column)
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("compiling expression: %w", err)}
	}
	slog.Debug("compiled expression", "ctes", len(result.CTEs), "collection", result.IsCollection)

	if fragment {
		printSQL(cmd.OutOrStdout(), result.SQL)
		return nil
	}
	printSQL(cmd.OutOrStdout(), result.Query(opts.Table))
	return nil
}

// newContext builds the execution context shared by compile and library.
func newContext(opts *RootOptions) (*pipeline.ExecutionContext, error) {
	d, err := dialect.ForName(opts.Dialect)
	if err != nil {
		return nil, err
	}
	ctx := pipeline.NewExecutionContext(d)
	ctx.Parameters = opts.config.Parameters
	if tc := opts.config.TerminologyClient(); tc != nil {
		ctx.Terminology = tc
	}
	if opts.Verbose {
		ctx.Tracer = slogTracer{}
	}
	return ctx, nil
}

// slogTracer logs each pipeline step at debug level.
type slogTracer struct{}

func (slogTracer) Trace(op string, before, after pipeline.SQLState) {
	slog.Debug("pipeline step", "op", op, "fragment", after.Fragment, "collection", after.IsCollection)
}
