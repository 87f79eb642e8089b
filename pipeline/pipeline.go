package pipeline

import (
	"strings"

	"github.com/joelmontavon/fhir4ds/expr"
)

// Operation is the unit of work of a compilation. Execute consumes a state
// and produces the next one; it must not mutate the input state or anything
// outside the returned value, and equal inputs must produce equal output.
type Operation interface {
	// Describe names the operation for tracing and error messages.
	Describe() string
	Execute(SQLState, *ExecutionContext) (SQLState, error)
}

// Pipeline is an ordered sequence of operations. Composing two pipelines is
// concatenation; compiling is a strict left fold over an initial state.
type Pipeline []Operation

// Compile folds the pipeline over init, one operation at a time, in order.
func (p Pipeline) Compile(ctx *ExecutionContext, init SQLState) (SQLState, error) {
	state := init
	for _, op := range p {
		next, err := op.Execute(state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		ctx.trace(op.Describe(), state, next)
		state = next
	}
	return state, nil
}

// Argument is an operand sub-pipeline of a function call or operator. It is
// compiled lazily so handlers that iterate (where, select) can evaluate it
// against an element scope instead of the root base.
type Argument struct {
	ops  Pipeline
	node expr.Node
}

// NewArgument wraps a converted sub-pipeline and the tree node it came from.
func NewArgument(ops Pipeline, node expr.Node) Argument {
	return Argument{ops: ops, node: node}
}

// Node returns the tree node the argument was converted from.
func (a Argument) Node() expr.Node { return a.node }

// Literal returns the literal node when the argument is a single constant,
// enabling compile-time folding.
func (a Argument) Literal() (*expr.Literal, bool) {
	lit, ok := a.node.(*expr.Literal)
	return lit, ok
}

// CompileFresh compiles the argument against a fresh base copy of state, so
// the argument does not inherit the caller's partially built fragment. CTEs
// accumulated by the argument are visible in the returned state.
func (a Argument) CompileFresh(state SQLState, ctx *ExecutionContext) (SQLState, error) {
	return a.ops.Compile(ctx, state.FreshBase())
}

// CompileScoped compiles the argument against scope as-is. Iterating handlers
// pass a state rooted at the loop element.
func (a Argument) CompileScoped(scope SQLState, ctx *ExecutionContext) (SQLState, error) {
	return a.ops.Compile(ctx, scope)
}

// Result is the outcome of a full compilation.
type Result struct {
	// SQL is the compiled expression.
	SQL string
	// CTEs are the named sub-queries the expression depends on, in order.
	CTEs []CTE
	// IsCollection reports whether SQL denotes zero or more values.
	IsCollection bool
}

// Query assembles a runnable SELECT over the base table, prepending the WITH
// clause when CTEs were accumulated.
func (r Result) Query(baseTable string) string {
	var b strings.Builder
	if len(r.CTEs) > 0 {
		b.WriteString("WITH ")
		for i, cte := range r.CTEs {
			if i > 0 {
				b.WriteString(",\n     ")
			}
			b.WriteString(cte.Name)
			b.WriteString(" AS (")
			b.WriteString(cte.SQL)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	b.WriteString("SELECT ")
	b.WriteString(r.SQL)
	b.WriteString(" AS result FROM ")
	b.WriteString(baseTable)
	return b.String()
}

// Compile converts tree and folds the resulting pipeline over a fresh state
// for baseTable.jsonColumn.
func Compile(tree expr.Node, ctx *ExecutionContext, baseTable, jsonColumn string) (Result, error) {
	p, err := NewConverter().Convert(tree)
	if err != nil {
		return Result{}, err
	}
	final, err := p.Compile(ctx, NewState(baseTable, jsonColumn))
	if err != nil {
		return Result{}, err
	}
	return Result{SQL: final.Fragment, CTEs: final.CTEs, IsCollection: final.IsCollection}, nil
}
