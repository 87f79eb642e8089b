package pipeline

import (
	"strings"
	"unicode"

	"github.com/joelmontavon/fhir4ds/dialect"
	"github.com/joelmontavon/fhir4ds/expr"
)

// literalOp pushes a constant value. The fragment leaves the document, so
// PathContext resets.
type literalOp struct {
	lit *expr.Literal
}

func (o literalOp) Describe() string { return "literal " + o.lit.String() }

func (o literalOp) Execute(state SQLState, ctx *ExecutionContext) (SQLState, error) {
	frag, err := literalSQL(o.lit, ctx.Dialect)
	if err != nil {
		return SQLState{}, err
	}
	return state.Evolve(Changes{
		Fragment:     &frag,
		IsCollection: boolp(false),
		PathContext:  str(""),
		Origin:       origin(OriginNone),
	}), nil
}

// literalSQL renders a literal for the target dialect. Temporal literals use
// the typed literal syntax both engines share; quantities become a JSON
// object with value and unit members.
func literalSQL(lit *expr.Literal, d dialect.Dialect) (string, error) {
	switch lit.Kind {
	case expr.LitNull:
		return "NULL", nil
	case expr.LitBoolean:
		return d.BooleanLiteral(lit.Value == "true"), nil
	case expr.LitInteger, expr.LitLong, expr.LitDecimal:
		return lit.Value, nil
	case expr.LitString:
		return dialect.QuoteString(lit.Value), nil
	case expr.LitDate:
		return "DATE " + dialect.QuoteString(lit.Value), nil
	case expr.LitDateTime:
		return "TIMESTAMP " + dialect.QuoteString(strings.ReplaceAll(lit.Value, "T", " ")), nil
	case expr.LitTime:
		return "TIME " + dialect.QuoteString(strings.TrimPrefix(lit.Value, "T")), nil
	case expr.LitQuantity:
		return d.JSONObject(
			dialect.QuoteString("value"), lit.Value,
			dialect.QuoteString("unit"), dialect.QuoteString(lit.Unit),
		), nil
	default:
		return "", &UnsupportedError{Name: "literal kind " + lit.Kind.String()}
	}
}

// identOp resolves a bare name: a variable binding, a resource type at the
// head of a path, or a field navigation.
type identOp struct {
	name string
}

func (o identOp) Describe() string { return "identifier " + o.name }

func (o identOp) Execute(state SQLState, ctx *ExecutionContext) (SQLState, error) {
	if sql, ok := state.Variables[o.name]; ok {
		return state.Evolve(Changes{
			Fragment:     &sql,
			IsCollection: boolp(false),
			PathContext:  str(""),
			Origin:       origin(OriginNone),
		}), nil
	}
	if state.PathContext == "$" && state.Fragment == state.RawBase() && isTypeName(o.name) {
		// A resource type at the head of a path scopes the compilation; the
		// value itself is still the whole document.
		return state.Evolve(Changes{ResourceType: &o.name}), nil
	}
	return navigate(state, ctx, o.name)
}

func isTypeName(name string) bool {
	return name != "" && unicode.IsUpper(rune(name[0]))
}

// externalConstantOp resolves a %name reference from the context parameters.
type externalConstantOp struct {
	name string
}

func (o externalConstantOp) Describe() string { return "external constant %" + o.name }

func (o externalConstantOp) Execute(state SQLState, ctx *ExecutionContext) (SQLState, error) {
	sql, ok := ctx.Parameters[o.name]
	if !ok {
		return SQLState{}, &ArgumentError{Function: "%" + o.name, Arg: -1, Reason: "external constant not defined"}
	}
	return state.Evolve(Changes{
		Fragment:     &sql,
		IsCollection: boolp(false),
		PathContext:  str(""),
		Origin:       origin(OriginNone),
	}), nil
}

// indexerOp selects one element by zero-based index.
type indexerOp struct {
	idx Argument
}

func (o indexerOp) Describe() string { return "indexer" }

func (o indexerOp) Execute(state SQLState, ctx *ExecutionContext) (SQLState, error) {
	lit, ok := o.idx.Literal()
	if !ok || lit.Kind != expr.LitInteger {
		return SQLState{}, &ArgumentError{Function: "[]", Arg: 0, Reason: "index must be an integer literal"}
	}
	if strings.HasPrefix(lit.Value, "-") {
		return SQLState{}, &ArgumentError{Function: "[]", Arg: 0, Reason: "index must not be negative"}
	}
	return index(state, ctx, lit.Value)
}

// functionOp dispatches a named function or operator to its handler.
type functionOp struct {
	name string
	args []Argument
}

func (o functionOp) Describe() string { return "function " + o.name }

func (o functionOp) Execute(state SQLState, ctx *ExecutionContext) (SQLState, error) {
	h := ctx.registry().HandlerFor(o.name)
	if h == nil {
		return SQLState{}, &UnsupportedError{Name: o.name}
	}
	return h.Handle(strings.ToLower(o.name), state, ctx, o.args)
}

// collectionOp builds a JSON array literal from item sub-expressions.
type collectionOp struct {
	items []Argument
}

func (o collectionOp) Describe() string { return "collection literal" }

func (o collectionOp) Execute(state SQLState, ctx *ExecutionContext) (SQLState, error) {
	vals, next, err := evalFresh(o.items, state, ctx)
	if err != nil {
		return SQLState{}, err
	}
	frag := ctx.Dialect.JSONArray(vals...)
	return next.Evolve(Changes{
		Fragment:     &frag,
		IsCollection: boolp(true),
		PathContext:  str(""),
		Origin:       origin(OriginFiltered),
	}), nil
}

// tupleOp builds a JSON object from named field sub-expressions.
type tupleOp struct {
	names  []string
	values []Argument
}

func (o tupleOp) Describe() string { return "tuple" }

func (o tupleOp) Execute(state SQLState, ctx *ExecutionContext) (SQLState, error) {
	vals, next, err := evalFresh(o.values, state, ctx)
	if err != nil {
		return SQLState{}, err
	}
	pairs := make([]string, 0, len(vals)*2)
	for i, v := range vals {
		pairs = append(pairs, dialect.QuoteString(o.names[i]), v)
	}
	frag := ctx.Dialect.JSONObject(pairs...)
	return next.Evolve(Changes{
		Fragment:     &frag,
		IsCollection: boolp(false),
		PathContext:  str(""),
		Origin:       origin(OriginNone),
	}), nil
}

// intervalOp builds a JSON object with low/high bounds and closedness flags.
type intervalOp struct {
	low, high             Argument
	lowClosed, highClosed bool
}

func (o intervalOp) Describe() string { return "interval" }

func (o intervalOp) Execute(state SQLState, ctx *ExecutionContext) (SQLState, error) {
	vals, next, err := evalFresh([]Argument{o.low, o.high}, state, ctx)
	if err != nil {
		return SQLState{}, err
	}
	d := ctx.Dialect
	frag := d.JSONObject(
		dialect.QuoteString("low"), vals[0],
		dialect.QuoteString("high"), vals[1],
		dialect.QuoteString("lowClosed"), d.BooleanLiteral(o.lowClosed),
		dialect.QuoteString("highClosed"), d.BooleanLiteral(o.highClosed),
	)
	return next.Evolve(Changes{
		Fragment:     &frag,
		IsCollection: boolp(false),
		PathContext:  str(""),
		Origin:       origin(OriginNone),
	}), nil
}

// evalFresh compiles each argument against a fresh base copy of state,
// left to right, threading the CTE list through so every argument sees the
// sub-queries of the ones before it. It returns the fragments and the input
// state updated with the accumulated CTEs.
func evalFresh(args []Argument, state SQLState, ctx *ExecutionContext) ([]string, SQLState, error) {
	vals := make([]string, len(args))
	current := state
	for i, a := range args {
		argState, err := a.CompileFresh(current, ctx)
		if err != nil {
			return nil, SQLState{}, err
		}
		vals[i] = argState.Fragment
		current = current.Evolve(Changes{ReplaceCTEs: argState.CTEs})
	}
	return vals, current, nil
}
