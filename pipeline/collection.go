package pipeline

import (
	"fmt"

	"github.com/joelmontavon/fhir4ds/expr"
)

var collectionNames = nameSet(
	"exists", "empty", "count", "where", "select", "first", "last", "single",
	"distinct", "union", "combine", "intersect", "exclude", "take", "skip",
	"allTrue", "anyTrue", "allFalse", "anyFalse", "aggregate",
)

// collectionHandler compiles the collection functions: filtering, projection,
// element selection, set operations, and boolean reductions. Collection
// inputs are iterated through the dialect's JSON array primitives.
type collectionHandler struct{}

func (collectionHandler) Supports(name string) bool { return collectionNames[name] }

func (h collectionHandler) Handle(name string, state SQLState, ctx *ExecutionContext, args []Argument) (SQLState, error) {
	d := ctx.Dialect
	switch name {
	case "exists":
		if err := wantArgs(name, args, 0, 1); err != nil {
			return SQLState{}, err
		}
		if len(args) == 1 {
			filtered, err := h.where(state, ctx, args[0], "exists")
			if err != nil {
				return SQLState{}, err
			}
			state = filtered
		}
		if state.IsCollection {
			return scalar(state, fmt.Sprintf("(COALESCE(%s, 0) > 0)", d.JSONArrayLength(state.EffectiveBase()))), nil
		}
		return scalar(state, fmt.Sprintf("(%s IS NOT NULL)", state.EffectiveBase())), nil

	case "empty":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		if state.IsCollection {
			return scalar(state, fmt.Sprintf("(COALESCE(%s, 0) = 0)", d.JSONArrayLength(state.EffectiveBase()))), nil
		}
		return scalar(state, fmt.Sprintf("(%s IS NULL)", state.EffectiveBase())), nil

	case "count":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		if state.IsCollection {
			return scalar(state, fmt.Sprintf("COALESCE(%s, 0)", d.JSONArrayLength(state.EffectiveBase()))), nil
		}
		return scalar(state, fmt.Sprintf("(CASE WHEN %s IS NULL THEN 0 ELSE 1 END)", state.EffectiveBase())), nil

	case "where":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		return h.where(state, ctx, args[0], name)

	case "select":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		projState, err := args[0].CompileScoped(elemScope(state), ctx)
		if err != nil {
			return SQLState{}, err
		}
		state = adoptCTEs(state, projState)
		frag := fmt.Sprintf("(SELECT %s FROM %s)",
			d.AggregateToJSONArray(projState.Fragment), iterSource(state, ctx))
		return computed(state, frag, true, OriginIterated), nil

	case "first":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		if !state.IsCollection {
			return state, nil
		}
		return index(state, ctx, "0")

	case "last":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		if !state.IsCollection {
			return state, nil
		}
		return scalar(state, d.LastElement(state.EffectiveBase())), nil

	case "single":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		if !state.IsCollection {
			return state, nil
		}
		arr := state.EffectiveBase()
		frag := fmt.Sprintf("(CASE WHEN COALESCE(%s, 0) = 1 THEN %s END)",
			d.JSONArrayLength(arr), d.ExtractJSON(arr, "$[0]"))
		return scalar(state, frag), nil

	case "distinct":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		// DISTINCT leaves the surviving rows unordered; the aggregate keeps
		// whatever order the engine produces.
		frag := fmt.Sprintf("(SELECT %s FROM (SELECT DISTINCT t.value AS v FROM %s) AS u)",
			d.AggregateToJSONArray("v"), iterSource(state, ctx))
		return computed(state, frag, true, OriginFiltered), nil

	case "union", "combine", "intersect", "exclude":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		return h.setOp(name, state, ctx, args[0])

	case "take", "skip":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		lit, ok := args[0].Literal()
		if !ok || lit.Kind != expr.LitInteger {
			return SQLState{}, &ArgumentError{Function: name, Arg: 0, Reason: "count must be an integer literal"}
		}
		clause := "LIMIT " + lit.Value
		if name == "skip" {
			clause = "OFFSET " + lit.Value
		}
		// LIMIT/OFFSET only keep source order when the row set is sorted,
		// so iterate with the element ordinal and sort on it.
		frag := fmt.Sprintf("(SELECT %s FROM (SELECT t.value AS v FROM %s ORDER BY %s %s) AS u)",
			d.AggregateToJSONArray("v"), iterSourceOrdered(state, ctx),
			d.ElementOrdinal(), clause)
		return computed(state, frag, true, OriginFiltered), nil

	case "alltrue", "anytrue", "allfalse", "anyfalse":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		elem := d.Cast(d.JSONTextValue("t.value"), "BOOLEAN")
		var agg, empty string
		switch name {
		case "alltrue":
			agg, empty = fmt.Sprintf("bool_and(%s)", elem), d.BooleanLiteral(true)
		case "anytrue":
			agg, empty = fmt.Sprintf("bool_or(%s)", elem), d.BooleanLiteral(false)
		case "allfalse":
			agg, empty = fmt.Sprintf("bool_and(NOT %s)", elem), d.BooleanLiteral(true)
		case "anyfalse":
			agg, empty = fmt.Sprintf("bool_or(NOT %s)", elem), d.BooleanLiteral(false)
		}
		frag := fmt.Sprintf("(SELECT COALESCE(%s, %s) FROM %s)", agg, empty, iterSource(state, ctx))
		return scalar(state, frag), nil

	case "aggregate":
		return h.aggregate(state, ctx, args)

	default:
		return SQLState{}, &UnsupportedError{Name: name}
	}
}

// where filters the current collection by a per-element criteria, keeping the
// matching elements as a new array.
func (collectionHandler) where(state SQLState, ctx *ExecutionContext, criteria Argument, fn string) (SQLState, error) {
	condState, err := criteria.CompileScoped(elemScope(state), ctx)
	if err != nil {
		return SQLState{}, err
	}
	state = adoptCTEs(state, condState)
	d := ctx.Dialect
	frag := fmt.Sprintf("(SELECT %s FROM %s WHERE %s)",
		d.AggregateToJSONArray("t.value"), iterSource(state, ctx), condState.Fragment)
	return computed(state, frag, true, OriginFiltered), nil
}

// setOp compiles the binary set operations over two collections. A scalar
// operand is lifted to a one-element array first.
func (collectionHandler) setOp(name string, state SQLState, ctx *ExecutionContext, other Argument) (SQLState, error) {
	d := ctx.Dialect
	otherState, err := other.CompileFresh(state, ctx)
	if err != nil {
		return SQLState{}, err
	}
	state = adoptCTEs(state, otherState)

	left := iterSource(state, ctx)
	if !state.IsCollection {
		left = d.IterateJSONArray(d.JSONArray(state.EffectiveBase()), "$")
	}
	right := iterSource(otherState, ctx)
	if !otherState.IsCollection {
		right = d.IterateJSONArray(d.JSONArray(otherState.Fragment), "$")
	}

	var op string
	switch name {
	case "union":
		op = "UNION"
	case "combine":
		op = "UNION ALL"
	case "intersect":
		op = "INTERSECT"
	case "exclude":
		op = "EXCEPT"
	}
	frag := fmt.Sprintf("(SELECT %s FROM (SELECT t.value AS v FROM %s %s SELECT t.value AS v FROM %s) AS u)",
		d.AggregateToJSONArray("v"), left, op, right)
	return computed(state, frag, true, OriginFiltered), nil
}

// aggregate supports the additive accumulation form, $total + $this (in
// either order) with an optional numeric seed, which compiles to a SUM. Other
// accumulator shapes have no SQL rendering without recursive evaluation.
func (collectionHandler) aggregate(state SQLState, ctx *ExecutionContext, args []Argument) (SQLState, error) {
	if err := wantArgs("aggregate", args, 1, 2); err != nil {
		return SQLState{}, err
	}
	if !isAdditiveAccumulator(args[0].Node()) {
		return SQLState{}, &ArgumentError{
			Function: "aggregate", Arg: 0,
			Reason: "only additive accumulation of $this into $total is supported",
		}
	}
	d := ctx.Dialect
	sum := fmt.Sprintf("(SELECT COALESCE(SUM(%s), 0) FROM %s)",
		d.Cast(d.JSONTextValue("t.value"), d.NumericType()), iterSource(state, ctx))
	if len(args) == 2 {
		initState, err := args[1].CompileFresh(state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		state = adoptCTEs(state, initState)
		sum = fmt.Sprintf("(%s + %s)", initState.Fragment, sum)
	}
	return scalar(state, sum), nil
}

func isAdditiveAccumulator(n expr.Node) bool {
	bin, ok := n.(*expr.BinaryOp)
	if !ok || bin.Op != expr.OpAdd {
		return false
	}
	l, lok := bin.Left.(*expr.Identifier)
	r, rok := bin.Right.(*expr.Identifier)
	if !lok || !rok {
		return false
	}
	return (l.Name == "$this" && r.Name == "$total") || (l.Name == "$total" && r.Name == "$this")
}
