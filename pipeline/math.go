package pipeline

import "fmt"

var mathNames = nameSet(
	"abs", "ceiling", "floor", "round", "sqrt", "power", "exp", "ln", "log",
	"truncate", "negate",
	"sum", "avg", "min", "max", "median", "populationStdDev", "populationVariance",
	"+", "-", "*", "/", "div", "mod", "&",
)

// mathHandler compiles arithmetic on the current value and the numeric
// aggregates over a collection. Extracted values arrive as text, so every
// operand is cast to the dialect's numeric type first.
type mathHandler struct{}

func (mathHandler) Supports(name string) bool { return mathNames[name] }

func (h mathHandler) Handle(name string, state SQLState, ctx *ExecutionContext, args []Argument) (SQLState, error) {
	d := ctx.Dialect
	num := d.Cast(state.EffectiveBase(), d.NumericType())

	switch name {
	case "abs", "sqrt", "exp", "ln":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		return scalar(state, fmt.Sprintf("%s(%s)", name, num)), nil

	case "ceiling":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		return scalar(state, fmt.Sprintf("ceil(%s)", num)), nil

	case "floor":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		return scalar(state, fmt.Sprintf("floor(%s)", num)), nil

	case "truncate":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		return scalar(state, fmt.Sprintf("trunc(%s)", num)), nil

	case "round":
		if err := wantArgs(name, args, 0, 1); err != nil {
			return SQLState{}, err
		}
		if len(args) == 0 {
			return scalar(state, fmt.Sprintf("round(%s)", num)), nil
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		return scalar(next, d.RoundTo(num, vals[0])), nil

	case "power":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		return scalar(next, fmt.Sprintf("power(%s, %s)", num, d.Cast(vals[0], d.NumericType()))), nil

	case "log":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		return scalar(next, fmt.Sprintf("(ln(%s) / ln(%s))", num, d.Cast(vals[0], d.NumericType()))), nil

	case "negate":
		if err := wantArgs(name, args, 0, 1); err != nil {
			return SQLState{}, err
		}
		if len(args) == 1 {
			vals, next, err := evalFresh(args, state, ctx)
			if err != nil {
				return SQLState{}, err
			}
			return scalar(next, fmt.Sprintf("(-%s)", d.Cast(vals[0], d.NumericType()))), nil
		}
		return scalar(state, fmt.Sprintf("(-%s)", num)), nil

	case "+", "-", "*", "/", "div", "mod", "&":
		return h.arithmetic(name, state, ctx, args)

	case "sum", "avg", "min", "max", "median", "populationstddev", "populationvariance":
		return h.aggregate(name, state, ctx, args)

	default:
		return SQLState{}, &UnsupportedError{Name: name}
	}
}

// arithmetic compiles the binary arithmetic operators and string
// concatenation. div truncates toward zero; & treats a missing operand as the
// empty string.
func (mathHandler) arithmetic(name string, state SQLState, ctx *ExecutionContext, args []Argument) (SQLState, error) {
	if err := wantArgs(name, args, 2, 2); err != nil {
		return SQLState{}, err
	}
	vals, next, err := evalFresh(args, state, ctx)
	if err != nil {
		return SQLState{}, err
	}
	d := ctx.Dialect
	l, r := vals[0], vals[1]
	ln := d.Cast(l, d.NumericType())
	rn := d.Cast(r, d.NumericType())
	var frag string
	switch name {
	case "+", "-", "*", "/":
		frag = fmt.Sprintf("(%s %s %s)", ln, name, rn)
	case "div":
		frag = d.Cast(fmt.Sprintf("trunc(%s / %s)", ln, rn), "INTEGER")
	case "mod":
		frag = fmt.Sprintf("(%s %% %s)", d.Cast(l, "INTEGER"), d.Cast(r, "INTEGER"))
	case "&":
		frag = fmt.Sprintf("(COALESCE(%s, '') || COALESCE(%s, ''))", l, r)
	}
	return scalar(next, frag), nil
}

// aggregate reduces a collection to one number. With no argument the input
// collection is reduced; CQL's Sum(list) call style passes the collection as
// the argument instead.
func (mathHandler) aggregate(name string, state SQLState, ctx *ExecutionContext, args []Argument) (SQLState, error) {
	if err := wantArgs(name, args, 0, 1); err != nil {
		return SQLState{}, err
	}
	src := state
	if len(args) == 1 {
		argState, err := args[0].CompileFresh(state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		state = adoptCTEs(state, argState)
		src = argState
	}
	d := ctx.Dialect
	elem := d.Cast(d.JSONTextValue("t.value"), d.NumericType())
	var agg string
	switch name {
	case "sum":
		agg = fmt.Sprintf("SUM(%s)", elem)
	case "avg":
		agg = fmt.Sprintf("AVG(%s)", elem)
	case "min":
		agg = fmt.Sprintf("MIN(%s)", elem)
	case "max":
		agg = fmt.Sprintf("MAX(%s)", elem)
	case "median":
		agg = d.Median(elem)
	case "populationstddev":
		agg = fmt.Sprintf("stddev_pop(%s)", elem)
	case "populationvariance":
		agg = fmt.Sprintf("var_pop(%s)", elem)
	}
	frag := fmt.Sprintf("(SELECT %s FROM %s)", agg, iterSource(src, ctx))
	return scalar(state, frag), nil
}
