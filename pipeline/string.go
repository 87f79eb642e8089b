package pipeline

import (
	"fmt"
	"strconv"

	"github.com/joelmontavon/fhir4ds/expr"
)

var stringNames = nameSet(
	"substring", "startsWith", "endsWith", "upper", "lower", "trim",
	"replace", "split", "join", "indexOf", "matches", "replaceMatches",
	"length",
)

// stringHandler compiles the string functions over the current value, which
// path navigation has already unwrapped to text for scalar fields.
type stringHandler struct{}

func (stringHandler) Supports(name string) bool { return stringNames[name] }

func (stringHandler) Handle(name string, state SQLState, ctx *ExecutionContext, args []Argument) (SQLState, error) {
	d := ctx.Dialect
	s := state.EffectiveBase()

	switch name {
	case "substring":
		if err := wantArgs(name, args, 1, 2); err != nil {
			return SQLState{}, err
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		// FHIRPath substring is zero-based, SQL is one-based.
		start := oneBased(args[0], vals[0])
		length := ""
		if len(vals) == 2 {
			length = vals[1]
		}
		return scalar(next, d.Substring(s, start, length)), nil

	case "startswith":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		return scalar(next, fmt.Sprintf("(%s = 1)", d.StringPosition(vals[0], s))), nil

	case "endswith":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		return scalar(next, fmt.Sprintf("(right(%s, length(%s)) = %s)", s, vals[0], vals[0])), nil

	case "indexof":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		return scalar(next, fmt.Sprintf("(%s - 1)", d.StringPosition(vals[0], s))), nil

	case "upper", "lower", "trim", "length":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		return scalar(state, fmt.Sprintf("%s(%s)", name, s)), nil

	case "replace":
		if err := wantArgs(name, args, 2, 2); err != nil {
			return SQLState{}, err
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		return scalar(next, fmt.Sprintf("replace(%s, %s, %s)", s, vals[0], vals[1])), nil

	case "matches":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		return scalar(next, d.RegexpMatches(s, vals[0])), nil

	case "replacematches":
		if err := wantArgs(name, args, 2, 2); err != nil {
			return SQLState{}, err
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		return scalar(next, d.RegexpReplace(s, vals[0], vals[1])), nil

	case "split":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		return computed(next, d.SplitToJSONArray(s, vals[0]), true, OriginFiltered), nil

	case "join":
		if err := wantArgs(name, args, 0, 1); err != nil {
			return SQLState{}, err
		}
		sep := "''"
		next := state
		if len(args) == 1 {
			vals, n, err := evalFresh(args, state, ctx)
			if err != nil {
				return SQLState{}, err
			}
			sep, next = vals[0], n
		}
		frag := fmt.Sprintf("(SELECT string_agg(%s, %s) FROM %s)",
			d.JSONTextValue("t.value"), sep, iterSource(next, ctx))
		return scalar(next, frag), nil

	default:
		return SQLState{}, &UnsupportedError{Name: name}
	}
}

// oneBased shifts a zero-based index expression to SQL's one-based indexing,
// folding when the index is a literal.
func oneBased(arg Argument, sql string) string {
	if lit, ok := arg.Literal(); ok && lit.Kind == expr.LitInteger {
		if n, err := strconv.Atoi(lit.Value); err == nil {
			return strconv.Itoa(n + 1)
		}
	}
	return fmt.Sprintf("(%s + 1)", sql)
}
