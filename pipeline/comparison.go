package pipeline

import "fmt"

var comparisonNames = nameSet(
	"=", "!=", "~", "!~", "<", "<=", ">", ">=", "in", "contains",
)

// comparisonHandler compiles the relational operators, membership, and the
// type-aware equivalence operator. Operands arrive as text fragments, so the
// relational operators compare numerically whenever both sides cast cleanly
// and fall back to text comparison otherwise.
type comparisonHandler struct{}

func (comparisonHandler) Supports(name string) bool { return comparisonNames[name] }

func (h comparisonHandler) Handle(name string, state SQLState, ctx *ExecutionContext, args []Argument) (SQLState, error) {
	d := ctx.Dialect

	if name == "contains" && len(args) == 1 {
		// Single-argument form is the string function, not membership.
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		frag := fmt.Sprintf("(%s > 0)", d.StringPosition(vals[0], state.EffectiveBase()))
		return scalar(next, frag), nil
	}

	if err := wantArgs(name, args, 2, 2); err != nil {
		return SQLState{}, err
	}

	switch name {
	case "in", "contains":
		needle, haystack := args[0], args[1]
		if name == "contains" {
			needle, haystack = haystack, needle
		}
		needleState, err := needle.CompileFresh(state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		state = adoptCTEs(state, needleState)
		hayState, err := haystack.CompileFresh(state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		state = adoptCTEs(state, hayState)
		if !hayState.IsCollection {
			return scalar(state, fmt.Sprintf("(%s = %s)", needleState.Fragment, hayState.Fragment)), nil
		}
		frag := fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s = %s)",
			iterSource(hayState, ctx), d.JSONTextValue("t.value"), needleState.Fragment)
		return scalar(state, frag), nil
	}

	vals, next, err := evalFresh(args, state, ctx)
	if err != nil {
		return SQLState{}, err
	}
	l, r := vals[0], vals[1]

	switch name {
	case "=":
		return scalar(next, fmt.Sprintf("(%s = %s)", l, r)), nil
	case "!=":
		return scalar(next, fmt.Sprintf("(%s <> %s)", l, r)), nil
	case "~":
		return scalar(next, equivalence(ctx, l, r)), nil
	case "!~":
		return scalar(next, fmt.Sprintf("(NOT %s)", equivalence(ctx, l, r))), nil
	case "<", "<=", ">", ">=":
		// All tiers work on the text rendering so typed literals (DATE,
		// TIMESTAMP) and extracted fields stay comparable on both engines.
		lv := d.Cast(l, "VARCHAR")
		rv := d.Cast(r, "VARCHAR")
		ln := d.TryCast(lv, d.NumericType())
		rn := d.TryCast(rv, d.NumericType())
		lt := d.TryCast(lv, "TIMESTAMP")
		rt := d.TryCast(rv, "TIMESTAMP")
		frag := fmt.Sprintf(
			"(CASE WHEN %s IS NOT NULL AND %s IS NOT NULL THEN %s %s %s"+
				" WHEN %s IS NOT NULL AND %s IS NOT NULL THEN %s %s %s"+
				" ELSE %s %s %s END)",
			ln, rn, ln, name, rn,
			lt, rt, lt, name, rt,
			lv, name, rv)
		return scalar(next, frag), nil
	default:
		return SQLState{}, &UnsupportedError{Name: name}
	}
}

// equivalence is two-valued: two missing values are equivalent, one missing
// is not, and otherwise values compare numerically when both sides are
// numbers, else as case-insensitive text.
func equivalence(ctx *ExecutionContext, l, r string) string {
	d := ctx.Dialect
	ln := d.TryCast(l, d.NumericType())
	rn := d.TryCast(r, d.NumericType())
	return fmt.Sprintf(
		"(CASE WHEN %s IS NULL AND %s IS NULL THEN %s WHEN %s IS NULL OR %s IS NULL THEN %s ELSE COALESCE(%s = %s, lower(%s) = lower(%s)) END)",
		l, r, d.BooleanLiteral(true),
		l, r, d.BooleanLiteral(false),
		ln, rn,
		d.Cast(l, "VARCHAR"), d.Cast(r, "VARCHAR"))
}
