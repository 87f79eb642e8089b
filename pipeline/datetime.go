package pipeline

import "fmt"

var datetimeNames = nameSet(
	"now", "today", "timeOfDay",
	"ageInYears", "ageInYearsAt",
	"year", "month", "day", "hour", "minute", "second",
	"date", "dateTime", "time",
)

// datetimeHandler compiles the temporal functions: evaluation-instant
// literals, component constructors and extraction, and age calculation.
type datetimeHandler struct{}

func (datetimeHandler) Supports(name string) bool { return datetimeNames[name] }

func (h datetimeHandler) Handle(name string, state SQLState, ctx *ExecutionContext, args []Argument) (SQLState, error) {
	d := ctx.Dialect

	switch name {
	case "now":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		return scalar(state, d.CurrentTimestamp()), nil

	case "today":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		return scalar(state, d.CurrentDate()), nil

	case "timeofday":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		return scalar(state, d.Cast(d.CurrentTimestamp(), "TIME")), nil

	case "ageinyears", "ageinyearsat":
		return h.age(name, state, ctx, args)

	case "year", "month", "day", "hour", "minute", "second":
		if err := wantArgs(name, args, 0, 1); err != nil {
			return SQLState{}, err
		}
		operand := state.EffectiveBase()
		next := state
		if len(args) == 1 {
			vals, n, err := evalFresh(args, state, ctx)
			if err != nil {
				return SQLState{}, err
			}
			operand, next = vals[0], n
		}
		return scalar(next, d.DatePart(name, d.Cast(operand, "TIMESTAMP"))), nil

	case "date":
		return h.construct(name, state, ctx, args, 1, 3)

	case "datetime":
		return h.construct(name, state, ctx, args, 1, 6)

	case "time":
		return h.construct(name, state, ctx, args, 1, 3)

	default:
		return SQLState{}, &UnsupportedError{Name: name}
	}
}

// age compiles age-in-years. The birth date is the current value when the
// pipeline has navigated to one, otherwise the birthDate element of the
// resource in scope; the reference instant defaults to today.
func (datetimeHandler) age(name string, state SQLState, ctx *ExecutionContext, args []Argument) (SQLState, error) {
	d := ctx.Dialect
	var birth string
	if state.PathContext == "$" && state.Fragment == state.RawBase() {
		birth = d.ExtractJSONText(state.RawBase(), "$.birthDate")
	} else {
		birth = state.EffectiveBase()
	}
	birth = d.Cast(birth, "DATE")

	at := d.CurrentDate()
	next := state
	if name == "ageinyearsat" {
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		vals, n, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		at, next = d.Cast(vals[0], "DATE"), n
	} else if err := wantArgs(name, args, 0, 0); err != nil {
		return SQLState{}, err
	}
	return scalar(next, d.DateDiffYears(birth, at)), nil
}

// construct compiles the Date/DateTime/Time component constructors through
// the make_date family, which both engines share. Missing trailing
// components default to the start of the period.
func (datetimeHandler) construct(name string, state SQLState, ctx *ExecutionContext, args []Argument, min, max int) (SQLState, error) {
	if err := wantArgs(name, args, min, max); err != nil {
		return SQLState{}, err
	}
	vals, next, err := evalFresh(args, state, ctx)
	if err != nil {
		return SQLState{}, err
	}
	d := ctx.Dialect
	part := func(i int, def string) string {
		if i < len(vals) {
			return d.Cast(vals[i], "INTEGER")
		}
		return def
	}
	var frag string
	switch name {
	case "date":
		frag = fmt.Sprintf("make_date(%s, %s, %s)", part(0, "1"), part(1, "1"), part(2, "1"))
	case "datetime":
		frag = fmt.Sprintf("make_timestamp(%s, %s, %s, %s, %s, %s)",
			part(0, "1"), part(1, "1"), part(2, "1"), part(3, "0"), part(4, "0"), part(5, "0"))
	case "time":
		frag = fmt.Sprintf("make_time(%s, %s, %s)", part(0, "0"), part(1, "0"), part(2, "0"))
	}
	return scalar(next, frag), nil
}
