package pipeline

import (
	"fmt"
	"strings"

	"github.com/joelmontavon/fhir4ds/dialect"
	"github.com/joelmontavon/fhir4ds/expr"
)

var typeNames = nameSet(
	"toString", "toInteger", "toDecimal", "toBoolean", "toDate", "toDateTime", "toTime",
	"convertsToInteger", "convertsToDecimal", "convertsToBoolean",
	"convertsToDate", "convertsToDateTime", "convertsToTime",
	"is", "as", "ofType",
	"quantity", "code", "concept",
)

// typeHandler compiles conversions, type tests, and the structured-value
// constructors that emit JSON object literals.
type typeHandler struct{}

func (typeHandler) Supports(name string) bool { return typeNames[name] }

func (h typeHandler) Handle(name string, state SQLState, ctx *ExecutionContext, args []Argument) (SQLState, error) {
	d := ctx.Dialect
	v := state.EffectiveBase()

	switch name {
	case "tostring":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		return scalar(state, d.Cast(v, "VARCHAR")), nil
	case "tointeger":
		return h.cast(name, state, ctx, args, "INTEGER")
	case "todecimal":
		return h.cast(name, state, ctx, args, d.NumericType())
	case "toboolean":
		return h.cast(name, state, ctx, args, "BOOLEAN")
	case "todate":
		return h.cast(name, state, ctx, args, "DATE")
	case "todatetime":
		return h.cast(name, state, ctx, args, "TIMESTAMP")
	case "totime":
		return h.cast(name, state, ctx, args, "TIME")

	case "convertstointeger", "convertstodecimal", "convertstoboolean",
		"convertstodate", "convertstodatetime", "convertstotime":
		if err := wantArgs(name, args, 0, 0); err != nil {
			return SQLState{}, err
		}
		target := map[string]string{
			"convertstointeger":  "INTEGER",
			"convertstodecimal":  d.NumericType(),
			"convertstoboolean":  "BOOLEAN",
			"convertstodate":     "DATE",
			"convertstodatetime": "TIMESTAMP",
			"convertstotime":     "TIME",
		}[name]
		return scalar(state, fmt.Sprintf("(%s IS NOT NULL)", d.TryCast(v, target))), nil

	case "is":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		typ, err := typeNameOf(name, args[0])
		if err != nil {
			return SQLState{}, err
		}
		return scalar(state, typeTest(state, ctx, typ)), nil

	case "as":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		typ, err := typeNameOf(name, args[0])
		if err != nil {
			return SQLState{}, err
		}
		frag := fmt.Sprintf("(CASE WHEN %s THEN %s END)", typeTest(state, ctx, typ), v)
		return scalar(state, frag), nil

	case "oftype":
		if err := wantArgs(name, args, 1, 1); err != nil {
			return SQLState{}, err
		}
		typ, err := typeNameOf(name, args[0])
		if err != nil {
			return SQLState{}, err
		}
		if !state.IsCollection {
			frag := fmt.Sprintf("(CASE WHEN %s THEN %s END)", typeTest(state, ctx, typ), v)
			return scalar(state, frag), nil
		}
		frag := fmt.Sprintf("(SELECT %s FROM %s WHERE %s)",
			d.AggregateToJSONArray("t.value"), iterSource(state, ctx), valueTypeTest(ctx, "t.value", typ))
		return computed(state, frag, true, OriginFiltered), nil

	case "quantity":
		if err := wantArgs(name, args, 2, 2); err != nil {
			return SQLState{}, err
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		frag := d.JSONObject(
			dialect.QuoteString("value"), vals[0],
			dialect.QuoteString("unit"), vals[1],
		)
		return scalar(next, frag), nil

	case "code":
		if err := wantArgs(name, args, 1, 2); err != nil {
			return SQLState{}, err
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		pairs := []string{dialect.QuoteString("code"), vals[0]}
		if len(vals) == 2 {
			pairs = append(pairs, dialect.QuoteString("system"), vals[1])
		}
		return scalar(next, d.JSONObject(pairs...)), nil

	case "concept":
		if err := wantArgs(name, args, 1, 8); err != nil {
			return SQLState{}, err
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		frag := d.JSONObject(dialect.QuoteString("coding"), d.JSONArray(vals...))
		return scalar(next, frag), nil

	default:
		return SQLState{}, &UnsupportedError{Name: name}
	}
}

func (typeHandler) cast(name string, state SQLState, ctx *ExecutionContext, args []Argument, target string) (SQLState, error) {
	if err := wantArgs(name, args, 0, 0); err != nil {
		return SQLState{}, err
	}
	return scalar(state, ctx.Dialect.TryCast(state.EffectiveBase(), target)), nil
}

// typeNameOf reads the type operand, which the converter passes either as a
// string literal (operator form) or a bare identifier (function form).
func typeNameOf(fn string, arg Argument) (string, error) {
	if lit, ok := arg.Literal(); ok && lit.Kind == expr.LitString {
		return lit.Value, nil
	}
	if id, ok := arg.Node().(*expr.Identifier); ok {
		return id.Name, nil
	}
	return "", &ArgumentError{Function: fn, Arg: 0, Reason: "expected a type name"}
}

// typeTest builds the membership test of the current value against a type
// name. Primitive names map onto JSON type kinds; anything else compares the
// resourceType discriminator. Document-path scalars are re-extracted with
// JSON typing intact, since navigation unwraps them to text.
func typeTest(state SQLState, ctx *ExecutionContext, typ string) string {
	d := ctx.Dialect
	jsonVal := state.EffectiveBase()
	if state.PathContext != "" && state.Origin == OriginNone {
		jsonVal = d.ExtractJSON(state.RawBase(), state.PathContext)
	}
	return valueTypeTest(ctx, jsonVal, typ)
}

func valueTypeTest(ctx *ExecutionContext, jsonVal, typ string) string {
	d := ctx.Dialect
	name := typ
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	switch strings.ToLower(name) {
	case "boolean":
		return d.JSONTypeIs(jsonVal, "boolean")
	case "integer", "decimal", "long":
		return d.JSONTypeIs(jsonVal, "number")
	case "string", "date", "datetime", "time", "uri", "code", "id":
		return d.JSONTypeIs(jsonVal, "string")
	default:
		return fmt.Sprintf("(%s = %s)",
			d.ExtractJSONText(jsonVal, "$.resourceType"), dialect.QuoteString(name))
	}
}
