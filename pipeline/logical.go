package pipeline

import (
	"fmt"

	"github.com/joelmontavon/fhir4ds/expr"
)

var logicalNames = nameSet("and", "or", "not", "implies", "xor")

// logicalHandler compiles the boolean operators with three-valued logic.
// SQL's NULL semantics already produce the FHIRPath truth tables for AND, OR,
// and NOT; implies rewrites to (NOT l OR r) and xor to (l <> r), both of
// which propagate unknown correctly. Calls whose operands are boolean or
// empty literals fold at compile time.
type logicalHandler struct{}

func (logicalHandler) Supports(name string) bool { return logicalNames[name] }

// tristate is the compile-time value of a boolean literal operand.
type tristate uint8

const (
	triFalse tristate = iota
	triTrue
	triNull
)

func (h logicalHandler) Handle(name string, state SQLState, ctx *ExecutionContext, args []Argument) (SQLState, error) {
	d := ctx.Dialect

	if name == "not" {
		if err := wantArgs(name, args, 0, 1); err != nil {
			return SQLState{}, err
		}
		if len(args) == 0 {
			// x.not() operates on the current value.
			return scalar(state, fmt.Sprintf("(NOT %s)", d.Cast(state.EffectiveBase(), "BOOLEAN"))), nil
		}
		if v, ok := literalTristate(args[0]); ok {
			return scalar(state, h.render(ctx, notTable(v))), nil
		}
		vals, next, err := evalFresh(args, state, ctx)
		if err != nil {
			return SQLState{}, err
		}
		return scalar(next, fmt.Sprintf("(NOT %s)", boolOperand(ctx, args[0], vals[0]))), nil
	}

	if err := wantArgs(name, args, 2, 2); err != nil {
		return SQLState{}, err
	}
	lv, lok := literalTristate(args[0])
	rv, rok := literalTristate(args[1])
	if lok && rok {
		return scalar(state, h.render(ctx, truthTable(name, lv, rv))), nil
	}

	vals, next, err := evalFresh(args, state, ctx)
	if err != nil {
		return SQLState{}, err
	}
	l := boolOperand(ctx, args[0], vals[0])
	r := boolOperand(ctx, args[1], vals[1])
	var frag string
	switch name {
	case "and":
		frag = fmt.Sprintf("(%s AND %s)", l, r)
	case "or":
		frag = fmt.Sprintf("(%s OR %s)", l, r)
	case "xor":
		frag = fmt.Sprintf("(%s <> %s)", l, r)
	case "implies":
		frag = fmt.Sprintf("((NOT %s) OR %s)", l, r)
	default:
		return SQLState{}, &UnsupportedError{Name: name}
	}
	return scalar(next, frag), nil
}

// boolOperand casts a compiled operand to BOOLEAN unless it is a boolean or
// empty literal. Navigated fields arrive as text fragments, and PostgreSQL
// rejects text-typed AND/OR operands.
func boolOperand(ctx *ExecutionContext, arg Argument, val string) string {
	if _, ok := literalTristate(arg); ok {
		return val
	}
	return ctx.Dialect.Cast(val, "BOOLEAN")
}

func (logicalHandler) render(ctx *ExecutionContext, v tristate) string {
	switch v {
	case triTrue:
		return ctx.Dialect.BooleanLiteral(true)
	case triFalse:
		return ctx.Dialect.BooleanLiteral(false)
	default:
		return "NULL"
	}
}

func literalTristate(arg Argument) (tristate, bool) {
	lit, ok := arg.Literal()
	if !ok {
		return triNull, false
	}
	switch lit.Kind {
	case expr.LitNull:
		return triNull, true
	case expr.LitBoolean:
		if lit.Value == "true" {
			return triTrue, true
		}
		return triFalse, true
	default:
		return triNull, false
	}
}

func notTable(v tristate) tristate {
	switch v {
	case triTrue:
		return triFalse
	case triFalse:
		return triTrue
	default:
		return triNull
	}
}

// truthTable evaluates one binary operator over the three-valued domain.
func truthTable(name string, l, r tristate) tristate {
	switch name {
	case "and":
		if l == triFalse || r == triFalse {
			return triFalse
		}
		if l == triNull || r == triNull {
			return triNull
		}
		return triTrue
	case "or":
		if l == triTrue || r == triTrue {
			return triTrue
		}
		if l == triNull || r == triNull {
			return triNull
		}
		return triFalse
	case "xor":
		if l == triNull || r == triNull {
			return triNull
		}
		if l != r {
			return triTrue
		}
		return triFalse
	case "implies":
		return truthTable("or", notTable(l), r)
	default:
		return triNull
	}
}
