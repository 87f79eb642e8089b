// Package fhirpath parses FHIRPath expressions (plus the CQL constructs the
// structured compiler supports natively: retrieves, aliased queries,
// intervals, and tuples) into expression trees.
//
// Parsing and compilation are separate steps: Parse produces an expr tree,
// and the pipeline package turns that tree into SQL for a target dialect.
package fhirpath

import (
	"fmt"

	"github.com/joelmontavon/fhir4ds/expr"
)

// Expression represents a parsed expression that can be compiled to SQL.
// Expressions are created using the Parse or MustParse functions.
type Expression struct {
	tree expr.Node
}

// Tree returns the underlying expression tree.
func (e Expression) Tree() expr.Node {
	return e.tree
}

// String returns the canonical string representation of the expression.
func (e Expression) String() string {
	if e.tree == nil {
		return ""
	}
	return e.tree.String()
}

// Parse parses an expression string and returns an Expression object.
// If the expression cannot be parsed, an error is returned.
//
// Example:
//
//	expr, err := fhirpath.Parse("Patient.name.given")
//	if err != nil {
//	    // Handle error
//	}
func Parse(source string) (Expression, error) {
	p := &parser{lex: newLexer(source)}
	tree, err := p.parseEntire()
	if err != nil {
		return Expression{}, err
	}
	return Expression{tree: tree}, nil
}

// MustParse parses an expression string and panics if it is invalid.
//
// This is useful when the expression is known to be valid, such as in tests
// or with hardcoded expressions.
//
// Example:
//
//	expr := fhirpath.MustParse("Patient.name.given")
func MustParse(source string) Expression {
	e, err := Parse(source)
	if err != nil {
		panic(err)
	}
	return e
}

// SyntaxError reports a parse failure with its source position.
type SyntaxError struct {
	line, column int
	msg          string
}

func (s SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", s.line, s.column, s.msg)
}
