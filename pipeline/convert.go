package pipeline

import (
	"fmt"
	"strings"

	"github.com/joelmontavon/fhir4ds/expr"
)

// Extension converts the node kinds this package does not know about. The
// cql package installs one for retrieves and queries. Returning false defers
// to the built-in cases.
type Extension func(n expr.Node, c *Converter) (Pipeline, bool, error)

// Converter walks an expression tree and emits the operation sequence that
// compiles it. Conversions of repeated sub-trees are cached by structural
// fingerprint, scoped to one Converter, so a Converter serves one compilation.
type Converter struct {
	ext   Extension
	cache map[uint64]Pipeline
	hits  int
}

// NewConverter returns a converter with the built-in node cases only.
func NewConverter() *Converter {
	return &Converter{cache: make(map[uint64]Pipeline)}
}

// NewConverterWith returns a converter that consults ext before the built-in
// cases.
func NewConverterWith(ext Extension) *Converter {
	return &Converter{ext: ext, cache: make(map[uint64]Pipeline)}
}

// CacheHits reports how many sub-tree conversions were served from the cache.
func (c *Converter) CacheHits() int { return c.hits }

// Convert emits the pipeline for tree.
func (c *Converter) Convert(tree expr.Node) (Pipeline, error) {
	if tree == nil {
		return nil, &UnsupportedError{Name: "nil expression"}
	}
	fp := expr.Fingerprint(tree)
	if p, ok := c.cache[fp]; ok {
		c.hits++
		return p, nil
	}
	p, err := c.convert(tree)
	if err != nil {
		return nil, err
	}
	c.cache[fp] = p
	return p, nil
}

// Argument converts an operand sub-tree for lazy compilation by a handler.
func (c *Converter) Argument(n expr.Node) (Argument, error) {
	p, err := c.Convert(n)
	if err != nil {
		return Argument{}, err
	}
	return NewArgument(p, n), nil
}

func (c *Converter) convert(n expr.Node) (Pipeline, error) {
	if c.ext != nil {
		if p, ok, err := c.ext(n, c); err != nil {
			return nil, err
		} else if ok {
			return p, nil
		}
	}

	switch t := n.(type) {
	case *expr.Literal:
		return Pipeline{literalOp{lit: t}}, nil

	case *expr.Identifier:
		return Pipeline{identOp{name: t.Name}}, nil

	case *expr.ExternalConstant:
		return Pipeline{externalConstantOp{name: t.Name}}, nil

	case *expr.Path:
		var p Pipeline
		for i, seg := range t.Segments {
			ops, err := c.segment(seg)
			if i == 0 && err != nil {
				// the head of a path may be any term, such as a literal or
				// a parenthesized expression
				ops, err = c.Convert(seg)
			}
			if err != nil {
				return nil, err
			}
			p = append(p, ops...)
		}
		return p, nil

	case *expr.BinaryOp:
		return c.binary(t)

	case *expr.UnaryOp:
		switch t.Op {
		case expr.OpPlus:
			return c.Convert(t.Operand)
		case expr.OpNegate:
			arg, err := c.Argument(t.Operand)
			if err != nil {
				return nil, err
			}
			return Pipeline{functionOp{name: "negate", args: []Argument{arg}}}, nil
		case expr.OpNot:
			arg, err := c.Argument(t.Operand)
			if err != nil {
				return nil, err
			}
			return Pipeline{functionOp{name: "not", args: []Argument{arg}}}, nil
		default:
			return nil, &UnsupportedError{Name: "unary " + string(t.Op)}
		}

	case *expr.FunctionCall:
		// Standalone call. CQL's prefix exists tests the operand collection,
		// so the operand becomes the input rather than a criteria argument.
		if len(t.Args) == 1 && strings.EqualFold(t.Name, "exists") {
			p, err := c.Convert(t.Args[0])
			if err != nil {
				return nil, err
			}
			return append(p, functionOp{name: "exists"}), nil
		}
		return c.call(t)

	case *expr.Indexer:
		arg, err := c.Argument(t.Index)
		if err != nil {
			return nil, err
		}
		return Pipeline{indexerOp{idx: arg}}, nil

	case *expr.CollectionLiteral:
		items := make([]Argument, len(t.Items))
		for i, it := range t.Items {
			a, err := c.Argument(it)
			if err != nil {
				return nil, err
			}
			items[i] = a
		}
		return Pipeline{collectionOp{items: items}}, nil

	case *expr.Tuple:
		names := make([]string, len(t.Fields))
		values := make([]Argument, len(t.Fields))
		for i, f := range t.Fields {
			a, err := c.Argument(f.Value)
			if err != nil {
				return nil, err
			}
			names[i], values[i] = f.Name, a
		}
		return Pipeline{tupleOp{names: names, values: values}}, nil

	case *expr.Interval:
		low, err := c.Argument(t.Low)
		if err != nil {
			return nil, err
		}
		high, err := c.Argument(t.High)
		if err != nil {
			return nil, err
		}
		return Pipeline{intervalOp{
			low: low, high: high,
			lowClosed: t.LowClosed, highClosed: t.HighClosed,
		}}, nil

	default:
		return nil, &UnsupportedError{Name: fmt.Sprintf("node %T", n)}
	}
}

// segment converts one path segment. A function-call segment operates on the
// value accumulated by the segments before it, so it emits a plain function
// operation rather than isolating its input.
func (c *Converter) segment(seg expr.Node) (Pipeline, error) {
	switch t := seg.(type) {
	case *expr.Identifier:
		return Pipeline{identOp{name: t.Name}}, nil
	case *expr.FunctionCall:
		p, err := c.call(t)
		if err != nil {
			return nil, err
		}
		return p, nil
	case *expr.Indexer:
		arg, err := c.Argument(t.Index)
		if err != nil {
			return nil, err
		}
		return Pipeline{indexerOp{idx: arg}}, nil
	default:
		return nil, &UnsupportedError{Name: fmt.Sprintf("path segment %T", seg)}
	}
}

func (c *Converter) call(t *expr.FunctionCall) (Pipeline, error) {
	args := make([]Argument, len(t.Args))
	for i, a := range t.Args {
		// Type operands of is/as/ofType are names, not values.
		if isTypeOperandFunction(t.Name) {
			if id, ok := a.(*expr.Identifier); ok {
				args[i] = typeNameArgument(id.Name)
				continue
			}
		}
		arg, err := c.Argument(a)
		if err != nil {
			return nil, err
		}
		args[i] = arg
	}
	return Pipeline{functionOp{name: t.Name, args: args}}, nil
}

// binary converts operator applications. Type tests and unions thread their
// left operand through as the pipeline input; everything else becomes a
// two-argument function call.
func (c *Converter) binary(t *expr.BinaryOp) (Pipeline, error) {
	switch t.Op {
	case expr.OpIs, expr.OpAs:
		id, ok := t.Right.(*expr.Identifier)
		if !ok {
			return nil, &ArgumentError{Function: string(t.Op), Arg: 1, Reason: "expected a type specifier"}
		}
		left, err := c.Convert(t.Left)
		if err != nil {
			return nil, err
		}
		name := "is"
		if t.Op == expr.OpAs {
			name = "as"
		}
		return append(left, functionOp{name: name, args: []Argument{typeNameArgument(id.Name)}}), nil

	case expr.OpUnion:
		left, err := c.Convert(t.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.Argument(t.Right)
		if err != nil {
			return nil, err
		}
		return append(left, functionOp{name: "union", args: []Argument{right}}), nil

	default:
		l, err := c.Argument(t.Left)
		if err != nil {
			return nil, err
		}
		r, err := c.Argument(t.Right)
		if err != nil {
			return nil, err
		}
		return Pipeline{functionOp{name: string(t.Op), args: []Argument{l, r}}}, nil
	}
}

// typeNameArgument wraps a type name as a constant string argument.
func typeNameArgument(name string) Argument {
	lit := &expr.Literal{Kind: expr.LitString, Value: name}
	return NewArgument(Pipeline{literalOp{lit: lit}}, lit)
}

func isTypeOperandFunction(name string) bool {
	return strings.EqualFold(name, "is") || strings.EqualFold(name, "as") || strings.EqualFold(name, "ofType")
}
