// Package expr defines the expression tree produced by the FHIRPath/CQL
// parser and consumed by the pipeline converter.
//
// The node set is closed: the converter switches exhaustively over the types
// below and rejects anything else with an unsupported-operation error. Adding
// a node kind therefore means touching the parser, this package, and the
// converter, and the compiler points out every switch that needs a new case.
package expr

import (
	"fmt"
	"strings"
)

// Node is an expression tree node.
//
// Nodes are immutable after construction. The parser is the only producer;
// everything downstream treats trees as read-only values.
type Node interface {
	fmt.Stringer
	isNode()
}

// LiteralKind discriminates Literal values.
type LiteralKind uint8

const (
	LitNull LiteralKind = iota
	LitBoolean
	LitInteger
	LitLong
	LitDecimal
	LitString
	LitDate
	LitDateTime
	LitTime
	LitQuantity
)

func (k LiteralKind) String() string {
	switch k {
	case LitNull:
		return "null"
	case LitBoolean:
		return "boolean"
	case LitInteger:
		return "integer"
	case LitLong:
		return "long"
	case LitDecimal:
		return "decimal"
	case LitString:
		return "string"
	case LitDate:
		return "date"
	case LitDateTime:
		return "dateTime"
	case LitTime:
		return "time"
	case LitQuantity:
		return "quantity"
	default:
		return "unknown"
	}
}

// Literal is a constant value. Value holds the canonical lexical form: booleans
// as "true"/"false", decimals normalized by the parser through apd, strings
// unescaped (without the surrounding quotes), temporals without the leading @.
type Literal struct {
	Kind  LiteralKind
	Value string
	Unit  string // quantity literals only
}

func (l *Literal) isNode() {}

func (l *Literal) String() string {
	switch l.Kind {
	case LitNull:
		return "{}"
	case LitString:
		return "'" + escapeString(l.Value) + "'"
	case LitDate, LitDateTime:
		return "@" + l.Value
	case LitTime:
		// the parser strips the T marker from Value; restore it so the
		// canonical form re-parses as a time, not a date
		return "@T" + l.Value
	case LitQuantity:
		return l.Value + " '" + l.Unit + "'"
	default:
		return l.Value
	}
}

// Identifier is a bare name: a path segment, query alias reference, or a
// resource type at the head of a path.
type Identifier struct {
	Name string
}

func (i *Identifier) isNode() {}

func (i *Identifier) String() string { return i.Name }

// ExternalConstant is a %name environment reference.
type ExternalConstant struct {
	Name string
}

func (e *ExternalConstant) isNode() {}

func (e *ExternalConstant) String() string { return "%" + e.Name }

// Path is a dotted navigation. Segments are Identifier, FunctionCall, or
// Indexer nodes. A FunctionCall segment operates on the value accumulated by
// the segments before it, not on a fresh base.
type Path struct {
	Segments []Node
}

func (p *Path) isNode() {}

func (p *Path) String() string {
	parts := make([]string, 0, len(p.Segments))
	for _, seg := range p.Segments {
		if idx, ok := seg.(*Indexer); ok {
			// indexers attach to the previous segment without a dot
			if len(parts) > 0 {
				parts[len(parts)-1] += idx.String()
				continue
			}
		}
		parts = append(parts, seg.String())
	}
	return strings.Join(parts, ".")
}

// BinaryOperator is a FHIRPath/CQL binary operator spelling.
type BinaryOperator string

const (
	OpAdd        BinaryOperator = "+"
	OpSubtract   BinaryOperator = "-"
	OpMultiply   BinaryOperator = "*"
	OpDivide     BinaryOperator = "/"
	OpDiv        BinaryOperator = "div"
	OpMod        BinaryOperator = "mod"
	OpConcat     BinaryOperator = "&"
	OpEqual      BinaryOperator = "="
	OpNotEqual   BinaryOperator = "!="
	OpEquivalent BinaryOperator = "~"
	OpNotEquiv   BinaryOperator = "!~"
	OpLess       BinaryOperator = "<"
	OpLessEq     BinaryOperator = "<="
	OpGreater    BinaryOperator = ">"
	OpGreaterEq  BinaryOperator = ">="
	OpAnd        BinaryOperator = "and"
	OpOr         BinaryOperator = "or"
	OpXor        BinaryOperator = "xor"
	OpImplies    BinaryOperator = "implies"
	OpIn         BinaryOperator = "in"
	OpContains   BinaryOperator = "contains"
	OpUnion      BinaryOperator = "|"
	OpIs         BinaryOperator = "is"
	OpAs         BinaryOperator = "as"
)

// BinaryOp applies Op to Left and Right.
type BinaryOp struct {
	Op    BinaryOperator
	Left  Node
	Right Node
}

func (b *BinaryOp) isNode() {}

func (b *BinaryOp) String() string {
	return fmt.Sprintf("%s %s %s", b.Left, b.Op, b.Right)
}

// UnaryOperator is a prefix operator spelling.
type UnaryOperator string

const (
	OpNegate UnaryOperator = "-"
	OpPlus   UnaryOperator = "+"
	OpNot    UnaryOperator = "not"
)

// UnaryOp applies Op to its single operand.
type UnaryOp struct {
	Op      UnaryOperator
	Operand Node
}

func (u *UnaryOp) isNode() {}

func (u *UnaryOp) String() string {
	if u.Op == OpNot {
		return fmt.Sprintf("not (%s)", u.Operand)
	}
	return string(u.Op) + u.Operand.String()
}

// FunctionCall invokes a named function. As a path segment the accumulated
// path is the input collection; as a standalone term the input is the root.
type FunctionCall struct {
	Name string
	Args []Node
}

func (f *FunctionCall) isNode() {}

func (f *FunctionCall) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return f.Name + "(" + strings.Join(args, ", ") + ")"
}

// Indexer selects a single element of a collection by zero-based index.
type Indexer struct {
	Index Node
}

func (x *Indexer) isNode() {}

func (x *Indexer) String() string { return "[" + x.Index.String() + "]" }

// CollectionLiteral is the {a, b, c} list constructor.
type CollectionLiteral struct {
	Items []Node
}

func (c *CollectionLiteral) isNode() {}

func (c *CollectionLiteral) String() string {
	items := make([]string, len(c.Items))
	for i, it := range c.Items {
		items[i] = it.String()
	}
	return "{" + strings.Join(items, ", ") + "}"
}

// TupleField is one name: value pair of a Tuple.
type TupleField struct {
	Name  string
	Value Node
}

// Tuple is the CQL Tuple { name: value, ... } constructor.
type Tuple struct {
	Fields []TupleField
}

func (t *Tuple) isNode() {}

func (t *Tuple) String() string {
	fields := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		fields[i] = f.Name + ": " + f.Value.String()
	}
	return "Tuple { " + strings.Join(fields, ", ") + " }"
}

// Interval is the CQL Interval[low, high] / Interval(low, high) constructor.
type Interval struct {
	Low        Node
	High       Node
	LowClosed  bool
	HighClosed bool
}

func (iv *Interval) isNode() {}

func (iv *Interval) String() string {
	open, close := "(", ")"
	if iv.LowClosed {
		open = "["
	}
	if iv.HighClosed {
		close = "]"
	}
	return fmt.Sprintf("Interval%s%s, %s%s", open, iv.Low, iv.High, close)
}

// Retrieve is the CQL [ResourceType: "value set"] data access clause.
// CodePath overrides the default code attribute of the resource type.
type Retrieve struct {
	ResourceType string
	ValueSet     string
	CodePath     string
}

func (r *Retrieve) isNode() {}

func (r *Retrieve) String() string {
	if r.ValueSet == "" {
		return "[" + r.ResourceType + "]"
	}
	if r.CodePath != "" {
		return fmt.Sprintf("[%s: %s in %q]", r.ResourceType, r.CodePath, r.ValueSet)
	}
	return fmt.Sprintf("[%s: %q]", r.ResourceType, r.ValueSet)
}

// SortDirection orders query results.
type SortDirection uint8

const (
	SortAsc SortDirection = iota
	SortDesc
)

// SortItem is one sort by clause entry.
type SortItem struct {
	Expr      Node // nil sorts by the returned element itself
	Direction SortDirection
}

// RelationshipKind discriminates with from without clauses.
type RelationshipKind uint8

const (
	RelWith RelationshipKind = iota
	RelWithout
)

// Relationship is a CQL with/without clause: a correlated secondary source
// and its such that condition.
type Relationship struct {
	Kind     RelationshipKind
	Source   Node
	Alias    string
	SuchThat Node
}

// Query is an aliased CQL query: source alias [with/without ...]
// [where ...] [return ...] [sort by ...].
type Query struct {
	Source        Node
	Alias         string
	Relationships []Relationship
	Where         Node
	Return        Node
	Sort          []SortItem
}

func (q *Query) isNode() {}

func (q *Query) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", q.Source, q.Alias)
	for _, rel := range q.Relationships {
		kw := "with"
		if rel.Kind == RelWithout {
			kw = "without"
		}
		fmt.Fprintf(&b, " %s %s %s such that %s", kw, rel.Source, rel.Alias, rel.SuchThat)
	}
	if q.Where != nil {
		fmt.Fprintf(&b, " where %s", q.Where)
	}
	if q.Return != nil {
		fmt.Fprintf(&b, " return %s", q.Return)
	}
	if len(q.Sort) > 0 {
		b.WriteString(" sort by ")
		for i, s := range q.Sort {
			if i > 0 {
				b.WriteString(", ")
			}
			if s.Expr != nil {
				b.WriteString(s.Expr.String())
				b.WriteByte(' ')
			}
			if s.Direction == SortDesc {
				b.WriteString("desc")
			} else {
				b.WriteString("asc")
			}
		}
	}
	return b.String()
}

func escapeString(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return r.Replace(s)
}
