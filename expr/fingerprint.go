package expr

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
)

// Fingerprint returns a structural hash of the tree. Two trees that are
// structurally identical (same node kinds, operators, names, and literal
// values in the same positions) hash equal. The converter uses it to avoid
// re-converting repeated sub-expressions within one compilation.
func Fingerprint(n Node) uint64 {
	h := fnv.New64a()
	writeNode(h, n)
	return h.Sum64()
}

func writeNode(w io.Writer, n Node) {
	switch t := n.(type) {
	case nil:
		tag(w, 0)
	case *Literal:
		tag(w, 1)
		tag(w, uint8(t.Kind))
		str(w, t.Value)
		str(w, t.Unit)
	case *Identifier:
		tag(w, 2)
		str(w, t.Name)
	case *ExternalConstant:
		tag(w, 3)
		str(w, t.Name)
	case *Path:
		tag(w, 4)
		count(w, len(t.Segments))
		for _, seg := range t.Segments {
			writeNode(w, seg)
		}
	case *BinaryOp:
		tag(w, 5)
		str(w, string(t.Op))
		writeNode(w, t.Left)
		writeNode(w, t.Right)
	case *UnaryOp:
		tag(w, 6)
		str(w, string(t.Op))
		writeNode(w, t.Operand)
	case *FunctionCall:
		tag(w, 7)
		str(w, t.Name)
		count(w, len(t.Args))
		for _, a := range t.Args {
			writeNode(w, a)
		}
	case *Indexer:
		tag(w, 8)
		writeNode(w, t.Index)
	case *CollectionLiteral:
		tag(w, 9)
		count(w, len(t.Items))
		for _, it := range t.Items {
			writeNode(w, it)
		}
	case *Tuple:
		tag(w, 10)
		count(w, len(t.Fields))
		for _, f := range t.Fields {
			str(w, f.Name)
			writeNode(w, f.Value)
		}
	case *Interval:
		tag(w, 11)
		boolByte(w, t.LowClosed)
		boolByte(w, t.HighClosed)
		writeNode(w, t.Low)
		writeNode(w, t.High)
	case *Retrieve:
		tag(w, 12)
		str(w, t.ResourceType)
		str(w, t.ValueSet)
		str(w, t.CodePath)
	case *Query:
		tag(w, 13)
		writeNode(w, t.Source)
		str(w, t.Alias)
		count(w, len(t.Relationships))
		for _, rel := range t.Relationships {
			tag(w, uint8(rel.Kind))
			writeNode(w, rel.Source)
			str(w, rel.Alias)
			writeNode(w, rel.SuchThat)
		}
		writeNode(w, t.Where)
		writeNode(w, t.Return)
		count(w, len(t.Sort))
		for _, s := range t.Sort {
			tag(w, uint8(s.Direction))
			writeNode(w, s.Expr)
		}
	default:
		panic(fmt.Sprintf("unexpected node %T", n))
	}
}

func tag(w io.Writer, b uint8) {
	w.Write([]byte{b})
}

func str(w io.Writer, s string) {
	count(w, len(s))
	io.WriteString(w, s)
}

func boolByte(w io.Writer, b bool) {
	if b {
		tag(w, 1)
		return
	}
	tag(w, 0)
}

func count(w io.Writer, n int) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(n))
	w.Write(buf[:])
}
