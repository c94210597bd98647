package compiler

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Attr is one named scalar field of a node.
type Attr struct {
	Name  string
	Value string
}

// Attrs returns the scalar fields of n shown by the dumps.
func Attrs(n Node) []Attr {
	switch n := n.(type) {
	case *FuncDec:
		return []Attr{{"name", n.Name}, {"ret_type", n.ReturnType.String()}}
	case *Formal:
		return []Attr{{"name", n.Name}, {"type", n.Type.String()}}
	case *DeclStmt:
		attrs := []Attr{{"name", n.Name}, {"type", n.Type.String()}}
		if n.Derefs > 0 {
			attrs = append(attrs, Attr{"derefs", strconv.Itoa(n.Derefs)})
		}
		if n.ArraySize > 0 {
			attrs = append(attrs, Attr{"size", strconv.Itoa(n.ArraySize)})
		}
		return attrs
	case *AssignmentStmt:
		attrs := []Attr{{"name", n.Name}, {"op", n.Op.String()}}
		if n.Derefs > 0 {
			attrs = append(attrs, Attr{"derefs", strconv.Itoa(n.Derefs)})
		}
		return attrs
	case *Constant:
		return []Attr{{"type", n.Kind.String()}, {"value", n.Value}}
	case *BinOp:
		return []Attr{{"op", n.Op.String()}}
	case *UnaryOp:
		return []Attr{{"op", n.Op.String()}}
	case *FuncCall:
		return []Attr{{"name", n.Name}}
	case *ArrayExpr:
		return []Attr{{"name", n.Name}}
	}
	return nil
}

// DumpTree writes an indented one-node-per-line rendering of n.
func DumpTree(w io.Writer, n Node) error {
	return dumpTree(w, n, 0)
}

func dumpTree(w io.Writer, n Node, depth int) error {
	values := make([]string, 0, 4)
	for _, a := range Attrs(n) {
		values = append(values, a.Value)
	}
	if _, err := fmt.Fprintf(w, "%s%s: %s\n", strings.Repeat("  ", depth), NodeKind(n), strings.Join(values, ", ")); err != nil {
		return err
	}
	for _, c := range Children(n) {
		if err := dumpTree(w, c.Node, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// WriteXML writes n as an XML document with one element per node.
func WriteXML(w io.Writer, n Node) error {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := encodeNode(enc, n); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func encodeNode(enc *xml.Encoder, n Node) error {
	start := xml.StartElement{Name: xml.Name{Local: NodeKind(n)}}
	if line := n.Position().Line; line > 0 {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "line"}, Value: strconv.Itoa(line)})
	}
	for _, a := range Attrs(n) {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: a.Name}, Value: a.Value})
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	for _, c := range Children(n) {
		if err := encodeNode(enc, c.Node); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}
