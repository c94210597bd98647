package compiler

import (
	"fmt"
	"strings"
)

// Address 0 of linear memory holds the number of stack bytes in use. Frames
// grow downwards from the top of the first page.
const (
	stackCounterAddr = 0
	stackTop         = 65536
	inlineWidth      = 80
)

// SExpr is one parenthesised form of the text format. Leaves are plain
// instructions such as "i32.const 5"; Args are nested operand forms.
type SExpr struct {
	Head string
	Args []*SExpr
	// Block forces every argument onto its own line.
	Block bool
}

// S builds an inline form.
func S(head string, args ...*SExpr) *SExpr {
	return &SExpr{Head: head, Args: args}
}

// Sf builds an argument-less form from a format string.
func Sf(format string, a ...any) *SExpr {
	return &SExpr{Head: fmt.Sprintf(format, a...)}
}

// Line is one line of the listing with its nesting depth.
type Line struct {
	Depth int
	Text  string
}

func (s *SExpr) inline() (string, bool) {
	if s.Block {
		return "", false
	}
	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(s.Head)
	for _, a := range s.Args {
		txt, ok := a.inline()
		if !ok {
			return "", false
		}
		sb.WriteString(" ")
		sb.WriteString(txt)
	}
	sb.WriteString(")")
	if sb.Len() > inlineWidth {
		return "", false
	}
	return sb.String(), true
}

// Lines flattens the form. A form that fits on one line is emitted whole;
// otherwise its head opens a line, its arguments follow one level deeper and
// the closing parenthesis gets a line of its own.
func (s *SExpr) Lines() []Line {
	var out []Line
	s.appendLines(&out, 0)
	return out
}

func (s *SExpr) appendLines(out *[]Line, depth int) {
	if txt, ok := s.inline(); ok {
		*out = append(*out, Line{Depth: depth, Text: txt})
		return
	}
	*out = append(*out, Line{Depth: depth, Text: "(" + s.Head})
	for _, a := range s.Args {
		a.appendLines(out, depth+1)
	}
	*out = append(*out, Line{Depth: depth, Text: ")"})
}

// FormatLines renders lines with two spaces of indentation per level.
func FormatLines(lines []Line) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(strings.Repeat("  ", l.Depth))
		sb.WriteString(l.Text)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (s *SExpr) String() string { return FormatLines(s.Lines()) }

//  Instruction helpers

func i32Const(v int32) *SExpr { return Sf("i32.const %d", v) }

func getLocal(idx int) *SExpr { return Sf("get_local $%d", idx) }

// trueExpr and falseExpr are the boolean constants used as branch conditions.
func trueExpr() *SExpr  { return S("i32.eq", i32Const(0), i32Const(0)) }
func falseExpr() *SExpr { return S("i32.eq", i32Const(0), i32Const(1)) }

func memArg(op string, offset int) string {
	if offset == 0 {
		return op
	}
	return fmt.Sprintf("%s offset=%d", op, offset)
}

// loadOp and storeOp pick the access width for a value of type t.
func loadOp(t Type) string {
	if t.Pointers == 0 && t.Name == "char" {
		return "i32.load8_u"
	}
	return "i32.load"
}

func storeOp(t Type) string {
	if t.Pointers == 0 && t.Name == "char" {
		return "i32.store8"
	}
	return "i32.store"
}

var arithInstr = map[BinaryOp]string{
	OpAdd: "i32.add",
	OpSub: "i32.sub",
	OpMul: "i32.mul",
	OpDiv: "i32.div_s",
	OpRem: "i32.rem_s",
}

var compareInstr = map[BinaryOp]string{
	OpEq: "i32.eq",
	OpNe: "i32.ne",
	OpLt: "i32.lt_s",
	OpLe: "i32.le_s",
	OpGt: "i32.gt_s",
	OpGe: "i32.ge_s",
}

// moduleHeader returns the fixed forms every module starts with.
func moduleHeader() []*SExpr {
	return []*SExpr{
		Sf(`import "imports" %q (func $%s (param i32))`, BuiltinPrint, BuiltinPrint),
		Sf("table 0 anyfunc"),
		Sf("memory $0 1"),
		Sf(`export "memory" (memory $0)`),
	}
}
