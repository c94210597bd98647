package compiler

import (
	"fmt"
	"strings"
)

// Pos is the source position of a node. Line 0 means synthesized.
type Pos struct {
	Line int
}

func (p Pos) Position() Pos { return p }

func (p Pos) String() string {
	if p.Line == 0 {
		return "<builtin>"
	}
	return fmt.Sprintf("line %d", p.Line)
}

// Node is implemented by every AST node.
type Node interface {
	Position() Pos
	String() string
}

//  Types

// Type is a base type name ("int" or "char") plus a pointer depth.
type Type struct {
	Name     string
	Pointers int
}

var (
	IntType  = Type{Name: "int"}
	CharType = Type{Name: "char"}
)

// Equal reports structural equality: same base name and same pointer depth.
func (t Type) Equal(o Type) bool {
	return t.Name == o.Name && t.Pointers == o.Pointers
}

// WithPointers returns t with its pointer depth shifted by delta.
// Dereferencing a non-pointer yields depth -1, which never equals a real type.
func (t Type) WithPointers(delta int) Type {
	return Type{Name: t.Name, Pointers: t.Pointers + delta}
}

// IsPointer reports whether t has at least one level of indirection.
func (t Type) IsPointer() bool { return t.Pointers > 0 }

// Size is the frame footprint of a variable of type t.
func (t Type) Size() int {
	if t.Pointers == 0 && t.Name == "char" {
		return 3
	}
	return 4
}

func (t Type) String() string {
	if t.Pointers <= 0 {
		return t.Name
	}
	return t.Name + " " + strings.Repeat("*", t.Pointers)
}

//  Operators

// BinaryOp is the closed set of binary operators.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpRem
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

var binaryOpSymbols = [...]string{
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpRem: "%",
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
	OpAnd: "&&",
	OpOr:  "||",
}

func (op BinaryOp) String() string {
	if int(op) >= 0 && int(op) < len(binaryOpSymbols) {
		return binaryOpSymbols[op]
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// IsComparison reports whether op is one of == != < <= > >=.
func (op BinaryOp) IsComparison() bool {
	return op >= OpEq && op <= OpGe
}

// IsLogical reports whether op is && or ||.
func (op BinaryOp) IsLogical() bool {
	return op == OpAnd || op == OpOr
}

// IsArithmetic reports whether op is one of + - * / %.
func (op BinaryOp) IsArithmetic() bool {
	return op >= OpAdd && op <= OpRem
}

// ParseBinaryOp maps an operator spelling to its BinaryOp. The reversed
// spellings "=<" and "=>" are accepted as aliases of "<=" and ">=".
func ParseBinaryOp(s string) (BinaryOp, bool) {
	switch s {
	case "=<":
		return OpLe, true
	case "=>":
		return OpGe, true
	}
	for i, sym := range binaryOpSymbols {
		if sym == s {
			return BinaryOp(i), true
		}
	}
	return 0, false
}

// UnaryOperator is the closed set of prefix/postfix operators.
type UnaryOperator int

const (
	UnaryNeg UnaryOperator = iota // -x
	UnaryNot                      // !x
	UnaryAddr                     // &x
	UnaryDeref                    // *p
	UnaryInc                      // ++x, x++
	UnaryDec                      // --x, x--
)

var unarySymbols = [...]string{
	UnaryNeg:   "-",
	UnaryNot:   "!",
	UnaryAddr:  "&",
	UnaryDeref: "*",
	UnaryInc:   "++",
	UnaryDec:   "--",
}

func (op UnaryOperator) String() string {
	if int(op) >= 0 && int(op) < len(unarySymbols) {
		return unarySymbols[op]
	}
	return fmt.Sprintf("UnaryOperator(%d)", int(op))
}

// AssignOp is one of = += -= *= /= %=.
type AssignOp int

const (
	AssignSet AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
	AssignRem
)

var assignSymbols = [...]string{
	AssignSet: "=",
	AssignAdd: "+=",
	AssignSub: "-=",
	AssignMul: "*=",
	AssignDiv: "/=",
	AssignRem: "%=",
}

func (op AssignOp) String() string {
	if int(op) >= 0 && int(op) < len(assignSymbols) {
		return assignSymbols[op]
	}
	return fmt.Sprintf("AssignOp(%d)", int(op))
}

// Binary returns the arithmetic operator a compound assignment applies.
// ok is false for plain "=".
func (op AssignOp) Binary() (bin BinaryOp, ok bool) {
	switch op {
	case AssignAdd:
		return OpAdd, true
	case AssignSub:
		return OpSub, true
	case AssignMul:
		return OpMul, true
	case AssignDiv:
		return OpDiv, true
	case AssignRem:
		return OpRem, true
	}
	return 0, false
}

//  Expression nodes

// Expr is implemented by every node that produces a value.
// Lowering an Expr always leaves exactly one i32 on the stack.
type Expr interface {
	Node
	exprNode()
}

// ConstKind tags the literal flavour of a Constant.
type ConstKind int

const (
	ConstInt   ConstKind = iota // 42
	ConstChar                   // a single character
	ConstWords                  // 'c' or "text"
	ConstID                     // identifier reference
	ConstBool                   // true / false
	ConstNull                   // null
)

var constKindNames = [...]string{
	ConstInt:   "int",
	ConstChar:  "char",
	ConstWords: "words",
	ConstID:    "id",
	ConstBool:  "bool",
	ConstNull:  "null",
}

func (k ConstKind) String() string {
	if int(k) >= 0 && int(k) < len(constKindNames) {
		return constKindNames[k]
	}
	return fmt.Sprintf("ConstKind(%d)", int(k))
}

// Constant is a literal or an identifier reference.
//
//	int x = 10;
//	        ^^  Constant{Kind: ConstInt, Value: "10"}
//	return x;
//	       ^  Constant{Kind: ConstID, Value: "x"}
type Constant struct {
	Pos
	Kind  ConstKind
	Value string
}

func (*Constant) exprNode() {}
func (c *Constant) String() string {
	switch c.Kind {
	case ConstWords, ConstChar:
		return fmt.Sprintf("%q", c.Value)
	}
	return c.Value
}

// BinOp represents Left Op Right, including the logical && and ||.
type BinOp struct {
	Pos
	Op    BinaryOp
	Left  Expr
	Right Expr
}

func (*BinOp) exprNode() {}
func (b *BinOp) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Op, b.Right)
}

// UnaryOp represents Op X.
type UnaryOp struct {
	Pos
	Op UnaryOperator
	X  Expr
}

func (*UnaryOp) exprNode()        {}
func (u *UnaryOp) String() string { return fmt.Sprintf("(%s%s)", u.Op, u.X) }

// FuncCall represents name(args).
type FuncCall struct {
	Pos
	Name string
	Args []Expr
}

func (*FuncCall) exprNode() {}
func (c *FuncCall) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(args, ", "))
}

// ArrayExpr represents Name[Index]. Arrays parse but do not lower.
type ArrayExpr struct {
	Pos
	Name  string
	Index Expr
}

func (*ArrayExpr) exprNode()        {}
func (a *ArrayExpr) String() string { return fmt.Sprintf("%s[%s]", a.Name, a.Index) }

//  Statement nodes

// Stmt is implemented by every node that does not produce a value.
type Stmt interface {
	Node
	stmtNode()
}

// DeclStmt represents  type name [= init];
// Derefs counts leading dereferences applied to Init, as in int x = **pp;
type DeclStmt struct {
	Pos
	Name      string
	Type      Type
	Init      Expr // may be nil
	Derefs    int
	IsPointer bool
	ArraySize int // non-zero for int a[N]
}

func (*DeclStmt) stmtNode() {}
func (d *DeclStmt) String() string {
	if d.ArraySize > 0 {
		return fmt.Sprintf("DeclStmt(%s %s[%d])", d.Type, d.Name, d.ArraySize)
	}
	if d.Init == nil {
		return fmt.Sprintf("DeclStmt(%s %s)", d.Type, d.Name)
	}
	return fmt.Sprintf("DeclStmt(%s %s = %s%s)", d.Type, d.Name, strings.Repeat("*", d.Derefs), d.Init)
}

// AssignmentStmt represents  [*...]name op value;
// Derefs counts the dereferences on the left, as in **pp = 3.
type AssignmentStmt struct {
	Pos
	Name      string
	Op        AssignOp
	Value     Expr
	Derefs    int
	IsPointer bool
	Index     Expr // non-nil for a[i] = v
}

func (*AssignmentStmt) stmtNode() {}
func (a *AssignmentStmt) String() string {
	target := strings.Repeat("*", a.Derefs) + a.Name
	if a.Index != nil {
		target = fmt.Sprintf("%s[%s]", a.Name, a.Index)
	}
	return fmt.Sprintf("AssignmentStmt(%s %s %s)", target, a.Op, a.Value)
}

// StmtList is a braced sequence of statements.
type StmtList struct {
	Pos
	Stmts []Stmt
}

func (*StmtList) stmtNode() {}
func (s *StmtList) String() string {
	return fmt.Sprintf("StmtList(len=%d)", len(s.Stmts))
}

// IfStmt represents if (Cond) Then [else Else].
type IfStmt struct {
	Pos
	Cond Expr
	Then *StmtList
	Else *StmtList // may be nil
}

func (*IfStmt) stmtNode() {}
func (i *IfStmt) String() string {
	if i.Else != nil {
		return fmt.Sprintf("IfStmt(if %s then %s else %s)", i.Cond, i.Then, i.Else)
	}
	return fmt.Sprintf("IfStmt(if %s then %s)", i.Cond, i.Then)
}

// WhileStmt represents while (Cond) Body.
type WhileStmt struct {
	Pos
	Cond Expr
	Body *StmtList
}

func (*WhileStmt) stmtNode() {}
func (w *WhileStmt) String() string {
	return fmt.Sprintf("WhileStmt(while %s do %s)", w.Cond, w.Body)
}

// ForStmt represents for (Init; Cond; Step) Body. Any of the three headers may be nil.
type ForStmt struct {
	Pos
	Init Stmt
	Cond Expr
	Step Stmt
	Body *StmtList
}

func (*ForStmt) stmtNode() {}
func (f *ForStmt) String() string {
	return fmt.Sprintf("ForStmt(init=%v, cond=%v, step=%v, body=%s)", f.Init, f.Cond, f.Step, f.Body)
}

// RetStmt represents return [Value];
type RetStmt struct {
	Pos
	Value Expr // may be nil
}

func (*RetStmt) stmtNode() {}
func (r *RetStmt) String() string {
	if r.Value == nil {
		return "RetStmt"
	}
	return fmt.Sprintf("RetStmt(%s)", r.Value)
}

// BreakStmt represents break;
type BreakStmt struct{ Pos }

func (*BreakStmt) stmtNode()      {}
func (*BreakStmt) String() string { return "BreakStmt" }

// ContinueStmt represents continue;
type ContinueStmt struct{ Pos }

func (*ContinueStmt) stmtNode()      {}
func (*ContinueStmt) String() string { return "ContinueStmt" }

// ExprStmt is an expression evaluated for its side effects (a call, x++).
type ExprStmt struct {
	Pos
	X Expr
}

func (*ExprStmt) stmtNode()        {}
func (e *ExprStmt) String() string { return fmt.Sprintf("ExprStmt(%s)", e.X) }

//  Top level

// Formal is one declared function parameter.
type Formal struct {
	Pos
	Name string
	Type Type
}

func (f *Formal) String() string { return fmt.Sprintf("%s %s", f.Type, f.Name) }

// FuncDec represents ReturnType Name(Params) { Body }.
type FuncDec struct {
	Pos
	Name       string
	ReturnType Type
	Params     []*Formal
	Body       *StmtList
}

func (f *FuncDec) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("FuncDec(%s %s(%s), body=%s)", f.ReturnType, f.Name, strings.Join(params, ", "), f.Body)
}

// Program is the root of the tree.
type Program struct {
	Pos
	Funcs []*FuncDec
}

func (p *Program) String() string { return fmt.Sprintf("Program(funcs=%d)", len(p.Funcs)) }

// Builtin function names. print is imported from the host, printInt is
// synthesized into every program.
const (
	BuiltinPrint    = "print"
	BuiltinPrintInt = "printInt"
)

// NewProgram wraps funcs in a Program and prepends the synthetic
//
//	int printInt(int x) { print(x); return 0; }
func NewProgram(funcs []*FuncDec) *Program {
	arg := &Constant{Kind: ConstID, Value: "x"}
	printInt := &FuncDec{
		Name:       BuiltinPrintInt,
		ReturnType: IntType,
		Params:     []*Formal{{Name: "x", Type: IntType}},
		Body: &StmtList{Stmts: []Stmt{
			&ExprStmt{X: &FuncCall{Name: BuiltinPrint, Args: []Expr{arg}}},
			&RetStmt{Value: &Constant{Kind: ConstInt, Value: "0"}},
		}},
	}
	all := make([]*FuncDec, 0, len(funcs)+1)
	all = append(all, printInt)
	all = append(all, funcs...)
	return &Program{Funcs: all}
}

// Lookup returns the function declared with name, or nil.
func (p *Program) Lookup(name string) *FuncDec {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}
