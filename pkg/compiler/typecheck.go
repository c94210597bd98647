package compiler

import "fmt"

// Diagnostic is a non-fatal type error.
type Diagnostic struct {
	Pos Pos
	Msg string
}

func (d Diagnostic) String() string { return fmt.Sprintf("%s: %s", d.Pos, d.Msg) }

var (
	// nullType matches every pointer type.
	nullType = Type{Name: "null", Pointers: 1}
	// invalidType marks an expression that already produced a diagnostic.
	invalidType = Type{Name: "invalid"}
)

// TypeCheck reports type mismatches in prog. It never stops at the first
// problem and never changes the tree.
func TypeCheck(prog *Program) []Diagnostic {
	tc := &typeChecker{prog: prog, funcs: make(map[string]*FuncDec)}
	for _, fn := range prog.Funcs {
		if _, dup := tc.funcs[fn.Name]; dup {
			tc.errorf(fn, "Redeclared function %s", fn.Name)
			continue
		}
		tc.funcs[fn.Name] = fn
	}
	for _, fn := range prog.Funcs {
		tc.checkFunc(fn)
	}
	return tc.diags
}

type typeChecker struct {
	prog   *Program
	funcs  map[string]*FuncDec
	fn     *FuncDec
	scopes []map[string]Type
	diags  []Diagnostic
}

func (tc *typeChecker) errorf(n Node, format string, args ...any) {
	tc.diags = append(tc.diags, Diagnostic{Pos: n.Position(), Msg: fmt.Sprintf(format, args...)})
}

func (tc *typeChecker) enter() { tc.scopes = append(tc.scopes, make(map[string]Type)) }
func (tc *typeChecker) leave() { tc.scopes = tc.scopes[:len(tc.scopes)-1] }

func (tc *typeChecker) declare(n Node, name string, t Type) {
	scope := tc.scopes[len(tc.scopes)-1]
	if _, dup := scope[name]; dup {
		tc.errorf(n, "Redeclared variable %s", name)
	}
	scope[name] = t
}

func (tc *typeChecker) lookup(name string) (Type, bool) {
	for i := len(tc.scopes) - 1; i >= 0; i-- {
		if t, ok := tc.scopes[i][name]; ok {
			return t, true
		}
	}
	return Type{}, false
}

func integral(t Type) bool {
	return t.Pointers == 0 && (t.Name == "int" || t.Name == "char")
}

// compatible reports whether a value of type b may be used where a is
// expected. int and char mix freely and null converts to any pointer.
func compatible(a, b Type) bool {
	switch {
	case a.Equal(invalidType) || b.Equal(invalidType):
		return true
	case a.Equal(b):
		return true
	case integral(a) && integral(b):
		return true
	case a.Equal(nullType):
		return b.IsPointer()
	case b.Equal(nullType):
		return a.IsPointer()
	}
	return false
}

func (tc *typeChecker) checkFunc(fn *FuncDec) {
	tc.fn = fn
	tc.scopes = nil
	tc.enter()
	defer tc.leave()
	for _, p := range fn.Params {
		tc.declare(p, p.Name, p.Type)
	}
	if fn.Body != nil {
		// The body shares the parameter scope.
		for _, s := range fn.Body.Stmts {
			tc.stmt(s)
		}
	}
}

func (tc *typeChecker) block(list *StmtList) {
	if list == nil {
		return
	}
	tc.enter()
	defer tc.leave()
	for _, s := range list.Stmts {
		tc.stmt(s)
	}
}

func (tc *typeChecker) stmt(s Stmt) {
	switch n := s.(type) {
	case *DeclStmt:
		if n.Init != nil {
			t := tc.expr(n.Init)
			if n.Derefs > 0 {
				t = tc.deref(n, t, n.Derefs)
			}
			if !compatible(n.Type, t) {
				tc.errorf(n, "Type Error (Assignment %s)", AssignSet)
			}
		}
		tc.declare(n, n.Name, n.Type)
	case *AssignmentStmt:
		lt, ok := tc.lookup(n.Name)
		if !ok {
			tc.errorf(n, "Undefined variable %s", n.Name)
			lt = invalidType
		} else if n.Derefs > 0 {
			lt = tc.deref(n, lt, n.Derefs)
		}
		if n.Index != nil {
			tc.expr(n.Index)
		}
		rt := tc.expr(n.Value)
		_, compound := n.Op.Binary()
		pointerStep := compound && lt.IsPointer() && integral(rt)
		if !compatible(lt, rt) && !pointerStep {
			tc.errorf(n, "Type Error (Assignment %s)", n.Op)
		}
	case *StmtList:
		tc.block(n)
	case *IfStmt:
		tc.expr(n.Cond)
		tc.block(n.Then)
		tc.block(n.Else)
	case *WhileStmt:
		tc.expr(n.Cond)
		tc.block(n.Body)
	case *ForStmt:
		tc.enter()
		if n.Init != nil {
			tc.stmt(n.Init)
		}
		if n.Cond != nil {
			tc.expr(n.Cond)
		}
		if n.Step != nil {
			tc.stmt(n.Step)
		}
		tc.block(n.Body)
		tc.leave()
	case *RetStmt:
		if n.Value == nil {
			return
		}
		if t := tc.expr(n.Value); !compatible(tc.fn.ReturnType, t) {
			tc.errorf(n, "Type Error (Return %s)", tc.fn.Name)
		}
	case *BreakStmt, *ContinueStmt:
	case *ExprStmt:
		tc.expr(n.X)
	}
}

func (tc *typeChecker) deref(n Node, t Type, times int) Type {
	if t.Equal(invalidType) || t.Equal(nullType) {
		return invalidType
	}
	if t.Pointers < times {
		tc.errorf(n, "Type Error (Dereference %s)", t)
		return invalidType
	}
	return t.WithPointers(-times)
}

func (tc *typeChecker) expr(e Expr) Type {
	switch n := e.(type) {
	case *Constant:
		switch n.Kind {
		case ConstID:
			t, ok := tc.lookup(n.Value)
			if !ok {
				tc.errorf(n, "Undefined variable %s", n.Value)
				return invalidType
			}
			return t
		case ConstChar:
			return CharType
		case ConstWords:
			if len([]rune(n.Value)) == 1 {
				return CharType
			}
			return CharType.WithPointers(1)
		case ConstNull:
			return nullType
		}
		return IntType
	case *BinOp:
		return tc.binary(n)
	case *UnaryOp:
		t := tc.expr(n.X)
		switch n.Op {
		case UnaryAddr:
			if t.Equal(invalidType) {
				return t
			}
			return t.WithPointers(1)
		case UnaryDeref:
			return tc.deref(n, t, 1)
		case UnaryInc, UnaryDec:
			return t
		}
		return IntType
	case *FuncCall:
		return tc.call(n)
	case *ArrayExpr:
		tc.expr(n.Index)
		t, ok := tc.lookup(n.Name)
		if !ok {
			tc.errorf(n, "Undefined variable %s", n.Name)
			return invalidType
		}
		return t
	}
	return invalidType
}

func (tc *typeChecker) binary(n *BinOp) Type {
	lt := tc.expr(n.Left)
	rt := tc.expr(n.Right)
	if lt.Equal(invalidType) || rt.Equal(invalidType) {
		return invalidType
	}

	switch {
	case n.Op.IsLogical():
		return IntType
	case n.Op.IsComparison():
		if !compatible(lt, rt) {
			tc.errorf(n, "Type Error (Binary Expression %s)", n.Op)
		}
		return IntType
	}

	// Pointer arithmetic: p + n, n + p, p - n.
	if (n.Op == OpAdd || n.Op == OpSub) && lt.IsPointer() && integral(rt) {
		return lt
	}
	if n.Op == OpAdd && integral(lt) && rt.IsPointer() {
		return rt
	}
	if !integral(lt) || !integral(rt) {
		tc.errorf(n, "Type Error (Binary Expression %s)", n.Op)
		return invalidType
	}
	return IntType
}

func (tc *typeChecker) call(n *FuncCall) Type {
	argTypes := make([]Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = tc.expr(a)
	}
	if n.Name == BuiltinPrint {
		if len(n.Args) != 1 {
			tc.errorf(n, "Type Error (Funccall %s)", n.Name)
		}
		return IntType
	}
	fn, ok := tc.funcs[n.Name]
	if !ok {
		tc.errorf(n, "Undefined function %s", n.Name)
		return invalidType
	}
	if len(fn.Params) != len(argTypes) {
		tc.errorf(n, "Type Error (Funccall %s)", n.Name)
		return fn.ReturnType
	}
	for i, p := range fn.Params {
		if !compatible(p.Type, argTypes[i]) {
			tc.errorf(n, "Type Error (Funccall %s)", n.Name)
			break
		}
	}
	return fn.ReturnType
}
