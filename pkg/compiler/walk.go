package compiler

// Child is one labelled edge of the tree.
type Child struct {
	Name string
	Node Node
}

// Children returns the non-nil children of n in source order.
func Children(n Node) []Child {
	var out []Child
	add := func(name string, c Node) {
		if c == nil {
			return
		}
		out = append(out, Child{Name: name, Node: c})
	}

	switch n := n.(type) {
	case *Program:
		for _, f := range n.Funcs {
			add("func", f)
		}
	case *FuncDec:
		for _, p := range n.Params {
			add("param", p)
		}
		if n.Body != nil {
			add("body", n.Body)
		}
	case *Formal:
	case *StmtList:
		for _, s := range n.Stmts {
			add("stmt", s)
		}
	case *DeclStmt:
		if n.Init != nil {
			add("init", n.Init)
		}
	case *AssignmentStmt:
		if n.Index != nil {
			add("index", n.Index)
		}
		add("value", n.Value)
	case *IfStmt:
		add("cond", n.Cond)
		if n.Then != nil {
			add("then", n.Then)
		}
		if n.Else != nil {
			add("else", n.Else)
		}
	case *WhileStmt:
		add("cond", n.Cond)
		if n.Body != nil {
			add("body", n.Body)
		}
	case *ForStmt:
		if n.Init != nil {
			add("init", n.Init)
		}
		if n.Cond != nil {
			add("cond", n.Cond)
		}
		if n.Step != nil {
			add("step", n.Step)
		}
		if n.Body != nil {
			add("body", n.Body)
		}
	case *RetStmt:
		if n.Value != nil {
			add("value", n.Value)
		}
	case *BreakStmt, *ContinueStmt:
	case *ExprStmt:
		add("expr", n.X)
	case *Constant:
	case *BinOp:
		add("left", n.Left)
		add("right", n.Right)
	case *UnaryOp:
		add("operand", n.X)
	case *FuncCall:
		for _, a := range n.Args {
			add("arg", a)
		}
	case *ArrayExpr:
		add("index", n.Index)
	}
	return out
}

// Inspect walks the tree depth-first, calling f for every node. Children of
// a node are skipped when f returns false.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c.Node, f)
	}
}

// NodeKind is the type name of n as shown in dumps.
func NodeKind(n Node) string {
	switch n.(type) {
	case *Program:
		return "Program"
	case *FuncDec:
		return "FuncDec"
	case *Formal:
		return "Formal"
	case *StmtList:
		return "StmtList"
	case *DeclStmt:
		return "DeclStmt"
	case *AssignmentStmt:
		return "AssignmentStmt"
	case *IfStmt:
		return "IfStmt"
	case *WhileStmt:
		return "WhileStmt"
	case *ForStmt:
		return "ForStmt"
	case *RetStmt:
		return "RetStmt"
	case *BreakStmt:
		return "BreakStmt"
	case *ContinueStmt:
		return "ContinueStmt"
	case *ExprStmt:
		return "ExprStmt"
	case *Constant:
		return "Constant"
	case *BinOp:
		return "BinOp"
	case *UnaryOp:
		return "UnaryOp"
	case *FuncCall:
		return "FuncCall"
	case *ArrayExpr:
		return "ArrayExpr"
	}
	return "Node"
}
