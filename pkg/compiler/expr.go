package compiler

import "unicode/utf8"

// lowerExpr lowers e to a form that leaves exactly one i32 on the stack.
//
// target is the variable whose assignment is being lowered, or nil. Reads of
// parameters mark it ParamBacked.
func (cg *CodeGen) lowerExpr(e Expr, target *FrameVar) (*SExpr, error) {
	if v, ok := cg.staticValue(e); ok {
		return i32Const(v), nil
	}

	switch n := e.(type) {
	case *Constant:
		return cg.lowerConstant(n, target)
	case *BinOp:
		return cg.lowerBinOp(n, target)
	case *UnaryOp:
		return cg.lowerUnary(n, target)
	case *FuncCall:
		return cg.lowerCall(n, target, false)
	case *ArrayExpr:
		return nil, newError(UnsupportedConstruct, n, "array access %s is not supported", n)
	}
	return nil, newError(UnsupportedConstruct, e, "cannot lower expression %s", e)
}

func (cg *CodeGen) lowerConstant(n *Constant, target *FrameVar) (*SExpr, error) {
	if n.Kind == ConstID {
		v, err := cg.lookup(n, n.Value)
		if err != nil {
			return nil, err
		}
		if target != nil && v.ParamBacked {
			target.ParamBacked = true
		}
		return cg.loadVar(v), nil
	}
	val, ok := literalValue(n)
	if !ok {
		return nil, newError(UnsupportedConstruct, n, "string literal %s cannot be used as a value", n)
	}
	return i32Const(val), nil
}

func (cg *CodeGen) lowerBinOp(n *BinOp, target *FrameVar) (*SExpr, error) {
	switch {
	case n.Op.IsLogical():
		return cg.lowerLogical(n)
	case n.Op.IsComparison():
		restore := cg.suspendOptimization()
		defer restore()
		l, err := cg.lowerExpr(n.Left, target)
		if err != nil {
			return nil, err
		}
		r, err := cg.lowerExpr(n.Right, target)
		if err != nil {
			return nil, err
		}
		return S(compareInstr[n.Op], l, r), nil
	}

	_, leftKnown := cg.staticValue(n.Left)
	_, rightKnown := cg.staticValue(n.Right)
	l, err := cg.lowerExpr(n.Left, target)
	if err != nil {
		return nil, err
	}
	r, err := cg.lowerExpr(n.Right, target)
	if err != nil {
		return nil, err
	}
	// Commutative operators keep the constant operand on the right.
	if (n.Op == OpAdd || n.Op == OpMul) && leftKnown && !rightKnown {
		l, r = r, l
	}
	return S(arithInstr[n.Op], l, r), nil
}

// lowerLogical lowers && and || in value context to 1 or 0:
//
//	(block $out (result i32)
//	  (block $false
//	    <branch to $false unless n holds>
//	    (br $out (i32.const 1)))
//	  (i32.const 0))
func (cg *CodeGen) lowerLogical(n *BinOp) (*SExpr, error) {
	out := cg.newLabel()
	pop := push(&cg.blocks, out)
	defer pop()

	forms, err := cg.capture(func() error {
		isFalse := cg.newLabel()
		if err := cg.block("block", isFalse, func() error {
			if err := cg.branchIfFalse(n, isFalse); err != nil {
				return err
			}
			cg.emit(S("br "+out, i32Const(1)))
			return nil
		}); err != nil {
			return err
		}
		cg.emit(i32Const(0))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &SExpr{Head: "block " + out + " (result i32)", Args: forms, Block: true}, nil
}

func zero(p Pos) *Constant { return &Constant{Pos: p, Kind: ConstInt, Value: "0"} }

func (cg *CodeGen) lowerUnary(n *UnaryOp, target *FrameVar) (*SExpr, error) {
	switch n.Op {
	case UnaryNeg:
		// -x is lowered as 0 - x on a derived node.
		return cg.lowerExpr(&BinOp{Pos: n.Pos, Op: OpSub, Left: zero(n.Pos), Right: n.X}, target)
	case UnaryNot:
		// !x is lowered as x == 0 on a derived node.
		return cg.lowerExpr(&BinOp{Pos: n.Pos, Op: OpEq, Left: n.X, Right: zero(n.Pos)}, target)
	case UnaryAddr:
		id, ok := n.X.(*Constant)
		if !ok || id.Kind != ConstID {
			return nil, newError(UnsupportedConstruct, n, "cannot take the address of %s", n.X)
		}
		v, err := cg.lookup(id, id.Value)
		if err != nil {
			return nil, err
		}
		return S("i32.add", getLocal(cg.fbLocal), i32Const(int32(v.Offset))), nil
	case UnaryDeref:
		addr, err := cg.lowerExpr(n.X, target)
		if err != nil {
			return nil, err
		}
		return S(loadOp(cg.typeOf(n.X).WithPointers(-1)), addr), nil
	case UnaryInc, UnaryDec:
		// The updated value: ++x and x++ both yield x after the update.
		forms, err := cg.capture(func() error { return cg.genIncDec(n) })
		if err != nil {
			return nil, err
		}
		value, err := cg.lowerExpr(n.X, target)
		if err != nil {
			return nil, err
		}
		return &SExpr{Head: "block (result i32)", Args: append(forms, value), Block: true}, nil
	}
	return nil, newError(UnsupportedConstruct, n, "unknown unary operator %s", n.Op)
}

// lowerCall lowers a call. print has no result and is only accepted when
// stmt is true.
func (cg *CodeGen) lowerCall(n *FuncCall, target *FrameVar, stmt bool) (*SExpr, error) {
	if n.Name == BuiltinPrint {
		if !stmt {
			return nil, newError(UnsupportedConstruct, n, "%s does not return a value", BuiltinPrint)
		}
		if len(n.Args) != 1 {
			return nil, newError(UnsupportedConstruct, n, "%s takes 1 argument, got %d", BuiltinPrint, len(n.Args))
		}
		arg, err := cg.lowerExpr(n.Args[0], nil)
		if err != nil {
			return nil, err
		}
		return S("call $"+BuiltinPrint, arg), nil
	}

	fn := cg.prog.Lookup(n.Name)
	if fn == nil {
		return nil, newError(UnknownSymbol, n, "undeclared function %q", n.Name)
	}
	if len(n.Args) != len(fn.Params) {
		return nil, newError(UnsupportedConstruct, n, "%s takes %d arguments, got %d", n.Name, len(fn.Params), len(n.Args))
	}
	args := make([]*SExpr, len(n.Args))
	for i, a := range n.Args {
		var err error
		if args[i], err = cg.lowerExpr(a, nil); err != nil {
			return nil, err
		}
	}
	if target != nil {
		target.Foldable = false
	}
	return S("call $"+Mangle(n.Name), args...), nil
}

// typeOf returns the static type of e as far as code generation needs it:
// the width of loads through pointers.
func (cg *CodeGen) typeOf(e Expr) Type {
	switch n := e.(type) {
	case *Constant:
		switch n.Kind {
		case ConstID:
			if v, err := cg.frame.Lookup(n.Value); err == nil {
				return v.Type
			}
		case ConstChar:
			return CharType
		case ConstWords:
			if utf8.RuneCountInString(n.Value) == 1 {
				return CharType
			}
			return CharType.WithPointers(1)
		case ConstNull:
			return IntType.WithPointers(1)
		}
		return IntType
	case *BinOp:
		if n.Op.IsArithmetic() {
			if t := cg.typeOf(n.Left); t.IsPointer() {
				return t
			}
			if t := cg.typeOf(n.Right); t.IsPointer() {
				return t
			}
		}
		return IntType
	case *UnaryOp:
		switch n.Op {
		case UnaryAddr:
			return cg.typeOf(n.X).WithPointers(1)
		case UnaryDeref:
			return cg.typeOf(n.X).WithPointers(-1)
		case UnaryInc, UnaryDec:
			return cg.typeOf(n.X)
		}
		return IntType
	case *FuncCall:
		if fn := cg.prog.Lookup(n.Name); fn != nil {
			return fn.ReturnType
		}
		return IntType
	case *ArrayExpr:
		return IntType
	}
	return IntType
}
