package compiler

// branchIfFalse emits code that jumps to label when e is false and falls
// through when it is true.
func (cg *CodeGen) branchIfFalse(e Expr, label string) error {
	switch n := e.(type) {
	case *Constant:
		if n.Kind == ConstBool {
			if n.Value == "false" {
				cg.emit(S("br_if "+label, trueExpr()))
			}
			return nil
		}
	case *BinOp:
		switch {
		case n.Op == OpAnd:
			if err := cg.branchIfFalse(n.Left, label); err != nil {
				return err
			}
			return cg.conditional(func() error { return cg.branchIfFalse(n.Right, label) })
		case n.Op == OpOr:
			pass := cg.newLabel()
			return cg.block("block", pass, func() error {
				if err := cg.branchIfTrue(n.Left, pass); err != nil {
					return err
				}
				return cg.conditional(func() error { return cg.branchIfFalse(n.Right, label) })
			})
		case n.Op.IsComparison():
			neg, err := Negate(n.Op)
			if err != nil {
				return newError(InvalidNegation, n, "operator %s has no negation", n.Op)
			}
			return cg.branchCompare(neg, n, label)
		}
	case *UnaryOp:
		if n.Op == UnaryNot {
			return cg.branchIfTrue(n.X, label)
		}
	}

	value, err := cg.lowerExpr(e, nil)
	if err != nil {
		return err
	}
	cg.emit(S("br_if "+label, S("i32.eqz", value)))
	return nil
}

// branchIfTrue emits code that jumps to label when e is true and falls
// through when it is false.
func (cg *CodeGen) branchIfTrue(e Expr, label string) error {
	switch n := e.(type) {
	case *Constant:
		if n.Kind == ConstBool {
			if n.Value == "true" {
				cg.emit(S("br_if "+label, trueExpr()))
			}
			return nil
		}
	case *BinOp:
		switch {
		case n.Op == OpOr:
			if err := cg.branchIfTrue(n.Left, label); err != nil {
				return err
			}
			return cg.conditional(func() error { return cg.branchIfTrue(n.Right, label) })
		case n.Op == OpAnd:
			skip := cg.newLabel()
			return cg.block("block", skip, func() error {
				if err := cg.branchIfFalse(n.Left, skip); err != nil {
					return err
				}
				return cg.conditional(func() error { return cg.branchIfTrue(n.Right, label) })
			})
		case n.Op.IsComparison():
			return cg.branchCompare(n.Op, n, label)
		}
	case *UnaryOp:
		if n.Op == UnaryNot {
			return cg.branchIfFalse(n.X, label)
		}
	}

	value, err := cg.lowerExpr(e, nil)
	if err != nil {
		return err
	}
	cg.emit(S("br_if "+label, value))
	return nil
}

// branchCompare emits  br_if label (op left right)  with folding off.
func (cg *CodeGen) branchCompare(op BinaryOp, n *BinOp, label string) error {
	restore := cg.suspendOptimization()
	defer restore()
	l, err := cg.lowerExpr(n.Left, nil)
	if err != nil {
		return err
	}
	r, err := cg.lowerExpr(n.Right, nil)
	if err != nil {
		return err
	}
	cg.emit(S("br_if "+label, S(compareInstr[op], l, r)))
	return nil
}

// conditional runs fn one branch level deeper. Assignments lowered by fn
// may be skipped at run time, so they revoke folding.
func (cg *CodeGen) conditional(fn func() error) error {
	cg.branchDepth++
	defer func() { cg.branchDepth-- }()
	return fn()
}

// genBranch lowers one arm of a conditional.
func (cg *CodeGen) genBranch(list *StmtList) error {
	return cg.conditional(func() error { return cg.genScope(list) })
}

// genIf lowers
//
//	(block $end
//	  (block $else
//	    <branch to $else unless cond>
//	    then...
//	    (br $end))
//	  else...)
//
// With optimization on, a condition decided by boolean literals keeps only
// the arm that runs.
func (cg *CodeGen) genIf(n *IfStmt) error {
	if cg.optimize {
		if taken, ok := staticCondition(n.Cond); ok {
			if taken {
				return cg.genScope(n.Then)
			}
			return cg.genScope(n.Else)
		}
	}

	end := cg.newLabel()
	return cg.block("block", end, func() error {
		elseLabel := cg.newLabel()
		if err := cg.block("block", elseLabel, func() error {
			if err := cg.branchIfFalse(n.Cond, elseLabel); err != nil {
				return err
			}
			if err := cg.genBranch(n.Then); err != nil {
				return err
			}
			cg.emit(Sf("br %s", end))
			return nil
		}); err != nil {
			return err
		}
		return cg.genBranch(n.Else)
	})
}

// enterLoop switches folding off for the body of a loop.
func (cg *CodeGen) enterLoop() func() {
	restore := cg.suspendOptimization()
	cg.loopDepth++
	return func() {
		cg.loopDepth--
		restore()
	}
}

// genWhile lowers
//
//	(block $exit
//	  (loop $top
//	    <branch to $exit unless cond>
//	    body...
//	    (br $top)))
func (cg *CodeGen) genWhile(n *WhileStmt) error {
	test := true
	if cg.optimize {
		if taken, ok := staticCondition(n.Cond); ok {
			if !taken {
				return nil
			}
			test = false
		}
	}

	leave := cg.enterLoop()
	defer leave()

	exit, top := cg.newLabel(), cg.newLabel()
	return cg.block("block", exit, func() error {
		return cg.block("loop", top, func() error {
			popBreak := push(&cg.breaks, exit)
			defer popBreak()
			popContinue := push(&cg.continues, top)
			defer popContinue()

			if test {
				if err := cg.branchIfFalse(n.Cond, exit); err != nil {
					return err
				}
			}
			if err := cg.genScope(n.Body); err != nil {
				return err
			}
			cg.emit(Sf("br %s", top))
			return nil
		})
	})
}

// genFor lowers a for loop like a while loop whose body sits in a block of
// its own, so continue reaches the step:
//
//	init
//	(block $exit
//	  (loop $top
//	    <branch to $exit unless cond>
//	    (block $next body...)
//	    step
//	    (br $top)))
func (cg *CodeGen) genFor(n *ForStmt) error {
	leave := cg.enterLoop()
	defer leave()
	cg.frame.EnterScope()
	defer cg.frame.ExitScope()

	if n.Init != nil {
		if err := cg.genStmt(n.Init); err != nil {
			return err
		}
	}

	exit, top := cg.newLabel(), cg.newLabel()
	return cg.block("block", exit, func() error {
		return cg.block("loop", top, func() error {
			if n.Cond != nil {
				if err := cg.branchIfFalse(n.Cond, exit); err != nil {
					return err
				}
			}
			next := cg.newLabel()
			if err := cg.block("block", next, func() error {
				popBreak := push(&cg.breaks, exit)
				defer popBreak()
				popContinue := push(&cg.continues, next)
				defer popContinue()
				return cg.genScope(n.Body)
			}); err != nil {
				return err
			}
			if n.Step != nil {
				if err := cg.genStmt(n.Step); err != nil {
					return err
				}
			}
			cg.emit(Sf("br %s", top))
			return nil
		})
	})
}
