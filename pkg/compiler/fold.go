package compiler

import (
	"math"
	"unicode/utf8"
)

// Negate returns the comparison that is true exactly when op is false.
func Negate(op BinaryOp) (BinaryOp, error) {
	switch op {
	case OpEq:
		return OpNe, nil
	case OpNe:
		return OpEq, nil
	case OpLt:
		return OpGe, nil
	case OpGe:
		return OpLt, nil
	case OpGt:
		return OpLe, nil
	case OpLe:
		return OpGt, nil
	}
	return op, &Error{Kind: InvalidNegation, Msg: "operator " + op.String() + " has no negation"}
}

// EvalBinary applies an arithmetic operator with 32-bit wrap-around and
// truncating division. ok is false when the machine would trap (division by
// zero, MinInt32 / -1) or op is not arithmetic.
func EvalBinary(op BinaryOp, a, b int32) (v int32, ok bool) {
	switch op {
	case OpAdd:
		return a + b, true
	case OpSub:
		return a - b, true
	case OpMul:
		return a * b, true
	case OpDiv, OpRem:
		if b == 0 || (a == math.MinInt32 && b == -1) {
			return 0, false
		}
		if op == OpDiv {
			return a / b, true
		}
		return a % b, true
	}
	return 0, false
}

// literalValue decodes a literal constant. ok is false for identifiers and
// for string literals longer than one character.
func literalValue(c *Constant) (int32, bool) {
	switch c.Kind {
	case ConstInt:
		v, err := parseIntLiteral(c.Value)
		if err != nil {
			return 0, false
		}
		return int32(uint32(v)), true
	case ConstChar, ConstWords:
		r, size := utf8.DecodeRuneInString(c.Value)
		if size == 0 || size != len(c.Value) {
			return 0, false
		}
		return int32(r), true
	case ConstBool:
		if c.Value == "true" {
			return 1, true
		}
		return 0, true
	case ConstNull:
		return 0, true
	}
	return 0, false
}

// staticValue returns the value of e when it is known at compile time.
// Comparisons are never folded. Nothing is known while optimization is off.
func (cg *CodeGen) staticValue(e Expr) (int32, bool) {
	if !cg.optimize {
		return 0, false
	}
	switch n := e.(type) {
	case *Constant:
		if n.Kind != ConstID {
			return literalValue(n)
		}
		v, err := cg.frame.Lookup(n.Value)
		if err != nil || !v.Foldable || v.AddressTaken {
			return 0, false
		}
		return v.Value, true
	case *BinOp:
		if !n.Op.IsArithmetic() {
			return 0, false
		}
		l, ok := cg.staticValue(n.Left)
		if !ok {
			return 0, false
		}
		r, ok := cg.staticValue(n.Right)
		if !ok {
			return 0, false
		}
		return EvalBinary(n.Op, l, r)
	case *UnaryOp:
		if n.Op != UnaryNeg {
			return 0, false
		}
		x, ok := cg.staticValue(n.X)
		if !ok {
			return 0, false
		}
		return EvalBinary(OpSub, 0, x)
	case *FuncCall, *ArrayExpr:
		return 0, false
	}
	return 0, false
}

// foldInto folds the assignment  v op= rhs  into v's cached value.
// ok is false when the result is not statically known.
func (cg *CodeGen) foldInto(v *FrameVar, op AssignOp, rhs Expr) (int32, bool) {
	r, ok := cg.staticValue(rhs)
	if !ok {
		return 0, false
	}
	bin, compound := op.Binary()
	if !compound {
		return r, true
	}
	return EvalBinary(bin, v.Value, r)
}

// staticCondition decides a condition built only from boolean literals,
// && and ||. ok is false when the outcome depends on run-time values.
func staticCondition(e Expr) (value, ok bool) {
	switch n := e.(type) {
	case *Constant:
		if n.Kind == ConstBool {
			return n.Value == "true", true
		}
	case *BinOp:
		if !n.Op.IsLogical() {
			return false, false
		}
		l, lok := staticCondition(n.Left)
		r, rok := staticCondition(n.Right)
		// The short-circuit value decides by the left operand alone. A literal
		// on the right decides only if the left side has no effects.
		decisive := n.Op == OpOr
		switch {
		case lok && l == decisive:
			return decisive, true
		case rok && r == decisive && isPure(n.Left):
			return decisive, true
		case lok && rok:
			return !decisive, true
		}
	}
	return false, false
}

// isPure reports whether evaluating e cannot change program state.
func isPure(e Expr) bool {
	pure := true
	Inspect(e, func(n Node) bool {
		switch n := n.(type) {
		case *FuncCall:
			pure = false
		case *UnaryOp:
			if n.Op == UnaryInc || n.Op == UnaryDec {
				pure = false
			}
		}
		return pure
	})
	return pure
}
