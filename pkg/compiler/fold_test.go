package compiler

import (
	"bytes"
	"errors"
	"testing"
)

func holds(op BinaryOp, a, b int32) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	}
	panic("not a comparison: " + op.String())
}

func TestNegate(t *testing.T) {
	values := []int32{-2, -1, 0, 1, 2}
	for _, op := range []BinaryOp{OpEq, OpNe, OpLt, OpLe, OpGt, OpGe} {
		neg, err := Negate(op)
		if err != nil {
			t.Fatalf("Negate(%s): %v", op, err)
		}
		back, err := Negate(neg)
		if err != nil || back != op {
			t.Errorf("Negate(Negate(%s)) = %s, %v", op, back, err)
		}
		for _, a := range values {
			for _, b := range values {
				if holds(neg, a, b) == holds(op, a, b) {
					t.Errorf("%d %s %d and %d %s %d agree", a, op, b, a, neg, b)
				}
			}
		}
	}
}

func TestNegateRejectsNonComparisons(t *testing.T) {
	for _, op := range []BinaryOp{OpAdd, OpSub, OpMul, OpDiv, OpRem, OpAnd, OpOr} {
		_, err := Negate(op)
		if KindOf(err) != InvalidNegation {
			t.Errorf("Negate(%s) error = %v, want InvalidNegation", op, err)
		}
		if !errors.Is(err, ErrInvalidNegation) {
			t.Errorf("Negate(%s) error does not match ErrInvalidNegation", op)
		}
	}
}

func TestGenerateLeavesTreeUnchanged(t *testing.T) {
	src := `int main() {
  int a = 3;
  int s = 0;
  if (a < 4 && !(a == 2) || a >= 9) { s = 1; }
  while (a != 0) { a = a - 1; }
  for (int i = 0; i <= 2; i++) { s += i; }
  int v = (a > 1) || (s < 2);
  return s;
}`
	prog := parseSource(t, src)
	var before bytes.Buffer
	if err := DumpTree(&before, prog); err != nil {
		t.Fatal(err)
	}
	for _, opt := range []bool{false, true} {
		if _, err := Generate(prog, Options{Optimize: opt}); err != nil {
			t.Fatalf("Generate: %v", err)
		}
		var after bytes.Buffer
		if err := DumpTree(&after, prog); err != nil {
			t.Fatal(err)
		}
		if before.String() != after.String() {
			t.Errorf("optimize=%v changed the tree:\nbefore:\n%s\nafter:\n%s", opt, before.String(), after.String())
		}
	}
}

func TestStaticCondition(t *testing.T) {
	call := &FuncCall{Name: "f"}
	id := &Constant{Kind: ConstID, Value: "x"}
	lit := func(v bool) *Constant {
		if v {
			return &Constant{Kind: ConstBool, Value: "true"}
		}
		return &Constant{Kind: ConstBool, Value: "false"}
	}
	and := func(l, r Expr) Expr { return &BinOp{Op: OpAnd, Left: l, Right: r} }
	or := func(l, r Expr) Expr { return &BinOp{Op: OpOr, Left: l, Right: r} }

	tests := []struct {
		name      string
		e         Expr
		value, ok bool
	}{
		{"true", lit(true), true, true},
		{"false", lit(false), false, true},
		{"identifier", id, false, false},
		{"false and x", and(lit(false), id), false, true},
		{"x and false", and(id, lit(false)), false, true},
		{"call and false", and(call, lit(false)), false, false},
		{"true or call", or(lit(true), call), true, true},
		{"call or true", or(call, lit(true)), false, false},
		{"true and true", and(lit(true), lit(true)), true, true},
		{"false or false", or(lit(false), lit(false)), false, true},
		{"true and x", and(lit(true), id), false, false},
		{"comparison", &BinOp{Op: OpLt, Left: lit(true), Right: lit(false)}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := staticCondition(tt.e)
			if v != tt.value || ok != tt.ok {
				t.Errorf("staticCondition(%s) = %v, %v; want %v, %v", tt.e, v, ok, tt.value, tt.ok)
			}
		})
	}
}
