package compiler

import (
	"errors"
	"strings"
	"testing"
)

func TestFrameTableOffsets(t *testing.T) {
	ft := NewFrameTable()
	ft.Reset(15)
	a := ft.Declare("a", IntType, 0)
	c := ft.Declare("c", CharType, -1)
	p := ft.Declare("p", IntType.WithPointers(1), -1)
	q := ft.Declare("q", CharType.WithPointers(2), -1)

	tests := []struct {
		v            *FrameVar
		offset, size int
	}{
		{a, 11, 4},
		{c, 8, 3},
		{p, 4, 4},
		{q, 0, 4},
	}
	for _, tt := range tests {
		if tt.v.Offset != tt.offset || tt.v.Size != tt.size {
			t.Errorf("%s: offset %d size %d, want %d %d", tt.v.Name, tt.v.Offset, tt.v.Size, tt.offset, tt.size)
		}
	}
	if !a.IsParam() || c.IsParam() {
		t.Error("IsParam wrong")
	}
	if !p.IsPointer || !q.IsPointer || a.IsPointer {
		t.Error("IsPointer wrong")
	}
	if !a.InRegister() {
		t.Error("int parameter should read from its register")
	}
	a.AddressTaken = true
	if a.InRegister() {
		t.Error("address-taken parameter must read from the frame")
	}
	if len(ft.Vars()) != 4 || ft.Size() != 15 {
		t.Errorf("Vars %d Size %d", len(ft.Vars()), ft.Size())
	}
}

func TestFrameTableScopes(t *testing.T) {
	ft := NewFrameTable()
	ft.Reset(12)
	outer := ft.Declare("x", IntType, -1)
	ft.EnterScope()
	inner := ft.Declare("x", IntType, -1)
	if v, _ := ft.Lookup("x"); v != inner {
		t.Error("inner x should shadow outer x")
	}
	ft.ExitScope()
	if v, _ := ft.Lookup("x"); v != outer {
		t.Error("outer x should be visible again")
	}
	if inner.Offset == outer.Offset {
		t.Error("shadowing variable reused the outer slot")
	}
	ft.ExitScope()
	if _, err := ft.Lookup("x"); err != nil {
		t.Error("the outermost scope must survive ExitScope")
	}

	_, err := ft.Lookup("missing")
	if !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("Lookup(missing) = %v, want UnknownSymbol", err)
	}
}

func TestFrameTableString(t *testing.T) {
	ft := NewFrameTable()
	if got := ft.String(); got != "Frame (Size: 0)\n  (empty)\n" {
		t.Errorf("empty table = %q", got)
	}
	ft.Reset(7)
	n := ft.Declare("n", IntType, 0)
	n.Foldable, n.Value = true, 9
	ft.Declare("c", CharType, -1)
	got := ft.String()
	lines := strings.Split(strings.TrimSpace(got), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[1]), "c ") || !strings.Contains(lines[1], "Offset: 0 (Size: 3, Type: char, Param: -, Fold: no)") {
		t.Errorf("line for c = %q", lines[1])
	}
	if !strings.Contains(lines[2], "Offset: 3 (Size: 4, Type: int, Param: $0, Fold: 9)") {
		t.Errorf("line for n = %q", lines[2])
	}
}
