package vm

import (
	"strings"
	"testing"
)

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		fn   *Func
		want string
	}{
		{
			"underflow",
			&Func{Name: "f", Type: FuncType{Result: true}, Body: body(ins(OpI32Add, 0))},
			"underflow",
		},
		{
			"leftover value",
			&Func{Name: "f", Type: FuncType{Result: true}, Body: body(ins(OpI32Const, 1), ins(OpI32Const, 2))},
			"left on the stack",
		},
		{
			"missing result",
			&Func{Name: "f", Type: FuncType{Result: true}, Body: body(ins(OpNop, 0))},
			"underflow",
		},
		{
			"bad local",
			&Func{Name: "f", Type: FuncType{Result: true}, Body: body(ins(OpLocalGet, 3))},
			"local 3 out of range",
		},
		{
			"bad branch",
			&Func{Name: "f", Type: FuncType{Result: true}, Body: body(ins(OpBr, 4))},
			"branch depth 4 out of range",
		},
		{
			"bad call",
			&Func{Name: "f", Type: FuncType{Result: true}, Body: body(ins(OpCall, 9))},
			"unknown function 9",
		},
		{
			"void block with value",
			&Func{Name: "f", Type: FuncType{Result: true}, Body: body(
				ins(OpBlock, 0), ins(OpI32Const, 1), Instr{Op: OpEnd},
				ins(OpI32Const, 0),
			)},
			"left on the stack",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := module(tt.fn).Validate()
			if err == nil {
				t.Fatalf("expected an error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
			if !strings.Contains(err.Error(), "($f)") {
				t.Errorf("error %q does not name the function", err)
			}
		})
	}
}

func TestValidateAcceptsUnreachableTail(t *testing.T) {
	// Code after return is polymorphic and may pop freely.
	f := &Func{Name: "f", Type: FuncType{Result: true}, Body: body(
		ins(OpI32Const, 1), ins(OpReturn, 0),
		ins(OpI32Add, 0), ins(OpDrop, 0),
	)}
	if err := module(f).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateExports(t *testing.T) {
	m := &Module{Exports: []Export{{Name: "memory", Kind: ExportMemory}}}
	if err := m.Validate(); err == nil || !strings.Contains(err.Error(), "no memory") {
		t.Errorf("memory export without memory: got %v", err)
	}
	m = &Module{Exports: []Export{{Name: "f", Kind: ExportFunc, Index: 2}}}
	if err := m.Validate(); err == nil || !strings.Contains(err.Error(), "unknown function") {
		t.Errorf("dangling func export: got %v", err)
	}
}
