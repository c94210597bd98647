package asm

import (
	"strings"
	"testing"

	"watc/pkg/vm"
)

func ops(f *vm.Func) []vm.Opcode {
	out := make([]vm.Opcode, len(f.Body))
	for i, in := range f.Body {
		out[i] = in.Op
	}
	return out
}

func equalOps(a, b []vm.Opcode) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestAssembleHeader(t *testing.T) {
	m, err := Assemble(`(module
  (import "imports" "print" (func $print (param i32)))
  (table 0 anyfunc)
  (memory $0 1)
  (export "memory" (memory $0))
  (export "main" (func $main))
  (func $main (; 1 ;) (result i32)
    (local $0 i32)
    (i32.const 0)))`)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(m.Imports) != 1 || m.Imports[0].Module != "imports" || m.Imports[0].Field != "print" || m.Imports[0].Type.Params != 1 {
		t.Errorf("imports = %+v", m.Imports)
	}
	if !m.HasTable || m.TableSize != 0 {
		t.Errorf("table = %v/%d", m.HasTable, m.TableSize)
	}
	if !m.HasMemory || m.MemoryPages != 1 {
		t.Errorf("memory = %v/%d", m.HasMemory, m.MemoryPages)
	}
	if idx, ok := m.ExportedFunc("main"); !ok || idx != 1 {
		t.Errorf("main exported at %d (%v), want 1", idx, ok)
	}
	if f := m.Funcs[0]; f.Locals != 1 || !f.Type.Result || f.Type.Params != 0 {
		t.Errorf("main signature = %+v, locals %d", f.Type, f.Locals)
	}
}

func TestFoldedAndFlatAgree(t *testing.T) {
	folded := `(module (func $f (param $0 i32) (result i32)
  (i32.sub (i32.mul (get_local $0) (i32.const 3)) (i32.const 1))))`
	flat := `(module (func $f (param $0 i32) (result i32)
  local.get 0
  i32.const 3
  i32.mul
  i32.const 1
  i32.sub))`

	a, err := Assemble(folded)
	if err != nil {
		t.Fatalf("folded: %v", err)
	}
	b, err := Assemble(flat)
	if err != nil {
		t.Fatalf("flat: %v", err)
	}
	want := []vm.Opcode{vm.OpLocalGet, vm.OpI32Const, vm.OpI32Mul, vm.OpI32Const, vm.OpI32Sub, vm.OpEnd}
	if got := ops(a.Funcs[0]); !equalOps(got, want) {
		t.Errorf("folded ops = %v, want %v", got, want)
	}
	if got := ops(b.Funcs[0]); !equalOps(got, want) {
		t.Errorf("flat ops = %v, want %v", got, want)
	}
}

func TestLabelsResolveToDepths(t *testing.T) {
	m, err := Assemble(`(module (func $f (result i32)
  (block $label$0
    (loop $label$1
      (br_if $label$0 (i32.const 1))
      (br $label$1)))
  (i32.const 0)))`)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	body := m.Funcs[0].Body
	var depths []int32
	for _, in := range body {
		if in.Op == vm.OpBr || in.Op == vm.OpBrIf {
			depths = append(depths, in.Imm)
		}
	}
	if len(depths) != 2 || depths[0] != 1 || depths[1] != 0 {
		t.Errorf("branch depths = %v, want [1 0]", depths)
	}
	if body[0].Op != vm.OpBlock || body[body[0].Jump].Op != vm.OpEnd {
		t.Errorf("block jump %d does not land on an end", body[0].Jump)
	}
	if body[1].Op != vm.OpLoop || body[1].Jump != body[0].Jump-1 {
		t.Errorf("loop jump = %d, want %d", body[1].Jump, body[0].Jump-1)
	}
}

func TestBlockResult(t *testing.T) {
	m, err := Assemble(`(module (func $f (result i32)
  (block $label$0 (result i32)
    (br $label$0 (i32.const 1)))))`)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if !m.Funcs[0].Body[0].Result {
		t.Errorf("block result flag not set")
	}
}

func TestMemoryImmediates(t *testing.T) {
	m, err := Assemble(`(module (memory $0 1) (func $f (result i32)
  (i32.store offset=8 align=4 (i32.const 0) (i32.const 5))
  (i32.load8_u offset=8 (i32.const 0))))`)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	body := m.Funcs[0].Body
	if in := body[2]; in.Op != vm.OpI32Store || in.Offset != 8 || in.Align != 2 {
		t.Errorf("store = %+v", in)
	}
	if in := body[4]; in.Op != vm.OpI32Load8U || in.Offset != 8 || in.Align != 0 {
		t.Errorf("load = %+v", in)
	}
}

func TestI32Const(t *testing.T) {
	tests := []struct {
		text string
		want int32
	}{
		{"0", 0},
		{"-1", -1},
		{"2147483647", 2147483647},
		{"-2147483648", -2147483648},
		{"4294967295", -1},
		{"0x10", 16},
		{"-0x10", -16},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := parseI32(tt.text)
			if err != nil {
				t.Fatalf("parseI32(%q): %v", tt.text, err)
			}
			if got != tt.want {
				t.Errorf("parseI32(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
	for _, bad := range []string{"4294967296", "-2147483649", "x", ""} {
		if _, err := parseI32(bad); err == nil {
			t.Errorf("parseI32(%q): expected an error", bad)
		}
	}
}

func TestCallsForwardReference(t *testing.T) {
	m, err := Assemble(`(module
  (import "imports" "print" (func $print (param i32)))
  (func $a (result i32) (call $b))
  (func $b (result i32) (i32.const 4)))`)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if in := m.Funcs[0].Body[0]; in.Op != vm.OpCall || in.Imm != 2 {
		t.Errorf("call = %+v, want call 2", in)
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"no module", `(func $f)`, "single (module"},
		{"unknown instruction", `(module (func $f (i32.frob)))`, "unknown instruction on line 1: i32.frob"},
		{"unknown label", `(module (func $f (br $nope)))`, "unknown label $nope"},
		{"unknown function", `(module (func $f (result i32) (call $g)))`, "unknown function $g"},
		{"unknown local", `(module (func $f (result i32) (get_local $x)))`, "unknown local $x"},
		{"unclosed", "(module\n(func $f", "unclosed ("},
		{"stray end", `(module (func $f end))`, "end without block"},
		{"duplicate", `(module (func $f) (func $f))`, "duplicate function $f"},
		{"invalid stack", `(module (func $f (result i32) (i32.add (i32.const 1))))`, "underflow"},
		{"bad const", `(module (func $f (result i32) (i32.const 99999999999)))`, "invalid i32.const"},
		{"unterminated comment", `(module (; x`, "unterminated block comment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble(tt.src)
			if err == nil {
				t.Fatalf("expected an error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestReaderComments(t *testing.T) {
	forms, err := read(`;; leading
(a (; inline (; nested ;) ;) "s\"q" b) ;; trailing`)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(forms) != 1 {
		t.Fatalf("got %d forms, want 1", len(forms))
	}
	if got := forms[0].String(); got != `(a "s\"q" b)` {
		t.Errorf("got %s", got)
	}
	if forms[0].line != 2 {
		t.Errorf("line = %d, want 2", forms[0].line)
	}
}
