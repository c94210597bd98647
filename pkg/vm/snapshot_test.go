package vm

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	m := module(&Func{Name: "main", Type: FuncType{Result: true}, Body: body(ins(OpI32Const, 0))})
	v1 := New(m)
	binary.LittleEndian.PutUint32(v1.Memory, 12)
	v1.Memory[PageSize-1] = 0xAB
	v1.Steps = 77
	v1.stack = []int32{1, -2, 3}

	data, err := v1.SnapshotToBytes()
	if err != nil {
		t.Fatalf("SnapshotToBytes: %v", err)
	}

	v2 := New(m)
	if err := v2.RestoreFromBytes(data); err != nil {
		t.Fatalf("RestoreFromBytes: %v", err)
	}
	if !bytes.Equal(v2.Memory, v1.Memory) {
		t.Errorf("memory differs after restore")
	}
	if v2.Steps != 77 {
		t.Errorf("Steps: got %d, want 77", v2.Steps)
	}
	if len(v2.stack) != 3 || v2.stack[1] != -2 {
		t.Errorf("operand stack: got %v, want [1 -2 3]", v2.stack)
	}
}

func TestSnapshotFile(t *testing.T) {
	m := module(&Func{Name: "main", Type: FuncType{Result: true}, Body: body(ins(OpI32Const, 0))})
	v1 := New(m)
	v1.Memory[100] = 42
	path := filepath.Join(t.TempDir(), "vm.snap")
	if err := v1.SnapshotToFile(path); err != nil {
		t.Fatalf("SnapshotToFile: %v", err)
	}
	v2 := New(m)
	if err := v2.RestoreFromFile(path); err != nil {
		t.Fatalf("RestoreFromFile: %v", err)
	}
	if v2.Memory[100] != 42 {
		t.Errorf("memory[100]: got %d, want 42", v2.Memory[100])
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	v := New(module())
	if err := v.RestoreFromBytes([]byte("not a zip")); err == nil {
		t.Fatal("expected an error")
	}
}
