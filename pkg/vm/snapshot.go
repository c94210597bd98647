package vm

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// snapshotState is the JSON part of a snapshot.
type snapshotState struct {
	Steps        int      `json:"steps"`
	CallDepth    int      `json:"call_depth"`
	MemoryPages  int      `json:"memory_pages"`
	StackInUse   uint32   `json:"stack_in_use"`
	Exports      []string `json:"exports"`
	OperandStack []int32  `json:"operand_stack"`
}

// SnapshotToBytes packs the machine state into a ZIP archive holding
// vm_state.json and memory.bin.
func (v *VM) SnapshotToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := snapshotState{
		Steps:        v.Steps,
		CallDepth:    v.CallDepth,
		MemoryPages:  len(v.Memory) / PageSize,
		OperandStack: append([]int32{}, v.stack...),
	}
	if len(v.Memory) >= 4 {
		// Address 0 holds the number of stack bytes in use.
		state.StackInUse = binary.LittleEndian.Uint32(v.Memory)
	}
	for _, e := range v.Module.Exports {
		state.Exports = append(state.Exports, e.Name)
	}

	jsonData, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal vm_state: %w", err)
	}
	if err := writeZipEntry(zw, "vm_state.json", jsonData); err != nil {
		return nil, err
	}
	if err := writeZipEntry(zw, "memory.bin", v.Memory); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes applies a snapshot produced by SnapshotToBytes.
func (v *VM) RestoreFromBytes(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}
	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	jsonData, err := readZipEntry(fileMap, "vm_state.json")
	if err != nil {
		return err
	}
	var state snapshotState
	if err := json.Unmarshal(jsonData, &state); err != nil {
		return fmt.Errorf("unmarshal vm_state: %w", err)
	}
	mem, err := readZipEntry(fileMap, "memory.bin")
	if err != nil {
		return err
	}
	if len(mem) != state.MemoryPages*PageSize {
		return fmt.Errorf("memory.bin holds %d bytes, expected %d pages", len(mem), state.MemoryPages)
	}

	v.Memory = mem
	v.Steps = state.Steps
	v.CallDepth = state.CallDepth
	v.stack = append(v.stack[:0], state.OperandStack...)
	return nil
}

// SnapshotToFile writes the snapshot archive to path.
func (v *VM) SnapshotToFile(path string) error {
	data, err := v.SnapshotToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a snapshot archive from path.
func (v *VM) RestoreFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return v.RestoreFromBytes(data)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readZipEntry(fileMap map[string]*zip.File, name string) ([]byte, error) {
	f, ok := fileMap[name]
	if !ok {
		return nil, fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
