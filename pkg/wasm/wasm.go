// Package wasm encodes an assembled module in the WebAssembly binary format.
package wasm

import (
	"fmt"

	"watc/pkg/vm"
)

// Section ids.
const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secTable    = 4
	secMemory   = 5
	secExport   = 7
	secCode     = 10
)

const (
	typeFunc    = 0x60
	typeI32     = 0x7F
	typeFuncref = 0x70
	blockVoid   = 0x40
	externFunc  = 0x00
)

var header = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// Encode returns the binary form of m.
func Encode(m *vm.Module) ([]byte, error) {
	e := &encoder{mod: m, typeIndex: make(map[vm.FuncType]int)}
	for _, imp := range m.Imports {
		e.typeOf(imp.Type)
	}
	for _, f := range m.Funcs {
		e.typeOf(f.Type)
	}

	out := append([]byte(nil), header...)
	out = section(out, secType, e.typeSection())
	if len(m.Imports) > 0 {
		out = section(out, secImport, e.importSection())
	}
	if len(m.Funcs) > 0 {
		out = section(out, secFunction, e.funcSection())
	}
	if m.HasTable {
		var buf []byte
		buf = appendULEB128(buf, 1)
		buf = append(buf, typeFuncref, 0x00)
		buf = appendULEB128(buf, uint32(m.TableSize))
		out = section(out, secTable, buf)
	}
	if m.HasMemory {
		var buf []byte
		buf = appendULEB128(buf, 1)
		buf = append(buf, 0x00)
		buf = appendULEB128(buf, uint32(m.MemoryPages))
		out = section(out, secMemory, buf)
	}
	if len(m.Exports) > 0 {
		out = section(out, secExport, e.exportSection())
	}
	if len(m.Funcs) > 0 {
		code, err := e.codeSection()
		if err != nil {
			return nil, err
		}
		out = section(out, secCode, code)
	}
	return out, nil
}

type encoder struct {
	mod       *vm.Module
	types     []vm.FuncType
	typeIndex map[vm.FuncType]int
}

// typeOf registers t and returns its index, deduplicating.
func (e *encoder) typeOf(t vm.FuncType) int {
	if idx, ok := e.typeIndex[t]; ok {
		return idx
	}
	e.typeIndex[t] = len(e.types)
	e.types = append(e.types, t)
	return len(e.types) - 1
}

func section(out []byte, id byte, payload []byte) []byte {
	out = append(out, id)
	out = appendULEB128(out, uint32(len(payload)))
	return append(out, payload...)
}

func appendName(buf []byte, s string) []byte {
	buf = appendULEB128(buf, uint32(len(s)))
	return append(buf, s...)
}

func (e *encoder) typeSection() []byte {
	var buf []byte
	buf = appendULEB128(buf, uint32(len(e.types)))
	for _, t := range e.types {
		buf = append(buf, typeFunc)
		buf = appendULEB128(buf, uint32(t.Params))
		for i := 0; i < t.Params; i++ {
			buf = append(buf, typeI32)
		}
		buf = appendULEB128(buf, uint32(t.Results()))
		if t.Result {
			buf = append(buf, typeI32)
		}
	}
	return buf
}

func (e *encoder) importSection() []byte {
	var buf []byte
	buf = appendULEB128(buf, uint32(len(e.mod.Imports)))
	for _, imp := range e.mod.Imports {
		buf = appendName(buf, imp.Module)
		buf = appendName(buf, imp.Field)
		buf = append(buf, externFunc)
		buf = appendULEB128(buf, uint32(e.typeOf(imp.Type)))
	}
	return buf
}

func (e *encoder) funcSection() []byte {
	var buf []byte
	buf = appendULEB128(buf, uint32(len(e.mod.Funcs)))
	for _, f := range e.mod.Funcs {
		buf = appendULEB128(buf, uint32(e.typeOf(f.Type)))
	}
	return buf
}

func (e *encoder) exportSection() []byte {
	var buf []byte
	buf = appendULEB128(buf, uint32(len(e.mod.Exports)))
	for _, exp := range e.mod.Exports {
		buf = appendName(buf, exp.Name)
		buf = append(buf, byte(exp.Kind))
		buf = appendULEB128(buf, uint32(exp.Index))
	}
	return buf
}

func (e *encoder) codeSection() ([]byte, error) {
	var buf []byte
	buf = appendULEB128(buf, uint32(len(e.mod.Funcs)))
	for _, f := range e.mod.Funcs {
		body, err := encodeBody(f)
		if err != nil {
			return nil, fmt.Errorf("func $%s: %w", f.Name, err)
		}
		buf = appendULEB128(buf, uint32(len(body)))
		buf = append(buf, body...)
	}
	return buf, nil
}

// encodeBody writes the local declarations and instructions of f.
func encodeBody(f *vm.Func) ([]byte, error) {
	var buf []byte
	if f.Locals > 0 {
		buf = appendULEB128(buf, 1)
		buf = appendULEB128(buf, uint32(f.Locals))
		buf = append(buf, typeI32)
	} else {
		buf = appendULEB128(buf, 0)
	}
	for i, in := range f.Body {
		buf = append(buf, byte(in.Op))
		switch {
		case in.Op == vm.OpBlock || in.Op == vm.OpLoop:
			if in.Result {
				buf = append(buf, typeI32)
			} else {
				buf = append(buf, blockVoid)
			}
		case in.Op == vm.OpI32Const:
			buf = appendSLEB128(buf, in.Imm)
		case in.Op == vm.OpBr || in.Op == vm.OpBrIf || in.Op == vm.OpCall ||
			in.Op == vm.OpLocalGet || in.Op == vm.OpLocalSet || in.Op == vm.OpLocalTee:
			if in.Imm < 0 {
				return nil, fmt.Errorf("instruction %d (%s): negative immediate %d", i, in.Op, in.Imm)
			}
			buf = appendULEB128(buf, uint32(in.Imm))
		case in.Op.IsLoad() || in.Op.IsStore():
			buf = appendULEB128(buf, in.Align)
			buf = appendULEB128(buf, in.Offset)
		}
	}
	return buf, nil
}

func appendULEB128(buf []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

func appendSLEB128(buf []byte, v int32) []byte {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		buf = append(buf, b)
		if done {
			return buf
		}
	}
}
