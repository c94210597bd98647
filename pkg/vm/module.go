package vm

// Instr is one instruction of a function body in linear form.
type Instr struct {
	Op Opcode
	// Imm is the i32.const value, local index, branch depth or function index.
	Imm int32
	// Offset and Align are the memory immediates of loads and stores.
	// Align is log2 of the byte alignment.
	Offset uint32
	Align  uint32
	// Result marks a block or loop that yields an i32.
	Result bool
	// Jump is the index of the end matching a block or loop.
	Jump int
	// Line is the source line the instruction came from, 0 if unknown.
	Line int
}

// FuncType is the signature of a function. Every value is an i32.
type FuncType struct {
	Params int
	Result bool
}

func (t FuncType) Results() int {
	if t.Result {
		return 1
	}
	return 0
}

// Import is a function provided by the host.
type Import struct {
	Module string
	Field  string
	Name   string // symbolic name used in the text format, without '$'
	Type   FuncType
}

// Func is a function defined in the module. Body ends with the OpEnd that
// closes the function.
type Func struct {
	Name   string
	Type   FuncType
	Locals int // locals declared after the parameters
	Body   []Instr
}

type ExportKind byte

const (
	ExportFunc   ExportKind = 0x00
	ExportTable  ExportKind = 0x01
	ExportMemory ExportKind = 0x02
)

type Export struct {
	Name  string
	Kind  ExportKind
	Index int
}

// Module is an assembled program. Function indices count the imports first.
type Module struct {
	Imports     []Import
	Funcs       []*Func
	Exports     []Export
	HasMemory   bool
	MemoryPages int
	HasTable    bool
	TableSize   int
}

// PageSize is the size of one page of linear memory.
const PageSize = 65536

// NumFuncs is the size of the function index space.
func (m *Module) NumFuncs() int { return len(m.Imports) + len(m.Funcs) }

// FuncType returns the signature of the function at index idx.
func (m *Module) FuncType(idx int) (FuncType, bool) {
	switch {
	case idx < 0 || idx >= m.NumFuncs():
		return FuncType{}, false
	case idx < len(m.Imports):
		return m.Imports[idx].Type, true
	}
	return m.Funcs[idx-len(m.Imports)].Type, true
}

// FuncName returns the symbolic name of the function at index idx.
func (m *Module) FuncName(idx int) string {
	switch {
	case idx < 0 || idx >= m.NumFuncs():
		return "?"
	case idx < len(m.Imports):
		return m.Imports[idx].Name
	}
	return m.Funcs[idx-len(m.Imports)].Name
}

// ExportedFunc returns the function index exported under name.
func (m *Module) ExportedFunc(name string) (int, bool) {
	for _, e := range m.Exports {
		if e.Kind == ExportFunc && e.Name == name {
			return e.Index, true
		}
	}
	return 0, false
}
