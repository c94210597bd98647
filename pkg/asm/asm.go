package asm

import (
	"fmt"
	"strconv"
	"strings"

	"watc/pkg/vm"
)

var zeroOperandOps = map[string]vm.Opcode{
	"unreachable": vm.OpUnreachable,
	"nop":         vm.OpNop,
	"return":      vm.OpReturn,
	"drop":        vm.OpDrop,
	"select":      vm.OpSelect,
	"i32.eqz":     vm.OpI32Eqz,
	"i32.eq":      vm.OpI32Eq,
	"i32.ne":      vm.OpI32Ne,
	"i32.lt_s":    vm.OpI32LtS,
	"i32.lt_u":    vm.OpI32LtU,
	"i32.gt_s":    vm.OpI32GtS,
	"i32.gt_u":    vm.OpI32GtU,
	"i32.le_s":    vm.OpI32LeS,
	"i32.le_u":    vm.OpI32LeU,
	"i32.ge_s":    vm.OpI32GeS,
	"i32.ge_u":    vm.OpI32GeU,
	"i32.add":     vm.OpI32Add,
	"i32.sub":     vm.OpI32Sub,
	"i32.mul":     vm.OpI32Mul,
	"i32.div_s":   vm.OpI32DivS,
	"i32.div_u":   vm.OpI32DivU,
	"i32.rem_s":   vm.OpI32RemS,
	"i32.rem_u":   vm.OpI32RemU,
	"i32.and":     vm.OpI32And,
	"i32.or":      vm.OpI32Or,
	"i32.xor":     vm.OpI32Xor,
	"i32.shl":     vm.OpI32Shl,
	"i32.shr_s":   vm.OpI32ShrS,
	"i32.shr_u":   vm.OpI32ShrU,
}

// localOps accept both the old and the dotted spelling.
var localOps = map[string]vm.Opcode{
	"get_local": vm.OpLocalGet,
	"set_local": vm.OpLocalSet,
	"tee_local": vm.OpLocalTee,
	"local.get": vm.OpLocalGet,
	"local.set": vm.OpLocalSet,
	"local.tee": vm.OpLocalTee,
}

var memoryOps = map[string]vm.Opcode{
	"i32.load":    vm.OpI32Load,
	"i32.load8_s": vm.OpI32Load8S,
	"i32.load8_u": vm.OpI32Load8U,
	"i32.store":   vm.OpI32Store,
	"i32.store8":  vm.OpI32Store8,
}

var branchOps = map[string]vm.Opcode{
	"br":    vm.OpBr,
	"br_if": vm.OpBrIf,
}

var blockOps = map[string]vm.Opcode{
	"block": vm.OpBlock,
	"loop":  vm.OpLoop,
}

// naturalAlign is log2 of the access width of each memory instruction.
var naturalAlign = map[vm.Opcode]uint32{
	vm.OpI32Load:   2,
	vm.OpI32Load8S: 0,
	vm.OpI32Load8U: 0,
	vm.OpI32Store:  2,
	vm.OpI32Store8: 0,
}

// Assembler turns WebAssembly text into a vm.Module.
type Assembler struct {
	mod       *vm.Module
	funcNames map[string]int

	// state of the function being assembled
	fn     *vm.Func
	locals map[string]int
	labels []string // open block labels, innermost last; "" if unnamed
	opens  []int    // body index of each open block
}

func NewAssembler() *Assembler {
	return &Assembler{
		mod:       &vm.Module{},
		funcNames: make(map[string]int),
	}
}

// Assemble parses and validates a (module ...) form.
func Assemble(code string) (*vm.Module, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) (*vm.Module, error) {
	forms, err := read(code)
	if err != nil {
		return nil, err
	}
	if len(forms) != 1 || forms[0].head() != "module" {
		return nil, fmt.Errorf("expected a single (module ...) form")
	}
	fields := forms[0].list[1:]

	if err := a.pass1(fields); err != nil {
		return nil, err
	}
	if err := a.pass2(fields); err != nil {
		return nil, err
	}
	if err := a.mod.Validate(); err != nil {
		return nil, err
	}
	return a.mod, nil
}

// pass1 declares imports, functions, memory and table so that bodies and
// exports can refer to functions defined later.
func (a *Assembler) pass1(fields []*node) error {
	for _, f := range fields {
		switch f.head() {
		case "import":
			if len(a.mod.Funcs) > 0 {
				return fmt.Errorf("import after function definition on line %d", f.line)
			}
			imp, err := parseImport(f)
			if err != nil {
				return err
			}
			if err := a.declareFunc(imp.Name, len(a.mod.Imports), f.line); err != nil {
				return err
			}
			a.mod.Imports = append(a.mod.Imports, imp)
		case "func":
			fn, _, _, err := parseFuncHeader(f)
			if err != nil {
				return err
			}
			if err := a.declareFunc(fn.Name, a.mod.NumFuncs(), f.line); err != nil {
				return err
			}
			a.mod.Funcs = append(a.mod.Funcs, fn)
		case "memory":
			pages, err := lastNumber(f)
			if err != nil {
				return err
			}
			a.mod.HasMemory = true
			a.mod.MemoryPages = pages
		case "table":
			size, err := firstNumber(f)
			if err != nil {
				return err
			}
			a.mod.HasTable = true
			a.mod.TableSize = size
		case "export", "type":
		default:
			return fmt.Errorf("unknown module field on line %d: %s", f.line, f.head())
		}
	}
	return nil
}

func (a *Assembler) declareFunc(name string, idx, line int) error {
	if name == "" {
		return nil
	}
	if _, dup := a.funcNames[name]; dup {
		return fmt.Errorf("duplicate function $%s on line %d", name, line)
	}
	a.funcNames[name] = idx
	return nil
}

func (a *Assembler) pass2(fields []*node) error {
	next := 0
	for _, f := range fields {
		switch f.head() {
		case "func":
			if err := a.assembleFunc(f, a.mod.Funcs[next]); err != nil {
				return err
			}
			next++
		case "export":
			exp, err := a.parseExport(f)
			if err != nil {
				return err
			}
			a.mod.Exports = append(a.mod.Exports, exp)
		}
	}
	return nil
}

func parseImport(f *node) (vm.Import, error) {
	if len(f.list) != 4 || !f.list[1].quoted || !f.list[2].quoted || f.list[3].head() != "func" {
		return vm.Import{}, fmt.Errorf("unsupported import on line %d: %s", f.line, f)
	}
	desc := f.list[3]
	imp := vm.Import{Module: f.list[1].atom, Field: f.list[2].atom}
	for _, item := range desc.list[1:] {
		switch {
		case !item.isList && strings.HasPrefix(item.atom, "$"):
			imp.Name = item.atom[1:]
		case item.head() == "param":
			imp.Type.Params += countTypes(item)
		case item.head() == "result":
			imp.Type.Result = true
		default:
			return vm.Import{}, fmt.Errorf("unexpected %s in import on line %d", item, item.line)
		}
	}
	return imp, nil
}

// countTypes counts the value types of a (param ...) or (local ...) list.
// A named entry such as (param $x i32) declares exactly one.
func countTypes(n *node) int {
	if len(n.list) > 1 && strings.HasPrefix(n.list[1].atom, "$") {
		return 1
	}
	return len(n.list) - 1
}

// parseFuncHeader reads the name, params, result and locals of a func form.
// It returns the local name map and the index of the first body item.
func parseFuncHeader(f *node) (*vm.Func, map[string]int, int, error) {
	fn := &vm.Func{}
	names := make(map[string]int)
	i := 1
	if i < len(f.list) && !f.list[i].isList && strings.HasPrefix(f.list[i].atom, "$") {
		fn.Name = f.list[i].atom[1:]
		i++
	}
	for ; i < len(f.list); i++ {
		item := f.list[i]
		switch item.head() {
		case "param", "local":
			if item.head() == "param" && fn.Locals > 0 {
				return nil, nil, 0, fmt.Errorf("param after local on line %d", item.line)
			}
			idx := fn.Type.Params + fn.Locals
			if len(item.list) > 1 && strings.HasPrefix(item.list[1].atom, "$") {
				names[item.list[1].atom] = idx
			}
			if item.head() == "param" {
				fn.Type.Params += countTypes(item)
			} else {
				fn.Locals += countTypes(item)
			}
		case "result":
			fn.Type.Result = true
		case "export":
		default:
			return fn, names, i, nil
		}
	}
	return fn, names, i, nil
}

func (a *Assembler) assembleFunc(f *node, fn *vm.Func) error {
	_, names, start, err := parseFuncHeader(f)
	if err != nil {
		return err
	}
	a.fn = fn
	a.locals = names
	a.labels = nil
	a.opens = nil
	fn.Body = nil

	if err := a.instrs(f.list[start:]); err != nil {
		return fmt.Errorf("func $%s: %w", fn.Name, err)
	}
	if len(a.opens) != 0 {
		return fmt.Errorf("func $%s: %d blocks not closed", fn.Name, len(a.opens))
	}
	fn.Body = append(fn.Body, vm.Instr{Op: vm.OpEnd, Line: f.line})
	return nil
}

func (a *Assembler) emit(in vm.Instr) { a.fn.Body = append(a.fn.Body, in) }

// instrs assembles a sequence of plain and folded instructions.
func (a *Assembler) instrs(items []*node) error {
	for i := 0; i < len(items); {
		n := items[i]
		if n.isList {
			if err := a.folded(n); err != nil {
				return err
			}
			i++
			continue
		}
		used, err := a.plain(items[i:])
		if err != nil {
			return err
		}
		i += used
	}
	return nil
}

// plain assembles one flat instruction and returns how many items it used.
func (a *Assembler) plain(items []*node) (int, error) {
	op := items[0]
	if op.atom == "end" {
		return 1, a.closeBlock(op.line)
	}
	if bop, ok := blockOps[op.atom]; ok {
		return a.openBlock(bop, items)
	}
	in, used, err := a.instruction(items)
	if err != nil {
		return 0, err
	}
	a.emit(in)
	return used, nil
}

// folded assembles (op immediates... operands...) by emitting the operands
// first. (block ...) and (loop ...) enclose their body.
func (a *Assembler) folded(n *node) error {
	if len(n.list) == 0 || n.list[0].isList {
		return fmt.Errorf("malformed instruction on line %d: %s", n.line, n)
	}
	if op, ok := blockOps[n.list[0].atom]; ok {
		used, err := a.openBlock(op, n.list)
		if err != nil {
			return err
		}
		if err := a.instrs(n.list[used:]); err != nil {
			return err
		}
		return a.closeBlock(n.line)
	}

	in, used, err := a.instruction(n.list)
	if err != nil {
		return err
	}
	for _, operand := range n.list[used:] {
		if !operand.isList {
			return fmt.Errorf("unexpected %s in folded %s on line %d", operand, n.list[0].atom, operand.line)
		}
		if err := a.folded(operand); err != nil {
			return err
		}
	}
	a.emit(in)
	return nil
}

// openBlock emits block or loop with its optional label and result type.
func (a *Assembler) openBlock(op vm.Opcode, items []*node) (int, error) {
	in := vm.Instr{Op: op, Line: items[0].line}
	used := 1
	label := ""
	if used < len(items) && !items[used].isList && strings.HasPrefix(items[used].atom, "$") {
		label = items[used].atom
		used++
	}
	if used < len(items) && items[used].head() == "result" {
		in.Result = true
		used++
	}
	a.labels = append(a.labels, label)
	a.opens = append(a.opens, len(a.fn.Body))
	a.emit(in)
	return used, nil
}

func (a *Assembler) closeBlock(line int) error {
	if len(a.opens) == 0 {
		return fmt.Errorf("end without block on line %d", line)
	}
	open := a.opens[len(a.opens)-1]
	a.opens = a.opens[:len(a.opens)-1]
	a.labels = a.labels[:len(a.labels)-1]
	a.fn.Body[open].Jump = len(a.fn.Body)
	a.emit(vm.Instr{Op: vm.OpEnd, Line: line})
	return nil
}

// instruction decodes a non-block instruction and its immediates from the
// start of items. It returns how many items were used.
func (a *Assembler) instruction(items []*node) (vm.Instr, int, error) {
	mnemonic := items[0].atom
	line := items[0].line
	in := vm.Instr{Line: line}

	immediate := func() (string, error) {
		if len(items) < 2 || items[1].isList {
			return "", fmt.Errorf("%s expects an immediate on line %d", mnemonic, line)
		}
		return items[1].atom, nil
	}

	if op, ok := zeroOperandOps[mnemonic]; ok {
		in.Op = op
		return in, 1, nil
	}

	if op, ok := localOps[mnemonic]; ok {
		imm, err := immediate()
		if err != nil {
			return in, 0, err
		}
		idx, err := a.resolveLocal(imm, line)
		if err != nil {
			return in, 0, err
		}
		in.Op, in.Imm = op, int32(idx)
		return in, 2, nil
	}

	if op, ok := branchOps[mnemonic]; ok {
		imm, err := immediate()
		if err != nil {
			return in, 0, err
		}
		depth, err := a.resolveLabel(imm, line)
		if err != nil {
			return in, 0, err
		}
		in.Op, in.Imm = op, int32(depth)
		return in, 2, nil
	}

	if op, ok := memoryOps[mnemonic]; ok {
		in.Op = op
		in.Align = naturalAlign[op]
		used := 1
		for used < len(items) && !items[used].isList {
			key, value, found := strings.Cut(items[used].atom, "=")
			if !found {
				break
			}
			n, err := strconv.ParseUint(value, 0, 32)
			if err != nil {
				return in, 0, fmt.Errorf("invalid %s on line %d", items[used].atom, line)
			}
			switch key {
			case "offset":
				in.Offset = uint32(n)
			case "align":
				if n == 0 || n&(n-1) != 0 {
					return in, 0, fmt.Errorf("alignment must be a power of two on line %d", line)
				}
				in.Align = uint32(len(strconv.FormatUint(n, 2)) - 1)
			default:
				return in, 0, fmt.Errorf("unknown memory immediate %s on line %d", key, line)
			}
			used++
		}
		return in, used, nil
	}

	switch mnemonic {
	case "i32.const":
		imm, err := immediate()
		if err != nil {
			return in, 0, err
		}
		v, err := parseI32(imm)
		if err != nil {
			return in, 0, fmt.Errorf("invalid i32.const %s on line %d", imm, line)
		}
		in.Op, in.Imm = vm.OpI32Const, v
		return in, 2, nil
	case "call":
		imm, err := immediate()
		if err != nil {
			return in, 0, err
		}
		idx, err := a.resolveFunc(imm, line)
		if err != nil {
			return in, 0, err
		}
		in.Op, in.Imm = vm.OpCall, int32(idx)
		return in, 2, nil
	}

	return in, 0, fmt.Errorf("unknown instruction on line %d: %s", line, mnemonic)
}

func (a *Assembler) resolveLocal(ref string, line int) (int, error) {
	if idx, ok := a.locals[ref]; ok {
		return idx, nil
	}
	if n, err := strconv.Atoi(ref); err == nil {
		return n, nil
	}
	return 0, fmt.Errorf("unknown local %s on line %d", ref, line)
}

// resolveLabel turns a label name or depth into a relative branch depth.
func (a *Assembler) resolveLabel(ref string, line int) (int, error) {
	if strings.HasPrefix(ref, "$") {
		for i := len(a.labels) - 1; i >= 0; i-- {
			if a.labels[i] == ref {
				return len(a.labels) - 1 - i, nil
			}
		}
		return 0, fmt.Errorf("unknown label %s on line %d", ref, line)
	}
	n, err := strconv.Atoi(ref)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid branch depth %s on line %d", ref, line)
	}
	return n, nil
}

func (a *Assembler) resolveFunc(ref string, line int) (int, error) {
	if strings.HasPrefix(ref, "$") {
		if idx, ok := a.funcNames[ref[1:]]; ok {
			return idx, nil
		}
		return 0, fmt.Errorf("unknown function %s on line %d", ref, line)
	}
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("invalid function index %s on line %d", ref, line)
	}
	return n, nil
}

func (a *Assembler) parseExport(f *node) (vm.Export, error) {
	if len(f.list) != 3 || !f.list[1].quoted || !f.list[2].isList || len(f.list[2].list) != 2 {
		return vm.Export{}, fmt.Errorf("unsupported export on line %d: %s", f.line, f)
	}
	exp := vm.Export{Name: f.list[1].atom}
	desc := f.list[2]
	ref := desc.list[1].atom
	switch desc.head() {
	case "func":
		idx, err := a.resolveFunc(ref, f.line)
		if err != nil {
			return exp, err
		}
		exp.Kind, exp.Index = vm.ExportFunc, idx
	case "memory":
		exp.Kind = vm.ExportMemory
	case "table":
		exp.Kind = vm.ExportTable
	default:
		return exp, fmt.Errorf("unsupported export kind %s on line %d", desc.head(), f.line)
	}
	return exp, nil
}

// parseI32 accepts decimal or 0x literals from -2^31 to 2^32-1 and wraps
// them to 32 bits.
func parseI32(s string) (int32, error) {
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	var v uint64
	var err error
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		v, err = strconv.ParseUint(digits[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(digits, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	if neg {
		if v > 1<<31 {
			return 0, fmt.Errorf("%s out of range", s)
		}
		return int32(-int64(v)), nil
	}
	if v > 1<<32-1 {
		return 0, fmt.Errorf("%s out of range", s)
	}
	return int32(uint32(v)), nil
}

// firstNumber returns the first numeric atom of a form such as (table 0 anyfunc).
func firstNumber(f *node) (int, error) {
	for _, item := range f.list[1:] {
		if n, err := strconv.Atoi(item.atom); err == nil && !item.isList {
			return n, nil
		}
	}
	return 0, fmt.Errorf("missing size in %s on line %d", f.head(), f.line)
}

// lastNumber returns the last numeric atom of a form such as (memory $0 1).
func lastNumber(f *node) (int, error) {
	for i := len(f.list) - 1; i > 0; i-- {
		if n, err := strconv.Atoi(f.list[i].atom); err == nil && !f.list[i].isList {
			return n, nil
		}
	}
	return 0, fmt.Errorf("missing size in %s on line %d", f.head(), f.line)
}
