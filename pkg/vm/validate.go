package vm

import "fmt"

type ctrlEntry struct {
	op          Opcode
	result      bool
	height      int
	unreachable bool
}

// labelArity is the number of values a branch to c carries.
func (c ctrlEntry) labelArity() int {
	if c.op == OpLoop || !c.result {
		return 0
	}
	return 1
}

// Validate checks every function body: operand stack heights, block
// results, local and function indices and branch depths.
func (m *Module) Validate() error {
	for i, f := range m.Funcs {
		if err := m.validateFunc(f); err != nil {
			return fmt.Errorf("func %d ($%s): %w", len(m.Imports)+i, f.Name, err)
		}
	}
	for _, e := range m.Exports {
		switch e.Kind {
		case ExportFunc:
			if _, ok := m.FuncType(e.Index); !ok {
				return fmt.Errorf("export %q: unknown function %d", e.Name, e.Index)
			}
		case ExportMemory:
			if !m.HasMemory {
				return fmt.Errorf("export %q: module has no memory", e.Name)
			}
		}
	}
	return nil
}

func (m *Module) validateFunc(f *Func) error {
	numLocals := f.Type.Params + f.Locals
	ctrls := []ctrlEntry{{op: OpBlock, result: f.Type.Result}}
	height := 0

	for pc, in := range f.Body {
		fail := func(format string, args ...any) error {
			return fmt.Errorf("instruction %d (%s, line %d): %s", pc, in.Op, in.Line, fmt.Sprintf(format, args...))
		}
		if len(ctrls) == 0 {
			return fail("instruction after the end of the function")
		}
		top := &ctrls[len(ctrls)-1]
		pop := func(n int) error {
			for ; n > 0; n-- {
				if height == top.height {
					if top.unreachable {
						continue
					}
					return fail("operand stack underflow")
				}
				height--
			}
			return nil
		}
		unreachable := func() {
			height = top.height
			top.unreachable = true
		}
		label := func(depth int32) (*ctrlEntry, error) {
			if depth < 0 || int(depth) >= len(ctrls) {
				return nil, fail("branch depth %d out of range", depth)
			}
			return &ctrls[len(ctrls)-1-int(depth)], nil
		}

		switch {
		case in.Op == OpI32Const:
			height++
		case in.Op == OpLocalGet, in.Op == OpLocalSet, in.Op == OpLocalTee:
			if in.Imm < 0 || int(in.Imm) >= numLocals {
				return fail("local %d out of range", in.Imm)
			}
			switch in.Op {
			case OpLocalGet:
				height++
			case OpLocalSet:
				if err := pop(1); err != nil {
					return err
				}
			case OpLocalTee:
				if err := pop(1); err != nil {
					return err
				}
				height++
			}
		case in.Op.IsLoad(), in.Op == OpI32Eqz:
			if err := pop(1); err != nil {
				return err
			}
			height++
		case in.Op.IsStore():
			if err := pop(2); err != nil {
				return err
			}
		case in.Op.IsBinary():
			if err := pop(2); err != nil {
				return err
			}
			height++
		case in.Op == OpDrop:
			if err := pop(1); err != nil {
				return err
			}
		case in.Op == OpSelect:
			if err := pop(3); err != nil {
				return err
			}
			height++
		case in.Op == OpNop:
		case in.Op == OpUnreachable:
			unreachable()
		case in.Op == OpBlock, in.Op == OpLoop:
			ctrls = append(ctrls, ctrlEntry{op: in.Op, result: in.Result, height: height})
		case in.Op == OpEnd:
			arity := 0
			if top.result {
				arity = 1
			}
			if err := pop(arity); err != nil {
				return err
			}
			if height != top.height {
				return fail("%d values left on the stack at end of block", height-top.height)
			}
			height = top.height + arity
			ctrls = ctrls[:len(ctrls)-1]
		case in.Op == OpBr:
			target, err := label(in.Imm)
			if err != nil {
				return err
			}
			if err := pop(target.labelArity()); err != nil {
				return err
			}
			unreachable()
		case in.Op == OpBrIf:
			target, err := label(in.Imm)
			if err != nil {
				return err
			}
			if err := pop(1 + target.labelArity()); err != nil {
				return err
			}
			height += target.labelArity()
		case in.Op == OpReturn:
			if err := pop(f.Type.Results()); err != nil {
				return err
			}
			unreachable()
		case in.Op == OpCall:
			typ, ok := m.FuncType(int(in.Imm))
			if !ok {
				return fail("unknown function %d", in.Imm)
			}
			if err := pop(typ.Params); err != nil {
				return err
			}
			height += typ.Results()
		default:
			return fail("unsupported opcode")
		}
	}
	if len(ctrls) != 0 {
		return fmt.Errorf("%d blocks left open", len(ctrls))
	}
	return nil
}
