package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var (
	ErrDivideByZero    = errors.New("integer divide by zero")
	ErrIntegerOverflow = errors.New("integer overflow")
	ErrOutOfBounds     = errors.New("out of bounds memory access")
	ErrUnreachable     = errors.New("unreachable executed")
	ErrStepLimit       = errors.New("step limit exceeded")
	ErrCallDepth       = errors.New("call stack exhausted")
	ErrUnknownImport   = errors.New("unknown import")
	ErrUnknownExport   = errors.New("unknown export")
)

// Trap is a run-time failure. It unwraps to one of the Err* sentinels.
type Trap struct {
	Err  error
	Func string
	Line int
}

func (t *Trap) Error() string {
	if t.Line > 0 {
		return fmt.Sprintf("trap in $%s (line %d): %v", t.Func, t.Line, t.Err)
	}
	return fmt.Sprintf("trap in $%s: %v", t.Func, t.Err)
}

func (t *Trap) Unwrap() error { return t.Err }

// HostFunc implements an imported function.
type HostFunc func(v *VM, args []int32) (int32, error)

const defaultMaxCallDepth = 1024

// VM executes a Module on a plain Go operand stack.
type VM struct {
	Module *Module
	Memory []byte

	// Output receives the text written by imports.print.
	// If nil, os.Stdout is used.
	Output io.Writer

	// MaxSteps bounds the number of executed instructions; 0 means no limit.
	MaxSteps int
	// MaxCallDepth bounds recursion; 0 selects the default.
	MaxCallDepth int

	// Host maps "module.field" to the implementation of an import.
	Host map[string]HostFunc

	Steps     int
	CallDepth int

	stack []int32
}

// New prepares m for execution with zeroed memory and the default host.
func New(m *Module) *VM {
	v := &VM{
		Module: m,
		Host: map[string]HostFunc{
			"imports.print": hostPrint,
		},
	}
	if m.HasMemory {
		v.Memory = make([]byte, m.MemoryPages*PageSize)
	}
	return v
}

func hostPrint(v *VM, args []int32) (int32, error) {
	_, err := fmt.Fprintln(v.outputSink(), args[0])
	return 0, err
}

func (v *VM) outputSink() io.Writer {
	if v.Output != nil {
		return v.Output
	}
	return os.Stdout
}

// Call invokes the exported function name.
func (v *VM) Call(name string, args ...int32) (int32, error) {
	idx, ok := v.Module.ExportedFunc(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownExport, name)
	}
	typ, _ := v.Module.FuncType(idx)
	if len(args) != typ.Params {
		return 0, fmt.Errorf("%s expects %d arguments, got %d", name, typ.Params, len(args))
	}
	v.stack = v.stack[:0]
	v.CallDepth = 0
	return v.invoke(idx, args)
}

func (v *VM) invoke(idx int, args []int32) (int32, error) {
	if idx < len(v.Module.Imports) {
		imp := v.Module.Imports[idx]
		fn, ok := v.Host[imp.Module+"."+imp.Field]
		if !ok {
			return 0, &Trap{Err: fmt.Errorf("%w: %s.%s", ErrUnknownImport, imp.Module, imp.Field), Func: imp.Name}
		}
		return fn(v, args)
	}

	f := v.Module.Funcs[idx-len(v.Module.Imports)]
	limit := v.MaxCallDepth
	if limit == 0 {
		limit = defaultMaxCallDepth
	}
	if v.CallDepth >= limit {
		return 0, &Trap{Err: ErrCallDepth, Func: f.Name}
	}
	v.CallDepth++
	defer func() { v.CallDepth-- }()
	return v.exec(f, args)
}

type ctrlFrame struct {
	op     Opcode
	start  int
	end    int
	height int
	arity  int
}

func (v *VM) push(x int32) { v.stack = append(v.stack, x) }

func (v *VM) pop() int32 {
	x := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	return x
}

func (v *VM) exec(f *Func, args []int32) (int32, error) {
	locals := make([]int32, f.Type.Params+f.Locals)
	copy(locals, args)

	base := len(v.stack)
	ctrl := []ctrlFrame{{op: OpBlock, end: len(f.Body) - 1, height: base, arity: f.Type.Results()}}

	// branch unwinds to the label depth levels up and returns the next pc.
	branch := func(depth int32) int {
		i := len(ctrl) - 1 - int(depth)
		target := ctrl[i]
		if target.op == OpLoop {
			v.stack = v.stack[:target.height]
			ctrl = ctrl[:i+1]
			return target.start + 1
		}
		results := append([]int32(nil), v.stack[len(v.stack)-target.arity:]...)
		v.stack = append(v.stack[:target.height], results...)
		ctrl = ctrl[:i]
		return target.end + 1
	}

	trap := func(err error, in Instr) error {
		return &Trap{Err: err, Func: f.Name, Line: in.Line}
	}

	pc := 0
	for pc < len(f.Body) && len(ctrl) > 0 {
		in := f.Body[pc]
		v.Steps++
		if v.MaxSteps > 0 && v.Steps > v.MaxSteps {
			return 0, trap(ErrStepLimit, in)
		}

		switch in.Op {
		case OpNop:
		case OpUnreachable:
			return 0, trap(ErrUnreachable, in)

		case OpBlock, OpLoop:
			arity := 0
			if in.Op == OpBlock && in.Result {
				arity = 1
			}
			ctrl = append(ctrl, ctrlFrame{op: in.Op, start: pc, end: in.Jump, height: len(v.stack), arity: arity})
		case OpEnd:
			ctrl = ctrl[:len(ctrl)-1]
		case OpBr:
			pc = branch(in.Imm)
			continue
		case OpBrIf:
			if v.pop() != 0 {
				pc = branch(in.Imm)
				continue
			}
		case OpReturn:
			pc = branch(int32(len(ctrl) - 1))
			continue

		case OpCall:
			typ, _ := v.Module.FuncType(int(in.Imm))
			callArgs := make([]int32, typ.Params)
			copy(callArgs, v.stack[len(v.stack)-typ.Params:])
			v.stack = v.stack[:len(v.stack)-typ.Params]
			r, err := v.invoke(int(in.Imm), callArgs)
			if err != nil {
				return 0, err
			}
			if typ.Result {
				v.push(r)
			}
		case OpDrop:
			v.pop()
		case OpSelect:
			c := v.pop()
			b := v.pop()
			a := v.pop()
			if c != 0 {
				v.push(a)
			} else {
				v.push(b)
			}

		case OpLocalGet:
			v.push(locals[in.Imm])
		case OpLocalSet:
			locals[in.Imm] = v.pop()
		case OpLocalTee:
			locals[in.Imm] = v.stack[len(v.stack)-1]

		case OpI32Const:
			v.push(in.Imm)

		case OpI32Load, OpI32Load8S, OpI32Load8U:
			addr, err := v.effectiveAddr(v.pop(), in, in.Op)
			if err != nil {
				return 0, trap(err, in)
			}
			switch in.Op {
			case OpI32Load:
				v.push(int32(binary.LittleEndian.Uint32(v.Memory[addr:])))
			case OpI32Load8S:
				v.push(int32(int8(v.Memory[addr])))
			default:
				v.push(int32(v.Memory[addr]))
			}
		case OpI32Store, OpI32Store8:
			val := v.pop()
			addr, err := v.effectiveAddr(v.pop(), in, in.Op)
			if err != nil {
				return 0, trap(err, in)
			}
			if in.Op == OpI32Store {
				binary.LittleEndian.PutUint32(v.Memory[addr:], uint32(val))
			} else {
				v.Memory[addr] = byte(val)
			}

		case OpI32Eqz:
			v.push(boolToI32(v.pop() == 0))

		default:
			if !in.Op.IsBinary() {
				return 0, trap(fmt.Errorf("unsupported opcode %s", in.Op), in)
			}
			b := v.pop()
			a := v.pop()
			r, err := binaryOp(in.Op, a, b)
			if err != nil {
				return 0, trap(err, in)
			}
			v.push(r)
		}
		pc++
	}

	var result int32
	if f.Type.Result {
		result = v.pop()
	}
	v.stack = v.stack[:base]
	return result, nil
}

func (v *VM) effectiveAddr(base int32, in Instr, op Opcode) (int, error) {
	width := uint64(1)
	if op == OpI32Load || op == OpI32Store {
		width = 4
	}
	addr := uint64(uint32(base)) + uint64(in.Offset)
	if addr+width > uint64(len(v.Memory)) {
		return 0, fmt.Errorf("%w: address %d", ErrOutOfBounds, addr)
	}
	return int(addr), nil
}

func boolToI32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func binaryOp(op Opcode, a, b int32) (int32, error) {
	ua, ub := uint32(a), uint32(b)
	switch op {
	case OpI32Eq:
		return boolToI32(a == b), nil
	case OpI32Ne:
		return boolToI32(a != b), nil
	case OpI32LtS:
		return boolToI32(a < b), nil
	case OpI32LtU:
		return boolToI32(ua < ub), nil
	case OpI32GtS:
		return boolToI32(a > b), nil
	case OpI32GtU:
		return boolToI32(ua > ub), nil
	case OpI32LeS:
		return boolToI32(a <= b), nil
	case OpI32LeU:
		return boolToI32(ua <= ub), nil
	case OpI32GeS:
		return boolToI32(a >= b), nil
	case OpI32GeU:
		return boolToI32(ua >= ub), nil
	case OpI32Add:
		return a + b, nil
	case OpI32Sub:
		return a - b, nil
	case OpI32Mul:
		return a * b, nil
	case OpI32DivS:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		if a == math.MinInt32 && b == -1 {
			return 0, ErrIntegerOverflow
		}
		return a / b, nil
	case OpI32DivU:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return int32(ua / ub), nil
	case OpI32RemS:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		if b == -1 {
			return 0, nil
		}
		return a % b, nil
	case OpI32RemU:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return int32(ua % ub), nil
	case OpI32And:
		return a & b, nil
	case OpI32Or:
		return a | b, nil
	case OpI32Xor:
		return a ^ b, nil
	case OpI32Shl:
		return a << (ub & 31), nil
	case OpI32ShrS:
		return a >> (ub & 31), nil
	case OpI32ShrU:
		return int32(ua >> (ub & 31)), nil
	}
	return 0, fmt.Errorf("unsupported opcode %s", op)
}
