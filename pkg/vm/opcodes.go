package vm

import "fmt"

// Opcode values are the WebAssembly binary encodings of each instruction.
type Opcode byte

const (
	OpUnreachable Opcode = 0x00
	OpNop         Opcode = 0x01
	OpBlock       Opcode = 0x02
	OpLoop        Opcode = 0x03
	OpEnd         Opcode = 0x0B
	OpBr          Opcode = 0x0C
	OpBrIf        Opcode = 0x0D
	OpReturn      Opcode = 0x0F
	OpCall        Opcode = 0x10
	OpDrop        Opcode = 0x1A
	OpSelect      Opcode = 0x1B
	OpLocalGet    Opcode = 0x20
	OpLocalSet    Opcode = 0x21
	OpLocalTee    Opcode = 0x22
	OpI32Load     Opcode = 0x28
	OpI32Load8S   Opcode = 0x2C
	OpI32Load8U   Opcode = 0x2D
	OpI32Store    Opcode = 0x36
	OpI32Store8   Opcode = 0x3A
	OpI32Const    Opcode = 0x41
	OpI32Eqz      Opcode = 0x45
	OpI32Eq       Opcode = 0x46
	OpI32Ne       Opcode = 0x47
	OpI32LtS      Opcode = 0x48
	OpI32LtU      Opcode = 0x49
	OpI32GtS      Opcode = 0x4A
	OpI32GtU      Opcode = 0x4B
	OpI32LeS      Opcode = 0x4C
	OpI32LeU      Opcode = 0x4D
	OpI32GeS      Opcode = 0x4E
	OpI32GeU      Opcode = 0x4F
	OpI32Add      Opcode = 0x6A
	OpI32Sub      Opcode = 0x6B
	OpI32Mul      Opcode = 0x6C
	OpI32DivS     Opcode = 0x6D
	OpI32DivU     Opcode = 0x6E
	OpI32RemS     Opcode = 0x6F
	OpI32RemU     Opcode = 0x70
	OpI32And      Opcode = 0x71
	OpI32Or       Opcode = 0x72
	OpI32Xor      Opcode = 0x73
	OpI32Shl      Opcode = 0x74
	OpI32ShrS     Opcode = 0x75
	OpI32ShrU     Opcode = 0x76
)

var opcodeNames = map[Opcode]string{
	OpUnreachable: "unreachable",
	OpNop:         "nop",
	OpBlock:       "block",
	OpLoop:        "loop",
	OpEnd:         "end",
	OpBr:          "br",
	OpBrIf:        "br_if",
	OpReturn:      "return",
	OpCall:        "call",
	OpDrop:        "drop",
	OpSelect:      "select",
	OpLocalGet:    "get_local",
	OpLocalSet:    "set_local",
	OpLocalTee:    "tee_local",
	OpI32Load:     "i32.load",
	OpI32Load8S:   "i32.load8_s",
	OpI32Load8U:   "i32.load8_u",
	OpI32Store:    "i32.store",
	OpI32Store8:   "i32.store8",
	OpI32Const:    "i32.const",
	OpI32Eqz:      "i32.eqz",
	OpI32Eq:       "i32.eq",
	OpI32Ne:       "i32.ne",
	OpI32LtS:      "i32.lt_s",
	OpI32LtU:      "i32.lt_u",
	OpI32GtS:      "i32.gt_s",
	OpI32GtU:      "i32.gt_u",
	OpI32LeS:      "i32.le_s",
	OpI32LeU:      "i32.le_u",
	OpI32GeS:      "i32.ge_s",
	OpI32GeU:      "i32.ge_u",
	OpI32Add:      "i32.add",
	OpI32Sub:      "i32.sub",
	OpI32Mul:      "i32.mul",
	OpI32DivS:     "i32.div_s",
	OpI32DivU:     "i32.div_u",
	OpI32RemS:     "i32.rem_s",
	OpI32RemU:     "i32.rem_u",
	OpI32And:      "i32.and",
	OpI32Or:       "i32.or",
	OpI32Xor:      "i32.xor",
	OpI32Shl:      "i32.shl",
	OpI32ShrS:     "i32.shr_s",
	OpI32ShrU:     "i32.shr_u",
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%02X)", byte(op))
}

// binaryOps pop two operands and push one result.
var binaryOps = map[Opcode]bool{
	OpI32Eq: true, OpI32Ne: true,
	OpI32LtS: true, OpI32LtU: true, OpI32GtS: true, OpI32GtU: true,
	OpI32LeS: true, OpI32LeU: true, OpI32GeS: true, OpI32GeU: true,
	OpI32Add: true, OpI32Sub: true, OpI32Mul: true,
	OpI32DivS: true, OpI32DivU: true, OpI32RemS: true, OpI32RemU: true,
	OpI32And: true, OpI32Or: true, OpI32Xor: true,
	OpI32Shl: true, OpI32ShrS: true, OpI32ShrU: true,
}

// IsBinary reports whether op consumes two i32 values and produces one.
func (op Opcode) IsBinary() bool { return binaryOps[op] }

// IsLoad reports whether op reads linear memory.
func (op Opcode) IsLoad() bool {
	return op == OpI32Load || op == OpI32Load8S || op == OpI32Load8U
}

// IsStore reports whether op writes linear memory.
func (op Opcode) IsStore() bool { return op == OpI32Store || op == OpI32Store8 }
