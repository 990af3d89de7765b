// Package il defines the intermediate-language module format shared by the
// code generator, the linker and the virtual machine.
package il

import "fmt"

// Opcode represents a single VM instruction
type Opcode byte

const (
	OP_NOOP  Opcode = iota // Do nothing
	OP_BREAK               // Break into the debugger

	// Accumulator and stack memory
	OP_LOAD  // A = imm
	OP_READ  // A = word at imm
	OP_WRITE // word at imm = A

	// Calls
	OP_CALL   // Call through the region at imm: [function index, args...]
	OP_RETURN // Return to the caller, A holds the result

	// Comparison against the word at imm
	OP_CMPE   // A = A == word
	OP_CMPLT  // A = A < word
	OP_CMPLTE // A = A <= word

	// Jumps, imm is relative to the jump's own index
	OP_JUMP   // Unconditional
	OP_JUMPZ  // Jump if A == 0
	OP_JUMPNZ // Jump if A != 0

	// Normalization
	OP_BOOL // A = A != 0
	OP_LNOT // A = A == 0

	// Arithmetic and bitwise against the word at imm
	OP_ADD // +
	OP_SUB // -
	OP_OR  // |
	OP_AND // &
	OP_XOR // ^
	OP_MUL // *
	OP_DIV // /
	OP_MOD // %
)

// OpcodeNames maps opcodes to their string names (for listings)
var OpcodeNames = map[Opcode]string{
	OP_NOOP:   "NOOP",
	OP_BREAK:  "BREAK",
	OP_LOAD:   "LOAD",
	OP_READ:   "READ",
	OP_WRITE:  "WRITE",
	OP_CALL:   "CALL",
	OP_RETURN: "RETURN",
	OP_CMPE:   "CMPE",
	OP_CMPLT:  "CMPLT",
	OP_CMPLTE: "CMPLTE",
	OP_JUMP:   "JUMP",
	OP_JUMPZ:  "JUMPZ",
	OP_JUMPNZ: "JUMPNZ",
	OP_BOOL:   "BOOL",
	OP_LNOT:   "LNOT",
	OP_ADD:    "ADD",
	OP_SUB:    "SUB",
	OP_OR:     "OR",
	OP_AND:    "AND",
	OP_XOR:    "XOR",
	OP_MUL:    "MUL",
	OP_DIV:    "DIV",
	OP_MOD:    "MOD",
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("OP_%d", byte(op))
}

// IsJump reports whether the immediate is a relative jump displacement.
func (op Opcode) IsJump() bool {
	return op == OP_JUMP || op == OP_JUMPZ || op == OP_JUMPNZ
}

// AddressesMemory reports whether the immediate is a frame memory address.
func (op Opcode) AddressesMemory() bool {
	switch op {
	case OP_READ, OP_WRITE, OP_CALL, OP_CMPE, OP_CMPLT, OP_CMPLTE,
		OP_ADD, OP_SUB, OP_OR, OP_AND, OP_XOR, OP_MUL, OP_DIV, OP_MOD:
		return true
	}
	return false
}

// Instruction is an opcode with its immediate operand.
type Instruction struct {
	Op        Opcode
	Immediate int32
}

// Ins builds an instruction.
func Ins(op Opcode, imm int32) Instruction {
	return Instruction{Op: op, Immediate: imm}
}

func (i Instruction) String() string {
	switch i.Op {
	case OP_NOOP, OP_BREAK, OP_RETURN, OP_BOOL, OP_LNOT:
		return i.Op.String()
	}
	return fmt.Sprintf("%s %d", i.Op, i.Immediate)
}
