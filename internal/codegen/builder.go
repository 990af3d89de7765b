package codegen

import (
	"github.com/funvibe/monc/internal/config"
	"github.com/funvibe/monc/internal/il"
	"github.com/funvibe/monc/internal/source"
)

// FunctionBuilder accumulates the instructions of one function.
type FunctionBuilder struct {
	layout             *Layout
	code               []il.Instruction
	symbols            map[int]source.Symbol
	stringInstructions []int
	functionReferences []int

	// Temporaries are bump-allocated above the declared slots
	tempOffset int
	maxStack   int
}

// NewFunctionBuilder creates a builder for a function with the given layout
func NewFunctionBuilder(layout *Layout) *FunctionBuilder {
	return &FunctionBuilder{
		layout:     layout,
		code:       make([]il.Instruction, 0, 64),
		symbols:    make(map[int]source.Symbol),
		tempOffset: layout.Size,
		maxStack:   layout.Size,
	}
}

// Len returns the index the next instruction will get
func (b *FunctionBuilder) Len() int {
	return len(b.code)
}

// Emit appends an instruction and returns its index
func (b *FunctionBuilder) Emit(op il.Opcode, imm int) int {
	b.code = append(b.code, il.Ins(op, int32(imm)))
	return len(b.code) - 1
}

// EmitJump appends a jump to an already known target
func (b *FunctionBuilder) EmitJump(op il.Opcode, target int) int {
	return b.Emit(op, target-b.Len())
}

// EmitString appends a LOAD of a string table index and records it for relocation
func (b *FunctionBuilder) EmitString(index int) int {
	at := b.Emit(il.OP_LOAD, index)
	b.stringInstructions = append(b.stringInstructions, at)
	return at
}

// EmitFunctionReference appends a LOAD of a function index and records it for relocation
func (b *FunctionBuilder) EmitFunctionReference(index int) int {
	at := b.Emit(il.OP_LOAD, index)
	b.functionReferences = append(b.functionReferences, at)
	return at
}

// Placeholder appends a NOOP to be patched once its target is known
func (b *FunctionBuilder) Placeholder() int {
	return b.Emit(il.OP_NOOP, 0)
}

// Patch turns the placeholder at index into a jump to target
func (b *FunctionBuilder) Patch(at int, op il.Opcode, target int) {
	if b.code[at].Op != il.OP_NOOP {
		panic(internalErrorf("patching %s at %d, expected a placeholder", b.code[at].Op, at))
	}
	b.code[at] = il.Ins(op, int32(target-at))
}

// AllocTemporary reserves words contiguous temporary slots and returns the first address
func (b *FunctionBuilder) AllocTemporary(words int) int {
	addr := b.tempOffset
	b.tempOffset += words * config.WordSize
	if b.tempOffset > b.maxStack {
		b.maxStack = b.tempOffset
	}
	return addr
}

// FreeTemporary releases the most recently allocated words
func (b *FunctionBuilder) FreeTemporary(words int) {
	b.tempOffset -= words * config.WordSize
	if b.tempOffset < b.layout.Size {
		panic(internalErrorf("temporary stack underflow"))
	}
}

// AddSymbol attaches sym to the instruction at index, replacing any earlier one
func (b *FunctionBuilder) AddSymbol(at int, sym source.Symbol) {
	b.symbols[at] = sym
}

// HasSymbol reports whether the instruction at index carries a symbol
func (b *FunctionBuilder) HasSymbol(at int) bool {
	_, ok := b.symbols[at]
	return ok
}

// Build finishes the function. A RETURN is appended when the body does not
// end in one or when a jump targets the end of the code.
func (b *FunctionBuilder) Build() il.Function {
	if b.needsReturn() {
		b.Emit(il.OP_RETURN, 0)
	}
	if b.tempOffset != b.layout.Size {
		panic(internalErrorf("%d bytes of temporaries leaked", b.tempOffset-b.layout.Size))
	}

	return il.Function{
		Code:               b.code,
		ArgumentMemorySize: b.layout.ArgumentSize,
		ReturnMemorySize:   b.layout.ReturnSize,
		MaxStackSize:       b.maxStack,
		Symbols:            b.symbols,
		StringInstructions: b.stringInstructions,
		FunctionReferences: b.functionReferences,
		Variables:          b.layout.Names(),
	}
}

func (b *FunctionBuilder) needsReturn() bool {
	if len(b.code) == 0 || b.code[len(b.code)-1].Op != il.OP_RETURN {
		return true
	}
	for pc, ins := range b.code {
		if ins.Op.IsJump() && pc+int(ins.Immediate) >= len(b.code) {
			return true
		}
	}
	return false
}
