package il

import "github.com/funvibe/monc/internal/source"

// Function is the compiled form of one function body.
type Function struct {
	// Code is the instruction sequence
	Code []Instruction

	// ArgumentMemorySize is the number of bytes of parameters the caller supplies
	ArgumentMemorySize int

	// ReturnMemorySize is the size of the return slot (0 for void functions)
	ReturnMemorySize int

	// MaxStackSize is the frame memory the body needs, temporaries included
	MaxStackSize int

	// Symbols maps instruction index to its source range
	Symbols map[int]source.Symbol

	// StringInstructions lists instructions whose immediate is a string index
	StringInstructions []int

	// FunctionReferences lists instructions whose immediate is a function index
	FunctionReferences []int

	// Variables maps frame byte offset to the declared name
	Variables map[int]string
}

// Len returns the number of instructions
func (f *Function) Len() int {
	return len(f.Code)
}

// Symbol returns the symbol recorded at pc.
func (f *Function) Symbol(pc int) (source.Symbol, bool) {
	sym, ok := f.Symbols[pc]
	return sym, ok
}

// NextSymbol returns the first symbol at or after pc.
func (f *Function) NextSymbol(pc int) (source.Symbol, bool) {
	for i := pc; i < len(f.Code); i++ {
		if sym, ok := f.Symbols[i]; ok {
			return sym, true
		}
	}
	return source.Symbol{}, false
}

// SymbolBefore returns the last symbol at or before pc.
func (f *Function) SymbolBefore(pc int) (source.Symbol, bool) {
	for i := pc; i >= 0; i-- {
		if sym, ok := f.Symbols[i]; ok {
			return sym, true
		}
	}
	return source.Symbol{}, false
}

// Clone returns a deep copy so relocation never touches the original.
func (f *Function) Clone() Function {
	c := *f
	c.Code = append([]Instruction(nil), f.Code...)
	c.StringInstructions = append([]int(nil), f.StringInstructions...)
	c.FunctionReferences = append([]int(nil), f.FunctionReferences...)
	if f.Symbols != nil {
		c.Symbols = make(map[int]source.Symbol, len(f.Symbols))
		for k, v := range f.Symbols {
			c.Symbols[k] = v
		}
	}
	if f.Variables != nil {
		c.Variables = make(map[int]string, len(f.Variables))
		for k, v := range f.Variables {
			c.Variables[k] = v
		}
	}
	return c
}
