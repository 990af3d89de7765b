package il

import (
	"fmt"

	"github.com/funvibe/monc/internal/config"
)

// Module is the output of compiling one translation unit.
type Module struct {
	// Name identifies the module in diagnostics and the module store
	Name string

	// Functions are the defined functions, index is the local function index
	Functions []Function

	// FunctionNames parallels Functions
	FunctionNames []string

	// ExportedFunctions maps exported names to local function indices
	ExportedFunctions map[string]int

	// UndefinedFunctionNames are callees this module references but does not
	// define; index len(Functions)+i refers to UndefinedFunctionNames[i]
	UndefinedFunctionNames []string

	// ExportedEnumValues maps exported enum constants to their values
	ExportedEnumValues map[string]int32

	// Strings is the string table
	Strings []string
}

// NewModule creates an empty module
func NewModule(name string) *Module {
	return &Module{
		Name:               name,
		ExportedFunctions:  make(map[string]int),
		ExportedEnumValues: make(map[string]int32),
	}
}

// FunctionName returns the name of the function at index, defined or undefined.
func (m *Module) FunctionName(index int) string {
	if index >= 0 && index < len(m.FunctionNames) {
		return m.FunctionNames[index]
	}
	if u := index - len(m.Functions); u >= 0 && u < len(m.UndefinedFunctionNames) {
		return m.UndefinedFunctionNames[u]
	}
	return fmt.Sprintf("<function %d>", index)
}

// Validate checks the module's internal references before linking.
func (m *Module) Validate() error {
	if len(m.FunctionNames) != len(m.Functions) {
		return fmt.Errorf("module %s: %d function names for %d functions", m.Name, len(m.FunctionNames), len(m.Functions))
	}
	for name, idx := range m.ExportedFunctions {
		if idx < 0 || idx >= len(m.Functions) {
			return fmt.Errorf("module %s: export %s refers to function %d out of range", m.Name, name, idx)
		}
	}

	callable := len(m.Functions) + len(m.UndefinedFunctionNames)
	for fi := range m.Functions {
		fn := &m.Functions[fi]
		name := m.FunctionNames[fi]

		if len(fn.Code) == 0 || fn.Code[len(fn.Code)-1].Op != OP_RETURN {
			return fmt.Errorf("module %s: function %s does not end in RETURN", m.Name, name)
		}
		if fn.MaxStackSize < fn.ReturnMemorySize+fn.ArgumentMemorySize {
			return fmt.Errorf("module %s: function %s stack size %d smaller than its arguments", m.Name, name, fn.MaxStackSize)
		}

		for pc, ins := range fn.Code {
			if _, ok := OpcodeNames[ins.Op]; !ok {
				return fmt.Errorf("module %s: function %s: unknown opcode %d at %d", m.Name, name, ins.Op, pc)
			}
			if ins.Op.IsJump() {
				target := pc + int(ins.Immediate)
				if target < 0 || target >= len(fn.Code) {
					return fmt.Errorf("module %s: function %s: jump at %d targets %d outside the function", m.Name, name, pc, target)
				}
			}
			if ins.Op.AddressesMemory() {
				addr := int(ins.Immediate)
				if addr < 0 || addr+config.WordSize > fn.MaxStackSize {
					return fmt.Errorf("module %s: function %s: address %d at %d outside frame of %d bytes", m.Name, name, addr, pc, fn.MaxStackSize)
				}
			}
		}

		for _, pc := range fn.StringInstructions {
			if pc < 0 || pc >= len(fn.Code) {
				return fmt.Errorf("module %s: function %s: string instruction %d out of range", m.Name, name, pc)
			}
			if s := int(fn.Code[pc].Immediate); s < 0 || s >= len(m.Strings) {
				return fmt.Errorf("module %s: function %s: string index %d at %d out of range", m.Name, name, s, pc)
			}
		}
		for _, pc := range fn.FunctionReferences {
			if pc < 0 || pc >= len(fn.Code) {
				return fmt.Errorf("module %s: function %s: function reference %d out of range", m.Name, name, pc)
			}
			if f := int(fn.Code[pc].Immediate); f < 0 || f >= callable {
				return fmt.Errorf("module %s: function %s: function index %d at %d out of range", m.Name, name, f, pc)
			}
		}
	}
	return nil
}
