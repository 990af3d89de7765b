// Package vm implements the MonC virtual machine: the linked module image,
// native bindings and their continuation protocol, the interpreter and its
// debugger.
package vm

import (
	"fmt"

	"github.com/funvibe/monc/internal/config"
	"github.com/funvibe/monc/internal/il"
)

// Module is a linked, executable image. Function indices below
// len(Functions) are bytecode; higher indices are natives or unresolved.
// A Module is never mutated once built.
type Module struct {
	*il.Module

	// Natives maps function index to native binding
	Natives map[int]*NativeFunction

	// Undefined maps synthetic indices to the names the linker could not resolve
	Undefined map[int]string
}

// NewModule wraps a merged IL module.
func NewModule(m *il.Module, natives map[int]*NativeFunction, undefined map[int]string) *Module {
	if natives == nil {
		natives = make(map[int]*NativeFunction)
	}
	if undefined == nil {
		undefined = make(map[int]string)
	}
	return &Module{Module: m, Natives: natives, Undefined: undefined}
}

// Lookup returns the index of an exported function
func (m *Module) Lookup(name string) (int, bool) {
	idx, ok := m.ExportedFunctions[name]
	return idx, ok
}

// Function returns the bytecode function at index
func (m *Module) Function(index int) (*il.Function, bool) {
	if index < 0 || index >= len(m.Functions) {
		return nil, false
	}
	return &m.Functions[index], true
}

// Native returns the native binding at index
func (m *Module) Native(index int) (*NativeFunction, bool) {
	n, ok := m.Natives[index]
	return n, ok
}

// ArgumentCount returns the number of argument words the function at index takes
func (m *Module) ArgumentCount(index int) (int, bool) {
	if fn, ok := m.Function(index); ok {
		return fn.ArgumentMemorySize / config.WordSize, true
	}
	if n, ok := m.Native(index); ok {
		return n.ArgumentCount, true
	}
	return 0, false
}

// FunctionName returns a printable name for any index
func (m *Module) FunctionName(index int) string {
	if index >= 0 && index < len(m.FunctionNames) {
		return m.FunctionNames[index]
	}
	if n, ok := m.Natives[index]; ok {
		return n.Name
	}
	if name, ok := m.Undefined[index]; ok {
		return name
	}
	return fmt.Sprintf("<function %d>", index)
}

// String returns the string table entry at index
func (m *Module) String(index int32) (string, bool) {
	if index < 0 || int(index) >= len(m.Strings) {
		return "", false
	}
	return m.Strings[index], true
}
