package codegen

import (
	"github.com/funvibe/monc/internal/ast"
	"github.com/funvibe/monc/internal/il"
)

// ModuleGenerator lowers a whole translation unit.
type ModuleGenerator struct {
	module  *ast.Module
	symbols ast.SymbolMap
	out     *il.Module

	defined       []*ast.Function
	indices       map[*ast.Function]int
	definedByName map[string]int
	undefined     map[string]int
	strings       map[string]int
}

// NewModuleGenerator creates a generator for m
func NewModuleGenerator(m *ast.Module, symbols ast.SymbolMap) *ModuleGenerator {
	return &ModuleGenerator{
		module:        m,
		symbols:       symbols,
		out:           il.NewModule(m.Name),
		indices:       make(map[*ast.Function]int),
		definedByName: make(map[string]int),
		undefined:     make(map[string]int),
		strings:       make(map[string]int),
	}
}

// GenerateModule lowers m into an IL module
func GenerateModule(m *ast.Module, symbols ast.SymbolMap) *il.Module {
	return NewModuleGenerator(m, symbols).Generate()
}

// Generate numbers the defined functions in declaration order, registers
// exports and emits every body. Callees without a body here become
// undefined functions in the order they are first called.
func (g *ModuleGenerator) Generate() *il.Module {
	for _, fn := range g.module.Functions {
		if fn.IsPrototype() {
			continue
		}
		if _, dup := g.definedByName[fn.Name]; dup {
			panic(internalErrorf("function %s defined twice in module %s", fn.Name, g.module.Name))
		}
		idx := len(g.defined)
		g.defined = append(g.defined, fn)
		g.indices[fn] = idx
		g.definedByName[fn.Name] = idx
		g.out.FunctionNames = append(g.out.FunctionNames, fn.Name)
		if fn.IsExported {
			g.out.ExportedFunctions[fn.Name] = idx
		}
	}

	for _, enum := range g.module.Enums {
		if !enum.IsExported {
			continue
		}
		for _, member := range enum.Members {
			g.out.ExportedEnumValues[member.Name] = member.Value
		}
	}

	for _, fn := range g.defined {
		g.out.Functions = append(g.out.Functions, GenerateFunction(fn, g, g.symbols))
	}

	return g.out
}

// FunctionIndex returns the module-local index of a callee
func (g *ModuleGenerator) FunctionIndex(fn *ast.Function) int {
	if idx, ok := g.indices[fn]; ok {
		return idx
	}
	if idx, ok := g.definedByName[fn.Name]; ok {
		return idx
	}
	if idx, ok := g.undefined[fn.Name]; ok {
		return idx
	}
	idx := len(g.defined) + len(g.out.UndefinedFunctionNames)
	g.undefined[fn.Name] = idx
	g.out.UndefinedFunctionNames = append(g.out.UndefinedFunctionNames, fn.Name)
	return idx
}

// StringIndex interns s in the module string table
func (g *ModuleGenerator) StringIndex(s string) int {
	if idx, ok := g.strings[s]; ok {
		return idx
	}
	idx := len(g.out.Strings)
	g.strings[s] = idx
	g.out.Strings = append(g.out.Strings, s)
	return idx
}
