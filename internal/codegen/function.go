package codegen

import (
	"github.com/funvibe/monc/internal/ast"
	"github.com/funvibe/monc/internal/il"
)

// FunctionContext resolves module-level indices while a function is generated.
type FunctionContext interface {
	// FunctionIndex returns the module-local index of a callee
	FunctionIndex(fn *ast.Function) int

	// StringIndex interns s in the module string table
	StringIndex(s string) int
}

// loopContext collects the pending jumps of one enclosing loop
type loopContext struct {
	breaks    []int
	continues []int
}

// FunctionGenerator lowers one function body against its layout.
type FunctionGenerator struct {
	fn      *ast.Function
	ctx     FunctionContext
	symbols ast.SymbolMap
	layout  *Layout
	b       *FunctionBuilder

	loopStack []loopContext
}

// NewFunctionGenerator creates a generator for fn
func NewFunctionGenerator(fn *ast.Function, ctx FunctionContext, symbols ast.SymbolMap) *FunctionGenerator {
	layout := GenerateLayout(fn)
	return &FunctionGenerator{
		fn:      fn,
		ctx:     ctx,
		symbols: symbols,
		layout:  layout,
		b:       NewFunctionBuilder(layout),
	}
}

// GenerateFunction lowers fn into an IL function
func GenerateFunction(fn *ast.Function, ctx FunctionContext, symbols ast.SymbolMap) il.Function {
	return NewFunctionGenerator(fn, ctx, symbols).Generate()
}

// Layout returns the stack layout the generator uses
func (g *FunctionGenerator) Layout() *Layout {
	return g.layout
}

// Generate emits the whole body and returns the finished function
func (g *FunctionGenerator) Generate() il.Function {
	if g.fn.Body == nil {
		panic(internalErrorf("function %s has no body", g.fn.Name))
	}

	g.body(g.fn.Body)

	if len(g.loopStack) != 0 {
		panic(internalErrorf("function %s: unbalanced loop stack", g.fn.Name))
	}
	if sym, ok := g.symbols.Lookup(g.fn); ok && !g.b.HasSymbol(0) {
		g.b.AddSymbol(0, sym)
	}

	return g.b.Build()
}

// addSymbol attaches the symbol of node to the instruction at index, if the
// node has one and the index was emitted
func (g *FunctionGenerator) addSymbol(at int, node ast.Node) {
	if at >= g.b.Len() {
		return
	}
	if sym, ok := g.symbols.Lookup(node); ok {
		g.b.AddSymbol(at, sym)
	}
}

func (g *FunctionGenerator) pushLoop() {
	g.loopStack = append(g.loopStack, loopContext{})
}

// popLoop patches every pending break and continue of the innermost loop
func (g *FunctionGenerator) popLoop(breakTarget, continueTarget int) {
	loop := g.loopStack[len(g.loopStack)-1]
	for _, at := range loop.breaks {
		g.b.Patch(at, il.OP_JUMP, breakTarget)
	}
	for _, at := range loop.continues {
		g.b.Patch(at, il.OP_JUMP, continueTarget)
	}
	g.loopStack = g.loopStack[:len(g.loopStack)-1]
}

func (g *FunctionGenerator) currentLoop(what string) *loopContext {
	if len(g.loopStack) == 0 {
		panic(internalErrorf("%s outside of loop in function %s", what, g.fn.Name))
	}
	return &g.loopStack[len(g.loopStack)-1]
}
