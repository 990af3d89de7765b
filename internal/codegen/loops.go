package codegen

import (
	"github.com/funvibe/monc/internal/ast"
	"github.com/funvibe/monc/internal/il"
)

// whileStatement emits:
//
//	JUMP cond
//	body:  ...
//	cond:  ...
//	       JUMPNZ body
//
// continue goes to cond, break to the instruction after JUMPNZ.
func (g *FunctionGenerator) whileStatement(s *ast.While) {
	entry := g.b.Placeholder()
	bodyStart := g.b.Len()

	g.pushLoop()
	g.body(s.Body)

	condStart := g.b.Len()
	g.condition(s.Condition, bodyStart)
	g.b.Patch(entry, il.OP_JUMP, condStart)

	g.popLoop(g.b.Len(), condStart)
}

// forStatement emits:
//
//	       init
//	       JUMP cond
//	body:  ...
//	update: ...
//	cond:  ...
//	       JUMPNZ body
//
// continue goes to update, break to the instruction after JUMPNZ.
func (g *FunctionGenerator) forStatement(s *ast.For) {
	if s.Declaration != nil {
		g.statement(s.Declaration)
	}

	entry := g.b.Placeholder()
	bodyStart := g.b.Len()

	g.pushLoop()
	g.body(s.Body)

	updateStart := g.b.Len()
	if s.Update != nil {
		g.expression(s.Update)
		g.addSymbol(updateStart, s.Update)
	}

	condStart := g.b.Len()
	g.condition(s.Condition, bodyStart)
	g.b.Patch(entry, il.OP_JUMP, condStart)

	g.popLoop(g.b.Len(), updateStart)
}

// condition emits the loop re-check jumping back to target. A missing
// condition loops forever.
func (g *FunctionGenerator) condition(cond ast.Expression, target int) {
	if cond == nil {
		g.b.EmitJump(il.OP_JUMP, target)
		return
	}
	start := g.b.Len()
	g.expression(cond)
	g.b.EmitJump(il.OP_JUMPNZ, target)
	g.addSymbol(start, cond)
}
