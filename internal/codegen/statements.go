package codegen

import (
	"github.com/funvibe/monc/internal/ast"
	"github.com/funvibe/monc/internal/il"
)

func (g *FunctionGenerator) body(b *ast.Body) {
	if b == nil {
		return
	}
	for _, s := range b.Statements {
		g.statement(s)
	}
}

func (g *FunctionGenerator) statement(stmt ast.Statement) {
	start := g.b.Len()

	switch s := stmt.(type) {
	case *ast.Body:
		g.body(s)
		return

	case *ast.Declaration:
		if s.Initializer != nil {
			g.expression(s.Initializer)
			g.b.Emit(il.OP_WRITE, g.layout.Offset(s))
		}

	case *ast.ExpressionStatement:
		g.expression(s.Expression)

	case *ast.If:
		g.ifStatement(s)

	case *ast.While:
		g.whileStatement(s)

	case *ast.For:
		g.forStatement(s)

	case *ast.Break:
		loop := g.currentLoop("break")
		loop.breaks = append(loop.breaks, g.b.Placeholder())

	case *ast.Continue:
		loop := g.currentLoop("continue")
		loop.continues = append(loop.continues, g.b.Placeholder())

	case *ast.Return:
		g.returnStatement(s)

	default:
		panic(internalErrorf("unhandled statement %T", stmt))
	}

	g.addSymbol(start, stmt)
}

func (g *FunctionGenerator) returnStatement(s *ast.Return) {
	if s.Value != nil {
		g.expression(s.Value)
		if g.layout.ReturnSize > 0 {
			g.b.Emit(il.OP_WRITE, 0)
		}
	}
	g.b.Emit(il.OP_RETURN, 0)
}

// ifStatement emits: cond; JUMPZ else; then; [JUMP end; else;] end
func (g *FunctionGenerator) ifStatement(s *ast.If) {
	g.expression(s.Condition)
	branch := g.b.Placeholder()

	g.body(s.Then)

	if s.Else == nil {
		g.b.Patch(branch, il.OP_JUMPZ, g.b.Len())
		return
	}

	skip := g.b.Placeholder()
	g.b.Patch(branch, il.OP_JUMPZ, g.b.Len())
	g.body(s.Else)
	g.b.Patch(skip, il.OP_JUMP, g.b.Len())
}
