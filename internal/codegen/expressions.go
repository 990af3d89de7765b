package codegen

import (
	"github.com/funvibe/monc/internal/ast"
	"github.com/funvibe/monc/internal/config"
	"github.com/funvibe/monc/internal/il"
)

// expression leaves the value of e in the accumulator
func (g *FunctionGenerator) expression(e ast.Expression) {
	switch e := e.(type) {
	case *ast.NumericLiteral:
		g.b.Emit(il.OP_LOAD, int(e.Value))

	case *ast.StringLiteral:
		g.b.EmitString(g.ctx.StringIndex(e.Value))

	case *ast.EnumValue:
		g.b.Emit(il.OP_LOAD, int(e.Member.Value))

	case *ast.Variable:
		g.b.Emit(il.OP_READ, g.layout.Offset(e.Declaration))

	case *ast.Assignment:
		start := g.b.Len()
		g.expression(e.Value)
		g.b.Emit(il.OP_WRITE, g.layout.Offset(e.Target))
		g.addSymbol(start, e)

	case *ast.Call:
		start := g.b.Len()
		g.call(e)
		g.addSymbol(start, e)

	case *ast.Binary:
		g.binary(e)

	case *ast.Unary:
		g.unary(e)

	default:
		panic(internalErrorf("unhandled expression %T", e))
	}
}

// binary evaluates the right operand first, spills it, then applies the
// operator to the left operand in the accumulator
func (g *FunctionGenerator) binary(e *ast.Binary) {
	logicalAnd := e.Operator == ast.OpLogicalAnd

	g.expression(e.Right)
	if logicalAnd {
		g.b.Emit(il.OP_BOOL, 0)
	}
	rhs := g.b.AllocTemporary(1)
	g.b.Emit(il.OP_WRITE, rhs)

	g.expression(e.Left)
	if logicalAnd {
		g.b.Emit(il.OP_BOOL, 0)
	}

	switch e.Operator {
	case ast.OpAdd:
		g.b.Emit(il.OP_ADD, rhs)
	case ast.OpSubtract:
		g.b.Emit(il.OP_SUB, rhs)
	case ast.OpMultiply:
		g.b.Emit(il.OP_MUL, rhs)
	case ast.OpDivide:
		g.b.Emit(il.OP_DIV, rhs)
	case ast.OpModulo:
		g.b.Emit(il.OP_MOD, rhs)
	case ast.OpBitAnd, ast.OpLogicalAnd:
		g.b.Emit(il.OP_AND, rhs)
	case ast.OpBitOr:
		g.b.Emit(il.OP_OR, rhs)
	case ast.OpBitXor:
		g.b.Emit(il.OP_XOR, rhs)
	case ast.OpLogicalOr:
		g.b.Emit(il.OP_OR, rhs)
		g.b.Emit(il.OP_BOOL, 0)
	case ast.OpEqual:
		g.b.Emit(il.OP_CMPE, rhs)
	case ast.OpNotEqual:
		g.b.Emit(il.OP_CMPE, rhs)
		g.b.Emit(il.OP_LNOT, 0)
	case ast.OpLess, ast.OpLessEqual, ast.OpGreater, ast.OpGreaterEqual:
		g.relational(e.Operator, rhs)
	default:
		panic(internalErrorf("unhandled binary operator %s", e.Operator))
	}

	g.b.FreeTemporary(1)
}

// relational maps four operators onto CMPLT and CMPLTE: a > b is !(a <= b)
// and a >= b is !(a < b)
func (g *FunctionGenerator) relational(op ast.BinaryOperator, rhs int) {
	isGreater := op == ast.OpGreater || op == ast.OpGreaterEqual
	includeEquals := (op == ast.OpLessEqual || op == ast.OpGreaterEqual) != isGreater

	if includeEquals {
		g.b.Emit(il.OP_CMPLTE, rhs)
	} else {
		g.b.Emit(il.OP_CMPLT, rhs)
	}
	if isGreater {
		g.b.Emit(il.OP_LNOT, 0)
	}
}

func (g *FunctionGenerator) unary(e *ast.Unary) {
	switch e.Operator {
	case ast.OpNegate:
		g.expression(e.Operand)
		operand := g.b.AllocTemporary(1)
		g.b.Emit(il.OP_WRITE, operand)
		g.b.Emit(il.OP_LOAD, 0)
		g.b.Emit(il.OP_SUB, operand)
		g.b.FreeTemporary(1)

	case ast.OpLogicalNot:
		g.expression(e.Operand)
		g.b.Emit(il.OP_LNOT, 0)

	case ast.OpCast:
		// Every type is one word wide
		g.expression(e.Operand)

	default:
		panic(internalErrorf("unhandled unary operator %d", e.Operator))
	}
}

// call fills a region of len(args)+1 words: the callee index, then the
// arguments in order, and emits CALL on it
func (g *FunctionGenerator) call(e *ast.Call) {
	words := len(e.Arguments) + 1
	region := g.b.AllocTemporary(words)

	g.b.EmitFunctionReference(g.ctx.FunctionIndex(e.Function))
	g.b.Emit(il.OP_WRITE, region)

	for i, arg := range e.Arguments {
		g.expression(arg)
		g.b.Emit(il.OP_WRITE, region+(i+1)*config.WordSize)
	}

	g.b.Emit(il.OP_CALL, region)
	g.b.FreeTemporary(words)
}
