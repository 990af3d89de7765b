package codegen

import (
	"testing"

	"github.com/funvibe/monc/internal/ast"
	"github.com/funvibe/monc/internal/il"
)

func decl(name string) *ast.Declaration {
	return &ast.Declaration{Name: name, Type: ast.Int}
}

func declInit(name string, init ast.Expression) *ast.Declaration {
	return &ast.Declaration{Name: name, Type: ast.Int, Initializer: init}
}

func num(v int32) *ast.NumericLiteral { return &ast.NumericLiteral{Value: v} }

func ref(d *ast.Declaration) *ast.Variable { return &ast.Variable{Declaration: d} }

func bin(op ast.BinaryOperator, l, r ast.Expression) *ast.Binary {
	return &ast.Binary{Operator: op, Left: l, Right: r}
}

func assign(d *ast.Declaration, v ast.Expression) *ast.ExpressionStatement {
	return &ast.ExpressionStatement{Expression: &ast.Assignment{Target: d, Value: v}}
}

func ret(e ast.Expression) *ast.Return { return &ast.Return{Value: e} }

func body(stmts ...ast.Statement) *ast.Body { return &ast.Body{Statements: stmts} }

func intFunc(name string, params []*ast.Declaration, stmts ...ast.Statement) *ast.Function {
	return &ast.Function{Name: name, ReturnType: ast.Int, Parameters: params, Body: body(stmts...)}
}

func voidFunc(name string, params []*ast.Declaration, stmts ...ast.Statement) *ast.Function {
	return &ast.Function{Name: name, ReturnType: ast.Void, Parameters: params, Body: body(stmts...)}
}

// standalone generates fn inside a throwaway module context
func standalone(t *testing.T, fn *ast.Function) il.Function {
	t.Helper()
	g := NewModuleGenerator(&ast.Module{Name: "test", Functions: []*ast.Function{fn}}, nil)
	m := g.Generate()
	if err := m.Validate(); err != nil {
		t.Fatalf("generated module invalid: %v\n%s", err, il.Disassemble(m))
	}
	return m.Functions[0]
}

func expectCode(t *testing.T, got []il.Instruction, want []il.Instruction) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d instructions, want %d\ngot:  %v\nwant: %v", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instruction %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func expectPanic(t *testing.T, f func()) *InternalError {
	t.Helper()
	var caught *InternalError
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			ie, ok := r.(*InternalError)
			if !ok {
				t.Fatalf("panic value %T (%v), want *InternalError", r, r)
			}
			caught = ie
		}()
		f()
	}()
	if caught == nil {
		t.Fatal("expected an internal error panic")
	}
	return caught
}
