package vm

import (
	"testing"

	"github.com/funvibe/monc/internal/ast"
	"github.com/funvibe/monc/internal/codegen"
	"github.com/funvibe/monc/internal/il"
	"github.com/funvibe/monc/internal/source"
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

func call(fn *ast.Function, args ...ast.Expression) *ast.Call {
	return &ast.Call{Function: fn, Arguments: args}
}

func ret(e ast.Expression) *ast.Return { return &ast.Return{Value: e} }

func body(stmts ...ast.Statement) *ast.Body { return &ast.Body{Statements: stmts} }

func intFunc(name string, params []*ast.Declaration, stmts ...ast.Statement) *ast.Function {
	return &ast.Function{Name: name, ReturnType: ast.Int, Parameters: params, Body: body(stmts...), IsExported: true}
}

func prototype(name string, params ...*ast.Declaration) *ast.Function {
	return &ast.Function{Name: name, ReturnType: ast.Int, Parameters: params}
}

func sym(line, col int) source.Symbol {
	return source.Symbol{
		File:  "test.monc",
		Start: source.Location{Line: line, Column: col},
		End:   source.Location{Line: line, Column: col + 10},
	}
}

// build generates a single-module image. Prototypes are bound to the given
// natives by name; unmatched prototypes stay undefined.
func build(t *testing.T, fns []*ast.Function, symbols ast.SymbolMap, natives ...*NativeFunction) *Module {
	t.Helper()
	m := codegen.GenerateModule(&ast.Module{Name: "test", File: "test.monc", Functions: fns}, symbols)
	if err := m.Validate(); err != nil {
		t.Fatalf("generated module invalid: %v\n%s", err, il.Disassemble(m))
	}

	bound := make(map[int]*NativeFunction)
	undefined := make(map[int]string)
	for i, name := range m.UndefinedFunctionNames {
		idx := len(m.Functions) + i
		undefined[idx] = name
		for _, n := range natives {
			if n.Name == name {
				bound[idx] = n
				delete(undefined, idx)
			}
		}
	}
	return NewModule(m, bound, undefined)
}

// raw wraps hand-written functions, all exported under their names
func raw(names []string, fns ...il.Function) *Module {
	m := il.NewModule("raw")
	m.Functions = fns
	m.FunctionNames = names
	for i, name := range names {
		m.ExportedFunctions[name] = i
	}
	return NewModule(m, nil, nil)
}

func newVM(t *testing.T, m *Module, opts ...Option) *VM {
	t.Helper()
	v := New(opts...)
	if err := v.LoadModule(m); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	return v
}

type result struct {
	done    bool
	success bool
	calls   int
}

func (r *result) callback() func(bool) {
	return func(success bool) {
		r.done = true
		r.success = success
		r.calls++
	}
}

// run starts name and requires it to finish synchronously
func run(t *testing.T, v *VM, name string, args ...int32) result {
	t.Helper()
	var r result
	if err := v.Start(name, args, r.callback()); err != nil {
		t.Fatalf("Start(%s): %v", name, err)
	}
	if !r.done {
		t.Fatalf("%s did not finish", name)
	}
	return r
}
