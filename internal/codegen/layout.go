// Package codegen lowers the typed AST into IL functions and modules.
//
// Code generation trusts its input: the AST has already passed semantic
// analysis, so shapes the generator does not understand are reported by
// panicking with an *InternalError rather than returned as diagnostics.
package codegen

import (
	"github.com/funvibe/monc/internal/ast"
	"github.com/funvibe/monc/internal/config"
)

// Layout assigns every declaration of one function a fixed frame offset.
type Layout struct {
	// Offsets maps each parameter and local to its byte offset
	Offsets map[*ast.Declaration]int

	// Order lists declarations in the order offsets were assigned
	Order []*ast.Declaration

	// ReturnSize is the size of the return slot at offset 0
	ReturnSize int

	// ArgumentSize is the size of the parameter region following the return slot
	ArgumentSize int

	// Size is the total size of all declared slots
	Size int
}

// GenerateLayout lays out fn: the return slot first (when fn is non-void),
// then parameters, then locals in the order a structural walk of the body
// meets them. Every declaration takes one word and no slot is reused.
func GenerateLayout(fn *ast.Function) *Layout {
	l := &Layout{Offsets: make(map[*ast.Declaration]int)}

	if !fn.ReturnType.IsVoid() {
		l.ReturnSize = config.WordSize
		l.Size = config.WordSize
	}

	for _, p := range fn.Parameters {
		l.add(p)
	}
	l.ArgumentSize = l.Size - l.ReturnSize

	if fn.Body != nil {
		ast.Inspect(fn.Body, func(n ast.Node) bool {
			if decl, ok := n.(*ast.Declaration); ok {
				l.add(decl)
			}
			return true
		})
	}

	return l
}

func (l *Layout) add(decl *ast.Declaration) {
	if _, ok := l.Offsets[decl]; ok {
		panic(internalErrorf("declaration %s laid out twice", decl.Name))
	}
	l.Offsets[decl] = l.Size
	l.Order = append(l.Order, decl)
	l.Size += config.WordSize
}

// Offset returns the frame offset of decl.
func (l *Layout) Offset(decl *ast.Declaration) int {
	offset, ok := l.Offsets[decl]
	if !ok {
		panic(internalErrorf("declaration %s has no stack slot", decl.Name))
	}
	return offset
}

// Names maps offsets back to declared names.
func (l *Layout) Names() map[int]string {
	names := make(map[int]string, len(l.Order))
	for _, decl := range l.Order {
		names[l.Offsets[decl]] = decl.Name
	}
	return names
}
