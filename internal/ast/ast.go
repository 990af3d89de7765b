// Package ast defines the typed syntax tree handed to the code generator.
//
// The tree is produced by a front end after semantic analysis: every
// variable reference points at its declaration, every call at its callee
// and every enum value at its member, so the backend never resolves names.
package ast

import "github.com/funvibe/monc/internal/source"

// Node is the base interface for all AST nodes.
type Node interface {
	node()
}

// Statement is a Node that represents a statement.
type Statement interface {
	Node
	statementNode()
}

// Expression is a Node that represents an expression.
type Expression interface {
	Node
	expressionNode()
}

// TypeSpecifier names a declared type. Only void-ness matters to the backend.
type TypeSpecifier struct {
	Name string
}

// Built-in type specifiers
var (
	Void = TypeSpecifier{Name: "void"}
	Int  = TypeSpecifier{Name: "int"}
)

// IsVoid reports whether the type is void.
func (t TypeSpecifier) IsVoid() bool { return t.Name == "void" }

// Module is one translation unit.
type Module struct {
	Name      string
	File      string
	Functions []*Function
	Enums     []*Enum
}

// Function is a function definition, or a prototype when Body is nil.
type Function struct {
	Name       string
	ReturnType TypeSpecifier
	Parameters []*Declaration
	Body       *Body
	IsExported bool
}

// IsPrototype reports whether the function has no body in this module.
func (f *Function) IsPrototype() bool { return f.Body == nil }

// Enum groups named integer constants.
type Enum struct {
	Name       string
	Members    []*EnumMember
	IsExported bool
}

// EnumMember is one constant of an enum.
type EnumMember struct {
	Name  string
	Value int32
}

func (*Module) node()     {}
func (*Function) node()   {}
func (*Enum) node()       {}
func (*EnumMember) node() {}

// SymbolMap maps nodes to the source range they were parsed from.
type SymbolMap map[Node]source.Symbol

// Lookup returns the symbol recorded for n.
func (m SymbolMap) Lookup(n Node) (source.Symbol, bool) {
	if m == nil || n == nil {
		return source.Symbol{}, false
	}
	sym, ok := m[n]
	return sym, ok
}
