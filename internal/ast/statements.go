package ast

// Body is a braced statement list.
type Body struct {
	Statements []Statement
}

// Declaration declares a local variable or a parameter.
type Declaration struct {
	Name        string
	Type        TypeSpecifier
	Initializer Expression // Optional
}

// ExpressionStatement evaluates an expression for its side effects.
type ExpressionStatement struct {
	Expression Expression
}

// If is a conditional with an optional else branch.
type If struct {
	Condition Expression
	Then      *Body
	Else      *Body
}

// While loops while Condition is non-zero.
type While struct {
	Condition Expression
	Body      *Body
}

// For is a C-style for loop. Any of Declaration, Condition and Update may be nil.
type For struct {
	Declaration *Declaration
	Condition   Expression
	Update      Expression
	Body        *Body
}

// Break leaves the innermost loop.
type Break struct{}

// Continue jumps to the next iteration of the innermost loop.
type Continue struct{}

// Return leaves the function, with Value when the function is non-void.
type Return struct {
	Value Expression
}

func (*Body) node()                {}
func (*Declaration) node()         {}
func (*ExpressionStatement) node() {}
func (*If) node()                  {}
func (*While) node()               {}
func (*For) node()                 {}
func (*Break) node()               {}
func (*Continue) node()            {}
func (*Return) node()              {}

func (*Body) statementNode()                {}
func (*Declaration) statementNode()         {}
func (*ExpressionStatement) statementNode() {}
func (*If) statementNode()                  {}
func (*While) statementNode()               {}
func (*For) statementNode()                 {}
func (*Break) statementNode()               {}
func (*Continue) statementNode()            {}
func (*Return) statementNode()              {}
