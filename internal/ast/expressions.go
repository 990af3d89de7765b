package ast

// BinaryOperator enumerates binary operators.
type BinaryOperator int

const (
	OpAdd BinaryOperator = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpModulo
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpLogicalAnd
	OpLogicalOr
	OpBitAnd
	OpBitOr
	OpBitXor
)

var binaryOperatorNames = map[BinaryOperator]string{
	OpAdd:          "+",
	OpSubtract:     "-",
	OpMultiply:     "*",
	OpDivide:       "/",
	OpModulo:       "%",
	OpEqual:        "==",
	OpNotEqual:     "!=",
	OpLess:         "<",
	OpLessEqual:    "<=",
	OpGreater:      ">",
	OpGreaterEqual: ">=",
	OpLogicalAnd:   "&&",
	OpLogicalOr:    "||",
	OpBitAnd:       "&",
	OpBitOr:        "|",
	OpBitXor:       "^",
}

func (op BinaryOperator) String() string {
	if name, ok := binaryOperatorNames[op]; ok {
		return name
	}
	return "?"
}

// UnaryOperator enumerates unary operators.
type UnaryOperator int

const (
	OpNegate UnaryOperator = iota
	OpLogicalNot
	OpCast
)

// NumericLiteral is an integer constant.
type NumericLiteral struct {
	Value int32
}

// StringLiteral evaluates to the index of its text in the module string table.
type StringLiteral struct {
	Value string
}

// EnumValue references an enum constant.
type EnumValue struct {
	Member *EnumMember
}

// Variable reads a declared variable or parameter.
type Variable struct {
	Declaration *Declaration
}

// Assignment stores Value into Target and evaluates to Value.
type Assignment struct {
	Target *Declaration
	Value  Expression
}

// Call invokes Function with Arguments.
type Call struct {
	Function  *Function
	Arguments []Expression
}

// Binary applies Operator to Left and Right.
type Binary struct {
	Operator BinaryOperator
	Left     Expression
	Right    Expression
}

// Unary applies Operator to Operand. For OpCast, Type is the target type.
type Unary struct {
	Operator UnaryOperator
	Operand  Expression
	Type     TypeSpecifier
}

func (*NumericLiteral) node() {}
func (*StringLiteral) node()  {}
func (*EnumValue) node()      {}
func (*Variable) node()       {}
func (*Assignment) node()     {}
func (*Call) node()           {}
func (*Binary) node()         {}
func (*Unary) node()          {}

func (*NumericLiteral) expressionNode() {}
func (*StringLiteral) expressionNode()  {}
func (*EnumValue) expressionNode()      {}
func (*Variable) expressionNode()       {}
func (*Assignment) expressionNode()     {}
func (*Call) expressionNode()           {}
func (*Binary) expressionNode()         {}
func (*Unary) expressionNode()          {}
