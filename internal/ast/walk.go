package ast

// Inspect walks the tree rooted at n in source order, calling f for each
// node. When f returns false the children of that node are skipped.
// References such as Variable.Declaration and Call.Function are not children.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}

	switch n := n.(type) {
	case *Module:
		for _, e := range n.Enums {
			Inspect(e, f)
		}
		for _, fn := range n.Functions {
			Inspect(fn, f)
		}
	case *Function:
		for _, p := range n.Parameters {
			Inspect(p, f)
		}
		if n.Body != nil {
			Inspect(n.Body, f)
		}
	case *Enum:
		for _, m := range n.Members {
			Inspect(m, f)
		}
	case *Body:
		for _, s := range n.Statements {
			Inspect(s, f)
		}
	case *Declaration:
		inspectExpression(n.Initializer, f)
	case *ExpressionStatement:
		inspectExpression(n.Expression, f)
	case *If:
		inspectExpression(n.Condition, f)
		inspectBody(n.Then, f)
		inspectBody(n.Else, f)
	case *While:
		inspectExpression(n.Condition, f)
		inspectBody(n.Body, f)
	case *For:
		if n.Declaration != nil {
			Inspect(n.Declaration, f)
		}
		inspectExpression(n.Condition, f)
		inspectExpression(n.Update, f)
		inspectBody(n.Body, f)
	case *Return:
		inspectExpression(n.Value, f)
	case *Assignment:
		inspectExpression(n.Value, f)
	case *Call:
		for _, a := range n.Arguments {
			inspectExpression(a, f)
		}
	case *Binary:
		inspectExpression(n.Left, f)
		inspectExpression(n.Right, f)
	case *Unary:
		inspectExpression(n.Operand, f)
	}
}

func inspectExpression(e Expression, f func(Node) bool) {
	if e != nil {
		Inspect(e, f)
	}
}

func inspectBody(b *Body, f func(Node) bool) {
	if b != nil {
		Inspect(b, f)
	}
}
