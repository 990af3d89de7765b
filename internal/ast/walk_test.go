package ast

import "testing"

func TestInspectVisitsDeclarationsInSourceOrder(t *testing.T) {
	a := &Declaration{Name: "a", Type: Int}
	b := &Declaration{Name: "b", Type: Int}
	i := &Declaration{Name: "i", Type: Int}
	c := &Declaration{Name: "c", Type: Int}
	d := &Declaration{Name: "d", Type: Int}

	fn := &Function{
		Name:       "f",
		ReturnType: Int,
		Parameters: []*Declaration{a},
		Body: &Body{Statements: []Statement{
			b,
			&For{
				Declaration: i,
				Condition:   &Binary{Operator: OpLess, Left: &Variable{Declaration: i}, Right: &NumericLiteral{Value: 3}},
				Body:        &Body{Statements: []Statement{c}},
			},
			&If{
				Condition: &Variable{Declaration: a},
				Else:      &Body{Statements: []Statement{d}},
			},
		}},
	}

	var got []string
	Inspect(fn, func(n Node) bool {
		if decl, ok := n.(*Declaration); ok {
			got = append(got, decl.Name)
		}
		return true
	})

	want := []string{"a", "b", "i", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for idx := range want {
		if got[idx] != want[idx] {
			t.Errorf("declaration %d = %s, want %s", idx, got[idx], want[idx])
		}
	}
}

func TestInspectSkipsChildren(t *testing.T) {
	inner := &Declaration{Name: "inner", Type: Int}
	body := &Body{Statements: []Statement{&While{
		Condition: &NumericLiteral{Value: 1},
		Body:      &Body{Statements: []Statement{inner}},
	}}}

	seen := false
	Inspect(body, func(n Node) bool {
		if _, ok := n.(*While); ok {
			return false
		}
		if n == inner {
			seen = true
		}
		return true
	})
	if seen {
		t.Error("declaration inside skipped loop was visited")
	}
}

func TestSymbolMapLookupNil(t *testing.T) {
	var m SymbolMap
	if _, ok := m.Lookup(&Break{}); ok {
		t.Error("nil map reported a symbol")
	}
}
