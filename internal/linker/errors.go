package linker

import (
	"fmt"
	"strings"

	"github.com/funvibe/monc/internal/source"
)

// ErrorKind classifies link errors
type ErrorKind int

const (
	ConflictingExport ErrorKind = iota
	UndefinedFunction
)

func (k ErrorKind) String() string {
	switch k {
	case ConflictingExport:
		return "conflicting export"
	case UndefinedFunction:
		return "undefined function"
	}
	return "unknown"
}

// Error is one link error
type Error struct {
	Kind ErrorKind
	Name string

	// Module is the module that exported or referenced the name
	Module string

	// Previous is the module already owning a conflicting export
	Previous string

	// Symbol locates the first reference to an undefined function
	Symbol    source.Symbol
	HasSymbol bool
}

func (e *Error) Error() string {
	switch e.Kind {
	case ConflictingExport:
		return fmt.Sprintf("%s: function %s already exported by %s", e.Module, e.Name, e.Previous)
	case UndefinedFunction:
		if e.HasSymbol {
			return fmt.Sprintf("%s: %s: undefined function %s", e.Module, e.Symbol, e.Name)
		}
		return fmt.Sprintf("%s: undefined function %s", e.Module, e.Name)
	}
	return fmt.Sprintf("%s: %s %s", e.Module, e.Kind, e.Name)
}

// Errors is the list of errors of one failed link
type Errors []*Error

func (es Errors) Error() string {
	if len(es) == 1 {
		return es[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d link errors:", len(es))
	for _, e := range es {
		sb.WriteString("\n  ")
		sb.WriteString(e.Error())
	}
	return sb.String()
}

// Count returns the number of errors of kind
func (es Errors) Count(kind ErrorKind) int {
	n := 0
	for _, e := range es {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
