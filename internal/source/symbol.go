// Package source describes positions in MonC source files.
package source

import "fmt"

// Location is a 1-based line and column.
type Location struct {
	Line   int
	Column int
}

// Symbol ties a range of source text to generated code.
type Symbol struct {
	File  string
	Start Location
	End   Location
}

// Contains reports whether line falls inside the symbol's range.
func (s Symbol) Contains(line int) bool {
	return line >= s.Start.Line && line <= s.End.Line
}

// IsZero reports whether the symbol carries no position.
func (s Symbol) IsZero() bool {
	return s.File == "" && s.Start.Line == 0
}

func (s Symbol) String() string {
	if s.IsZero() {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Start.Line, s.Start.Column)
}
