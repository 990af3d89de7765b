package il

import (
	"fmt"
	"io"
	"strings"
)

// Disassemble returns a human-readable listing of every function in the module
func Disassemble(m *Module) string {
	var sb strings.Builder
	WriteListing(&sb, m)
	return sb.String()
}

// WriteListing writes the module listing to w
func WriteListing(w io.Writer, m *Module) {
	fmt.Fprintf(w, "== %s ==\n", m.Name)
	for i := range m.Functions {
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeFunction(w, m, i)
	}
	if len(m.UndefinedFunctionNames) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "undefined:")
		for i, name := range m.UndefinedFunctionNames {
			fmt.Fprintf(w, "  [%d] %s\n", len(m.Functions)+i, name)
		}
	}
	if len(m.Strings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "strings:")
		for i, s := range m.Strings {
			fmt.Fprintf(w, "  %4d %q\n", i, s)
		}
	}
}

// DisassembleFunction returns the listing of a single function
func DisassembleFunction(m *Module, index int) string {
	var sb strings.Builder
	writeFunction(&sb, m, index)
	return sb.String()
}

func writeFunction(w io.Writer, m *Module, index int) {
	fn := &m.Functions[index]
	fmt.Fprintf(w, "[%d] %s  (args %d, ret %d, stack %d)\n",
		index, m.FunctionName(index), fn.ArgumentMemorySize, fn.ReturnMemorySize, fn.MaxStackSize)

	strs := make(map[int]bool, len(fn.StringInstructions))
	for _, pc := range fn.StringInstructions {
		strs[pc] = true
	}
	refs := make(map[int]bool, len(fn.FunctionReferences))
	for _, pc := range fn.FunctionReferences {
		refs[pc] = true
	}

	for pc, ins := range fn.Code {
		fmt.Fprintf(w, "%04d %-7s", pc, ins.Op)
		switch ins.Op {
		case OP_NOOP, OP_BREAK, OP_RETURN, OP_BOOL, OP_LNOT:
			fmt.Fprintf(w, " %6s", "")
		default:
			fmt.Fprintf(w, " %6d", ins.Immediate)
		}

		var notes []string
		switch {
		case ins.Op.IsJump():
			notes = append(notes, fmt.Sprintf("-> %04d", pc+int(ins.Immediate)))
		case strs[pc]:
			if s := int(ins.Immediate); s >= 0 && s < len(m.Strings) {
				notes = append(notes, fmt.Sprintf("%q", m.Strings[s]))
			}
		case refs[pc]:
			notes = append(notes, m.FunctionName(int(ins.Immediate)))
		}
		if sym, ok := fn.Symbols[pc]; ok {
			notes = append(notes, sym.String())
		}
		if len(notes) > 0 {
			fmt.Fprintf(w, "  ; %s", strings.Join(notes, "  "))
		}
		fmt.Fprintln(w)
	}
}
