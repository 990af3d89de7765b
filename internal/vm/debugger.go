package vm

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/funvibe/monc/internal/source"
)

// DebuggerMode represents what the debugger does at the next step break
type DebuggerMode int

const (
	// ModeRun - run until a breakpoint or BREAK instruction
	ModeRun DebuggerMode = iota
	// ModeStep - stop after one cycle
	ModeStep
	// ModeStepInto - stop at the next symbol in any frame
	ModeStepInto
	// ModeStepOver - stop at the next symbol in this frame or a caller
	ModeStepOver
	// ModeStepOut - stop once the current frame returned
	ModeStepOut
)

// Address is one instruction of one function in a module image
type Address struct {
	Module   *Module
	Function int
	PC       int
}

// Breakpoint is a source breakpoint and the addresses it resolved to
type Breakpoint struct {
	File      string
	Line      int
	Addresses []Address
}

// Resolved reports whether the breakpoint maps to code yet
func (bp *Breakpoint) Resolved() bool { return len(bp.Addresses) > 0 }

// CallFrameInfo represents information about a call frame
type CallFrameInfo struct {
	Index        int
	FunctionName string
	File         string
	Line         int
	Column       int
	PC           int
	Native       bool
}

// Local is one named frame slot
type Local struct {
	Name   string
	Offset int
	Value  int32
}

// Debugger drives a VM through breakpoints and stepping. Breakpoints never
// modify code; the VM asks IsBreakpoint before each instruction.
type Debugger struct {
	vm       *VM
	attached bool

	// Current mode
	mode DebuggerMode

	// Breakpoints map: file -> line -> Breakpoint
	breakpoints map[string]map[int]*Breakpoint
	addresses   map[Address]*Breakpoint

	// Modules reported by the VM, in order
	modules []*Module

	// Frame depth and function when a step command was issued
	stepDepth    int
	stepModule   *Module
	stepFunction int

	// Output for Print* helpers
	Output io.Writer

	// OnBreak is called when execution stops
	OnBreak func(d *Debugger, reason BreakReason)

	// OnFinished is called when the top-level call completes
	OnFinished func(d *Debugger, success bool)
}

// NewDebugger creates a detached debugger for vm
func NewDebugger(vm *VM) *Debugger {
	return &Debugger{
		vm:          vm,
		mode:        ModeRun,
		breakpoints: make(map[string]map[int]*Breakpoint),
		addresses:   make(map[Address]*Breakpoint),
		Output:      os.Stdout,
	}
}

// VM returns the debugged VM
func (d *Debugger) VM() *VM { return d.vm }

// Attach installs the debugger's hooks in the VM
func (d *Debugger) Attach() {
	d.attached = true
	d.vm.SetDebugger(d)
}

// Detach removes the hooks. A paused VM stays paused until Continue.
func (d *Debugger) Detach() {
	d.attached = false
	d.mode = ModeRun
	d.vm.SetDebugger(nil)
}

// IsAttached reports whether the hooks are installed
func (d *Debugger) IsAttached() bool { return d.attached }

// Mode returns the current mode
func (d *Debugger) Mode() DebuggerMode { return d.mode }

// SetBreakpoint sets a breakpoint at the given file and line. It stays
// pending until a module with matching symbols is loaded.
func (d *Debugger) SetBreakpoint(file string, line int) *Breakpoint {
	if d.breakpoints[file] == nil {
		d.breakpoints[file] = make(map[int]*Breakpoint)
	}
	bp := &Breakpoint{File: file, Line: line}
	d.breakpoints[file][line] = bp
	d.resolve(bp)
	d.rebuildAddresses()
	return bp
}

// RemoveBreakpoint removes a breakpoint at the given file and line
func (d *Debugger) RemoveBreakpoint(file string, line int) bool {
	lines := d.breakpoints[file]
	if lines == nil || lines[line] == nil {
		return false
	}
	delete(lines, line)
	if len(lines) == 0 {
		delete(d.breakpoints, file)
	}
	d.rebuildAddresses()
	return true
}

// ClearBreakpoints removes all breakpoints
func (d *Debugger) ClearBreakpoints() {
	d.breakpoints = make(map[string]map[int]*Breakpoint)
	d.addresses = make(map[Address]*Breakpoint)
}

// Breakpoints returns all breakpoints ordered by file and line
func (d *Debugger) Breakpoints() []*Breakpoint {
	var result []*Breakpoint
	for _, lines := range d.breakpoints {
		for _, bp := range lines {
			result = append(result, bp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].File != result[j].File {
			return result[i].File < result[j].File
		}
		return result[i].Line < result[j].Line
	})
	return result
}

// LookupSymbol maps file:line to the first loaded instruction for it. A
// symbol starting on the line wins; otherwise the narrowest symbol spanning
// the line is used.
func (d *Debugger) LookupSymbol(file string, line int) (Address, bool) {
	for _, m := range d.modules {
		if addr, ok := lookupInModule(m, file, line); ok {
			return addr, true
		}
	}
	return Address{}, false
}

func lookupInModule(m *Module, file string, line int) (Address, bool) {
	var (
		best      Address
		bestSpan  = -1
		found     bool
		exactSeen bool
	)
	for fi := range m.Functions {
		fn := &m.Functions[fi]
		pcs := make([]int, 0, len(fn.Symbols))
		for pc := range fn.Symbols {
			pcs = append(pcs, pc)
		}
		sort.Ints(pcs)

		for _, pc := range pcs {
			sym := fn.Symbols[pc]
			if !sameFile(sym.File, file) || !sym.Contains(line) {
				continue
			}
			if sym.Start.Line == line {
				if !exactSeen {
					best = Address{Module: m, Function: fi, PC: pc}
					exactSeen, found = true, true
				}
				break
			}
			if exactSeen {
				continue
			}
			span := sym.End.Line - sym.Start.Line
			if bestSpan < 0 || span < bestSpan {
				best = Address{Module: m, Function: fi, PC: pc}
				bestSpan = span
				found = true
			}
		}
	}
	return best, found
}

// sameFile compares paths; a bare file name matches by base name
func sameFile(symFile, file string) bool {
	if symFile == file {
		return true
	}
	if !strings.ContainsRune(file, filepath.Separator) {
		return filepath.Base(symFile) == file
	}
	return normalizePath(symFile) == normalizePath(file)
}

// normalizePath converts to an absolute path for comparison
func normalizePath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func (d *Debugger) resolve(bp *Breakpoint) {
	bp.Addresses = bp.Addresses[:0]
	for _, m := range d.modules {
		if addr, ok := lookupInModule(m, bp.File, bp.Line); ok {
			bp.Addresses = append(bp.Addresses, addr)
		}
	}
}

func (d *Debugger) rebuildAddresses() {
	d.addresses = make(map[Address]*Breakpoint)
	for _, lines := range d.breakpoints {
		for _, bp := range lines {
			for _, addr := range bp.Addresses {
				d.addresses[addr] = bp
			}
		}
	}
}

// IsBreakpoint implements DebugHooks
func (d *Debugger) IsBreakpoint(m *Module, function, pc int) bool {
	_, ok := d.addresses[Address{Module: m, Function: function, PC: pc}]
	return ok
}

// HandleModuleAdded implements DebugHooks; pending breakpoints resolve here
func (d *Debugger) HandleModuleAdded(m *Module) {
	for _, known := range d.modules {
		if known == m {
			return
		}
	}
	d.modules = append(d.modules, m)
	for _, lines := range d.breakpoints {
		for _, bp := range lines {
			d.resolve(bp)
		}
	}
	d.rebuildAddresses()
}

// HandleBreak implements DebugHooks
func (d *Debugger) HandleBreak(reason BreakReason) {
	if reason == BreakStep && d.atBreakpoint() {
		reason = BreakBreakpoint
	}
	if reason == BreakStep && d.mode != ModeRun && !d.stepDone() {
		d.vm.Continue()
		return
	}

	d.mode = ModeRun
	d.vm.SetStepping(false)
	if d.OnBreak != nil {
		d.OnBreak(d, reason)
	}
}

// HandleFinished implements DebugHooks
func (d *Debugger) HandleFinished(success bool) {
	d.mode = ModeRun
	d.vm.SetStepping(false)
	if d.OnFinished != nil {
		d.OnFinished(d, success)
	}
}

func (d *Debugger) atBreakpoint() bool {
	f := d.vm.top()
	return f != nil && !f.IsNative() && d.IsBreakpoint(f.Module, f.FunctionIndex, f.PC)
}

// stepDone decides whether a step break ends the current step command
func (d *Debugger) stepDone() bool {
	f := d.vm.top()
	if f == nil {
		return true
	}
	depth := d.vm.CallStackDepth()
	onSymbol := false
	if !f.IsNative() {
		_, onSymbol = f.Function.Symbol(f.PC)
	}

	switch d.mode {
	case ModeStep:
		return true
	case ModeStepInto:
		return onSymbol || depth < d.stepDepth
	case ModeStepOver:
		if depth < d.stepDepth {
			return true
		}
		return depth == d.stepDepth && onSymbol &&
			f.Module == d.stepModule && f.FunctionIndex == d.stepFunction
	case ModeStepOut:
		return depth < d.stepDepth
	}
	return true
}

func (d *Debugger) beginStep(mode DebuggerMode) {
	d.mode = mode
	d.stepDepth = d.vm.CallStackDepth()
	d.stepModule = nil
	d.stepFunction = -1
	if f := d.vm.top(); f != nil {
		d.stepModule = f.Module
		d.stepFunction = f.FunctionIndex
	}
	d.vm.SetStepping(true)
	d.vm.Continue()
}

// Pause stops the VM before its next cycle
func (d *Debugger) Pause() { d.vm.Pause() }

// Continue runs until a breakpoint or completion
func (d *Debugger) Continue() {
	d.mode = ModeRun
	d.vm.SetStepping(false)
	d.vm.Continue()
}

// Step executes exactly one cycle
func (d *Debugger) Step() { d.beginStep(ModeStep) }

// StepInto runs to the next source position in any frame
func (d *Debugger) StepInto() { d.beginStep(ModeStepInto) }

// StepOver runs to the next source position without stopping in callees
func (d *Debugger) StepOver() { d.beginStep(ModeStepOver) }

// StepOut runs until the current function returns
func (d *Debugger) StepOut() { d.beginStep(ModeStepOut) }

// SourceLocation returns the source position of the frame at depth. Caller
// frames report their call site.
func (d *Debugger) SourceLocation(depth int) (source.Symbol, bool) {
	f := d.vm.frameAt(depth)
	if f == nil || f.IsNative() {
		return source.Symbol{}, false
	}
	pc := f.PC
	if depth > 0 && pc > 0 {
		pc--
	}
	return f.Function.SymbolBefore(pc)
}

// CallStack returns the call stack, innermost frame first
func (d *Debugger) CallStack() []CallFrameInfo {
	n := d.vm.CallStackDepth()
	stack := make([]CallFrameInfo, 0, n)
	for depth := 0; depth < n; depth++ {
		f := d.vm.frameAt(depth)
		info := CallFrameInfo{
			Index:        n - 1 - depth,
			FunctionName: f.Module.FunctionName(f.FunctionIndex),
			PC:           f.PC,
			Native:       f.IsNative(),
		}
		if sym, ok := d.SourceLocation(depth); ok {
			info.File = sym.File
			info.Line = sym.Start.Line
			info.Column = sym.Start.Column
		}
		stack = append(stack, info)
	}
	return stack
}

// Locals returns the named slots of the frame at depth, ordered by offset
func (d *Debugger) Locals(depth int) []Local {
	f := d.vm.frameAt(depth)
	if f == nil || f.IsNative() {
		return nil
	}
	var locals []Local
	for offset, name := range f.Function.Variables {
		val, err := f.Memory.ReadWord(offset)
		if err != nil {
			continue
		}
		locals = append(locals, Local{Name: name, Offset: offset, Value: val})
	}
	sort.Slice(locals, func(i, j int) bool { return locals[i].Offset < locals[j].Offset })
	return locals
}

// FormatLocation formats a file:line location string, relative to the
// working directory when possible
func (d *Debugger) FormatLocation(file string, line int) string {
	displayFile := file
	if wd, err := os.Getwd(); err == nil {
		if abs, err := filepath.Abs(file); err == nil {
			if rel, err := filepath.Rel(wd, abs); err == nil && !strings.HasPrefix(rel, "..") {
				displayFile = rel
			}
		}
	}
	if line > 0 {
		return fmt.Sprintf("%s:%d", displayFile, line)
	}
	return displayFile
}

// PrintLocation prints where execution stopped
func (d *Debugger) PrintLocation(reason BreakReason) {
	f := d.vm.top()
	if f == nil {
		fmt.Fprintf(d.Output, "Not running.\n")
		return
	}
	name := f.Module.FunctionName(f.FunctionIndex)
	if sym, ok := d.SourceLocation(0); ok {
		fmt.Fprintf(d.Output, "Stopped (%s) in %s at %s:%d\n", reason, name,
			d.FormatLocation(sym.File, sym.Start.Line), sym.Start.Column)
		return
	}
	fmt.Fprintf(d.Output, "Stopped (%s) in %s at pc %04d\n", reason, name, f.PC)
}

// PrintCallStack prints the call stack
func (d *Debugger) PrintCallStack() {
	fmt.Fprintf(d.Output, "Call stack:\n")
	for i, frame := range d.CallStack() {
		indent := strings.Repeat("  ", i)
		switch {
		case frame.Native:
			fmt.Fprintf(d.Output, "%s%d. %s <native>\n", indent, i+1, frame.FunctionName)
		case frame.File != "":
			fmt.Fprintf(d.Output, "%s%d. %s at %s\n", indent, i+1, frame.FunctionName, d.FormatLocation(frame.File, frame.Line))
		default:
			fmt.Fprintf(d.Output, "%s%d. %s at pc %04d\n", indent, i+1, frame.FunctionName, frame.PC)
		}
	}
}

// PrintLocals prints the named slots of the innermost frame
func (d *Debugger) PrintLocals() {
	locals := d.Locals(0)
	if len(locals) == 0 {
		fmt.Fprintf(d.Output, "No local variables in current frame.\n")
		return
	}
	fmt.Fprintf(d.Output, "Local variables:\n")
	for _, l := range locals {
		fmt.Fprintf(d.Output, "  %s = %d  [%d]\n", l.Name, l.Value, l.Offset)
	}
}
