package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/funvibe/monc/internal/ast"
	"github.com/funvibe/monc/internal/il"
	"github.com/funvibe/monc/internal/source"
)

// debugProgram builds
//
//	1 int add(int a, int b) {
//	2   int c = a + b;
//	3   return c;
//	4 }
//	5 int main() {
//	6   int x = add(1, 2);
//	7   x = x + 1;
//	8   return x;
//	9 }
func debugProgram(t *testing.T) *Module {
	t.Helper()
	a, b := decl("a"), decl("b")
	c := declInit("c", bin(ast.OpAdd, ref(a), ref(b)))
	retC := ret(ref(c))
	add := intFunc("add", []*ast.Declaration{a, b}, c, retC)

	x := declInit("x", call(add, num(1), num(2)))
	incr := &ast.ExpressionStatement{Expression: &ast.Assignment{Target: x, Value: bin(ast.OpAdd, ref(x), num(1))}}
	retX := ret(ref(x))
	main := intFunc("main", nil, x, incr, retX)

	symbols := ast.SymbolMap{
		add:  spanSym(1, 4),
		c:    sym(2, 3),
		retC: sym(3, 3),
		main: spanSym(5, 9),
		x:    sym(6, 3),
		incr: sym(7, 3),
		retX: sym(8, 3),
	}
	return build(t, []*ast.Function{add, main}, symbols)
}

func spanSym(from, to int) source.Symbol {
	s := sym(from, 1)
	s.End.Line = to
	return s
}

type stop struct {
	reason BreakReason
	fn     string
	line   int
	depth  int
}

// debugSession attaches a debugger whose OnBreak records each stop and then
// runs the next scripted action; with no actions left it continues
func debugSession(t *testing.T, actions ...func(d *Debugger)) (*VM, *Debugger, *[]stop) {
	t.Helper()
	v := New()
	d := NewDebugger(v)
	d.Output = &bytes.Buffer{}
	d.Attach()
	if err := v.LoadModule(debugProgram(t)); err != nil {
		t.Fatal(err)
	}

	stops := &[]stop{}
	d.OnBreak = func(d *Debugger, reason BreakReason) {
		s := stop{reason: reason, depth: v.CallStackDepth()}
		if frames := d.CallStack(); len(frames) > 0 {
			s.fn = frames[0].FunctionName
			s.line = frames[0].Line
		}
		*stops = append(*stops, s)
		if len(actions) == 0 {
			d.Continue()
			return
		}
		next := actions[0]
		actions = actions[1:]
		next(d)
	}
	return v, d, stops
}

func expectStops(t *testing.T, got []stop, want []stop) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d stops %+v, want %d %+v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("stop %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

// ============================================================================
// Breakpoints
// ============================================================================

func TestLookupSymbol(t *testing.T) {
	v := New()
	d := NewDebugger(v)
	d.Attach()
	m := debugProgram(t)
	if err := v.LoadModule(m); err != nil {
		t.Fatal(err)
	}
	mainIdx, _ := m.Lookup("main")

	addr, ok := d.LookupSymbol("test.monc", 7)
	if !ok {
		t.Fatal("line 7 not found")
	}
	if addr.Function != mainIdx || addr.Module != m {
		t.Errorf("line 7 resolved to %+v", addr)
	}
	if sym, _ := m.Functions[mainIdx].Symbol(addr.PC); sym.Start.Line != 7 {
		t.Errorf("pc %d carries line %d", addr.PC, sym.Start.Line)
	}

	if _, ok := d.LookupSymbol("test.monc", 42); ok {
		t.Error("line 42 resolved")
	}
	if _, ok := d.LookupSymbol("other.monc", 7); ok {
		t.Error("other file resolved")
	}
}

func TestLookupSymbolPrefersExactThenNarrowest(t *testing.T) {
	span := func(from, to int) source.Symbol {
		return source.Symbol{
			File:  "src/x.monc",
			Start: source.Location{Line: from, Column: 1},
			End:   source.Location{Line: to, Column: 1},
		}
	}
	fn := il.Function{
		Code: []il.Instruction{
			il.Ins(il.OP_NOOP, 0),
			il.Ins(il.OP_NOOP, 0),
			il.Ins(il.OP_NOOP, 0),
			il.Ins(il.OP_RETURN, 0),
		},
		Symbols: map[int]source.Symbol{0: span(1, 10), 1: span(3, 6), 2: span(5, 5)},
	}
	m := raw([]string{"f"}, fn)

	tests := []struct {
		file   string
		line   int
		wantPC int
		found  bool
	}{
		{"src/x.monc", 4, 1, true},
		{"src/x.monc", 5, 2, true},
		{"src/x.monc", 8, 0, true},
		{"x.monc", 3, 1, true},
		{"src/x.monc", 11, 0, false},
		{"other/x.monc", 5, 0, false},
	}
	for _, tt := range tests {
		addr, ok := lookupInModule(m, tt.file, tt.line)
		if ok != tt.found || (ok && addr.PC != tt.wantPC) {
			t.Errorf("lookup %s:%d = pc %d, %v; want pc %d, %v", tt.file, tt.line, addr.PC, ok, tt.wantPC, tt.found)
		}
	}
}

func TestBreakpointStopsOnce(t *testing.T) {
	v, d, stops := debugSession(t)
	if bp := d.SetBreakpoint("test.monc", 7); !bp.Resolved() {
		t.Fatal("breakpoint not resolved")
	}

	r := run(t, v, "main")
	if !r.success || v.ReturnValue() != 4 {
		t.Fatalf("main() = %d, success %v", v.ReturnValue(), r.success)
	}
	expectStops(t, *stops, []stop{{BreakBreakpoint, "main", 7, 1}})
}

func TestBreakpointInLoopStopsEachIteration(t *testing.T) {
	i := declInit("i", num(0))
	incr := &ast.ExpressionStatement{Expression: &ast.Assignment{Target: i, Value: bin(ast.OpAdd, ref(i), num(1))}}
	loop := &ast.While{Condition: bin(ast.OpLess, ref(i), num(3)), Body: body(incr)}
	f := intFunc("loop", nil, i, loop, ret(ref(i)))

	v := New()
	d := NewDebugger(v)
	d.Attach()
	if err := v.LoadModule(build(t, []*ast.Function{f}, ast.SymbolMap{incr: sym(3, 5)})); err != nil {
		t.Fatal(err)
	}
	hits := 0
	d.OnBreak = func(d *Debugger, reason BreakReason) {
		hits++
		d.Continue()
	}
	d.SetBreakpoint("test.monc", 3)

	run(t, v, "loop")
	if hits != 3 || v.ReturnValue() != 3 {
		t.Errorf("hits = %d, result = %d", hits, v.ReturnValue())
	}
}

func TestPendingBreakpointResolvesOnLoad(t *testing.T) {
	v := New()
	d := NewDebugger(v)
	d.Attach()

	bp := d.SetBreakpoint("test.monc", 3)
	if bp.Resolved() {
		t.Fatal("resolved with no module")
	}
	if err := v.LoadModule(debugProgram(t)); err != nil {
		t.Fatal(err)
	}
	if !bp.Resolved() {
		t.Error("not resolved after LoadModule")
	}
}

func TestBreakpointManagement(t *testing.T) {
	d := NewDebugger(New())
	d.SetBreakpoint("b.monc", 2)
	d.SetBreakpoint("a.monc", 9)
	d.SetBreakpoint("a.monc", 1)

	bps := d.Breakpoints()
	var got []string
	for _, bp := range bps {
		got = append(got, d.FormatLocation(bp.File, bp.Line))
	}
	if strings.Join(got, ",") != "a.monc:1,a.monc:9,b.monc:2" {
		t.Errorf("Breakpoints = %v", got)
	}

	if !d.RemoveBreakpoint("a.monc", 9) || d.RemoveBreakpoint("a.monc", 9) {
		t.Error("RemoveBreakpoint result wrong")
	}
	d.ClearBreakpoints()
	if len(d.Breakpoints()) != 0 {
		t.Error("ClearBreakpoints left breakpoints")
	}
}

func TestBreakInstruction(t *testing.T) {
	code := []il.Instruction{
		il.Ins(il.OP_LOAD, 5),
		il.Ins(il.OP_BREAK, 0),
		il.Ins(il.OP_RETURN, 0),
	}
	m := raw([]string{"f"}, il.Function{Code: code})

	// Without a debugger BREAK does nothing
	v := newVM(t, m)
	if r := run(t, v, "f"); !r.success || v.ReturnValue() != 5 {
		t.Fatalf("plain run: %+v %d", r, v.ReturnValue())
	}

	v = newVM(t, m)
	d := NewDebugger(v)
	d.Attach()
	var reasons []BreakReason
	var pcs []int
	d.OnBreak = func(d *Debugger, reason BreakReason) {
		reasons = append(reasons, reason)
		info, _ := v.GetStackFrame(0)
		pcs = append(pcs, info.PC)
	}

	var r result
	if err := v.Start("f", nil, r.callback()); err != nil {
		t.Fatal(err)
	}
	if r.done || !v.IsPaused() || v.State() != Paused {
		t.Fatalf("not paused after BREAK: %+v", r)
	}
	if len(reasons) != 1 || reasons[0] != BreakInstruction || pcs[0] != 2 {
		t.Fatalf("reasons %v pcs %v", reasons, pcs)
	}

	d.Continue()
	if !r.done || !r.success || v.ReturnValue() != 5 {
		t.Errorf("after Continue: %+v %d", r, v.ReturnValue())
	}
}

func TestPauseFromNative(t *testing.T) {
	pause := Binding("pause", 0, func([]int32) int32 { return 0 })
	proto := prototype("pause")
	main := intFunc("main", nil, ret(bin(ast.OpAdd, call(proto), num(2))))
	v := newVM(t, build(t, []*ast.Function{main, proto}, nil, pause))
	d := NewDebugger(v)
	d.Attach()

	var got []BreakReason
	d.OnBreak = func(d *Debugger, reason BreakReason) {
		got = append(got, reason)
		d.Continue()
	}
	pause.Start = func(ctx *BindingContext, _ []int32) Cursor {
		ctx.VM().Pause()
		return Steps(Return(0))
	}

	r := run(t, v, "main")
	if !r.success || v.ReturnValue() != 2 {
		t.Fatalf("main() = %d", v.ReturnValue())
	}
	if len(got) != 1 || got[0] != BreakPause {
		t.Errorf("breaks = %v, want [pause]", got)
	}
}

// ============================================================================
// Stepping
// ============================================================================

func TestStepOver(t *testing.T) {
	v, d, stops := debugSession(t,
		func(d *Debugger) { d.StepOver() },
		func(d *Debugger) { d.StepOver() },
	)
	d.SetBreakpoint("test.monc", 6)

	run(t, v, "main")
	expectStops(t, *stops, []stop{
		{BreakBreakpoint, "main", 6, 1},
		{BreakStep, "main", 7, 1},
		{BreakStep, "main", 8, 1},
	})
	if v.ReturnValue() != 4 {
		t.Errorf("result = %d", v.ReturnValue())
	}
}

func TestStepInto(t *testing.T) {
	v, d, stops := debugSession(t,
		func(d *Debugger) { d.StepInto() },
		func(d *Debugger) { d.StepInto() },
	)
	d.SetBreakpoint("test.monc", 6)

	run(t, v, "main")
	expectStops(t, *stops, []stop{
		{BreakBreakpoint, "main", 6, 1},
		{BreakStep, "add", 2, 2},
		{BreakStep, "add", 3, 2},
	})
}

func TestStepOut(t *testing.T) {
	v, d, stops := debugSession(t,
		func(d *Debugger) { d.StepOut() },
	)
	d.SetBreakpoint("test.monc", 2)

	run(t, v, "main")
	expectStops(t, *stops, []stop{
		{BreakBreakpoint, "add", 2, 2},
		{BreakStep, "main", 6, 1},
	})
}

func TestStepRunsOneCycle(t *testing.T) {
	var cycles []int64
	v, d, _ := debugSession(t,
		func(d *Debugger) { cycles = append(cycles, d.VM().Cycles()); d.Step() },
		func(d *Debugger) { cycles = append(cycles, d.VM().Cycles()); d.Continue() },
	)
	d.SetBreakpoint("test.monc", 7)

	run(t, v, "main")
	if len(cycles) != 2 || cycles[1] != cycles[0]+1 {
		t.Errorf("cycles at stops = %v", cycles)
	}
}

func TestStepOverLandsOnBreakpointInCallee(t *testing.T) {
	v, d, stops := debugSession(t,
		func(d *Debugger) { d.StepOver() },
	)
	d.SetBreakpoint("test.monc", 6)
	d.SetBreakpoint("test.monc", 3)

	run(t, v, "main")
	expectStops(t, *stops, []stop{
		{BreakBreakpoint, "main", 6, 1},
		{BreakBreakpoint, "add", 3, 2},
	})
}

// ============================================================================
// Inspection
// ============================================================================

func TestCallStackAndLocals(t *testing.T) {
	var frames []CallFrameInfo
	var locals []Local
	out := &bytes.Buffer{}
	v, d, _ := debugSession(t, func(d *Debugger) {
		frames = d.CallStack()
		locals = d.Locals(0)
		d.Output = out
		d.PrintCallStack()
		d.PrintLocals()
		d.Continue()
	})
	d.SetBreakpoint("test.monc", 3)

	run(t, v, "main")
	if len(frames) != 2 {
		t.Fatalf("frames = %+v", frames)
	}
	if frames[0].FunctionName != "add" || frames[0].Line != 3 {
		t.Errorf("frame 0 = %+v", frames[0])
	}
	if frames[1].FunctionName != "main" || frames[1].Line != 6 {
		t.Errorf("frame 1 = %+v", frames[1])
	}

	want := []Local{{"a", 4, 1}, {"b", 8, 2}, {"c", 12, 3}}
	if len(locals) != len(want) {
		t.Fatalf("locals = %+v", locals)
	}
	for i := range want {
		if locals[i] != want[i] {
			t.Errorf("local %d = %+v, want %+v", i, locals[i], want[i])
		}
	}

	text := out.String()
	for _, s := range []string{"Call stack:", "1. add at test.monc:3", "2. main at test.monc:6", "c = 3"} {
		if !strings.Contains(text, s) {
			t.Errorf("output missing %q:\n%s", s, text)
		}
	}
}

func TestOnFinished(t *testing.T) {
	v, d, _ := debugSession(t)
	var finished []bool
	d.OnFinished = func(_ *Debugger, success bool) { finished = append(finished, success) }

	run(t, v, "main")
	if len(finished) != 1 || !finished[0] {
		t.Errorf("OnFinished calls = %v", finished)
	}
}

func TestDetach(t *testing.T) {
	v, d, stops := debugSession(t)
	d.SetBreakpoint("test.monc", 7)
	d.Detach()

	run(t, v, "main")
	if len(*stops) != 0 {
		t.Errorf("stopped after Detach: %+v", *stops)
	}
}
