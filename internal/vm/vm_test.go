package vm

import (
	"errors"
	"testing"

	"github.com/funvibe/monc/internal/ast"
	"github.com/funvibe/monc/internal/il"
)

// ============================================================================
// Basic execution
// ============================================================================

func TestReturnSum(t *testing.T) {
	f := intFunc("f", nil, ret(bin(ast.OpAdd, num(1), num(2))))
	v := newVM(t, build(t, []*ast.Function{f}, nil))

	r := run(t, v, "f")
	if !r.success {
		t.Fatalf("f failed: %v", v.LastError())
	}
	if got := v.ReturnValue(); got != 3 {
		t.Errorf("f() = %d, want 3", got)
	}
	if v.IsRunning() || v.CallStackDepth() != 0 {
		t.Errorf("vm still busy after finish: running=%v depth=%d", v.IsRunning(), v.CallStackDepth())
	}
	if v.State() != Idle {
		t.Errorf("state = %v, want idle", v.State())
	}
}

func TestOperators(t *testing.T) {
	tests := []struct {
		op   ast.BinaryOperator
		l, r int32
		want int32
	}{
		{ast.OpSubtract, 7, 10, -3},
		{ast.OpMultiply, -4, 6, -24},
		{ast.OpDivide, 17, 5, 3},
		{ast.OpModulo, 17, 5, 2},
		{ast.OpEqual, 3, 3, 1},
		{ast.OpNotEqual, 3, 3, 0},
		{ast.OpLess, 2, 3, 1},
		{ast.OpLessEqual, 3, 3, 1},
		{ast.OpGreater, 3, 3, 0},
		{ast.OpGreaterEqual, 3, 3, 1},
		{ast.OpGreater, 4, 3, 1},
		{ast.OpLogicalAnd, 5, 9, 1},
		{ast.OpLogicalAnd, 5, 0, 0},
		{ast.OpLogicalOr, 0, 7, 1},
		{ast.OpLogicalOr, 0, 0, 0},
		{ast.OpBitAnd, 12, 10, 8},
		{ast.OpBitOr, 12, 10, 14},
		{ast.OpBitXor, 12, 10, 6},
	}

	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			f := intFunc("f", nil, ret(bin(tt.op, num(tt.l), num(tt.r))))
			v := newVM(t, build(t, []*ast.Function{f}, nil))
			if r := run(t, v, "f"); !r.success {
				t.Fatalf("failed: %v", v.LastError())
			}
			if got := v.ReturnValue(); got != tt.want {
				t.Errorf("%d %s %d = %d, want %d", tt.l, tt.op, tt.r, got, tt.want)
			}
		})
	}
}

func TestUnaryOperators(t *testing.T) {
	neg := intFunc("neg", nil, ret(&ast.Unary{Operator: ast.OpNegate, Operand: num(5)}))
	not := intFunc("not", nil, ret(&ast.Unary{Operator: ast.OpLogicalNot, Operand: num(0)}))
	v := newVM(t, build(t, []*ast.Function{neg, not}, nil))

	run(t, v, "neg")
	if got := v.ReturnValue(); got != -5 {
		t.Errorf("-5 = %d", got)
	}
	run(t, v, "not")
	if got := v.ReturnValue(); got != 1 {
		t.Errorf("!0 = %d", got)
	}
}

func TestArgumentsAndLoops(t *testing.T) {
	// int sum(int n) { int s = 0; for (int i = 0; i < n; i = i + 1) { s = s + i; } return s; }
	n := decl("n")
	s := declInit("s", num(0))
	i := declInit("i", num(0))
	loop := &ast.For{
		Declaration: i,
		Condition:   bin(ast.OpLess, ref(i), ref(n)),
		Update:      &ast.Assignment{Target: i, Value: bin(ast.OpAdd, ref(i), num(1))},
		Body: body(&ast.ExpressionStatement{
			Expression: &ast.Assignment{Target: s, Value: bin(ast.OpAdd, ref(s), ref(i))},
		}),
	}
	fn := intFunc("sum", []*ast.Declaration{n}, s, loop, ret(ref(s)))
	v := newVM(t, build(t, []*ast.Function{fn}, nil))

	run(t, v, "sum", 10)
	if got := v.ReturnValue(); got != 45 {
		t.Errorf("sum(10) = %d, want 45", got)
	}
}

func TestRecursion(t *testing.T) {
	// int fact(int n) { if (n <= 1) { return 1; } return n * fact(n - 1); }
	n := decl("n")
	fact := intFunc("fact", []*ast.Declaration{n})
	fact.Body = body(
		&ast.If{Condition: bin(ast.OpLessEqual, ref(n), num(1)), Then: body(ret(num(1)))},
		ret(bin(ast.OpMultiply, ref(n), call(fact, bin(ast.OpSubtract, ref(n), num(1))))),
	)
	v := newVM(t, build(t, []*ast.Function{fact}, nil))

	run(t, v, "fact", 5)
	if got := v.ReturnValue(); got != 120 {
		t.Errorf("fact(5) = %d, want 120", got)
	}
}

func TestMultipleArguments(t *testing.T) {
	a, b := decl("a"), decl("b")
	sub := intFunc("sub", []*ast.Declaration{a, b}, ret(bin(ast.OpSubtract, ref(a), ref(b))))
	main := intFunc("main", nil, ret(call(sub, num(10), num(3))))
	v := newVM(t, build(t, []*ast.Function{sub, main}, nil))

	run(t, v, "main")
	if got := v.ReturnValue(); got != 7 {
		t.Errorf("sub(10, 3) = %d, want 7", got)
	}
}

// ============================================================================
// Usage errors
// ============================================================================

func TestStartUsageErrors(t *testing.T) {
	a := decl("a")
	f := intFunc("f", []*ast.Declaration{a}, ret(ref(a)))
	m := build(t, []*ast.Function{f}, nil)

	tests := []struct {
		name string
		fn   string
		args []int32
		want error
	}{
		{"unknown", "nope", nil, ErrUnknownFunction},
		{"too few", "f", nil, ErrArgumentCount},
		{"too many", "f", []int32{1, 2}, ErrArgumentCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newVM(t, m)
			called := false
			err := v.Start(tt.fn, tt.args, func(bool) { called = true })
			if !errors.Is(err, tt.want) {
				t.Fatalf("Start error = %v, want %v", err, tt.want)
			}
			if called || v.IsRunning() || v.CallStackDepth() != 0 || v.Cycles() != 0 {
				t.Errorf("state changed: called=%v running=%v depth=%d", called, v.IsRunning(), v.CallStackDepth())
			}
			if v.Call(tt.fn, tt.args, nil) {
				t.Errorf("Call returned true")
			}
		})
	}
}

func TestStartWithoutModule(t *testing.T) {
	v := New()
	if err := v.Start("main", nil, nil); !errors.Is(err, ErrNoModule) {
		t.Errorf("Start error = %v, want ErrNoModule", err)
	}
	if err := v.LoadModule(nil); !errors.Is(err, ErrNoModule) {
		t.Errorf("LoadModule(nil) = %v", err)
	}
}

func TestStartWhileRunning(t *testing.T) {
	tok := NewToken(nil)
	wait := EnumerableBinding("wait", 0, func(*BindingContext, []int32) Cursor {
		return Steps(Yield(tok), Return(1))
	})
	proto := prototype("wait")
	main := intFunc("main", nil, ret(call(proto)))
	v := newVM(t, build(t, []*ast.Function{main, proto}, nil, wait))

	var r result
	if err := v.Start("main", nil, r.callback()); err != nil {
		t.Fatal(err)
	}
	if err := v.Start("main", nil, nil); !errors.Is(err, ErrRunning) {
		t.Errorf("second Start = %v, want ErrRunning", err)
	}
	if err := v.LoadModule(v.Module()); !errors.Is(err, ErrRunning) {
		t.Errorf("LoadModule while running = %v, want ErrRunning", err)
	}
	tok.Finish()
	if !r.done || !r.success {
		t.Fatalf("not finished after token: %+v", r)
	}
}

// ============================================================================
// Runtime faults
// ============================================================================

func TestCycleBudget(t *testing.T) {
	// while (1) {}
	loop := &ast.While{Condition: num(1), Body: body()}
	f := intFunc("spin", nil, loop, ret(num(0)))
	v := newVM(t, build(t, []*ast.Function{f}, nil), WithMaxCycles(100))

	r := run(t, v, "spin")
	if r.success {
		t.Fatal("infinite loop reported success")
	}
	if !errors.Is(v.LastError(), ErrCycleBudget) {
		t.Errorf("LastError = %v, want ErrCycleBudget", v.LastError())
	}
	if v.Cycles() != 100 {
		t.Errorf("Cycles = %d, want 100", v.Cycles())
	}
	if v.CallStackDepth() != 0 || v.IsRunning() {
		t.Errorf("call stack not cleared")
	}
	if r.calls != 1 {
		t.Errorf("onFinished called %d times", r.calls)
	}
}

func TestRuntimeFaults(t *testing.T) {
	tests := []struct {
		name string
		code []il.Instruction
		size int
		want error
	}{
		{
			name: "read out of bounds",
			code: []il.Instruction{il.Ins(il.OP_READ, 100), il.Ins(il.OP_RETURN, 0)},
			size: 4,
			want: ErrAddress,
		},
		{
			name: "write straddles end",
			code: []il.Instruction{il.Ins(il.OP_WRITE, 2), il.Ins(il.OP_RETURN, 0)},
			size: 4,
			want: ErrAddress,
		},
		{
			name: "negative address",
			code: []il.Instruction{il.Ins(il.OP_ADD, -4), il.Ins(il.OP_RETURN, 0)},
			size: 4,
			want: ErrAddress,
		},
		{
			name: "divide by zero",
			code: []il.Instruction{il.Ins(il.OP_LOAD, 1), il.Ins(il.OP_DIV, 0), il.Ins(il.OP_RETURN, 0)},
			size: 4,
			want: ErrDivideByZero,
		},
		{
			name: "modulo by zero",
			code: []il.Instruction{il.Ins(il.OP_LOAD, 1), il.Ins(il.OP_MOD, 0), il.Ins(il.OP_RETURN, 0)},
			size: 4,
			want: ErrDivideByZero,
		},
		{
			name: "bad function index",
			code: []il.Instruction{il.Ins(il.OP_LOAD, 9), il.Ins(il.OP_WRITE, 0), il.Ins(il.OP_CALL, 0), il.Ins(il.OP_RETURN, 0)},
			size: 4,
			want: ErrBadFunction,
		},
		{
			name: "jump out of code",
			code: []il.Instruction{il.Ins(il.OP_JUMP, 5), il.Ins(il.OP_RETURN, 0)},
			size: 0,
			want: ErrPCRange,
		},
		{
			name: "unknown opcode",
			code: []il.Instruction{il.Ins(il.Opcode(200), 0), il.Ins(il.OP_RETURN, 0)},
			size: 0,
			want: ErrBadOpcode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn := il.Function{Code: tt.code, MaxStackSize: tt.size}
			v := newVM(t, raw([]string{"f"}, fn))
			r := run(t, v, "f")
			if r.success {
				t.Fatal("fault reported success")
			}
			err := v.LastError()
			if !errors.Is(err, tt.want) {
				t.Fatalf("LastError = %v, want %v", err, tt.want)
			}
			if err.Function != "f" {
				t.Errorf("fault names function %q", err.Function)
			}
			if v.CallStackDepth() != 0 {
				t.Errorf("call stack not cleared")
			}
		})
	}
}

func TestFaultCarriesSymbol(t *testing.T) {
	stmt := ret(bin(ast.OpDivide, num(1), num(0)))
	f := intFunc("f", nil, stmt)
	v := newVM(t, build(t, []*ast.Function{f}, ast.SymbolMap{stmt: sym(4, 3)}))

	run(t, v, "f")
	err := v.LastError()
	if err == nil || !err.HasSymbol {
		t.Fatalf("LastError = %v, want a symbol", err)
	}
	if err.Symbol.Start.Line != 4 {
		t.Errorf("symbol line = %d, want 4", err.Symbol.Start.Line)
	}
}

func TestCallUndefined(t *testing.T) {
	ext := prototype("missing")
	main := intFunc("main", nil, ret(call(ext)))
	v := newVM(t, build(t, []*ast.Function{main, ext}, nil))

	if r := run(t, v, "main"); r.success {
		t.Fatal("undefined call succeeded")
	}
	if !errors.Is(v.LastError(), ErrUndefinedFunction) {
		t.Errorf("LastError = %v, want ErrUndefinedFunction", v.LastError())
	}
}

func TestCallDepth(t *testing.T) {
	f := intFunc("f", nil)
	f.Body = body(ret(call(f)))
	v := newVM(t, build(t, []*ast.Function{f}, nil), WithMaxCallDepth(16))

	if r := run(t, v, "f"); r.success {
		t.Fatal("unbounded recursion succeeded")
	}
	if !errors.Is(v.LastError(), ErrCallDepth) {
		t.Errorf("LastError = %v, want ErrCallDepth", v.LastError())
	}
}

func TestRestartAfterFault(t *testing.T) {
	bad := intFunc("bad", nil, ret(bin(ast.OpDivide, num(1), num(0))))
	good := intFunc("good", nil, ret(num(11)))
	v := newVM(t, build(t, []*ast.Function{bad, good}, nil))

	run(t, v, "bad")
	if r := run(t, v, "good"); !r.success {
		t.Fatalf("good failed after fault: %v", v.LastError())
	}
	if v.LastError() != nil {
		t.Errorf("LastError not reset: %v", v.LastError())
	}
	if v.ReturnValue() != 11 {
		t.Errorf("ReturnValue = %d", v.ReturnValue())
	}
}

// ============================================================================
// Frames
// ============================================================================

func TestFramePoolReuse(t *testing.T) {
	a := decl("a")
	id := intFunc("id", []*ast.Declaration{a}, ret(ref(a)))
	main := intFunc("main", nil, ret(bin(ast.OpAdd, call(id, num(1)), call(id, num(2)))))
	v := newVM(t, build(t, []*ast.Function{id, main}, nil))

	run(t, v, "main")
	if v.ReturnValue() != 3 {
		t.Fatalf("main() = %d", v.ReturnValue())
	}
	pooled := len(v.pool.free)
	if pooled != 2 {
		t.Errorf("pool holds %d frames, want 2", pooled)
	}

	run(t, v, "main")
	if len(v.pool.free) != pooled {
		t.Errorf("pool grew from %d to %d", pooled, len(v.pool.free))
	}
}

func TestGetStackFrame(t *testing.T) {
	var seen []StackFrameInfo
	var callerWord int32
	probe := EnumerableBinding("probe", 1, func(ctx *BindingContext, args []int32) Cursor {
		for depth := 0; ; depth++ {
			info, ok := ctx.VM().GetStackFrame(depth)
			if !ok {
				break
			}
			seen = append(seen, info)
		}
		mem, _ := ctx.VM().GetStackFrameMemory(1)
		callerWord, _ = mem.ReadWord(4)
		return Steps(Return(args[0] * 2))
	})
	x := declInit("x", num(21))
	proto := prototype("probe", decl("v"))
	main := intFunc("main", nil, x, ret(call(proto, ref(x))))
	v := newVM(t, build(t, []*ast.Function{main, proto}, nil, probe))

	run(t, v, "main")
	if v.ReturnValue() != 42 {
		t.Fatalf("main() = %d, want 42", v.ReturnValue())
	}
	if len(seen) != 2 {
		t.Fatalf("saw %d frames, want 2", len(seen))
	}
	if seen[0].FunctionName != "probe" || !seen[0].Native {
		t.Errorf("frame 0 = %+v", seen[0])
	}
	if seen[1].FunctionName != "main" || seen[1].Native {
		t.Errorf("frame 1 = %+v", seen[1])
	}
	if callerWord != 21 {
		t.Errorf("caller x = %d, want 21", callerWord)
	}
	if _, ok := v.GetStackFrame(0); ok {
		t.Errorf("frame reported on idle vm")
	}
}

func TestStackFrameMemory(t *testing.T) {
	var m StackFrameMemory
	m.Resize(8)
	if err := m.WriteWord(4, -2); err != nil {
		t.Fatal(err)
	}
	if got, _ := m.ReadWord(4); got != -2 {
		t.Errorf("ReadWord = %d", got)
	}
	if b := m.Bytes(); b[4] != 0xfe || b[7] != 0xff {
		t.Errorf("not little endian: % x", b)
	}
	if _, err := m.ReadWord(5); !errors.Is(err, ErrAddress) {
		t.Errorf("unaligned tail read = %v", err)
	}
	if err := m.WriteWord(-1, 0); !errors.Is(err, ErrAddress) {
		t.Errorf("negative write = %v", err)
	}

	var dst StackFrameMemory
	dst.Resize(4)
	if err := m.Copy(&dst, 0, 4, 4); err != nil {
		t.Fatal(err)
	}
	if got, _ := dst.ReadWord(0); got != -2 {
		t.Errorf("copied word = %d", got)
	}
	if err := m.Copy(&dst, 2, 0, 4); !errors.Is(err, ErrAddress) {
		t.Errorf("overflowing copy = %v", err)
	}

	// Shrinking and growing within capacity keeps the buffer but zeroes it
	before := &m.buf[0]
	m.Resize(4)
	m.Resize(8)
	if &m.buf[0] != before {
		t.Errorf("resize within capacity reallocated")
	}
	if got, _ := m.ReadWord(4); got != 0 {
		t.Errorf("resized memory not zeroed: %d", got)
	}
	words, err := m.Words(0, 2)
	if err != nil || len(words) != 2 {
		t.Errorf("Words = %v, %v", words, err)
	}
}
