package vm

import (
	"fmt"

	"github.com/funvibe/monc/internal/config"
	"github.com/funvibe/monc/internal/il"
)

// run is the dispatch loop. It is never re-entered: Continue or a yield
// resume issued while it is active only set canContinue.
func (v *VM) run() {
	if v.dispatching {
		return
	}
	v.dispatching = true
	defer func() { v.dispatching = false }()

	for v.canContinue {
		if len(v.callStack) == 0 {
			v.canContinue = false
			break
		}

		v.cycle()

		if v.breakPending {
			v.breakPending = false
			v.paused = true
			v.canContinue = false
			if v.debugger != nil {
				v.debugger.HandleBreak(v.breakReason)
			}
			continue
		}

		if v.yieldToken != nil {
			tok := v.yieldToken
			v.yieldToken = nil
			v.suspend(tok)
		}
	}
}

// suspend stops the loop until tok finishes. A token that is already
// finished resumes inline.
func (v *VM) suspend(tok YieldToken) {
	v.canContinue = false
	v.suspended = true
	v.yieldGen++
	gen := v.yieldGen

	v.logger.Debug("suspended on yield", "depth", len(v.callStack))
	tok.OnFinished(func() {
		if gen != v.yieldGen || !v.suspended {
			return
		}
		v.suspended = false
		v.canContinue = true
		v.logger.Debug("resumed from yield")
		v.run()
	})
	tok.Start()
}

// cycle performs one step of the top frame
func (v *VM) cycle() {
	f := v.top()

	if v.maxCycles > 0 && v.cycles >= v.maxCycles {
		v.abort(v.runtimeError(f, f.PC, ErrCycleBudget))
		return
	}

	if v.pauseRequested {
		v.pauseRequested = false
		v.requestBreak(BreakPause)
		return
	}

	skip := v.skipBreakpoint
	v.skipBreakpoint = false
	if v.debugger != nil && !f.IsNative() && !skip &&
		v.debugger.IsBreakpoint(f.Module, f.FunctionIndex, f.PC) {
		v.requestBreak(BreakBreakpoint)
		return
	}

	pc := f.PC
	v.cycles++

	var err error
	if f.IsNative() {
		err = v.stepNative(f)
	} else {
		err = v.execute(f)
	}
	if err != nil {
		v.abort(v.runtimeError(f, pc, err))
		return
	}

	if v.stepping && v.debugger != nil && v.running && !v.breakPending && v.yieldToken == nil {
		v.requestBreak(BreakStep)
	}
}

// requestBreak stops the loop after the current cycle. The instruction the
// VM stops in front of is not reported as a breakpoint again on resume.
func (v *VM) requestBreak(reason BreakReason) {
	v.breakPending = true
	v.breakReason = reason
	v.skipBreakpoint = true
}

func b2i(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// execute runs one bytecode instruction of f
func (v *VM) execute(f *StackFrame) error {
	code := f.Function.Code
	pc := f.PC
	if pc < 0 || pc >= len(code) {
		return fmt.Errorf("%w: %d", ErrPCRange, pc)
	}
	ins := code[pc]
	f.PC++
	imm := int(ins.Immediate)

	// Operand word for instructions that address memory
	var x int32
	if ins.Op.AddressesMemory() && ins.Op != il.OP_WRITE && ins.Op != il.OP_CALL {
		w, err := f.Memory.ReadWord(imm)
		if err != nil {
			return err
		}
		x = w
	}

	switch ins.Op {
	case il.OP_NOOP:
	case il.OP_BREAK:
		if v.debugger != nil {
			v.requestBreak(BreakInstruction)
			v.skipBreakpoint = false
		}
	case il.OP_LOAD:
		v.accumulator = ins.Immediate
	case il.OP_READ:
		v.accumulator = x
	case il.OP_WRITE:
		return f.Memory.WriteWord(imm, v.accumulator)
	case il.OP_CALL:
		return v.call(f, imm)
	case il.OP_RETURN:
		v.popFrame()
	case il.OP_CMPE:
		v.accumulator = b2i(v.accumulator == x)
	case il.OP_CMPLT:
		v.accumulator = b2i(v.accumulator < x)
	case il.OP_CMPLTE:
		v.accumulator = b2i(v.accumulator <= x)
	case il.OP_JUMP:
		f.PC = pc + imm
	case il.OP_JUMPZ:
		if v.accumulator == 0 {
			f.PC = pc + imm
		}
	case il.OP_JUMPNZ:
		if v.accumulator != 0 {
			f.PC = pc + imm
		}
	case il.OP_BOOL:
		v.accumulator = b2i(v.accumulator != 0)
	case il.OP_LNOT:
		v.accumulator = b2i(v.accumulator == 0)
	case il.OP_ADD:
		v.accumulator += x
	case il.OP_SUB:
		v.accumulator -= x
	case il.OP_OR:
		v.accumulator |= x
	case il.OP_AND:
		v.accumulator &= x
	case il.OP_XOR:
		v.accumulator ^= x
	case il.OP_MUL:
		v.accumulator *= x
	case il.OP_DIV:
		if x == 0 {
			return ErrDivideByZero
		}
		v.accumulator /= x
	case il.OP_MOD:
		if x == 0 {
			return ErrDivideByZero
		}
		v.accumulator %= x
	default:
		return fmt.Errorf("%w: %d", ErrBadOpcode, ins.Op)
	}
	return nil
}

// call handles CALL: word region holds the callee index, the argument
// words follow it
func (v *VM) call(caller *StackFrame, region int) error {
	word, err := caller.Memory.ReadWord(region)
	if err != nil {
		return err
	}
	m := caller.Module
	idx := int(word)

	if fn, ok := m.Function(idx); ok {
		if err := v.checkDepth(); err != nil {
			return err
		}
		f := v.pool.acquire(fn.MaxStackSize)
		if err := caller.Memory.Copy(&f.Memory, fn.ReturnMemorySize, region+config.WordSize, fn.ArgumentMemorySize); err != nil {
			v.pool.release(f)
			return err
		}
		f.Module = m
		f.FunctionIndex = idx
		f.Function = fn
		v.callStack = append(v.callStack, f)
		return nil
	}

	if n, ok := m.Native(idx); ok {
		args, err := caller.Memory.Words(region+config.WordSize, n.ArgumentCount)
		if err != nil {
			return err
		}
		return v.pushCall(m, idx, args)
	}

	return v.unresolved(m, idx)
}

func (v *VM) checkDepth() error {
	if v.maxCallDepth > 0 && len(v.callStack) >= v.maxCallDepth {
		return fmt.Errorf("%w: limit %d", ErrCallDepth, v.maxCallDepth)
	}
	return nil
}

func (v *VM) unresolved(m *Module, idx int) error {
	if name, ok := m.Undefined[idx]; ok {
		return fmt.Errorf("%w: %s", ErrUndefinedFunction, name)
	}
	return fmt.Errorf("%w: %d", ErrBadFunction, idx)
}

// pushCall pushes a frame for function idx of m with argument words args
func (v *VM) pushCall(m *Module, idx int, args []int32) error {
	if err := v.checkDepth(); err != nil {
		return err
	}
	v.noteModule(m)

	if fn, ok := m.Function(idx); ok {
		if len(args)*config.WordSize != fn.ArgumentMemorySize {
			return fmt.Errorf("%w: %s takes %d, got %d", ErrArgumentCount,
				m.FunctionName(idx), fn.ArgumentMemorySize/config.WordSize, len(args))
		}
		f := v.pool.acquire(fn.MaxStackSize)
		for i, a := range args {
			if err := f.Memory.WriteWord(fn.ReturnMemorySize+i*config.WordSize, a); err != nil {
				v.pool.release(f)
				return err
			}
		}
		f.Module = m
		f.FunctionIndex = idx
		f.Function = fn
		v.callStack = append(v.callStack, f)
		return nil
	}

	if n, ok := m.Native(idx); ok {
		if len(args) != n.ArgumentCount {
			return fmt.Errorf("%w: %s takes %d, got %d", ErrArgumentCount, n.Name, n.ArgumentCount, len(args))
		}
		f := v.pool.acquire(0)
		f.Module = m
		f.FunctionIndex = idx
		f.native = n
		// The frame is pushed first so the native can inspect the stack.
		v.callStack = append(v.callStack, f)
		f.cursor = n.Start(&BindingContext{vm: v, module: m}, args)
		return nil
	}

	return v.unresolved(m, idx)
}

// stepNative advances the cursor of a native frame by one continuation
func (v *VM) stepNative(f *StackFrame) error {
	if f.cursor == nil {
		v.popFrame()
		return nil
	}
	c, ok := f.cursor.Next()
	if !ok {
		v.popFrame()
		return nil
	}

	switch c.Action {
	case ActionReturn:
		v.accumulator = c.Value
		v.popFrame()
	case ActionCall:
		m := c.Module
		if m == nil {
			m = f.Module
		}
		return v.pushCall(m, c.FunctionIndex, c.Arguments)
	case ActionYield:
		if c.Token == nil {
			return ErrNilToken
		}
		v.yieldToken = c.Token
	case ActionUnwrap:
		f.cursor = c.Cursor
	default:
		return fmt.Errorf("%w: action %d", errBadContinuation, c.Action)
	}
	return nil
}

// popFrame removes the top frame; an empty stack finishes the call
func (v *VM) popFrame() {
	n := len(v.callStack)
	f := v.callStack[n-1]
	v.callStack[n-1] = nil
	v.callStack = v.callStack[:n-1]
	v.pool.release(f)

	if len(v.callStack) == 0 {
		v.finish(true)
	}
}

func (v *VM) finish(success bool) {
	cb := v.onFinished
	v.onFinished = nil
	v.running = false
	v.paused = false
	v.pauseRequested = false
	v.canContinue = false

	v.logger.Debug("call finished", "success", success, "result", v.accumulator, "cycles", v.cycles)
	if v.debugger != nil {
		v.debugger.HandleFinished(success)
	}
	if cb != nil {
		cb(success)
	}
}

// abort clears the call stack and finishes with failure
func (v *VM) abort(rerr *RuntimeError) {
	v.lastErr = rerr
	v.logger.Warn("execution aborted", "err", rerr)

	for len(v.callStack) > 0 {
		n := len(v.callStack)
		v.pool.release(v.callStack[n-1])
		v.callStack[n-1] = nil
		v.callStack = v.callStack[:n-1]
	}
	v.yieldToken = nil
	v.suspended = false
	v.yieldGen++
	v.breakPending = false
	v.skipBreakpoint = false
	v.finish(false)
}

func (v *VM) runtimeError(f *StackFrame, pc int, err error) *RuntimeError {
	rerr := &RuntimeError{Err: err, PC: pc}
	if f == nil {
		return rerr
	}
	rerr.Function = f.Module.FunctionName(f.FunctionIndex)
	rerr.Index = f.FunctionIndex
	if f.Function != nil {
		rerr.Symbol, rerr.HasSymbol = f.Function.SymbolBefore(pc)
	}
	return rerr
}
