package vm

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/funvibe/monc/internal/config"
	"github.com/google/uuid"
)

// BreakReason says why execution stopped for the debugger
type BreakReason int

const (
	BreakInstruction BreakReason = iota // BREAK opcode
	BreakBreakpoint                     // breakpoint address reached
	BreakStep                           // single step completed
	BreakPause                          // Pause was requested
)

var breakReasonNames = map[BreakReason]string{
	BreakInstruction: "break instruction",
	BreakBreakpoint:  "breakpoint",
	BreakStep:        "step",
	BreakPause:       "pause",
}

func (r BreakReason) String() string {
	if name, ok := breakReasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// State is the coarse VM state
type State int

const (
	Idle State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	}
	return "unknown"
}

// DebugHooks is the VM's view of an attached debugger.
type DebugHooks interface {
	IsBreakpoint(m *Module, function, pc int) bool
	HandleBreak(reason BreakReason)
	HandleFinished(success bool)
	HandleModuleAdded(m *Module)
}

// VM interprets linked modules. It is single threaded and not safe for
// concurrent use; yield tokens must be finished on the goroutine driving it.
type VM struct {
	id     uuid.UUID
	logger *log.Logger

	// module is the image top-level calls resolve against
	module *Module
	// modules seen by this VM, reported once each to the debugger
	modules map[*Module]bool

	maxCycles    int64
	maxCallDepth int

	callStack   []*StackFrame
	pool        framePool
	accumulator int32
	cycles      int64
	running     bool
	onFinished  func(success bool)
	lastErr     *RuntimeError

	// Loop control
	canContinue    bool
	dispatching    bool
	paused         bool
	pauseRequested bool
	breakPending   bool
	breakReason    BreakReason
	skipBreakpoint bool

	// Yield suspension; yieldGen invalidates resume callbacks of aborted calls
	yieldToken YieldToken
	yieldGen   int
	suspended  bool

	debugger DebugHooks
	stepping bool
}

// Option configures a VM
type Option func(*VM)

// WithMaxCycles limits the cycles of one top-level call; 0 is unlimited
func WithMaxCycles(n int64) Option {
	return func(v *VM) { v.maxCycles = n }
}

// WithMaxCallDepth limits the call stack depth; 0 is unlimited
func WithMaxCallDepth(n int) Option {
	return func(v *VM) { v.maxCallDepth = n }
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(v *VM) { v.logger = l }
}

// New creates an idle VM
func New(opts ...Option) *VM {
	v := &VM{
		id:           uuid.New(),
		modules:      make(map[*Module]bool),
		maxCycles:    config.DefaultMaxCycles,
		maxCallDepth: config.DefaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = log.Default()
	}
	v.logger = v.logger.With("vm", v.id.String())
	return v
}

// ID returns the VM's instance id
func (v *VM) ID() uuid.UUID { return v.id }

// LoadModule sets the image that Start resolves names against.
func (v *VM) LoadModule(m *Module) error {
	if v.running {
		return ErrRunning
	}
	if m == nil {
		return ErrNoModule
	}
	v.module = m
	v.noteModule(m)
	v.logger.Debug("module loaded", "module", m.Name, "functions", len(m.Functions), "natives", len(m.Natives))
	return nil
}

// Module returns the loaded image
func (v *VM) Module() *Module { return v.module }

// Start begins a top-level call of the exported function name. On a usage
// error nothing changes. onFinished runs once the call stack empties or the
// call aborts; it may run before Start returns.
func (v *VM) Start(name string, args []int32, onFinished func(success bool)) error {
	if v.running {
		return ErrRunning
	}
	if v.module == nil {
		return ErrNoModule
	}
	idx, ok := v.module.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	argc, ok := v.module.ArgumentCount(idx)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	if argc != len(args) {
		return fmt.Errorf("%w: %s takes %d, got %d", ErrArgumentCount, name, argc, len(args))
	}

	v.accumulator = 0
	v.cycles = 0
	v.lastErr = nil
	v.onFinished = onFinished
	v.running = true
	v.paused = false
	v.pauseRequested = false
	v.breakPending = false

	if err := v.pushCall(v.module, idx, args); err != nil {
		v.running = false
		v.onFinished = nil
		return err
	}

	v.logger.Debug("call started", "function", name, "args", args)
	v.canContinue = true
	v.run()
	return nil
}

// Call is Start reporting usage errors as false
func (v *VM) Call(name string, args []int32, onFinished func(success bool)) bool {
	return v.Start(name, args, onFinished) == nil
}

// Continue resumes a paused VM. Called from inside a break handler it only
// schedules the resume; the running dispatch loop picks it up.
func (v *VM) Continue() {
	if !v.running || v.suspended {
		return
	}
	v.paused = false
	v.canContinue = true
	v.run()
}

// Pause stops execution before the next cycle
func (v *VM) Pause() {
	if v.running && !v.paused {
		v.pauseRequested = true
	}
}

// Abort discards the current call and reports failure
func (v *VM) Abort() {
	if !v.running {
		return
	}
	if f := v.top(); f != nil {
		v.abort(v.runtimeError(f, f.PC, ErrAborted))
		return
	}
	v.abort(&RuntimeError{Err: ErrAborted})
}

// SetDebugger attaches hooks; nil detaches
func (v *VM) SetDebugger(d DebugHooks) {
	v.debugger = d
	if d == nil {
		v.stepping = false
		return
	}
	for m := range v.modules {
		d.HandleModuleAdded(m)
	}
}

// SetStepping requests a BreakStep after every cycle
func (v *VM) SetStepping(on bool) { v.stepping = on }

// ReturnValue returns the accumulator
func (v *VM) ReturnValue() int32 { return v.accumulator }

// LastError returns the fault of the last aborted call, if any
func (v *VM) LastError() *RuntimeError { return v.lastErr }

// Cycles returns the cycles executed by the current or last call
func (v *VM) Cycles() int64 { return v.cycles }

// IsRunning reports whether a top-level call is in flight, paused or not
func (v *VM) IsRunning() bool { return v.running }

// IsPaused reports whether the VM is stopped for the debugger
func (v *VM) IsPaused() bool { return v.paused }

// IsSuspended reports whether the VM waits on a yield token
func (v *VM) IsSuspended() bool { return v.suspended }

// State returns the coarse state
func (v *VM) State() State {
	switch {
	case !v.running:
		return Idle
	case v.paused:
		return Paused
	}
	return Running
}

// CallStackDepth returns the number of frames
func (v *VM) CallStackDepth() int { return len(v.callStack) }

// GetStackFrame describes the frame at depth, 0 being the innermost
func (v *VM) GetStackFrame(depth int) (StackFrameInfo, bool) {
	f := v.frameAt(depth)
	if f == nil {
		return StackFrameInfo{}, false
	}
	return StackFrameInfo{
		Module:        f.Module,
		FunctionIndex: f.FunctionIndex,
		FunctionName:  f.Module.FunctionName(f.FunctionIndex),
		PC:            f.PC,
		Native:        f.IsNative(),
	}, true
}

// GetStackFrameMemory returns the live memory of the frame at depth
func (v *VM) GetStackFrameMemory(depth int) (*StackFrameMemory, bool) {
	f := v.frameAt(depth)
	if f == nil {
		return nil, false
	}
	return &f.Memory, true
}

func (v *VM) frameAt(depth int) *StackFrame {
	i := len(v.callStack) - 1 - depth
	if depth < 0 || i < 0 {
		return nil
	}
	return v.callStack[i]
}

func (v *VM) top() *StackFrame {
	if len(v.callStack) == 0 {
		return nil
	}
	return v.callStack[len(v.callStack)-1]
}

func (v *VM) noteModule(m *Module) {
	if v.modules[m] {
		return
	}
	v.modules[m] = true
	if v.debugger != nil {
		v.debugger.HandleModuleAdded(m)
	}
}
