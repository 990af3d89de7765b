package backend

import (
	"errors"
	"fmt"

	"github.com/funvibe/monc/internal/config"
	"github.com/funvibe/monc/internal/pipeline"
	"github.com/funvibe/monc/internal/vm"
)

var (
	errNoImage = errors.New("no linked image to run")
	errStalled = errors.New("program suspended with no pending events")
)

// VMBackend executes the linked image on the VM
type VMBackend struct {
	debugMode bool
}

// NewVM creates a new VM backend
func NewVM(debugMode ...bool) *VMBackend {
	debug := false
	if len(debugMode) > 0 {
		debug = debugMode[0]
	}
	return &VMBackend{debugMode: debug}
}

// Run starts the entry function and drives the event loop until it finishes
func (b *VMBackend) Run(ctx *pipeline.PipelineContext) (int32, error) {
	if ctx.Image == nil {
		return 0, errNoImage
	}
	cfg := ctx.Config

	machine := vm.New(
		vm.WithMaxCycles(int64(cfg.MaxCycles)),
		vm.WithMaxCallDepth(cfg.MaxCallDepth),
		vm.WithLogger(ctx.Logger),
	)
	if err := machine.LoadModule(ctx.Image); err != nil {
		return 0, err
	}

	// Enable debugger if debug mode is on
	if b.debugMode || cfg.Debug {
		debugger := vm.NewDebugger(machine)
		for _, spec := range cfg.Breakpoints {
			file, line, err := config.ParseBreakpoint(spec)
			if err != nil {
				return 0, err
			}
			debugger.SetBreakpoint(file, line)
		}

		cli := vm.NewDebuggerCLI(debugger, machine)
		cli.SetInput(ctx.Input)
		cli.SetOutput(ctx.Output)
		cli.Run() // Initialize CLI (sets up OnBreak callback and prints welcome message)

		// Start in step mode to stop at first line
		// This allows user to set breakpoints before continuing
		debugger.Step()
	}

	done, success := false, false
	if err := machine.Start(cfg.Entry, cfg.Args, func(ok bool) { done, success = true, ok }); err != nil {
		return 0, err
	}
	if ctx.Loop != nil {
		if err := ctx.Loop.Run(ctx.Context); err != nil {
			machine.Abort()
			return 0, err
		}
	}

	switch {
	case !done:
		machine.Abort()
		return 0, errStalled
	case !success:
		if err := machine.LastError(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%s aborted", cfg.Entry)
	}
	ctx.Logger.Debug("program finished", "result", machine.ReturnValue(), "cycles", machine.Cycles())
	return machine.ReturnValue(), nil
}

// Name returns the backend name
func (b *VMBackend) Name() string {
	return "vm"
}
