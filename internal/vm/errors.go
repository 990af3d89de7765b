package vm

import (
	"errors"
	"fmt"

	"github.com/funvibe/monc/internal/source"
)

var (
	ErrRunning           = errors.New("vm is already running")
	ErrNoModule          = errors.New("no module loaded")
	ErrUnknownFunction   = errors.New("unknown function")
	ErrArgumentCount     = errors.New("wrong number of arguments")
	ErrAddress           = errors.New("memory access out of bounds")
	ErrDivideByZero      = errors.New("division by zero")
	ErrUndefinedFunction = errors.New("call to undefined function")
	ErrBadFunction       = errors.New("invalid function index")
	ErrCycleBudget       = errors.New("cycle budget exhausted")
	ErrCallDepth         = errors.New("call stack too deep")
	ErrBadOpcode         = errors.New("invalid opcode")
	ErrPCRange           = errors.New("program counter out of range")
	ErrNilToken          = errors.New("yield without token")
	ErrAborted           = errors.New("aborted")
)

var errBadContinuation = errors.New("invalid continuation")

// RuntimeError is a fault raised while executing a function.
type RuntimeError struct {
	Function  string
	Index     int
	PC        int
	Symbol    source.Symbol
	HasSymbol bool
	Err       error
}

func (e *RuntimeError) Error() string {
	if e.HasSymbol {
		return fmt.Sprintf("runtime error in %s at %04d (%s): %v", e.Function, e.PC, e.Symbol, e.Err)
	}
	return fmt.Sprintf("runtime error in %s at %04d: %v", e.Function, e.PC, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }
