package vm

// ContinuationAction tags a Continuation
type ContinuationAction int

const (
	ActionReturn ContinuationAction = iota // Finish with Value
	ActionCall                             // Call FunctionIndex in Module with Arguments
	ActionYield                            // Suspend the VM until Token finishes
	ActionUnwrap                           // Continue with Cursor instead
)

var continuationActionNames = map[ContinuationAction]string{
	ActionReturn: "return",
	ActionCall:   "call",
	ActionYield:  "yield",
	ActionUnwrap: "unwrap",
}

func (a ContinuationAction) String() string {
	if name, ok := continuationActionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Continuation is one step a native function asks the VM to take.
type Continuation struct {
	Action ContinuationAction

	// Return
	Value int32

	// Call; a nil Module means the module the native was called from
	Module        *Module
	FunctionIndex int
	Arguments     []int32

	// Yield
	Token YieldToken

	// Unwrap
	Cursor Cursor
}

// Return finishes the native call with v in the accumulator
func Return(v int32) Continuation {
	return Continuation{Action: ActionReturn, Value: v}
}

// Call runs a function to completion before the native resumes
func Call(m *Module, index int, args ...int32) Continuation {
	return Continuation{Action: ActionCall, Module: m, FunctionIndex: index, Arguments: args}
}

// Yield suspends the VM until token finishes
func Yield(token YieldToken) Continuation {
	return Continuation{Action: ActionYield, Token: token}
}

// Unwrap replaces the native's cursor with c
func Unwrap(c Cursor) Continuation {
	return Continuation{Action: ActionUnwrap, Cursor: c}
}

// Cursor produces the continuations of one native invocation. It is single
// pass: once Next reports false it stays finished.
type Cursor interface {
	Next() (Continuation, bool)
}

// CursorFunc adapts a function to Cursor
type CursorFunc func() (Continuation, bool)

// Next calls f
func (f CursorFunc) Next() (Continuation, bool) { return f() }

// Steps returns a cursor yielding cs in order
func Steps(cs ...Continuation) Cursor {
	i := 0
	return CursorFunc(func() (Continuation, bool) {
		if i >= len(cs) {
			return Continuation{}, false
		}
		c := cs[i]
		i++
		return c, true
	})
}
