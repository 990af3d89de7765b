package vm

// NativeFunction is a host function callable from bytecode. Start is called
// once per invocation and must return a fresh cursor every time.
type NativeFunction struct {
	Name          string
	ArgumentCount int
	Start         func(ctx *BindingContext, args []int32) Cursor
}

// Binding wraps a host function that computes its result at once.
func Binding(name string, argc int, fn func(args []int32) int32) *NativeFunction {
	return &NativeFunction{
		Name:          name,
		ArgumentCount: argc,
		Start: func(_ *BindingContext, args []int32) Cursor {
			done := false
			return CursorFunc(func() (Continuation, bool) {
				if done {
					return Continuation{}, false
				}
				done = true
				return Return(fn(args)), true
			})
		},
	}
}

// EnumerableBinding wraps a host function that drives the VM through
// continuations.
func EnumerableBinding(name string, argc int, fn func(ctx *BindingContext, args []int32) Cursor) *NativeFunction {
	return &NativeFunction{Name: name, ArgumentCount: argc, Start: fn}
}

// BindingContext is what a native function sees of the VM calling it.
type BindingContext struct {
	vm     *VM
	module *Module
}

// VM returns the calling VM
func (c *BindingContext) VM() *VM { return c.vm }

// Module returns the module the native was called from
func (c *BindingContext) Module() *Module { return c.module }

// ReturnValue is the accumulator. After a Call continuation it holds the
// nested call's result.
func (c *BindingContext) ReturnValue() int32 { return c.vm.accumulator }

// String resolves a string table index passed as an argument
func (c *BindingContext) String(index int32) (string, bool) {
	return c.module.String(index)
}
