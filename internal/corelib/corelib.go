// Package corelib provides the native functions every MonC program can
// link against: console output, a word heap and cooperative sleeping.
package corelib

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/funvibe/monc/internal/config"
	"github.com/funvibe/monc/internal/linker"
	"github.com/funvibe/monc/internal/vm"
)

// Library is one registration of the core functions
type Library struct {
	Heap *Heap
	Loop *EventLoop

	out io.Writer
}

// Register adds the core bindings to l, all exported. print and printint
// write to out; sleep schedules its wakeup on loop. The returned Library
// owns the heap the memory functions operate on.
func Register(l *linker.Linker, out io.Writer, loop *EventLoop) *Library {
	lib := &Library{Heap: NewHeap(), Loop: loop, out: out}
	for _, fn := range lib.Bindings() {
		l.AddBinding(fn.Name, fn, true)
	}
	return lib
}

// Bindings returns the native functions of the library
func (lib *Library) Bindings() []*vm.NativeFunction {
	h := lib.Heap
	return []*vm.NativeFunction{
		vm.EnumerableBinding(config.PrintFuncName, 1, lib.print),
		vm.Binding(config.PrintIntFuncName, 1, func(args []int32) int32 {
			fmt.Fprintln(lib.out, args[0])
			return 0
		}),
		vm.Binding(config.MallocFuncName, 1, func(args []int32) int32 { return h.Malloc(args[0]) }),
		vm.Binding(config.FreeFuncName, 1, func(args []int32) int32 {
			rc := h.Free(args[0])
			if rc != 0 {
				log.Debug("free of unallocated address", "addr", args[0])
			}
			return rc
		}),
		vm.Binding(config.MemsetFuncName, 3, func(args []int32) int32 { return h.Memset(args[0], args[1], args[2]) }),
		vm.Binding(config.PokeFuncName, 2, func(args []int32) int32 { return h.Poke(args[0], args[1]) }),
		vm.Binding(config.PeekFuncName, 1, func(args []int32) int32 { return h.Peek(args[0]) }),
		vm.EnumerableBinding(config.SleepFuncName, 1, lib.sleep),
	}
}

func (lib *Library) print(ctx *vm.BindingContext, args []int32) vm.Cursor {
	s, ok := ctx.String(args[0])
	if !ok {
		s = fmt.Sprintf("<invalid string %d>", args[0])
	}
	fmt.Fprintln(lib.out, s)
	return vm.Steps(vm.Return(0))
}

// sleep suspends the VM for the given number of loop turns
func (lib *Library) sleep(_ *vm.BindingContext, args []int32) vm.Cursor {
	ticks := int(args[0])
	tok := vm.NewToken(func(tok *vm.Token) {
		lib.Loop.After(ticks, tok.Finish)
	})
	return vm.Steps(vm.Yield(tok), vm.Return(0))
}
