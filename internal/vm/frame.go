package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/funvibe/monc/internal/config"
	"github.com/funvibe/monc/internal/il"
)

// StackFrameMemory is the byte-addressed memory of one frame. Words are
// little endian.
type StackFrameMemory struct {
	buf []byte
}

// Size returns the number of addressable bytes
func (m *StackFrameMemory) Size() int { return len(m.buf) }

// Resize sets the size to n bytes, all zero
func (m *StackFrameMemory) Resize(n int) {
	if cap(m.buf) >= n {
		m.buf = m.buf[:n]
	} else {
		m.buf = make([]byte, n)
	}
	clear(m.buf)
}

func (m *StackFrameMemory) check(addr, n int) error {
	if addr < 0 || n < 0 || addr+n > len(m.buf) {
		return fmt.Errorf("%w: %d bytes at %d, frame has %d", ErrAddress, n, addr, len(m.buf))
	}
	return nil
}

// ReadWord reads the word at addr
func (m *StackFrameMemory) ReadWord(addr int) (int32, error) {
	if err := m.check(addr, config.WordSize); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(m.buf[addr:])), nil
}

// WriteWord stores v at addr
func (m *StackFrameMemory) WriteWord(addr int, v int32) error {
	if err := m.check(addr, config.WordSize); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[addr:], uint32(v))
	return nil
}

// Words reads n consecutive words starting at addr
func (m *StackFrameMemory) Words(addr, n int) ([]int32, error) {
	if err := m.check(addr, n*config.WordSize); err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(m.buf[addr+i*config.WordSize:]))
	}
	return out, nil
}

// Copy copies n bytes from srcAddr into dst at dstAddr
func (m *StackFrameMemory) Copy(dst *StackFrameMemory, dstAddr, srcAddr, n int) error {
	if err := m.check(srcAddr, n); err != nil {
		return err
	}
	if err := dst.check(dstAddr, n); err != nil {
		return err
	}
	copy(dst.buf[dstAddr:dstAddr+n], m.buf[srcAddr:srcAddr+n])
	return nil
}

// Bytes returns a copy of the frame memory
func (m *StackFrameMemory) Bytes() []byte {
	return append([]byte(nil), m.buf...)
}

// StackFrame is one activation on the call stack, either bytecode or native.
type StackFrame struct {
	Module        *Module
	FunctionIndex int
	Function      *il.Function
	PC            int
	Memory        StackFrameMemory

	native *NativeFunction
	cursor Cursor
}

// IsNative reports whether the frame runs a native function
func (f *StackFrame) IsNative() bool { return f.native != nil }

// framePool recycles frames and their memory between calls.
type framePool struct {
	free []*StackFrame
}

func (p *framePool) acquire(size int) *StackFrame {
	var f *StackFrame
	if n := len(p.free); n > 0 {
		f = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		f = &StackFrame{}
	}
	f.Memory.Resize(size)
	return f
}

func (p *framePool) release(f *StackFrame) {
	f.Module = nil
	f.Function = nil
	f.FunctionIndex = 0
	f.PC = 0
	f.native = nil
	f.cursor = nil
	p.free = append(p.free, f)
}

// StackFrameInfo is a read-only view of a frame for tools.
type StackFrameInfo struct {
	Module        *Module
	FunctionIndex int
	FunctionName  string
	PC            int
	Native        bool
}
