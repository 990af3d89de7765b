package corelib

import (
	"sort"

	"github.com/funvibe/monc/internal/config"
)

// UndefinedValue fills freshly allocated words and is what reads of
// unmapped addresses return
const UndefinedValue int32 = -559038737 // 0xDEADBEEF

// Heap is a word-addressed first-fit allocator. Address 0 is never handed
// out so it can serve as null.
type Heap struct {
	words       []int32
	holes       []hole // sorted by address, never adjacent
	allocations map[int32]int32
	limit       int
}

type hole struct {
	addr, size int32
}

// NewHeap creates an empty heap bounded by config.MaxHeapWords
func NewHeap() *Heap {
	return NewHeapLimit(config.MaxHeapWords)
}

// NewHeapLimit creates an empty heap that never grows past limit words
func NewHeapLimit(limit int) *Heap {
	return &Heap{
		words:       []int32{UndefinedValue},
		allocations: make(map[int32]int32),
		limit:       limit,
	}
}

// Malloc allocates size words and returns their address, 0 on failure or
// when the heap would grow past its limit
func (h *Heap) Malloc(size int32) int32 {
	if size <= 0 {
		return 0
	}

	for i, hl := range h.holes {
		if hl.size < size {
			continue
		}
		if hl.size == size {
			h.holes = append(h.holes[:i], h.holes[i+1:]...)
		} else {
			h.holes[i] = hole{addr: hl.addr + size, size: hl.size - size}
		}
		h.fill(hl.addr, size, UndefinedValue)
		h.allocations[hl.addr] = size
		return hl.addr
	}

	if int64(size) > int64(h.limit-len(h.words)) {
		return 0
	}
	addr := int32(len(h.words))
	grown := make([]int32, size)
	for i := range grown {
		grown[i] = UndefinedValue
	}
	h.words = append(h.words, grown...)
	h.allocations[addr] = size
	return addr
}

// Free releases an allocation. It returns 0 on success and 1 when addr was
// not returned by Malloc or is already free.
func (h *Heap) Free(addr int32) int32 {
	size, ok := h.allocations[addr]
	if !ok {
		return 1
	}
	delete(h.allocations, addr)

	i := sort.Search(len(h.holes), func(i int) bool { return h.holes[i].addr > addr })
	h.holes = append(h.holes, hole{})
	copy(h.holes[i+1:], h.holes[i:])
	h.holes[i] = hole{addr: addr, size: size}

	// Merge with the following hole, then the preceding one
	if i+1 < len(h.holes) && addr+size == h.holes[i+1].addr {
		h.holes[i].size += h.holes[i+1].size
		h.holes = append(h.holes[:i+1], h.holes[i+2:]...)
	}
	if i > 0 && h.holes[i-1].addr+h.holes[i-1].size == addr {
		h.holes[i-1].size += h.holes[i].size
		h.holes = append(h.holes[:i], h.holes[i+1:]...)
	}
	return 0
}

func (h *Heap) valid(addr int32) bool {
	return addr > 0 && int(addr) < len(h.words)
}

// Peek reads the word at addr
func (h *Heap) Peek(addr int32) int32 {
	if !h.valid(addr) {
		return UndefinedValue
	}
	return h.words[addr]
}

// Poke stores value at addr. It returns 0, or UndefinedValue when addr is
// outside the heap.
func (h *Heap) Poke(addr, value int32) int32 {
	if !h.valid(addr) {
		return UndefinedValue
	}
	h.words[addr] = value
	return 0
}

// Memset stores value in size words from dest. It returns 1 without
// writing anything when the range leaves the heap.
func (h *Heap) Memset(dest, value, size int32) int32 {
	if size < 0 || !h.valid(dest) || int(dest)+int(size) > len(h.words) {
		return 1
	}
	h.fill(dest, size, value)
	return 0
}

func (h *Heap) fill(addr, size, value int32) {
	for i := addr; i < addr+size; i++ {
		h.words[i] = value
	}
}

// Size returns the number of words the heap spans, the null word included
func (h *Heap) Size() int { return len(h.words) }

// Allocated returns the number of live allocations
func (h *Heap) Allocated() int { return len(h.allocations) }
