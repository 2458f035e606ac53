// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

package vm

import "github.com/wrenscript/wren/value"

// FiberState distinguishes how a fiber is being run, which governs error
// propagation (spec.md §4.8): when a fiber whose state is Try aborts, its
// caller receives the error instead of it propagating further.
type FiberState uint8

const (
	FiberRoot  FiberState = iota // the fiber interpret() was first called with
	FiberOther                   // called or transferred into, errors propagate past it
	FiberTry                     // called via try(); its error is delivered to its caller
)

// CallFrame is one activation record on a fiber's call stack.
type CallFrame struct {
	closure   *Closure
	stackStart int // index into the fiber's value stack
	rip        int // instruction pointer: index of the next instruction to execute
	returnReg  int // destination register in the caller, or -1 for "top of stack"

	// definingClass is the class whose method table this frame's closure
	// was found in. CALLSUPERK starts its lookup at definingClass.Super
	// rather than the receiver's runtime class, so an override can still
	// reach the implementation it shadowed.
	definingClass *Class
}

// Fiber is a cooperative coroutine: its own value stack, call-frame stack,
// open-upvalue list, and error slot, chained to the fiber that resumed it.
type Fiber struct {
	Header

	stack      []value.Value
	frames     []CallFrame
	openUpvals *Upvalue // sorted by decreasing slot index

	caller *Fiber
	Error  value.Value
	state  FiberState

	// apiStart/apiLen delimit the slot window the host API and foreign
	// methods operate on: slot i is stack[apiStart+i]. Both are stack
	// indices, not pointers, so a stack growth never invalidates them
	// (spec.md §3's apiStackTop, index-based per §9's re-architecture note).
	apiStart int
	apiLen   int

	// lastCallReg is an absolute index into this fiber's stack: the
	// register a pending CALLK in this fiber is waiting to deliver its
	// result (or a propagated error) to. It stays valid across the call
	// because fiber stacks only ever grow (geometrically), never shrink,
	// so an index recorded before the call remains addressable after it
	// (spec.md §9 Open Questions).
	lastCallReg int
}

func newFiber(v *VM, closure *Closure) *Fiber {
	size := 1
	if closure != nil {
		size = nextPow2(closure.Fn.MaxSlots + 1)
	}
	f := &Fiber{
		stack:       make([]value.Value, size),
		Error:       value.NullVal,
		lastCallReg: -1,
	}
	f.kind = KindFiber
	if v != nil {
		f.classObj = v.fiberClass
		v.track(f)
	}
	if closure != nil {
		f.frames = append(f.frames, CallFrame{closure: closure, stackStart: 0, rip: 0, returnReg: -1})
	}
	return f
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (f *Fiber) String() string { return "<fiber>" }

// HasError reports whether the fiber's error slot is a non-null value.
func (f *Fiber) HasError() bool { return !f.Error.IsNull() }

// ensureStack grows the value stack geometrically (next power of two) to
// fit at least n slots, preserving every live value. Because Go slices
// relocate on growth, every interior reference into the stack in this
// implementation is a slot *index* (frame.stackStart, api stack top, open
// upvalue slot) rather than a raw pointer, so growth never needs the
// pointer-patching spec.md §5 describes for pointer-based hosts.
func (f *Fiber) ensureStack(n int) {
	if n <= len(f.stack) {
		return
	}
	newSize := nextPow2(n)
	grown := make([]value.Value, newSize)
	copy(grown, f.stack)
	for i := len(f.stack); i < newSize; i++ {
		grown[i] = value.NullVal
	}
	f.stack = grown
}

func (f *Fiber) currentFrame() *CallFrame {
	if len(f.frames) == 0 {
		return nil
	}
	return &f.frames[len(f.frames)-1]
}

// captureUpvalue returns the existing open upvalue for slot, or inserts a
// new one in the sorted (decreasing-slot) position — the common case (the
// most recently pushed local) is O(1); reusing an older slot is O(k).
func (f *Fiber) captureUpvalue(slot int) *Upvalue {
	var prev *Upvalue
	cur := f.openUpvals
	for cur != nil && cur.slot > slot {
		prev = cur
		cur = cur.nextOpen
	}
	if cur != nil && cur.slot == slot {
		return cur
	}
	u := newOpenUpvalue(f, slot)
	u.nextOpen = cur
	if prev == nil {
		f.openUpvals = u
	} else {
		prev.nextOpen = u
	}
	return u
}

// closeUpvalues closes every open upvalue at or above stack index last,
// copying its referent into inline storage and unlinking it from the
// fiber's open list (spec.md §4.4).
func (f *Fiber) closeUpvalues(last int) {
	for f.openUpvals != nil && f.openUpvals.slot >= last {
		u := f.openUpvals
		u.closed = f.stack[u.slot]
		u.open = false
		f.openUpvals = u.nextOpen
		u.nextOpen = nil
	}
}
