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

// CompilerUpvalue is the compiler-produced descriptor telling CLOSURE how
// to capture each of a new closure's upvalues: either from a local slot in
// the enclosing frame (IsLocal) or by reusing an upvalue the enclosing
// closure already captured.
type CompilerUpvalue struct {
	IsLocal bool
	Index   int
}

// Closure pairs a compiled Fn with captured Upvalues. A "prototype closure"
// — the form a compiler stores in a constant table for CLOSURE to
// instantiate — carries CompilerUpvalues instead of live Upvalues; CLOSURE
// materializes a runtime closure with Upvalues populated and leaves the
// prototype's CompilerUpvalues attached for reference.
type Closure struct {
	Header
	Fn               *Fn
	Upvalues         []*Upvalue
	CompilerUpvalues []CompilerUpvalue
}

func newPrototypeClosure(fn *Fn, upvalDescs []CompilerUpvalue) *Closure {
	c := &Closure{Fn: fn, CompilerUpvalues: upvalDescs}
	c.kind = KindClosure
	return c
}

func newClosure(fn *Fn, upvalues []*Upvalue) *Closure {
	c := &Closure{Fn: fn, Upvalues: upvalues}
	c.kind = KindClosure
	return c
}

func (c *Closure) String() string { return "<closure " + c.Fn.String() + ">" }

// Upvalue is storage for one variable captured by one or more closures.
// Open upvalues reference a live slot in their owning fiber's stack by
// index rather than by raw pointer — per spec.md's own recommended
// re-architecture for movable stack buffers — and close by copying that
// slot's value inline and detaching from the fiber.
type Upvalue struct {
	Header
	fiber    *Fiber
	slot     int
	closed   value.Value
	open     bool
	nextOpen *Upvalue
}

func newOpenUpvalue(fiber *Fiber, slot int) *Upvalue {
	u := &Upvalue{fiber: fiber, slot: slot, open: true}
	u.kind = KindUpvalue
	return u
}

// Value returns the upvalue's current value, live from the owning fiber's
// stack while open, or from inline storage once closed.
func (u *Upvalue) Value() value.Value {
	if u.open {
		return u.fiber.stack[u.slot]
	}
	return u.closed
}

// SetValue writes through to the live stack slot while open, or to inline
// storage once closed.
func (u *Upvalue) SetValue(v value.Value) {
	if u.open {
		u.fiber.stack[u.slot] = v
		return
	}
	u.closed = v
}

func (u *Upvalue) String() string { return "<upvalue>" }
