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

// List is a growable Value array.
type List struct {
	Header
	Elements []value.Value
}

func newList(v *VM, capacity int) *List {
	l := &List{Elements: make([]value.Value, 0, capacity)}
	l.kind = KindList
	if v != nil {
		l.classObj = v.listClass
		v.track(l)
	}
	return l
}

func (l *List) String() string { return "<list>" }

func (l *List) add(val value.Value) { l.Elements = append(l.Elements, val) }

// insert inserts val at index, which may equal len(Elements) to append.
func (l *List) insert(index int, val value.Value) {
	l.Elements = append(l.Elements, value.NullVal)
	copy(l.Elements[index+1:], l.Elements[index:])
	l.Elements[index] = val
}

// removeAt deletes and returns the element at index.
func (l *List) removeAt(index int) value.Value {
	v := l.Elements[index]
	copy(l.Elements[index:], l.Elements[index+1:])
	l.Elements = l.Elements[:len(l.Elements)-1]
	return v
}

// indexOf returns the lowest index of an element equal to val, or -1.
// Spec.md §9 flags the original's "index >= count - 1" unsigned-underflow
// bug on an empty sequence; this implementation uses signed int throughout
// and never evaluates count-1 as an unsigned quantity.
func (l *List) indexOf(val value.Value) int {
	for i, e := range l.Elements {
		if e.Equal(val) {
			return i
		}
	}
	return -1
}

// concat appends every element of other onto l (used by ADDELEM's
// concat mode and by the `+` built-in for two lists).
func (l *List) concat(other *List) {
	l.Elements = append(l.Elements, other.Elements...)
}

// repeat returns a new list containing l's elements repeated n times. Per
// spec.md §9's open question, repetition is treated as a shallow copy: the
// same Values (including object references) are duplicated across the
// repeated runs, not deep-cloned.
func (l *List) repeat(v *VM, n int) *List {
	out := newList(v, len(l.Elements)*max(n, 0))
	for i := 0; i < n; i++ {
		out.Elements = append(out.Elements, l.Elements...)
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
