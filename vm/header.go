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

// Package vm implements the register-based bytecode interpreter: the heap
// object model, the tri-color mark-sweep collector, fibers, modules, and the
// host-embeddable slot API. It is grounded throughout on the teacher's
// probe-lang/lang/vm package — a simpler, gas-metered flat register VM for a
// sibling language — generalized from 64-bit-word registers and a single
// gas-priced opcode switch into method dispatch over value.Value, classes,
// closures, and cooperative fibers.
package vm

import "github.com/wrenscript/wren/value"

// Kind tags the concrete shape of a heap object, mirroring spec's object
// header "type" field.
type Kind uint8

const (
	KindClass Kind = iota
	KindClosure
	KindFiber
	KindFn
	KindForeign
	KindInstance
	KindList
	KindMap
	KindMapEntry
	KindModule
	KindRange
	KindString
	KindUpvalue
)

func (k Kind) String() string {
	switch k {
	case KindClass:
		return "Class"
	case KindClosure:
		return "Closure"
	case KindFiber:
		return "Fiber"
	case KindFn:
		return "Fn"
	case KindForeign:
		return "Foreign"
	case KindInstance:
		return "Instance"
	case KindList:
		return "List"
	case KindMap:
		return "Map"
	case KindMapEntry:
		return "MapEntry"
	case KindModule:
		return "Module"
	case KindRange:
		return "Range"
	case KindString:
		return "String"
	case KindUpvalue:
		return "Upvalue"
	default:
		return "Unknown"
	}
}

// Header is embedded in every heap object. It carries the GC color bit, the
// back-pointer to the object's runtime class (nil for Module, Upvalue and
// Closure), and the intrusive allocation-list link that lets
// the collector sweep without a separate object registry.
type Header struct {
	kind     Kind
	isDark   bool
	classObj *Class
	next     Object
}

// Object is implemented by every heap-allocated value. It extends
// value.HeapObj (the leaf interface the value package depends on) with the
// header accessor the GC and class-resolution logic need.
type Object interface {
	value.HeapObj
	header() *Header
}

func (h *Header) ObjType() string { return h.kind.String() }
func (h *Header) header() *Header { return h }

// classOf returns the class stored in an object's header. Every Object
// carries its class there except Module and Upvalue, which are never visible
// to script-level class introspection, and Closure, whose header class is
// nil and which VM.classOfValue resolves to the Fn class.
func classOf(o Object) *Class {
	return o.header().classObj
}
