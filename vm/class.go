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

// MethodKind tags which of the five method representations a Method holds.
type MethodKind uint8

const (
	// MethodNone marks an unbound symbol slot in a class's method table.
	MethodNone MethodKind = iota
	// MethodPrimitive is implemented directly by the engine.
	MethodPrimitive
	// MethodFunctionCall delegates to the primitive call path; used for
	// call(...) on closures and bound methods.
	MethodFunctionCall
	// MethodBlock is ordinary bytecode: a compiled Closure.
	MethodBlock
	// MethodForeign is implemented by the host.
	MethodForeign
)

// Primitive is an engine-implemented method. args[0] is the receiver;
// args[1:] are the call arguments. Returning ok=false signals that the
// primitive already performed a fiber switch, pushed a new call frame, or
// set a runtime error — the interpreter must not overwrite the result
// register in that case and must re-check vm.fiber before continuing.
type Primitive func(v *VM, args []value.Value) (result value.Value, ok bool)

// ForeignFn is a host-implemented method, bound through Config's
// BindForeignMethod/BindForeignClass hooks (spec.md §6).
type ForeignFn func(v *VM) error

// Method is the tagged variant stored at each symbol slot of a class's
// method table (spec.md "Method ∈ {None, Primitive(fn), FunctionCall,
// Block(closure), Foreign(fn)}").
type Method struct {
	Kind      MethodKind
	Primitive Primitive
	Block     *Closure
	Foreign   ForeignFn
}

// Class is both a user-defined class and the runtime representation of a
// built-in type (Num, String, List, ...). No metaclass object is allocated
// for a Class; its static methods are kept in StaticMethods instead.
type Class struct {
	Header
	Name       *String
	Super      *Class
	NumFields  int // -1 denotes a foreign class
	Methods    []Method
	Attributes value.Value
	IsMeta     bool

	// allocate/finalize are the host hooks of a foreign class, resolved
	// through Config.BindForeignClass when the CLASS opcode runs. finalize
	// is invoked by the sweeper just before a dead Foreign is unlinked.
	allocate ForeignFn
	finalize func(data []byte)

	// StaticMethods holds methods declared with the `static` keyword,
	// dispatched when the receiver of a CALLK is the Class value itself
	// rather than an instance. This repo collapses spec's per-class
	// metaclass object into this side table instead of allocating a real
	// metaclass Class for every declared class (see DESIGN.md's Open
	// Question decision) — statics are not inherited, matching the
	// language's own semantics.
	StaticMethods []Method
}

func newClass(name *String, super *Class, numFields int) *Class {
	c := &Class{Name: name, Super: super, NumFields: numFields, Attributes: value.NullVal}
	c.kind = KindClass
	return c
}

// IsForeign reports whether c was declared as a foreign class.
func (c *Class) IsForeign() bool { return c.NumFields == -1 }

// bindMethod installs method at symbol, growing the method table as needed.
func (c *Class) bindMethod(symbol int, m Method) {
	for len(c.Methods) <= symbol {
		c.Methods = append(c.Methods, Method{Kind: MethodNone})
	}
	c.Methods[symbol] = m
}

// lookupMethod walks c and its superclasses for a bound method at symbol,
// returning both the method and the class that defines it (needed so a
// CALLSUPERK issued from within that method starts its own search one level
// further up, rather than at the receiver's runtime class).
func (c *Class) lookupMethod(symbol int) (Method, *Class, bool) {
	for cls := c; cls != nil; cls = cls.Super {
		if symbol < len(cls.Methods) && cls.Methods[symbol].Kind != MethodNone {
			return cls.Methods[symbol], cls, true
		}
	}
	return Method{}, nil, false
}

// inheritMethods copies the superclass's method table into c by sequential
// index — method symbols are dense and shared across all classes (spec.md
// §4.10), so a flat copy is sufficient and preserves override semantics:
// any slot c already bound (from a class body processed before the copy)
// is left alone by the caller, which only copies slots c hasn't filled.
func (c *Class) inheritMethods(super *Class) {
	if len(c.Methods) < len(super.Methods) {
		grown := make([]Method, len(super.Methods))
		copy(grown, c.Methods)
		c.Methods = grown
	}
	for i, m := range super.Methods {
		if m.Kind != MethodNone && c.Methods[i].Kind == MethodNone {
			c.Methods[i] = m
		}
	}
}

// bindStaticMethod installs method at symbol in c's static table, growing it
// as needed.
func (c *Class) bindStaticMethod(symbol int, m Method) {
	for len(c.StaticMethods) <= symbol {
		c.StaticMethods = append(c.StaticMethods, Method{Kind: MethodNone})
	}
	c.StaticMethods[symbol] = m
}

// lookupStaticMethod finds a static method bound directly on c. Statics are
// not inherited between classes.
func (c *Class) lookupStaticMethod(symbol int) (Method, bool) {
	if symbol < len(c.StaticMethods) && c.StaticMethods[symbol].Kind != MethodNone {
		return c.StaticMethods[symbol], true
	}
	return Method{}, false
}

func (c *Class) String() string {
	if c.Name != nil {
		return c.Name.Value
	}
	return "<class>"
}
