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

import (
	"github.com/wrenscript/wren/opcode"
	"github.com/wrenscript/wren/value"
)

// This file is the compiler-facing construction surface: a source-to-
// bytecode compiler is an external collaborator (spec.md §1), so everything
// it needs to assemble — modules, function prototypes, closures, constant
// values, method symbols — is exported here, and nowhere else.

// NewModule creates an empty module named name and registers it with the
// VM so imports and the variable API can find it. An empty name is
// reserved for the core module and rejected.
func (v *VM) NewModule(name string) *Module {
	if name == "" {
		return nil
	}
	m := newModule(newString(v, name))
	v.track(m)
	v.modules.put(name, m)
	return m
}

// FnProto carries the compiler-produced description of one function.
type FnProto struct {
	Module      *Module
	MaxSlots    int
	Arity       int
	NumUpvalues int
	Constants   []value.Value
	Code        []opcode.Instruction

	Name        string
	SourceLines []int
	StackTop    []int
}

// NewFn assembles a function prototype from a compiled description. A nil
// Module attaches the function to the core module.
func (v *VM) NewFn(proto FnProto) *Fn {
	module := proto.Module
	if module == nil {
		module = v.coreModule
	}
	fn := newFn(module, proto.MaxSlots, proto.Arity, proto.NumUpvalues, proto.Constants, proto.Code)
	fn.Debug.Name = proto.Name
	fn.Debug.SourceLines = proto.SourceLines
	fn.Debug.StackTop = proto.StackTop
	v.track(fn)
	return fn
}

// NewClosure wraps fn in a closure with no captured upvalues — the form
// every module body and non-capturing function takes.
func (v *VM) NewClosure(fn *Fn) *Closure {
	c := newClosure(fn, nil)
	v.track(c)
	return c
}

// NewPrototypeClosure wraps fn with the upvalue-capture descriptors the
// CLOSURE opcode replays at runtime; the result belongs in an enclosing
// function's constant table.
func (v *VM) NewPrototypeClosure(fn *Fn, descs []CompilerUpvalue) *Closure {
	c := newPrototypeClosure(fn, descs)
	v.track(c)
	return c
}

// NewStringValue interns s as a String constant value.
func (v *VM) NewStringValue(s string) value.Value {
	return value.ObjVal(newString(v, s))
}

// NewListValue builds a List constant holding elems.
func (v *VM) NewListValue(elems ...value.Value) value.Value {
	l := newList(v, len(elems))
	l.Elements = append(l.Elements, elems...)
	return value.ObjVal(l)
}

// NewMapValue builds a Map constant from alternating key/value pairs.
// Unhashable keys are a compiler bug and panic.
func (v *VM) NewMapValue(pairs ...value.Value) value.Value {
	m := newMap(v)
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := m.Set(pairs[i], pairs[i+1]); err != nil {
			panic("vm: unhashable key in map constant")
		}
	}
	return value.ObjVal(m)
}

// MethodSymbol interns a method signature in the VM-global symbol table and
// returns its dense index, for CALLK/CALLSUPERK/METHOD operands.
func (v *VM) MethodSymbol(signature string) int {
	return v.methodNames.Ensure(signature)
}

// DeclareVariable declares (or redefines) a module-level variable and
// returns its slot for GETGLOBAL/SETGLOBAL operands.
func (m *Module) DeclareVariable(name string, val value.Value) int {
	return m.declareVariable(name, val)
}

// FindVariable returns the slot of a declared module variable, or -1.
func (m *Module) FindVariable(name string) int {
	return m.findVariable(name)
}
