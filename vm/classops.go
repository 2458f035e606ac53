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

// execClosure materializes a runtime Closure from the prototype Closure
// stored as a constant, capturing each upvalue per its CompilerUpvalue
// descriptor: IsLocal captures the enclosing frame's live stack slot,
// !IsLocal reuses an upvalue the enclosing closure already captured.
func (v *VM) execClosure(frame *CallFrame, fn *Fn, instr opcode.Instruction) error {
	a := instr.A()
	proto, ok := asObjSafe(v.constant(fn, instr.Bx())).(*Closure)
	if !ok {
		return v.runtimeError("CLOSURE constant is not a function prototype")
	}
	upvalues := make([]*Upvalue, len(proto.CompilerUpvalues))
	for i, desc := range proto.CompilerUpvalues {
		if desc.IsLocal {
			upvalues[i] = v.fiber.captureUpvalue(frame.stackStart + desc.Index)
		} else {
			upvalues[i] = frame.closure.Upvalues[desc.Index]
		}
	}
	closure := newClosure(proto.Fn, upvalues)
	v.track(closure)
	v.setRegVal(frame, a, value.ObjVal(closure))
	return nil
}

// execClass builds a new Class. Register A holds the superclass (Null
// means "inherit from Object") on entry and is overwritten with the new
// class; register A+1 holds the class's name as a String. sBx carries the
// declared field count, with -1 denoting a foreign class (spec.md §3's
// numFields invariant) — this operand layout is this repo's own choice,
// since spec.md does not fix CLASS's exact operand packing.
func (v *VM) execClass(frame *CallFrame, fn *Fn, instr opcode.Instruction) error {
	a := instr.A()
	numFields := int(instr.SBx())

	superVal := v.reg(frame, a)
	var super *Class
	if superVal.IsNull() {
		super = v.objectClass
	} else {
		var ok bool
		super, ok = asObjSafe(superVal).(*Class)
		if !ok {
			return v.runtimeError("superclass must be a class")
		}
	}
	if super.IsForeign() && numFields >= 0 {
		return v.runtimeError("a foreign class cannot be the superclass of a non-foreign class")
	}
	if numFields < 0 && super.NumFields > 0 {
		return v.runtimeError("a foreign class cannot inherit from a class with fields")
	}
	if numFields >= 0 && super.NumFields >= 0 && super.NumFields+numFields > 255 {
		return v.runtimeError("too many fields (255 max, including inherited)")
	}

	name, ok := asObjSafe(v.reg(frame, a+1)).(*String)
	if !ok {
		return v.runtimeError("class name must be a string")
	}

	if numFields < 0 {
		numFields = -1
	}
	class := newClass(name, super, numFields)
	class.inheritMethods(super)
	v.track(class)

	if class.IsForeign() && v.config.BindForeignClass != nil {
		class.allocate, class.finalize = v.config.BindForeignClass(v, fn.Module.String(), name.Value)
	}

	v.setRegVal(frame, a, value.ObjVal(class))
	return nil
}

// execMethod installs the method body in register A+1 onto the class in
// register A. sBx carries the method symbol, biased by one so its sign can
// mark a static method: the compiler emits symbol+1 for an instance method
// and -(symbol+1) for a static one. The body is either a Block closure or —
// for a foreign method — its signature String, resolved through the host's
// BindForeignMethod hook right here, at class-definition time.
func (v *VM) execMethod(frame *CallFrame, fn *Fn, instr opcode.Instruction) error {
	a := instr.A()
	sbx := int(instr.SBx())
	isStatic := sbx < 0
	if isStatic {
		sbx = -sbx
	}
	symbol := sbx - 1
	if symbol < 0 {
		return v.runtimeError("METHOD has no symbol")
	}

	class, ok := asObjSafe(v.reg(frame, a)).(*Class)
	if !ok {
		return v.runtimeError("METHOD receiver is not a class")
	}

	var method Method
	switch body := asObjSafe(v.reg(frame, a+1)).(type) {
	case *Closure:
		method = Method{Kind: MethodBlock, Block: body}
	case *String:
		if v.config.BindForeignMethod == nil {
			return v.runtimeError("no foreign method binder is configured")
		}
		foreign := v.config.BindForeignMethod(v, fn.Module.String(), class.String(), isStatic, body.Value)
		if foreign == nil {
			return v.runtimeError("could not bind foreign method '%s.%s'", class.String(), body.Value)
		}
		method = Method{Kind: MethodForeign, Foreign: foreign}
	default:
		return v.runtimeError("METHOD body is not a closure or foreign signature")
	}

	if isStatic {
		class.bindStaticMethod(symbol, method)
	} else {
		class.bindMethod(symbol, method)
	}
	return nil
}

// execConstruct allocates a bare Instance of the class currently in
// register A (or a Foreign, if the class is foreign) and replaces A with
// it, ready for a following CALLK to run its initializer body.
func (v *VM) execConstruct(frame *CallFrame, fn *Fn, instr opcode.Instruction) error {
	a := instr.A()
	class, ok := asObjSafe(v.reg(frame, a)).(*Class)
	if !ok {
		return v.runtimeError("CONSTRUCT receiver is not a class")
	}
	if class.IsForeign() {
		if class.allocate == nil {
			return v.runtimeError("foreign class %s has no allocator", class.String())
		}
		// Run <allocate> with register A as slot 0: the class on entry, the
		// allocated Foreign (via SetSlotNewForeign) on exit.
		f := v.fiber
		start := frame.stackStart + int(a)
		prevStart, prevLen := f.apiStart, f.apiLen
		f.apiStart, f.apiLen = start, 1
		err := class.allocate(v)
		f.apiStart, f.apiLen = prevStart, prevLen
		if err != nil {
			return v.runtimeError("%s", err.Error())
		}
		if f.HasError() {
			return v.registerRuntimeError()
		}
		return nil
	}
	inst := newInstance(class)
	v.track(inst)
	v.setRegVal(frame, a, value.ObjVal(inst))
	return nil
}

// execImportModule looks up a module previously registered with the VM
// (via NewModule, since this repo's scope excludes a compiler — see
// SPEC_FULL.md) by the name constant at Bx, records it for IMPORTVAR, and
// writes null into register A. Re-importing an already-loaded module is a no-op
// success per spec.md §4.9 step 2.
func (v *VM) execImportModule(frame *CallFrame, fn *Fn, instr opcode.Instruction) error {
	a := instr.A()
	nameVal, ok := asObjSafe(v.constant(fn, instr.Bx())).(*String)
	if !ok {
		return v.runtimeError("IMPORTMODULE name constant is not a string")
	}
	name := nameVal.Value
	if resolved := v.config.ResolveModule; resolved != nil {
		if r := resolved(v, fn.Module.String(), name); r != "" {
			name = r
		}
	}
	mod, ok := v.modules.get(name)
	if !ok {
		if v.config.LoadModule == nil {
			return v.runtimeError("module %q not found", name)
		}
		result := v.config.LoadModule(v, name)
		if result.Source == "" {
			return v.runtimeError("module %q not found", name)
		}
		return v.runtimeError("module %q has source but no compiler is wired into this build", name)
	}
	v.lastImportedModule = mod
	v.setRegVal(frame, a, value.NullVal)
	return nil
}

// execImportVar pulls a variable by name (constant at Bx) out of the most
// recently imported module (spec.md §4.9's IMPORTVAR).
func (v *VM) execImportVar(frame *CallFrame, instr opcode.Instruction) error {
	a := instr.A()
	nameVal, ok := asObjSafe(v.currentFn(frame).Constants[instr.Bx()]).(*String)
	if !ok {
		return v.runtimeError("IMPORTVAR name constant is not a string")
	}
	if v.lastImportedModule == nil {
		return v.runtimeError("no module has been imported yet")
	}
	val, found := v.lastImportedModule.Variable(nameVal.Value)
	if !found {
		return v.runtimeError("module %q has no variable %q", v.lastImportedModule.String(), nameVal.Value)
	}
	v.setRegVal(frame, a, val)
	return nil
}

func (v *VM) currentFn(frame *CallFrame) *Fn { return frame.closure.Fn }
