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

// execCall implements CALLK: register A holds the receiver and its
// arguments (A..A+vB-1, vB including the receiver itself); vC is the method
// symbol. A Class receiver resolves against its static method table instead
// of classOfValue, since this repo keeps statics on the class itself rather
// than allocating a distinct metaclass object (see class.go).
func (v *VM) execCall(frame *CallFrame, fn *Fn, instr opcode.Instruction) error {
	a := instr.A()
	argCount := int(instr.VB())
	symbol := int(instr.VC())

	receiver := v.reg(frame, a)
	method, definingClass, ok := v.resolveCall(receiver, symbol)
	if !ok {
		return v.runtimeError("%s does not implement '%s'", v.classOfValue(receiver).String(), v.methodNames.Name(symbol))
	}
	return v.dispatchMethod(frame, a, argCount, method, definingClass)
}

// execSuperCall implements CALLSUPERK: identical operand layout to CALLK,
// but the search starts at the superclass of the class that defined the
// currently executing method, not at the receiver's runtime class — so an
// override can still reach the implementation it shadowed.
func (v *VM) execSuperCall(frame *CallFrame, fn *Fn, instr opcode.Instruction) error {
	a := instr.A()
	argCount := int(instr.VB())
	symbol := int(instr.VC())

	if frame.definingClass == nil || frame.definingClass.Super == nil {
		return v.runtimeError("no superclass method for '%s'", v.methodNames.Name(symbol))
	}
	method, definingClass, ok := frame.definingClass.Super.lookupMethod(symbol)
	if !ok {
		return v.runtimeError("superclass does not implement '%s'", v.methodNames.Name(symbol))
	}
	return v.dispatchMethod(frame, a, argCount, method, definingClass)
}

// resolveCall looks a method symbol up against receiver's dispatch table: a
// Class receiver consults its own static methods; anything else consults
// its runtime class's instance methods.
func (v *VM) resolveCall(receiver value.Value, symbol int) (Method, *Class, bool) {
	if class, ok := asObjSafe(receiver).(*Class); ok {
		if m, ok := class.lookupStaticMethod(symbol); ok {
			return m, class, true
		}
		return Method{}, nil, false
	}
	return v.classOfValue(receiver).lookupMethod(symbol)
}

// dispatchMethod runs method against the argument window starting at
// register base (receiver inclusive), shared by CALLK and CALLSUPERK.
func (v *VM) dispatchMethod(frame *CallFrame, base uint8, argCount int, method Method, definingClass *Class) error {
	switch method.Kind {
	case MethodPrimitive, MethodFunctionCall:
		start := frame.stackStart + int(base)
		v.fiber.lastCallReg = start
		args := v.fiber.stack[start : start+argCount]
		result, ok := method.Primitive(v, args)
		if !ok {
			if v.pendingFatal != nil {
				err := v.pendingFatal
				v.pendingFatal = nil
				return err
			}
			if v.fiber != nil && v.fiber.HasError() {
				return v.registerRuntimeError()
			}
			// The primitive already switched fibers or pushed a frame; let
			// the caller re-read vm.fiber.
			return errFiberSwitched
		}
		v.setRegVal(frame, base, result)
		return nil

	case MethodForeign:
		if method.Foreign == nil {
			return v.runtimeError("foreign method has no binding")
		}
		// The argument window doubles as the foreign call's slot array;
		// slot 0 is both the receiver on entry and the single return slot
		// on exit (spec.md §4.2's Foreign call rule).
		f := v.fiber
		start := frame.stackStart + int(base)
		prevStart, prevLen := f.apiStart, f.apiLen
		f.apiStart, f.apiLen = start, argCount
		err := method.Foreign(v)
		f.apiStart, f.apiLen = prevStart, prevLen
		if err != nil {
			return v.runtimeError("%s", err.Error())
		}
		if f.HasError() {
			return v.registerRuntimeError()
		}
		return nil

	case MethodBlock:
		closure := method.Block
		newStart := frame.stackStart + int(base)
		v.fiber.ensureStack(newStart + closure.Fn.MaxSlots)
		for i := argCount; i < closure.Fn.Arity+1; i++ {
			v.fiber.stack[newStart+i] = value.NullVal
		}
		v.fiber.frames = append(v.fiber.frames, CallFrame{
			closure:       closure,
			stackStart:    newStart,
			rip:           0,
			returnReg:     int(base),
			definingClass: definingClass,
		})
		return errFiberSwitched

	default:
		return v.runtimeError("method is not callable")
	}
}

// execReturn implements RETURN: hasValue selects between R[A] and null as
// the result (spec.md §4.1's B operand); moduleEnd marks the return from a
// module body closure (C operand), which makes that module the target of
// subsequent IMPORTVAR instructions.
func (v *VM) execReturn(frame *CallFrame, a uint8, hasValue, moduleEnd bool) error {
	if moduleEnd {
		v.lastImportedModule = frame.closure.Fn.Module
	}
	result := value.NullVal
	if hasValue {
		result = v.reg(frame, a)
	}
	f := v.fiber

	f.closeUpvalues(frame.stackStart)
	f.frames = f.frames[:len(f.frames)-1]

	if len(f.frames) == 0 {
		caller := f.caller
		f.caller = nil
		if caller == nil {
			// Fiber completed with nobody to resume: park the result in
			// slot 0 so the host (Interpret, Call) can read it back.
			f.stack[0] = result
			f.apiStart, f.apiLen = 0, 1
			v.fiber = nil
			return errFiberSwitched
		}
		v.fiber = caller
		if caller.lastCallReg >= 0 {
			caller.stack[caller.lastCallReg] = result
		}
		return errFiberSwitched
	}

	callerFrame := f.currentFrame()
	if frame.returnReg >= 0 {
		f.stack[callerFrame.stackStart+frame.returnReg] = result
	}
	return errFiberSwitched
}

// runFiberCall implements Fiber.call/Fiber.call(_)/Fiber.transfer family:
// fromFiber's lastCallReg is recorded so a later RETURN on the target (or a
// transfer back) knows where to deliver its result, then control passes to
// target. asTry marks the transfer as catching: an abort in target (or
// anything it calls into) is delivered back here instead of propagating.
func (v *VM) runFiberCall(target *Fiber, arg value.Value, asTry bool, isTransfer bool) (value.Value, bool) {
	if target.HasError() {
		v.fiber.Error = value.ObjVal(newString(v, "cannot "+callVerb(isTransfer)+" an aborted fiber"))
		return value.Value{}, false
	}
	if len(target.frames) == 0 {
		v.fiber.Error = value.ObjVal(newString(v, "cannot "+callVerb(isTransfer)+" a finished fiber"))
		return value.Value{}, false
	}

	from := v.fiber
	if !isTransfer {
		target.caller = from
	}
	if asTry {
		target.state = FiberTry
	} else if target.state != FiberRoot {
		target.state = FiberOther
	}

	// Deliver arg into the slot target's own pending call (if any) expects,
	// or — on a fiber that has never run — into its entry closure's first
	// parameter register, if it declares one.
	if target.lastCallReg >= 0 {
		target.stack[target.lastCallReg] = arg
	} else if len(target.frames) == 1 && target.frames[0].rip == 0 {
		entry := target.frames[0]
		if entry.closure.Fn.Arity >= 1 {
			target.stack[entry.stackStart+1] = arg
		}
	}

	// from.lastCallReg was already recorded by dispatchMethod as the
	// register this Fiber.call/transfer itself occupies; when target later
	// returns, yields, or aborts, that is where its result lands.
	v.fiber = target
	return value.Value{}, false
}

func callVerb(isTransfer bool) string {
	if isTransfer {
		return "transfer to"
	}
	return "call"
}

// runFiberYield implements Fiber.yield/Fiber.yield(_): control returns to
// the caller that called/transferred into the running fiber, delivering
// value as that call's result, leaving this fiber's frames intact so a
// later call resumes exactly where it left off.
func (v *VM) runFiberYield(value_ value.Value) (value.Value, bool) {
	from := v.fiber
	caller := from.caller
	from.caller = nil
	if caller == nil {
		v.fiber = nil
		return value.Value{}, false
	}
	v.fiber = caller
	if caller.lastCallReg >= 0 {
		caller.stack[caller.lastCallReg] = value_
	}
	return value.Value{}, false
}

// The primitives below are bound onto fiberClass/fiberClass.StaticMethods by
// bindPrimitives (primitives.go); they are the public surface Fiber.call,
// Fiber.yield, Fiber.transfer, Fiber.try, and Fiber.abort compile down to.

func primitiveFiberNew(v *VM, args []value.Value) (value.Value, bool) {
	closure, ok := asObjSafe(args[1]).(*Closure)
	if !ok {
		v.fiber.Error = value.ObjVal(newString(v, "Fiber.new(_) expects a function"))
		return value.Value{}, false
	}
	return value.ObjVal(newFiber(v, closure)), true
}

func primitiveFiberCall0(v *VM, args []value.Value) (value.Value, bool) {
	target, ok := asObjSafe(args[0]).(*Fiber)
	if !ok {
		return value.Value{}, false
	}
	return v.runFiberCall(target, value.NullVal, false, false)
}

func primitiveFiberCall1(v *VM, args []value.Value) (value.Value, bool) {
	target, ok := asObjSafe(args[0]).(*Fiber)
	if !ok {
		return value.Value{}, false
	}
	return v.runFiberCall(target, args[1], false, false)
}

func primitiveFiberTry(v *VM, args []value.Value) (value.Value, bool) {
	target, ok := asObjSafe(args[0]).(*Fiber)
	if !ok {
		return value.Value{}, false
	}
	return v.runFiberCall(target, value.NullVal, true, false)
}

func primitiveFiberTransfer(v *VM, args []value.Value) (value.Value, bool) {
	target, ok := asObjSafe(args[0]).(*Fiber)
	if !ok {
		return value.Value{}, false
	}
	return v.runFiberCall(target, args[1], false, true)
}

func primitiveFiberYield0(v *VM, args []value.Value) (value.Value, bool) {
	return v.runFiberYield(value.NullVal)
}

func primitiveFiberYield1(v *VM, args []value.Value) (value.Value, bool) {
	return v.runFiberYield(args[1])
}

// primitiveFiberAbort sets the current fiber's error to the argument value
// as-is — abort("oops") propagates the string, but any value works as an
// error. Aborting with null is a no-op, matching the language's own rule.
func primitiveFiberAbort(v *VM, args []value.Value) (value.Value, bool) {
	if args[1].IsNull() {
		return value.NullVal, true
	}
	v.fiber.Error = args[1]
	if err := v.registerRuntimeError(); err != nil && err != errFiberSwitched {
		v.pendingFatal = err
	}
	return value.Value{}, false
}

func primitiveFiberIsDone(v *VM, args []value.Value) (value.Value, bool) {
	f, ok := asObjSafe(args[0]).(*Fiber)
	if !ok {
		return value.Value{}, false
	}
	return value.BoolVal(len(f.frames) == 0 || f.HasError()), true
}

func primitiveFiberCurrent(v *VM, args []value.Value) (value.Value, bool) {
	return value.ObjVal(v.fiber), true
}
