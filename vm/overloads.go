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

// operatorSignature turns an operator symbol plus its argument count into
// the same signature string a user writes in a class body, e.g. "+" with
// one argument becomes "+(_)" and unary "-" stays "-". The two subscript
// symbols are irregular (the placeholder already lives inside the bracket
// pair) so they are special-cased to the exact canonical forms spec.md
// §4.3 lists: "[_]" and "[_]=(_)".
func operatorSignature(symbol string, argCount int) string {
	switch symbol {
	case "[]":
		return "[_]"
	case "[]=":
		return "[_]=(_)"
	}
	if argCount == 0 {
		return symbol
	}
	sig := symbol + "("
	for i := 0; i < argCount; i++ {
		if i > 0 {
			sig += ","
		}
		sig += "_"
	}
	return sig + ")"
}

// tryOverload is the fast path's fallback when an arithmetic, relational,
// unary, subscript, or iteration opcode's left operand is not handled by the
// built-in numeric/string/collection cases (spec.md §4.3): receiver's class
// method table is searched for the operator's canonical symbol. Primitive
// and Foreign overloads complete synchronously; a MethodBlock overload
// reserves scratch registers at the current instruction's stack-top
// watermark and pushes a real call frame, exactly as CALLK would, so a
// user-defined `+(_)` etc. written in ordinary bytecode dispatches
// correctly (spec.md §8 scenario 6) instead of only the rarer
// engine/foreign-implemented case.
//
// frame/destReg identify where the opcode wants its result: destReg is a
// register index in frame (the frame executing the opcode, i.e. the future
// caller of any pushed Block overload). handled reports whether an operator
// method was found at all; when handled is true and err is errFiberSwitched,
// the caller must return immediately without writing destReg (dispatchMethod
// pushed a frame and will deliver the result itself via RETURN).
func (v *VM) tryOverload(frame *CallFrame, destReg uint8, receiver value.Value, symbol string, args []value.Value) (handled bool, err error) {
	class := v.classOfValue(receiver)
	symbolID := v.methodNames.Find(operatorSignature(symbol, len(args)))
	if symbolID < 0 {
		return false, nil
	}
	method, definingClass, ok := class.lookupMethod(symbolID)
	if !ok {
		return false, nil
	}
	switch method.Kind {
	case MethodPrimitive, MethodFunctionCall:
		full := append([]value.Value{receiver}, args...)
		result, ok := method.Primitive(v, full)
		if !ok {
			if v.pendingFatal != nil {
				err := v.pendingFatal
				v.pendingFatal = nil
				return true, err
			}
			if v.fiber != nil && v.fiber.HasError() {
				return true, v.registerRuntimeError()
			}
			return true, v.runtimeError("operator overload for '%s' failed", symbol)
		}
		v.setRegVal(frame, destReg, result)
		return true, nil
	case MethodForeign:
		return true, v.runtimeError("foreign operator overloads are not supported by the fast-path opcodes")
	case MethodBlock:
		return true, v.dispatchOverloadBlock(frame, destReg, receiver, args, method.Block, definingClass)
	default:
		return false, nil
	}
}

// dispatchOverloadBlock pushes a call frame for a bytecode-bodied operator
// overload, reserving scratch registers starting at the watermark recorded
// for the currently-executing instruction (spec.md §4.1's stackTop table /
// §4.3's "reserves maxSlots scratch starting at the per-instruction
// watermark"). The receiver lands at the reserved base register (matching
// CALLK's "R[A] holds the receiver" layout) with args immediately after.
func (v *VM) dispatchOverloadBlock(frame *CallFrame, destReg uint8, receiver value.Value, args []value.Value, block *Closure, definingClass *Class) error {
	watermark := frame.closure.Fn.stackTopAt(frame.rip - 1)
	base := frame.stackStart + watermark
	v.fiber.ensureStack(base + block.Fn.MaxSlots)

	v.fiber.stack[base] = receiver
	for i, arg := range args {
		v.fiber.stack[base+1+i] = arg
	}
	for i := len(args) + 1; i < block.Fn.Arity+1; i++ {
		v.fiber.stack[base+i] = value.NullVal
	}

	v.fiber.frames = append(v.fiber.frames, CallFrame{
		closure:       block,
		stackStart:    base,
		rip:           0,
		returnReg:     int(destReg),
		definingClass: definingClass,
	})
	return errFiberSwitched
}
