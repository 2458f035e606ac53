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
	"errors"
	"fmt"

	"github.com/wrenscript/wren/opcode"
	"github.com/wrenscript/wren/value"
)

// errFiberSwitched is a sentinel execute() returns to tell stepFiber that
// vm.fiber already changed (a call, return, or fiber primitive ran) and the
// hot locals must be reloaded rather than advancing the old frame.
var errFiberSwitched = errors.New("vm: fiber switched")

// stepFiber fetches, decodes, and executes exactly one instruction on the
// current fiber's current frame (spec.md §4.2's "STORE_FRAME/LOAD_FRAME").
// It returns a non-nil error only for an unhandled runtime error that
// unwound every caller (see runtimeError).
func (v *VM) stepFiber() error {
	f := v.fiber
	if f == nil {
		return nil
	}
	frame := f.currentFrame()
	if frame == nil {
		// The fiber's last frame already returned (handled in execReturn);
		// nothing left to step for a fiber with no frames.
		v.fiber = nil
		return nil
	}

	// Collect between instructions, never mid-instruction: every live value
	// is reachable from the fiber, modules, handles, or temp roots at an
	// instruction boundary, so a partially built object can never be lost
	// here (spec.md §4.7's allocation-point trigger, deferred to the next
	// boundary — safe because nothing in Go dangles in between).
	v.maybeCollect(v.config.DebugStressGC)

	fn := frame.closure.Fn
	if frame.rip >= len(fn.Code) {
		return v.runtimeError("%s", "ip ran past end of function code")
	}
	instr := fn.Code[frame.rip]
	frame.rip++

	err := v.execute(frame, fn, instr)
	if err != nil && err != errFiberSwitched {
		return v.runtimeError("%s", err.Error())
	}
	return nil
}

func (v *VM) reg(frame *CallFrame, i uint8) value.Value {
	return v.fiber.stack[frame.stackStart+int(i)]
}

func (v *VM) setRegVal(frame *CallFrame, i uint8, val value.Value) {
	v.fiber.stack[frame.stackStart+int(i)] = val
}

func (v *VM) constant(fn *Fn, i uint32) value.Value {
	if int(i) >= len(fn.Constants) {
		return value.NullVal
	}
	return fn.Constants[i]
}

// constantCopy returns the constant at index i, shallow-copying List and Map
// constants so runtime mutation of the loaded value cannot poison the
// constant table (spec.md §4.1's LOADK rule).
func (v *VM) constantCopy(fn *Fn, i uint32) value.Value {
	val := v.constant(fn, i)
	switch obj := asObjSafe(val).(type) {
	case *List:
		cp := newList(v, len(obj.Elements))
		cp.Elements = append(cp.Elements, obj.Elements...)
		return value.ObjVal(cp)
	case *Map:
		cp := newMap(v)
		for idx := range obj.entries {
			e := &obj.entries[idx]
			if e.isOccupied() {
				// Keys in a constant map already passed validateKey when the
				// constant was built, so Set cannot fail here.
				_ = cp.Set(e.Key, e.Value)
			}
		}
		return value.ObjVal(cp)
	}
	return val
}

// execute dispatches one decoded instruction, per spec.md §4.2.
func (v *VM) execute(frame *CallFrame, fn *Fn, instr opcode.Instruction) error {
	op := instr.Op()
	a := instr.A()

	switch op {
	case opcode.LOADK:
		v.setRegVal(frame, a, v.constantCopy(fn, instr.Bx()))

	case opcode.LOADNULL:
		v.setRegVal(frame, a, value.NullVal)

	case opcode.LOADBOOL:
		v.setRegVal(frame, a, value.BoolVal(instr.B() != 0))
		if instr.C() != 0 {
			frame.rip++
		}

	case opcode.MOVE:
		v.setRegVal(frame, a, v.reg(frame, uint8(instr.B())))

	case opcode.GETGLOBAL:
		idx := int(instr.Bx())
		if idx < len(fn.Module.Variables) {
			v.setRegVal(frame, a, fn.Module.Variables[idx])
		} else {
			v.setRegVal(frame, a, value.NullVal)
		}

	case opcode.SETGLOBAL:
		idx := int(instr.Bx())
		for len(fn.Module.Variables) <= idx {
			fn.Module.Variables = append(fn.Module.Variables, value.NullVal)
		}
		fn.Module.Variables[idx] = v.reg(frame, a)

	case opcode.GETUPVAL:
		v.setRegVal(frame, a, frame.closure.Upvalues[instr.Bx()].Value())

	case opcode.SETUPVAL:
		frame.closure.Upvalues[instr.Bx()].SetValue(v.reg(frame, a))

	case opcode.GETFIELD:
		switch recv := asObjSafe(v.reg(frame, uint8(instr.B()))).(type) {
		case *Instance:
			field := int(instr.C())
			if field < len(recv.Fields) {
				v.setRegVal(frame, a, recv.Fields[field])
			} else {
				v.setRegVal(frame, a, value.NullVal)
			}
		case *MapEntry:
			// Map iteration results: field 0 is the key, field 1 the value.
			if instr.C() == 0 {
				v.setRegVal(frame, a, recv.Key)
			} else {
				v.setRegVal(frame, a, recv.Value)
			}
		default:
			return v.runtimeError("receiver is not an instance")
		}

	case opcode.SETFIELD:
		inst, ok := asObjSafe(v.reg(frame, a)).(*Instance)
		if !ok {
			return v.runtimeError("receiver is not an instance")
		}
		field := int(instr.B())
		for len(inst.Fields) <= field {
			inst.Fields = append(inst.Fields, value.NullVal)
		}
		inst.Fields[field] = v.reg(frame, uint8(instr.C()))

	case opcode.TEST:
		if v.reg(frame, uint8(instr.B())).Truthy() != (instr.C() != 0) {
			frame.rip++
		}

	case opcode.JUMP:
		frame.rip += int(instr.SJx())

	case opcode.RETURN:
		return v.execReturn(frame, a, instr.B() != 0, instr.C() != 0)

	case opcode.CALLK:
		return v.execCall(frame, fn, instr)

	case opcode.CALLSUPERK:
		return v.execSuperCall(frame, fn, instr)

	case opcode.CLOSURE:
		return v.execClosure(frame, fn, instr)

	case opcode.CLOSE:
		v.fiber.closeUpvalues(frame.stackStart + int(a))

	case opcode.CLASS:
		return v.execClass(frame, fn, instr)

	case opcode.ENDCLASS:
		// Attaches the attributes value in R[A] to the class in R[A+1].
		class, ok := asObjSafe(v.reg(frame, a+1)).(*Class)
		if !ok {
			return v.runtimeError("ENDCLASS target is not a class")
		}
		class.Attributes = v.reg(frame, a)

	case opcode.METHOD:
		return v.execMethod(frame, fn, instr)

	case opcode.CONSTRUCT:
		return v.execConstruct(frame, fn, instr)

	case opcode.IMPORTMODULE:
		return v.execImportModule(frame, fn, instr)

	case opcode.IMPORTVAR:
		return v.execImportVar(frame, instr)

	case opcode.ADD, opcode.SUB, opcode.MUL, opcode.DIV:
		return v.execBinaryOp(frame, op, a, uint8(instr.B()), uint8(instr.C()))

	case opcode.ADDK, opcode.SUBK, opcode.MULK, opcode.DIVK:
		return v.execBinaryOpK(frame, fn, op, a, instr)

	case opcode.NEG:
		return v.execNeg(frame, a, uint8(instr.B()))

	case opcode.NOT:
		return v.execNot(frame, a, uint8(instr.B()))

	case opcode.EQ:
		return v.execEq(frame, a, uint8(instr.B()), uint8(instr.C()))

	case opcode.LT, opcode.LTE:
		return v.execRelational(frame, op, a, uint8(instr.B()), uint8(instr.C()))

	case opcode.EQK, opcode.LTK, opcode.LTEK:
		return v.execRelationalK(frame, fn, op, a, instr)

	case opcode.ADDELEM, opcode.ADDELEMK:
		return v.execAddElem(frame, fn, op, a, instr)

	case opcode.ITERATE:
		return v.execIterate(frame, a, instr)

	case opcode.ITERATORVALUE:
		return v.execIteratorValue(frame, a, instr)

	case opcode.GETSUB:
		return v.execGetSub(frame, fn, a, instr)

	case opcode.SETSUB:
		return v.execSetSub(frame, fn, a, instr)

	case opcode.RANGE:
		return v.execRange(frame, a, instr)

	case opcode.NOOP:
		// Deliberately nothing: target of the relational/LOADBOOL peephole
		// rewrite described in spec.md §4.3.

	default:
		return fmt.Errorf("unimplemented opcode %s", op)
	}
	return nil
}

// asObjSafe is a small convenience used by interpreter opcode handlers to
// avoid a panic when a register unexpectedly holds a non-object Value.
func asObjSafe(val value.Value) value.HeapObj {
	if !val.IsObj() {
		return nil
	}
	return val.AsObj()
}

func (v *VM) execNeg(frame *CallFrame, a, b uint8) error {
	operand := v.reg(frame, b)
	if operand.IsNum() {
		v.setRegVal(frame, a, value.NumVal(-operand.AsNum()))
		return nil
	}
	if handled, err := v.tryOverload(frame, a, operand, "-", nil); handled {
		return err
	}
	return v.runtimeError("operand must be a number")
}

// isOverridable reports whether val is an Instance or Class, the two
// receiver shapes spec.md §4.3 allows to intercept an operator opcode.
func isOverridable(val value.Value) bool {
	switch asObjSafe(val).(type) {
	case *Instance, *Class:
		return true
	}
	return false
}

func (v *VM) execNot(frame *CallFrame, a, b uint8) error {
	operand := v.reg(frame, b)
	if isOverridable(operand) {
		if handled, err := v.tryOverload(frame, a, operand, "!", nil); handled {
			return err
		}
	}
	v.setRegVal(frame, a, value.BoolVal(!operand.Truthy()))
	return nil
}

func (v *VM) execEq(frame *CallFrame, a, b, c uint8) error {
	left := v.reg(frame, b)
	right := v.reg(frame, c)
	if isOverridable(left) {
		if handled, err := v.tryOverload(frame, a, left, "==", []value.Value{right}); handled {
			return err
		}
	}
	v.setRegVal(frame, a, value.BoolVal(left.Equal(right)))
	return nil
}

func (v *VM) execBinaryOp(frame *CallFrame, op opcode.Op, a, b, c uint8) error {
	left := v.reg(frame, b)
	right := v.reg(frame, c)
	return v.applyArith(frame, op, a, left, right)
}

func (v *VM) execBinaryOpK(frame *CallFrame, fn *Fn, op opcode.Op, a uint8, instr opcode.Instruction) error {
	bField := uint16(instr.B())
	idx, isConstLeft := opcode.FlagIndex(bField)
	left := v.reg(frame, idx)
	right := v.constant(fn, uint32(instr.C()))
	if isConstLeft {
		left, right = right, v.reg(frame, idx)
	}
	var arithOp opcode.Op
	switch op {
	case opcode.ADDK:
		arithOp = opcode.ADD
	case opcode.SUBK:
		arithOp = opcode.SUB
	case opcode.MULK:
		arithOp = opcode.MUL
	case opcode.DIVK:
		arithOp = opcode.DIV
	}
	return v.applyArith(frame, arithOp, a, left, right)
}

// applyArith computes the numeric/string built-in cases directly and falls
// back to tryOverload (which itself writes the destination register, either
// immediately or via a pushed call frame) for anything else.
func (v *VM) applyArith(frame *CallFrame, op opcode.Op, destReg uint8, left, right value.Value) error {
	if left.IsNum() && right.IsNum() {
		l, r := left.AsNum(), right.AsNum()
		switch op {
		case opcode.ADD:
			v.setRegVal(frame, destReg, value.NumVal(l+r))
			return nil
		case opcode.SUB:
			v.setRegVal(frame, destReg, value.NumVal(l-r))
			return nil
		case opcode.MUL:
			v.setRegVal(frame, destReg, value.NumVal(l*r))
			return nil
		case opcode.DIV:
			v.setRegVal(frame, destReg, value.NumVal(l/r))
			return nil
		}
	}
	if op == opcode.ADD {
		if ls, ok := asObjSafe(left).(*String); ok {
			if rs, ok := asObjSafe(right).(*String); ok {
				v.setRegVal(frame, destReg, value.ObjVal(newString(v, ls.Value+rs.Value)))
				return nil
			}
		}
	}
	if l, ok := asObjSafe(left).(*List); ok {
		switch op {
		case opcode.ADD:
			if r, ok := asObjSafe(right).(*List); ok {
				out := newList(v, len(l.Elements)+len(r.Elements))
				out.Elements = append(out.Elements, l.Elements...)
				out.Elements = append(out.Elements, r.Elements...)
				v.setRegVal(frame, destReg, value.ObjVal(out))
				return nil
			}
		case opcode.MUL:
			if right.IsNum() {
				n := int(right.AsNum())
				if n < 0 {
					return v.runtimeError("list repeat count must be non-negative")
				}
				v.setRegVal(frame, destReg, value.ObjVal(l.repeat(v, n)))
				return nil
			}
		}
	}
	symbol := arithSymbol(op)
	if handled, err := v.tryOverload(frame, destReg, left, symbol, []value.Value{right}); handled {
		return err
	}
	return v.runtimeError("operands must both be numbers (or strings, for +)")
}

func arithSymbol(op opcode.Op) string {
	switch op {
	case opcode.ADD:
		return "+"
	case opcode.SUB:
		return "-"
	case opcode.MUL:
		return "*"
	case opcode.DIV:
		return "/"
	default:
		return "?"
	}
}

func (v *VM) execRelational(frame *CallFrame, op opcode.Op, a, b, c uint8) error {
	left := v.reg(frame, b)
	right := v.reg(frame, c)
	return v.applyRelational(frame, op, a, left, right)
}

func (v *VM) execRelationalK(frame *CallFrame, fn *Fn, op opcode.Op, a uint8, instr opcode.Instruction) error {
	bField := uint16(instr.B())
	idx, isConstLeft := opcode.FlagIndex(bField)
	left := v.reg(frame, idx)
	right := v.constant(fn, uint32(instr.C()))
	if isConstLeft {
		left, right = right, v.reg(frame, idx)
	}
	var relOp opcode.Op
	switch op {
	case opcode.EQK:
		v.setRegVal(frame, a, value.BoolVal(left.Equal(right)))
		return nil
	case opcode.LTK:
		relOp = opcode.LT
	case opcode.LTEK:
		relOp = opcode.LTE
	}
	return v.applyRelational(frame, relOp, a, left, right)
}

func (v *VM) applyRelational(frame *CallFrame, op opcode.Op, destReg uint8, left, right value.Value) error {
	if left.IsNum() && right.IsNum() {
		l, r := left.AsNum(), right.AsNum()
		switch op {
		case opcode.LT:
			v.setRegVal(frame, destReg, value.BoolVal(l < r))
			return nil
		case opcode.LTE:
			v.setRegVal(frame, destReg, value.BoolVal(l <= r))
			return nil
		}
	}
	symbol := "<"
	if op == opcode.LTE {
		symbol = "<="
	}
	if handled, err := v.tryOverload(frame, destReg, left, symbol, []value.Value{right}); handled {
		return err
	}
	return v.runtimeError("operands must both be numbers")
}

func (v *VM) execAddElem(frame *CallFrame, fn *Fn, op opcode.Op, a uint8, instr opcode.Instruction) error {
	var left, right value.Value
	var concat bool
	if op == opcode.ADDELEMK {
		bField := uint16(instr.B())
		idx, flag := opcode.FlagIndex(bField)
		left = v.reg(frame, idx)
		right = v.constant(fn, uint32(instr.C()))
		concat = flag
	} else {
		bField := uint16(instr.B())
		idx, flag := opcode.FlagIndex(bField)
		left = v.reg(frame, idx)
		right = v.reg(frame, uint8(instr.C()))
		concat = flag
	}
	list, ok := asObjSafe(left).(*List)
	if !ok {
		return v.runtimeError("ADDELEM receiver must be a list")
	}
	if concat {
		other, ok := asObjSafe(right).(*List)
		if !ok {
			return v.runtimeError("ADDELEM concat operand must be a list")
		}
		list.concat(other)
	} else {
		list.add(right)
	}
	v.setRegVal(frame, a, left)
	return nil
}

func (v *VM) execIterate(frame *CallFrame, a uint8, instr opcode.Instruction) error {
	seq := v.reg(frame, uint8(instr.B()))
	it := v.reg(frame, uint8(instr.C()))
	if isOverridable(seq) {
		if handled, err := v.tryOverload(frame, a, seq, "iterate", []value.Value{it}); handled {
			return err
		}
	}
	next, done, err := v.iterateBuiltin(seq, it)
	if err != nil {
		return err
	}
	if done {
		v.setRegVal(frame, a, value.FalseVal)
	} else {
		v.setRegVal(frame, a, next)
	}
	return nil
}

func (v *VM) execIteratorValue(frame *CallFrame, a uint8, instr opcode.Instruction) error {
	seq := v.reg(frame, uint8(instr.B()))
	it := v.reg(frame, uint8(instr.C()))
	if isOverridable(seq) {
		if handled, err := v.tryOverload(frame, a, seq, "iteratorValue", []value.Value{it}); handled {
			return err
		}
	}
	val, err := v.iteratorValueBuiltin(seq, it)
	if err != nil {
		return err
	}
	v.setRegVal(frame, a, val)
	return nil
}

func (v *VM) execGetSub(frame *CallFrame, fn *Fn, a uint8, instr opcode.Instruction) error {
	bField := uint16(instr.B())
	idx, constKey := opcode.FlagIndex(bField)
	recv := v.reg(frame, idx)
	var key value.Value
	if constKey {
		key = v.constant(fn, uint32(instr.C()))
	} else {
		key = v.reg(frame, uint8(instr.C()))
	}
	if isOverridable(recv) {
		if handled, err := v.tryOverload(frame, a, recv, "[]", []value.Value{key}); handled {
			return err
		}
	}
	result, err := v.subscriptGet(recv, key)
	if err != nil {
		return err
	}
	v.setRegVal(frame, a, result)
	return nil
}

func (v *VM) execSetSub(frame *CallFrame, fn *Fn, a uint8, instr opcode.Instruction) error {
	bField := uint16(instr.B())
	idx, constKey := opcode.FlagIndex(bField)
	recv := v.reg(frame, a)
	var key value.Value
	if constKey {
		key = v.constant(fn, uint32(instr.C()))
	} else {
		key = v.reg(frame, uint8(instr.C()))
	}
	val := v.reg(frame, idx)
	if isOverridable(recv) {
		if handled, err := v.tryOverload(frame, a, recv, "[]=", []value.Value{key, val}); handled {
			return err
		}
	}
	return v.subscriptSet(recv, key, val)
}

func (v *VM) execRange(frame *CallFrame, a uint8, instr opcode.Instruction) error {
	bField := uint16(instr.B())
	fromReg, inclusive := opcode.FlagIndex(bField)
	from := v.reg(frame, fromReg)
	to := v.reg(frame, uint8(instr.C()))
	if !from.IsNum() || !to.IsNum() {
		return v.runtimeError("range bounds must be numbers")
	}
	v.setRegVal(frame, a, value.ObjVal(newRange(v, from.AsNum(), to.AsNum(), inclusive)))
	return nil
}

// runtimeError sets the current fiber's error slot to a formatted String
// value and propagates per spec.md §4.8/§7.
func (v *VM) runtimeError(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if v.fiber == nil {
		// Host-side misuse with no fiber to carry the error.
		return fmt.Errorf("%w: %s", ErrRuntimeUnhandled, msg)
	}
	v.fiber.Error = value.ObjVal(newString(v, msg))
	return v.registerRuntimeError()
}
