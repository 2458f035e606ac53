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
	"fmt"
	"math"
	"strings"

	"github.com/wrenscript/wren/value"
)

// bindPrimitives installs the engine-implemented methods on the core
// classes. Method symbols are interned in the VM-global table, so a class
// compiled later that overrides one of these simply rebinds the same dense
// symbol slot.
func bindPrimitives(v *VM) {
	bind := func(c *Class, sig string, fn Primitive) {
		c.bindMethod(v.methodNames.Ensure(sig), Method{Kind: MethodPrimitive, Primitive: fn})
	}
	bindStatic := func(c *Class, sig string, fn Primitive) {
		c.bindStaticMethod(v.methodNames.Ensure(sig), Method{Kind: MethodPrimitive, Primitive: fn})
	}

	// Object: the root methods every value can answer.
	bind(v.objectClass, "toString", primitiveObjectToString)
	bind(v.objectClass, "type", primitiveObjectType)
	bind(v.objectClass, "is(_)", primitiveObjectIs)

	// Re-propagate the Object methods into the classes bootstrapped before
	// any user class exists; later classes pick them up via inheritMethods.
	for _, c := range []*Class{
		v.classClass, v.boolClass, v.nullClass, v.numClass, v.stringClass,
		v.listClass, v.mapClass, v.rangeClass, v.fiberClass, v.fnClass, v.systemClass,
	} {
		c.inheritMethods(v.objectClass)
	}

	bind(v.numClass, "abs", primitiveNumAbs)
	bind(v.numClass, "floor", primitiveNumFloor)
	bind(v.numClass, "ceil", primitiveNumCeil)
	bind(v.numClass, "sqrt", primitiveNumSqrt)
	bind(v.numClass, "isInteger", primitiveNumIsInteger)

	bind(v.stringClass, "count", primitiveStringCount)
	bind(v.stringClass, "byteCount", primitiveStringByteCount)
	bind(v.stringClass, "contains(_)", primitiveStringContains)
	bind(v.stringClass, "startsWith(_)", primitiveStringStartsWith)
	bind(v.stringClass, "endsWith(_)", primitiveStringEndsWith)

	bindStatic(v.listClass, "new()", primitiveListNew)
	bind(v.listClass, "count", primitiveListCount)
	bind(v.listClass, "isEmpty", primitiveListIsEmpty)
	bind(v.listClass, "add(_)", primitiveListAdd)
	bind(v.listClass, "insert(_,_)", primitiveListInsert)
	bind(v.listClass, "removeAt(_)", primitiveListRemoveAt)
	bind(v.listClass, "indexOf(_)", primitiveListIndexOf)
	bind(v.listClass, "clear()", primitiveListClear)

	bindStatic(v.mapClass, "new()", primitiveMapNew)
	bind(v.mapClass, "count", primitiveMapCount)
	bind(v.mapClass, "containsKey(_)", primitiveMapContainsKey)
	bind(v.mapClass, "remove(_)", primitiveMapRemove)
	bind(v.mapClass, "clear()", primitiveMapClear)
	bind(v.mapClass, "keys", primitiveMapKeys)
	bind(v.mapClass, "values", primitiveMapValues)

	bind(v.rangeClass, "from", primitiveRangeFrom)
	bind(v.rangeClass, "to", primitiveRangeTo)
	bind(v.rangeClass, "isInclusive", primitiveRangeIsInclusive)
	bind(v.rangeClass, "min", primitiveRangeMin)
	bind(v.rangeClass, "max", primitiveRangeMax)

	bindStatic(v.fnClass, "new(_)", primitiveFnNew)
	bind(v.fnClass, "arity", primitiveFnArity)
	for i := 0; i <= maxFnCallArgs; i++ {
		fnCall := Method{Kind: MethodFunctionCall, Primitive: primitiveFnCall}
		v.fnClass.bindMethod(v.methodNames.Ensure(callSignature(i)), fnCall)
	}

	bindStatic(v.fiberClass, "new(_)", primitiveFiberNew)
	bindStatic(v.fiberClass, "current", primitiveFiberCurrent)
	bindStatic(v.fiberClass, "yield()", primitiveFiberYield0)
	bindStatic(v.fiberClass, "yield(_)", primitiveFiberYield1)
	bindStatic(v.fiberClass, "abort(_)", primitiveFiberAbort)
	bind(v.fiberClass, "call()", primitiveFiberCall0)
	bind(v.fiberClass, "call(_)", primitiveFiberCall1)
	bind(v.fiberClass, "try()", primitiveFiberTry)
	bind(v.fiberClass, "transfer(_)", primitiveFiberTransfer)
	bind(v.fiberClass, "isDone", primitiveFiberIsDone)
	bind(v.fiberClass, "error", primitiveFiberError)

	bindStatic(v.systemClass, "print(_)", primitiveSystemPrint)
	bindStatic(v.systemClass, "write(_)", primitiveSystemWrite)
}

// maxFnCallArgs is how many call(...) arities are pre-interned on Fn.
const maxFnCallArgs = 8

func callSignature(args int) string {
	if args == 0 {
		return "call()"
	}
	return "call(" + strings.Repeat("_,", args-1) + "_)"
}

// primitiveError aborts the current fiber with a formatted message. The
// (Value{}, false) return tells dispatchMethod to consult the fiber's error
// slot instead of writing a result register.
func primitiveError(v *VM, format string, args ...interface{}) (value.Value, bool) {
	v.fiber.Error = value.ObjVal(newString(v, fmt.Sprintf(format, args...)))
	return value.Value{}, false
}

func primitiveObjectToString(v *VM, args []value.Value) (value.Value, bool) {
	return value.ObjVal(newString(v, args[0].String())), true
}

func primitiveObjectType(v *VM, args []value.Value) (value.Value, bool) {
	return value.ObjVal(v.classOfValue(args[0])), true
}

func primitiveObjectIs(v *VM, args []value.Value) (value.Value, bool) {
	target, ok := asObjSafe(args[1]).(*Class)
	if !ok {
		return primitiveError(v, "right operand of 'is' must be a class")
	}
	for c := v.classOfValue(args[0]); c != nil; c = c.Super {
		if c == target {
			return value.TrueVal, true
		}
	}
	return value.FalseVal, true
}

func numArg(v *VM, val value.Value, what string) (float64, bool) {
	if !val.IsNum() {
		v.fiber.Error = value.ObjVal(newString(v, what+" must be a number"))
		return 0, false
	}
	return val.AsNum(), true
}

func primitiveNumAbs(v *VM, args []value.Value) (value.Value, bool) {
	return value.NumVal(math.Abs(args[0].AsNum())), true
}

func primitiveNumFloor(v *VM, args []value.Value) (value.Value, bool) {
	return value.NumVal(math.Floor(args[0].AsNum())), true
}

func primitiveNumCeil(v *VM, args []value.Value) (value.Value, bool) {
	return value.NumVal(math.Ceil(args[0].AsNum())), true
}

func primitiveNumSqrt(v *VM, args []value.Value) (value.Value, bool) {
	return value.NumVal(math.Sqrt(args[0].AsNum())), true
}

func primitiveNumIsInteger(v *VM, args []value.Value) (value.Value, bool) {
	n := args[0].AsNum()
	return value.BoolVal(!math.IsNaN(n) && !math.IsInf(n, 0) && math.Trunc(n) == n), true
}

func primitiveStringCount(v *VM, args []value.Value) (value.Value, bool) {
	s := args[0].AsObj().(*String)
	return value.NumVal(float64(s.runeCount())), true
}

func primitiveStringByteCount(v *VM, args []value.Value) (value.Value, bool) {
	s := args[0].AsObj().(*String)
	return value.NumVal(float64(len(s.Value))), true
}

func stringPair(v *VM, args []value.Value) (*String, *String, bool) {
	recv := args[0].AsObj().(*String)
	other, ok := asObjSafe(args[1]).(*String)
	if !ok {
		v.fiber.Error = value.ObjVal(newString(v, "argument must be a string"))
		return nil, nil, false
	}
	return recv, other, true
}

func primitiveStringContains(v *VM, args []value.Value) (value.Value, bool) {
	recv, other, ok := stringPair(v, args)
	if !ok {
		return value.Value{}, false
	}
	return value.BoolVal(strings.Contains(recv.Value, other.Value)), true
}

func primitiveStringStartsWith(v *VM, args []value.Value) (value.Value, bool) {
	recv, other, ok := stringPair(v, args)
	if !ok {
		return value.Value{}, false
	}
	return value.BoolVal(strings.HasPrefix(recv.Value, other.Value)), true
}

func primitiveStringEndsWith(v *VM, args []value.Value) (value.Value, bool) {
	recv, other, ok := stringPair(v, args)
	if !ok {
		return value.Value{}, false
	}
	return value.BoolVal(strings.HasSuffix(recv.Value, other.Value)), true
}

func listArg(v *VM, val value.Value) (*List, bool) {
	l, ok := asObjSafe(val).(*List)
	if !ok {
		v.fiber.Error = value.ObjVal(newString(v, "receiver must be a list"))
	}
	return l, ok
}

func primitiveListNew(v *VM, args []value.Value) (value.Value, bool) {
	return value.ObjVal(newList(v, 0)), true
}

func primitiveListCount(v *VM, args []value.Value) (value.Value, bool) {
	l, ok := listArg(v, args[0])
	if !ok {
		return value.Value{}, false
	}
	return value.NumVal(float64(len(l.Elements))), true
}

func primitiveListIsEmpty(v *VM, args []value.Value) (value.Value, bool) {
	l, ok := listArg(v, args[0])
	if !ok {
		return value.Value{}, false
	}
	return value.BoolVal(len(l.Elements) == 0), true
}

func primitiveListAdd(v *VM, args []value.Value) (value.Value, bool) {
	l, ok := listArg(v, args[0])
	if !ok {
		return value.Value{}, false
	}
	l.add(args[1])
	return args[1], true
}

func primitiveListInsert(v *VM, args []value.Value) (value.Value, bool) {
	l, ok := listArg(v, args[0])
	if !ok {
		return value.Value{}, false
	}
	idx, ok := numArg(v, args[1], "index")
	if !ok {
		return value.Value{}, false
	}
	i := int(idx)
	if i < 0 {
		i += len(l.Elements) + 1
	}
	if i < 0 || i > len(l.Elements) {
		return primitiveError(v, "index out of bounds")
	}
	l.insert(i, args[2])
	return args[2], true
}

func primitiveListRemoveAt(v *VM, args []value.Value) (value.Value, bool) {
	l, ok := listArg(v, args[0])
	if !ok {
		return value.Value{}, false
	}
	idx, ok := numArg(v, args[1], "index")
	if !ok {
		return value.Value{}, false
	}
	i := int(idx)
	if i < 0 {
		i += len(l.Elements)
	}
	if i < 0 || i >= len(l.Elements) {
		return primitiveError(v, "index out of bounds")
	}
	return l.removeAt(i), true
}

func primitiveListIndexOf(v *VM, args []value.Value) (value.Value, bool) {
	l, ok := listArg(v, args[0])
	if !ok {
		return value.Value{}, false
	}
	return value.NumVal(float64(l.indexOf(args[1]))), true
}

func primitiveListClear(v *VM, args []value.Value) (value.Value, bool) {
	l, ok := listArg(v, args[0])
	if !ok {
		return value.Value{}, false
	}
	l.Elements = l.Elements[:0]
	return value.NullVal, true
}

func mapArg(v *VM, val value.Value) (*Map, bool) {
	m, ok := asObjSafe(val).(*Map)
	if !ok {
		v.fiber.Error = value.ObjVal(newString(v, "receiver must be a map"))
	}
	return m, ok
}

func primitiveMapNew(v *VM, args []value.Value) (value.Value, bool) {
	return value.ObjVal(newMap(v)), true
}

func primitiveMapCount(v *VM, args []value.Value) (value.Value, bool) {
	m, ok := mapArg(v, args[0])
	if !ok {
		return value.Value{}, false
	}
	return value.NumVal(float64(m.Count())), true
}

func primitiveMapContainsKey(v *VM, args []value.Value) (value.Value, bool) {
	m, ok := mapArg(v, args[0])
	if !ok {
		return value.Value{}, false
	}
	found, err := m.ContainsKey(args[1])
	if err != nil {
		return primitiveError(v, "key is not hashable")
	}
	return value.BoolVal(found), true
}

func primitiveMapRemove(v *VM, args []value.Value) (value.Value, bool) {
	m, ok := mapArg(v, args[0])
	if !ok {
		return value.Value{}, false
	}
	removed, err := m.Remove(args[1])
	if err != nil {
		return primitiveError(v, "key is not hashable")
	}
	if removed.IsUndefined() {
		return value.NullVal, true
	}
	return removed, true
}

func primitiveMapClear(v *VM, args []value.Value) (value.Value, bool) {
	m, ok := mapArg(v, args[0])
	if !ok {
		return value.Value{}, false
	}
	m.Clear()
	return value.NullVal, true
}

func primitiveMapKeys(v *VM, args []value.Value) (value.Value, bool) {
	m, ok := mapArg(v, args[0])
	if !ok {
		return value.Value{}, false
	}
	keys := newList(v, m.Count())
	for i := range m.entries {
		if m.entries[i].isOccupied() {
			keys.add(m.entries[i].Key)
		}
	}
	return value.ObjVal(keys), true
}

func primitiveMapValues(v *VM, args []value.Value) (value.Value, bool) {
	m, ok := mapArg(v, args[0])
	if !ok {
		return value.Value{}, false
	}
	vals := newList(v, m.Count())
	for i := range m.entries {
		if m.entries[i].isOccupied() {
			vals.add(m.entries[i].Value)
		}
	}
	return value.ObjVal(vals), true
}

func primitiveRangeFrom(v *VM, args []value.Value) (value.Value, bool) {
	return value.NumVal(args[0].AsObj().(*Range).From), true
}

func primitiveRangeTo(v *VM, args []value.Value) (value.Value, bool) {
	return value.NumVal(args[0].AsObj().(*Range).To), true
}

func primitiveRangeIsInclusive(v *VM, args []value.Value) (value.Value, bool) {
	return value.BoolVal(args[0].AsObj().(*Range).IsInclusive), true
}

func primitiveRangeMin(v *VM, args []value.Value) (value.Value, bool) {
	r := args[0].AsObj().(*Range)
	return value.NumVal(math.Min(r.From, r.To)), true
}

func primitiveRangeMax(v *VM, args []value.Value) (value.Value, bool) {
	r := args[0].AsObj().(*Range)
	return value.NumVal(math.Max(r.From, r.To)), true
}

// primitiveFnNew implements Fn.new(_): the argument must already be a
// closure (the compiler wraps block arguments before the call), so this is
// an identity with a type check.
func primitiveFnNew(v *VM, args []value.Value) (value.Value, bool) {
	if _, ok := asObjSafe(args[1]).(*Closure); !ok {
		return primitiveError(v, "Fn.new(_) expects a function")
	}
	return args[1], true
}

func primitiveFnArity(v *VM, args []value.Value) (value.Value, bool) {
	closure, ok := asObjSafe(args[0]).(*Closure)
	if !ok {
		return primitiveError(v, "receiver must be a function")
	}
	return value.NumVal(float64(closure.Fn.Arity)), true
}

// primitiveFnCall backs the MethodFunctionCall variant: it arity-checks the
// closure receiver and pushes a real call frame over the same argument
// window CALLK populated, so the closure body sees the standard "receiver
// in R0, arguments after it" layout (spec.md §4.2's FunctionCall rule).
func primitiveFnCall(v *VM, args []value.Value) (value.Value, bool) {
	closure, ok := asObjSafe(args[0]).(*Closure)
	if !ok {
		return primitiveError(v, "receiver must be a function")
	}
	if len(args)-1 < closure.Fn.Arity {
		return primitiveError(v, "function expects %d argument(s), got %d", closure.Fn.Arity, len(args)-1)
	}

	f := v.fiber
	base := f.lastCallReg
	callerFrame := f.currentFrame()
	f.ensureStack(base + closure.Fn.MaxSlots)
	for i := len(args); i < closure.Fn.Arity+1; i++ {
		f.stack[base+i] = value.NullVal
	}
	f.frames = append(f.frames, CallFrame{
		closure:    closure,
		stackStart: base,
		rip:        0,
		returnReg:  base - callerFrame.stackStart,
	})
	return value.Value{}, false
}

func primitiveFiberError(v *VM, args []value.Value) (value.Value, bool) {
	f, ok := asObjSafe(args[0]).(*Fiber)
	if !ok {
		return primitiveError(v, "receiver must be a fiber")
	}
	return f.Error, true
}

func primitiveSystemPrint(v *VM, args []value.Value) (value.Value, bool) {
	v.write(args[1].String() + "\n")
	return args[1], true
}

func primitiveSystemWrite(v *VM, args []value.Value) (value.Value, bool) {
	v.write(args[1].String())
	return args[1], true
}
