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
	"unicode/utf8"

	"github.com/wrenscript/wren/value"
)

// iterateBuiltin advances the begin/next iterator protocol (spec.md §4.5)
// for the four built-in sequence types. it is Null on the first call; a
// done=true result corresponds to ITERATE writing `false` into its
// destination register, terminating a for-loop's compiled condition check.
// An Instance or Class receiver with its own iterate(_) method never gets
// here: execIterate dispatches that method through tryOverload first.
func (v *VM) iterateBuiltin(seq, it value.Value) (value.Value, bool, error) {
	switch obj := asObjSafe(seq).(type) {
	case *List:
		return iterateIndexed(it, len(obj.Elements))
	case *String:
		return iterateString(obj, it)
	case *Range:
		return iterateRange(obj, it)
	case *Map:
		cur := 0.0
		if !it.IsNull() {
			if !it.IsNum() {
				return value.Value{}, false, v.runtimeError("map iterator must be a number")
			}
			cur = it.AsNum()
		}
		next := obj.iterate(cur)
		if next == 0 {
			return value.Value{}, true, nil
		}
		return value.NumVal(next), false, nil
	default:
		return value.Value{}, false, v.runtimeError("cannot iterate over %s", v.classOfValue(seq).String())
	}
}

func iterateIndexed(it value.Value, length int) (value.Value, bool, error) {
	if it.IsNull() {
		if length == 0 {
			return value.Value{}, true, nil
		}
		return value.NumVal(0), false, nil
	}
	n := int(it.AsNum())
	if n+1 >= length {
		return value.Value{}, true, nil
	}
	return value.NumVal(float64(n + 1)), false, nil
}

// iterateString walks byte offsets, skipping to the start of the next UTF-8
// codepoint each step rather than advancing one byte at a time.
func iterateString(s *String, it value.Value) (value.Value, bool, error) {
	if it.IsNull() {
		if len(s.Value) == 0 {
			return value.Value{}, true, nil
		}
		return value.NumVal(0), false, nil
	}
	offset := int(it.AsNum())
	_, size := utf8.DecodeRuneInString(s.Value[offset:])
	next := offset + size
	if next >= len(s.Value) {
		return value.Value{}, true, nil
	}
	return value.NumVal(float64(next)), false, nil
}

func iterateRange(r *Range, it value.Value) (value.Value, bool, error) {
	step := 1.0
	if r.To < r.From {
		step = -1.0
	}
	var cur float64
	if it.IsNull() {
		cur = r.From
	} else {
		cur = it.AsNum() + step
	}
	if step > 0 {
		if r.IsInclusive && cur > r.To {
			return value.Value{}, true, nil
		}
		if !r.IsInclusive && cur >= r.To {
			return value.Value{}, true, nil
		}
	} else {
		if r.IsInclusive && cur < r.To {
			return value.Value{}, true, nil
		}
		if !r.IsInclusive && cur <= r.To {
			return value.Value{}, true, nil
		}
	}
	return value.NumVal(cur), false, nil
}

// iteratorValueBuiltin dereferences an in-progress iterator to the value a
// for-loop variable should see this step.
func (v *VM) iteratorValueBuiltin(seq, it value.Value) (value.Value, error) {
	switch obj := asObjSafe(seq).(type) {
	case *List:
		n := int(it.AsNum())
		if n < 0 || n >= len(obj.Elements) {
			return value.Value{}, v.runtimeError("iterator out of bounds")
		}
		return obj.Elements[n], nil
	case *String:
		offset := int(it.AsNum())
		r, size := utf8.DecodeRuneInString(obj.Value[offset:])
		return value.ObjVal(newString(v, string(r)[:size])), nil
	case *Range:
		return it, nil
	case *Map:
		// A first-class snapshot of the bucket; GETFIELD reads its key
		// (field 0) and value (field 1).
		entry := &MapEntry{
			Key:   obj.keyAtIterator(it.AsNum()),
			Value: obj.valueAtIterator(it.AsNum()),
		}
		entry.kind = KindMapEntry
		v.track(entry)
		return value.ObjVal(entry), nil
	default:
		return value.Value{}, v.runtimeError("cannot iterate over %s", v.classOfValue(seq).String())
	}
}

// subscriptGet implements GETSUB: recv[key]. Spec.md names the opcode but
// leaves subscript semantics to the host language's own classes; this repo
// wires only the three built-ins whose `[key]` behavior is unambiguous
// (List, Map, String) and reports anything else as a runtime error. A user
// class with its own `[_]` method never gets here: execGetSub dispatches
// that method through tryOverload first.
func (v *VM) subscriptGet(recv, key value.Value) (value.Value, error) {
	switch obj := asObjSafe(recv).(type) {
	case *List:
		if !key.IsNum() {
			return value.Value{}, v.runtimeError("list index must be a number")
		}
		idx := int(key.AsNum())
		if idx < 0 {
			idx += len(obj.Elements)
		}
		if idx < 0 || idx >= len(obj.Elements) {
			return value.Value{}, v.runtimeError("list index out of bounds")
		}
		return obj.Elements[idx], nil
	case *Map:
		if err := validateKey(key); err != nil {
			return value.Value{}, v.runtimeError("key is not hashable")
		}
		val, err := obj.Get(key)
		if err != nil {
			return value.Value{}, v.runtimeError("%s", err.Error())
		}
		return val, nil
	case *String:
		if !key.IsNum() {
			return value.Value{}, v.runtimeError("string index must be a number")
		}
		idx := int(key.AsNum())
		r := []rune(obj.Value)
		if idx < 0 {
			idx += len(r)
		}
		if idx < 0 || idx >= len(r) {
			return value.Value{}, v.runtimeError("string index out of bounds")
		}
		return value.ObjVal(newString(v, string(r[idx]))), nil
	default:
		return value.Value{}, v.runtimeError("%s does not support [] access", v.classOfValue(recv).String())
	}
}

// subscriptSet implements SETSUB: recv[key] = val.
func (v *VM) subscriptSet(recv, key, val value.Value) error {
	switch obj := asObjSafe(recv).(type) {
	case *List:
		if !key.IsNum() {
			return v.runtimeError("list index must be a number")
		}
		idx := int(key.AsNum())
		if idx < 0 {
			idx += len(obj.Elements)
		}
		if idx < 0 || idx >= len(obj.Elements) {
			return v.runtimeError("list index out of bounds")
		}
		obj.Elements[idx] = val
		return nil
	case *Map:
		if err := validateKey(key); err != nil {
			return v.runtimeError("key is not hashable")
		}
		if err := obj.Set(key, val); err != nil {
			return v.runtimeError("%s", err.Error())
		}
		return nil
	default:
		return v.runtimeError("%s does not support []= access", v.classOfValue(recv).String())
	}
}
