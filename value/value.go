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

// Package value implements the tagged-union Value representation shared by
// every opcode, object, and host-API call in the VM.
//
// A Value is a 32-byte sum type on 64-bit platforms (tag + number + object
// fields) rather than a NaN-tagged
// double. Spec treats NaN-tagging as an optional size/perf specialization;
// this project takes the simpler, GC-safe-by-construction tagged union.
package value

import (
	"fmt"
	"math"
)

// Type tags the active variant of a Value.
type Type uint8

const (
	Null Type = iota
	True
	False
	// Undefined is the sentinel used internally to mark "no value" (e.g. an
	// empty Map slot). It is never observable from script code.
	Undefined
	Num
	Obj
)

func (t Type) String() string {
	switch t {
	case Null:
		return "null"
	case True:
		return "true"
	case False:
		return "false"
	case Undefined:
		return "undefined"
	case Num:
		return "num"
	case Obj:
		return "obj"
	default:
		return "unknown"
	}
}

// HeapObj is implemented by every heap-allocated object type. It is defined
// here (rather than imported from package vm) to avoid an import cycle:
// value is a leaf package that vm depends on.
type HeapObj interface {
	// ObjType names the concrete object kind, for Value.String and the
	// class-resolution machinery.
	ObjType() string
}

// Value is the tagged union manipulated by every opcode.
type Value struct {
	typ Type
	num float64
	obj HeapObj
}

// NullVal, TrueVal, and FalseVal are the three singleton non-numeric,
// non-object values. UndefinedVal is the internal "no value" sentinel.
var (
	NullVal      = Value{typ: Null}
	TrueVal      = Value{typ: True}
	FalseVal     = Value{typ: False}
	UndefinedVal = Value{typ: Undefined}
)

// NumVal wraps a double as a Value.
func NumVal(n float64) Value { return Value{typ: Num, num: n} }

// BoolVal returns TrueVal or FalseVal for b.
func BoolVal(b bool) Value {
	if b {
		return TrueVal
	}
	return FalseVal
}

// ObjVal wraps a heap object as a Value. Passing a nil obj is a caller bug.
func ObjVal(o HeapObj) Value {
	if o == nil {
		panic("value: ObjVal called with nil object")
	}
	return Value{typ: Obj, obj: o}
}

// Type reports which variant v holds.
func (v Value) Type() Type { return v.typ }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.typ == Null }

// IsUndefined reports whether v is the internal "absent" sentinel.
func (v Value) IsUndefined() bool { return v.typ == Undefined }

// IsBool reports whether v is true or false.
func (v Value) IsBool() bool { return v.typ == True || v.typ == False }

// IsNum reports whether v holds a double.
func (v Value) IsNum() bool { return v.typ == Num }

// IsObj reports whether v holds a heap object reference.
func (v Value) IsObj() bool { return v.typ == Obj }

// AsNum returns the double payload. Callers must check IsNum first.
func (v Value) AsNum() float64 { return v.num }

// AsObj returns the heap object payload. Callers must check IsObj first.
func (v Value) AsObj() HeapObj { return v.obj }

// AsBool returns the boolean payload for True/False values.
func (v Value) AsBool() bool { return v.typ == True }

// Truthy implements Wren's truthiness rule: everything except null and
// false is truthy (unlike most C-derived languages, 0 and "" are truthy).
func (v Value) Truthy() bool {
	return v.typ != Null && v.typ != False
}

// Equal implements Wren's built-in == semantics for non-overloaded values:
// identity for objects (unless overridden by the object's own Equal hook),
// IEEE-754 equality for numbers (so NaN != NaN and 0 == -0), and
// tag equality for null/true/false/undefined.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case Null, True, False, Undefined:
		return true
	case Num:
		return v.num == other.num
	case Obj:
		if eq, ok := v.obj.(interface{ ValueEqual(HeapObj) bool }); ok {
			return eq.ValueEqual(other.obj)
		}
		return v.obj == other.obj
	default:
		return false
	}
}

// String renders v for debugging and for string-interpolation fallbacks.
// Object kinds implementing fmt.Stringer are delegated to.
func (v Value) String() string {
	switch v.typ {
	case Null:
		return "null"
	case True:
		return "true"
	case False:
		return "false"
	case Undefined:
		return "<undefined>"
	case Num:
		if math.IsNaN(v.num) {
			return "nan"
		}
		if math.IsInf(v.num, 1) {
			return "infinity"
		}
		if math.IsInf(v.num, -1) {
			return "-infinity"
		}
		return fmt.Sprintf("%g", v.num)
	case Obj:
		if s, ok := v.obj.(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprintf("<%s>", v.obj.ObjType())
	default:
		return "<bad value>"
	}
}
