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
	"hash/fnv"
	"math"

	"github.com/wrenscript/wren/value"
)

// ErrNotHashable is returned when a value of a type that cannot be a Map key
// (Instance, List, Map, Fiber, Closure, Foreign) is used as one.
var ErrNotHashable = errors.New("value is not hashable")

// hashValue computes the Map bucket hash for val, per spec.md §4.6: strings
// use their precomputed FNV-1a hash, numbers use a Wang integer mix of their
// bit pattern, ranges compose a hash from their fields, and classes and
// functions hash by pointer identity.
func hashValue(val value.Value) (uint64, error) {
	switch val.Type() {
	case value.Null:
		return 1, nil
	case value.True:
		return 2, nil
	case value.False:
		return 3, nil
	case value.Undefined:
		return 0, nil
	case value.Num:
		return hashNum(val.AsNum()), nil
	case value.Obj:
		switch o := val.AsObj().(type) {
		case *String:
			return o.hash, nil
		case *Range:
			return hashRange(o), nil
		case *Class:
			return hashPointer(o), nil
		case *Fn:
			return hashPointer(o), nil
		default:
			return 0, ErrNotHashable
		}
	default:
		return 0, ErrNotHashable
	}
}

// hashNum applies Wang's 64-bit integer mix to a number's raw bit pattern.
func hashNum(n float64) uint64 {
	bits := math.Float64bits(n)
	bits = (^bits) + (bits << 21)
	bits = bits ^ (bits >> 24)
	bits = (bits + (bits << 3)) + (bits << 8)
	bits = bits ^ (bits >> 14)
	bits = (bits + (bits << 2)) + (bits << 4)
	bits = bits ^ (bits >> 28)
	bits = bits + (bits << 31)
	return bits
}

// hashRange composes a hash from a Range's three fields, Wang-mixing each
// component so from==0,to==1 doesn't collide with from==1,to==0.
func hashRange(r *Range) uint64 {
	h := hashNum(r.From)
	h = h*31 + hashNum(r.To)
	if r.IsInclusive {
		h = h*31 + 1
	}
	return h
}

// hashPointer derives a stable-for-the-object's-lifetime hash from its
// identity, for the handful of reference kinds (Class, Fn) spec.md allows as
// map keys by identity rather than by content.
func hashPointer(o Object) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%p", o)
	return h.Sum64()
}

// validateKey reports whether val may be used as a Map key. Mutable
// containers (List, Map, Instance, Foreign) and the internal-only kinds
// (Fiber, Closure, Upvalue, Module, MapEntry) are rejected; hashValue's own
// type switch is the single source of truth for what is hashable.
func validateKey(val value.Value) error {
	_, err := hashValue(val)
	return err
}
