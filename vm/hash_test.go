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
	"testing"

	"github.com/wrenscript/wren/value"
)

func TestHashNumDistinguishesNearbyValues(t *testing.T) {
	seen := map[uint64]float64{}
	for i := 0.0; i < 1000; i++ {
		h := hashNum(i)
		if prev, dup := seen[h]; dup {
			t.Fatalf("hashNum collision between %g and %g", prev, i)
		}
		seen[h] = i
	}
}

func TestHashRangeOrderMatters(t *testing.T) {
	v := newTestVM()
	a := hashRange(newRange(v, 0, 1, false))
	b := hashRange(newRange(v, 1, 0, false))
	if a == b {
		t.Fatal("0...1 and 1...0 must not hash equal")
	}
	inc := hashRange(newRange(v, 0, 1, true))
	if a == inc {
		t.Fatal("inclusive and exclusive ranges over the same bounds must not hash equal")
	}
}

func TestHashValueKinds(t *testing.T) {
	v := newTestVM()

	ok := []value.Value{
		value.NullVal,
		value.TrueVal,
		value.FalseVal,
		value.NumVal(3.25),
		v.NewStringValue("s"),
		value.ObjVal(newRange(v, 1, 2, true)),
		value.ObjVal(v.numClass),
	}
	for _, val := range ok {
		if _, err := hashValue(val); err != nil {
			t.Errorf("hashValue(%s) unexpectedly failed: %v", val, err)
		}
	}

	bad := []value.Value{
		value.ObjVal(newList(v, 0)),
		value.ObjVal(newMap(v)),
	}
	for _, val := range bad {
		if _, err := hashValue(val); err == nil {
			t.Errorf("hashValue(%s) unexpectedly succeeded", val)
		}
	}
}

func TestHashStringMatchesPrecomputed(t *testing.T) {
	v := newTestVM()
	s := newString(v, "payload")
	h, err := hashValue(value.ObjVal(s))
	if err != nil {
		t.Fatal(err)
	}
	if h != s.hash {
		t.Fatal("hashValue must reuse the string's precomputed FNV-1a hash")
	}
	if s.hash != fnv1a("payload") {
		t.Fatal("precomputed hash is not FNV-1a over the bytes")
	}
}
