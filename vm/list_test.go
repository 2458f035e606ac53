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

func numList(v *VM, nums ...float64) *List {
	l := newList(v, len(nums))
	for _, n := range nums {
		l.add(value.NumVal(n))
	}
	return l
}

func TestListInsertRemove(t *testing.T) {
	v := newTestVM()
	l := numList(v, 1, 3)

	l.insert(1, value.NumVal(2)) // [1,2,3]
	if len(l.Elements) != 3 || l.Elements[1].AsNum() != 2 {
		t.Fatalf("insert mid: %v", l.Elements)
	}
	l.insert(3, value.NumVal(4)) // append position
	if l.Elements[3].AsNum() != 4 {
		t.Fatalf("insert at end: %v", l.Elements)
	}

	removed := l.removeAt(0)
	wantNum(t, removed, 1)
	if len(l.Elements) != 3 || l.Elements[0].AsNum() != 2 {
		t.Fatalf("removeAt(0): %v", l.Elements)
	}
}

func TestListIndexOf(t *testing.T) {
	v := newTestVM()
	l := numList(v, 5, 7, 5)

	if got := l.indexOf(value.NumVal(5)); got != 0 {
		t.Fatalf("indexOf(5) = %d; want the lowest index 0", got)
	}
	if got := l.indexOf(value.NumVal(7)); got != 1 {
		t.Fatalf("indexOf(7) = %d; want 1", got)
	}
	if got := l.indexOf(value.NumVal(9)); got != -1 {
		t.Fatalf("indexOf(absent) = %d; want -1", got)
	}
	// Strings compare by content.
	sl := newList(v, 0)
	sl.add(value.ObjVal(newString(v, "x")))
	if got := sl.indexOf(value.ObjVal(newString(v, "x"))); got != 0 {
		t.Fatalf("indexOf by string content = %d; want 0", got)
	}
}

func TestListRepeatIsShallow(t *testing.T) {
	v := newTestVM()
	inner := newList(v, 0)
	l := newList(v, 0)
	l.add(value.ObjVal(inner))

	rep := l.repeat(v, 3)
	if len(rep.Elements) != 3 {
		t.Fatalf("repeat length %d; want 3", len(rep.Elements))
	}
	for _, e := range rep.Elements {
		if e.AsObj() != value.HeapObj(inner) {
			t.Fatal("repeat must alias elements, not deep-copy them")
		}
	}
	if got := l.repeat(v, 0); len(got.Elements) != 0 {
		t.Fatalf("repeat 0 length %d; want 0", len(got.Elements))
	}
}

// TestIterateEmptyList guards the signed-comparison fix for the original's
// count-1 underflow: iterating an empty list terminates immediately.
func TestIterateEmptyList(t *testing.T) {
	if _, done, err := iterateIndexed(value.NullVal, 0); err != nil || !done {
		t.Fatalf("iterating empty list: done=%v err=%v; want immediate termination", done, err)
	}
}

func TestIterateIndexed(t *testing.T) {
	next, done, err := iterateIndexed(value.NullVal, 3)
	if err != nil || done || next.AsNum() != 0 {
		t.Fatalf("first step: %v %v %v", next, done, err)
	}
	next, done, _ = iterateIndexed(value.NumVal(0), 3)
	if done || next.AsNum() != 1 {
		t.Fatalf("second step: %v %v", next, done)
	}
	_, done, _ = iterateIndexed(value.NumVal(2), 3)
	if !done {
		t.Fatal("iteration past the last element did not terminate")
	}
}

func TestIterateRangeDescending(t *testing.T) {
	v := newTestVM()
	r := newRange(v, 3, 1, true)

	var got []float64
	it := value.NullVal
	for {
		next, done, err := iterateRange(r, it)
		if err != nil {
			t.Fatal(err)
		}
		if done {
			break
		}
		got = append(got, next.AsNum())
		it = next
	}
	want := []float64{3, 2, 1}
	if len(got) != len(want) {
		t.Fatalf("descending range yielded %v; want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("descending range yielded %v; want %v", got, want)
		}
	}
}

func TestIterateRangeExclusive(t *testing.T) {
	v := newTestVM()
	r := newRange(v, 0, 3, false)

	count := 0
	it := value.NullVal
	for {
		next, done, err := iterateRange(r, it)
		if err != nil {
			t.Fatal(err)
		}
		if done {
			break
		}
		count++
		it = next
	}
	if count != 3 {
		t.Fatalf("0...3 yielded %d values; want 3", count)
	}
}
