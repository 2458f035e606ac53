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

func TestStringHashStableAndContentEqual(t *testing.T) {
	v := newTestVM()
	a := newString(v, "hello")
	b := newString(v, "hello")
	c := newString(v, "world")

	if a.hash != b.hash {
		t.Fatal("bytewise-equal strings must share a hash")
	}
	if a.hash == c.hash {
		t.Fatal("distinct strings unexpectedly collided (FNV-1a of hello/world)")
	}
	if !value.ObjVal(a).Equal(value.ObjVal(b)) {
		t.Fatal("string equality must compare content, not identity")
	}
	if value.ObjVal(a).Equal(value.ObjVal(c)) {
		t.Fatal("distinct strings compared equal")
	}
}

func TestStringRuneCount(t *testing.T) {
	v := newTestVM()
	cases := []struct {
		s    string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"héllo", 5},
		{"日本語", 3},
		{"a\xffb", 3}, // invalid byte counts as one code point
	}
	for _, tc := range cases {
		if got := newString(v, tc.s).runeCount(); got != tc.want {
			t.Errorf("runeCount(%q) = %d; want %d", tc.s, got, tc.want)
		}
	}
}

func TestStringIterationWalksCodePoints(t *testing.T) {
	v := newTestVM()
	s := newString(v, "aé日")

	var offsets []int
	it := value.NullVal
	for {
		next, done, err := iterateString(s, it)
		if err != nil {
			t.Fatal(err)
		}
		if done {
			break
		}
		offsets = append(offsets, int(next.AsNum()))
		it = next
	}
	// Lead-byte offsets: 'a'@0, 'é'@1 (2 bytes), '日'@3 (3 bytes).
	want := []int{0, 1, 3}
	if len(offsets) != len(want) {
		t.Fatalf("iteration offsets %v; want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("iteration offsets %v; want %v", offsets, want)
		}
	}
}

func TestStringIteratorValue(t *testing.T) {
	v := newTestVM()
	f := newFiber(v, nil)
	v.fiber = f
	defer func() { v.fiber = nil }()

	s := value.ObjVal(newString(v, "aé"))
	got, err := v.iteratorValueBuiltin(s, value.NumVal(1))
	if err != nil {
		t.Fatal(err)
	}
	if got.AsObj().(*String).Value != "é" {
		t.Fatalf("iteratorValue at offset 1 = %q; want é", got.String())
	}
}

func TestStringInvalidBytePassthrough(t *testing.T) {
	v := newTestVM()
	s := newString(v, "\xff")
	if got := s.codePointAt(0); got != "\xff" {
		t.Fatalf("invalid lead byte rendered %q; want the raw byte", got)
	}
	if got := s.nextLeadByte(0); got != 1 {
		t.Fatalf("nextLeadByte over invalid byte advanced to %d; want 1", got)
	}
}

func TestStringByteIndexOfRune(t *testing.T) {
	v := newTestVM()
	s := newString(v, "日本")
	if got := s.byteIndexOfRune(1); got != 3 {
		t.Fatalf("byteIndexOfRune(1) = %d; want 3", got)
	}
	if got := s.byteIndexOfRune(5); got != len(s.Value) {
		t.Fatalf("past-the-end rune index = %d; want %d", got, len(s.Value))
	}
}
