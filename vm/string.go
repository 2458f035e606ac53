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
	"hash/fnv"
	"unicode/utf8"

	"github.com/wrenscript/wren/value"
)

// String is an immutable, UTF-8-treated byte string with its FNV-1a hash
// precomputed once at construction (spec.md §3's "never mutated" invariant
// means the hash never needs to be recomputed or invalidated).
type String struct {
	Header
	Value string
	hash  uint64
}

func newString(v *VM, s string) *String {
	str := &String{Value: s, hash: fnv1a(s)}
	str.kind = KindString
	if v != nil {
		str.classObj = v.stringClass
		v.track(str)
	}
	return str
}

func fnv1a(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func (s *String) String() string { return s.Value }

// ValueEqual implements content equality for strings so value.Value.Equal
// compares bytes, not identity, matching Wren's string == semantics.
func (s *String) ValueEqual(other value.HeapObj) bool {
	o, ok := other.(*String)
	return ok && o.Value == s.Value
}

// runeCount returns the number of UTF-8 code points in s, treating any
// invalid byte sequence as a single code point (spec.md's "pass invalid
// sequences through as single bytes").
func (s *String) runeCount() int {
	n := 0
	for i := 0; i < len(s.Value); {
		_, size := utf8.DecodeRuneInString(s.Value[i:])
		i += size
		n++
	}
	return n
}

// byteIndexOfRune returns the byte offset of the runeIdx-th code point, or
// len(s.Value) if runeIdx is at or past the end.
func (s *String) byteIndexOfRune(runeIdx int) int {
	i, n := 0, 0
	for i < len(s.Value) && n < runeIdx {
		_, size := utf8.DecodeRuneInString(s.Value[i:])
		i += size
		n++
	}
	return i
}

// nextLeadByte advances a byte index to the start of the following UTF-8
// code point (or a single byte forward for an invalid lead byte).
func (s *String) nextLeadByte(i int) int {
	if i >= len(s.Value) {
		return i
	}
	_, size := utf8.DecodeRuneInString(s.Value[i:])
	if size <= 0 {
		size = 1
	}
	return i + size
}

// codePointAt returns the code point (or raw byte, for an invalid
// sequence) starting at byte index i, rendered back out as a string.
func (s *String) codePointAt(i int) string {
	if i < 0 || i >= len(s.Value) {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s.Value[i:])
	if r == utf8.RuneError && size <= 1 {
		return s.Value[i : i+1]
	}
	return s.Value[i : i+size]
}
