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

	"github.com/wrenscript/wren/value"
)

// Range is an immutable numeric range produced by the RANGE opcode or the
// `..`/`...` operators at the source level.
type Range struct {
	Header
	From        float64
	To          float64
	IsInclusive bool
}

func newRange(v *VM, from, to float64, inclusive bool) *Range {
	r := &Range{From: from, To: to, IsInclusive: inclusive}
	r.kind = KindRange
	if v != nil {
		r.classObj = v.rangeClass
		v.track(r)
	}
	return r
}

func (r *Range) String() string {
	op := "..."
	if r.IsInclusive {
		op = ".."
	}
	return fmt.Sprintf("%g%s%g", r.From, op, r.To)
}

// ValueEqual implements content equality for ranges, matching Wren's value
// semantics for this built-in type.
func (r *Range) ValueEqual(other value.HeapObj) bool {
	o, ok := other.(*Range)
	return ok && o.From == r.From && o.To == r.To && o.IsInclusive == r.IsInclusive
}
