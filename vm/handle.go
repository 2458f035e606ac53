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
	"github.com/wrenscript/wren/opcode"
	"github.com/wrenscript/wren/value"
)

// Handle is an opaque, GC-rooted reference a host can hold onto across
// calls into the VM (spec.md §6's makeHandle/releaseHandle). Handles are
// kept alive by vm.handles until explicitly released, independent of the
// temp-roots stack.
type Handle struct {
	value value.Value
}

// MakeHandle roots val for as long as the host holds onto the returned
// Handle.
func (v *VM) MakeHandle(val value.Value) *Handle {
	h := &Handle{value: val}
	v.handles = append(v.handles, h)
	return h
}

// ReleaseHandle drops h, making its value collectible again once nothing
// else references it.
func (v *VM) ReleaseHandle(h *Handle) {
	for i, existing := range v.handles {
		if existing == h {
			v.handles = append(v.handles[:i], v.handles[i+1:]...)
			return
		}
	}
}

// Value returns the value a handle roots.
func (h *Handle) Value() value.Value { return h.value }

// MakeCallHandle synthesizes a stub closure that, when called, issues a
// CALLK for signature's method symbol against a previously populated slot
// window — the mechanism Call uses to invoke a method the host only knows
// by name (spec.md §6). The stub's two instructions dispatch on slot 0 (the
// receiver) with the slots after it as arguments and return the result. Its
// CallStubSymbol marks it so stack traces omit the synthetic frame.
func (v *VM) MakeCallHandle(signature string) *Handle {
	symbol := v.methodNames.Ensure(signature)
	arity := callSignatureArity(signature)

	code := []opcode.Instruction{
		opcode.EncodeVBVC(opcode.CALLK, 0, uint8(arity+1), uint16(symbol)),
		opcode.EncodeABC(opcode.RETURN, 0, 1, 0),
	}
	fn := newFn(v.coreModule, arity+2, arity, 0, nil, code)
	fn.Debug.Name = signature
	fn.CallStubSymbol = symbol
	v.track(fn)
	closure := newClosure(fn, nil)
	v.track(closure)
	return v.MakeHandle(value.ObjVal(closure))
}

// callSignatureArity counts the argument slots a method signature expects,
// by counting underscore placeholders between the signature's parentheses
// (e.g. "call(_,_)" has arity 2; "value" has arity 0).
func callSignatureArity(signature string) int {
	open := -1
	for i, r := range signature {
		if r == '(' {
			open = i
			break
		}
	}
	if open < 0 {
		return 0
	}
	n := 0
	for _, r := range signature[open:] {
		if r == '_' {
			n++
		}
	}
	return n
}
