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
	"strings"

	"github.com/wrenscript/wren/opcode"
)

// Disassemble renders a function's code one instruction per line, for
// embedder debug tooling. Constant operands are annotated with the constant
// value's rendered form.
func Disassemble(fn *Fn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (arity %d, maxSlots %d, %d constants)\n",
		fn.String(), fn.Arity, fn.MaxSlots, len(fn.Constants))

	for i, instr := range fn.Code {
		op := instr.Op()
		fmt.Fprintf(&b, "%4d  %-14s", i, op.String())
		switch op.Format() {
		case opcode.FormatABC:
			fmt.Fprintf(&b, "%3d %3d %3d", instr.A(), instr.B(), instr.C())
		case opcode.FormatABx:
			fmt.Fprintf(&b, "%3d %6d", instr.A(), instr.Bx())
			if k := int(instr.Bx()); isConstOperand(op) && k < len(fn.Constants) {
				fmt.Fprintf(&b, "  ; %s", fn.Constants[k].String())
			}
		case opcode.FormatAsBx:
			fmt.Fprintf(&b, "%3d %6d", instr.A(), instr.SBx())
		case opcode.FormatSJx:
			fmt.Fprintf(&b, "-> %d", i+1+int(instr.SJx()))
		case opcode.FormatVBVC:
			fmt.Fprintf(&b, "%3d %3d %4d", instr.A(), instr.VB(), instr.VC())
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func isConstOperand(op opcode.Op) bool {
	switch op {
	case opcode.LOADK, opcode.CLOSURE, opcode.IMPORTMODULE, opcode.IMPORTVAR:
		return true
	}
	return false
}
