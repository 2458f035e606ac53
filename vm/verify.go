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

	"github.com/wrenscript/wren/opcode"
)

// VerifyError describes a bytecode verification failure.
type VerifyError struct {
	Index   int // instruction index within the function's code
	Message string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify error at instruction %d: %s", e.Index, e.Message)
}

// VerifyFn checks a compiled function for bytecode-level safety violations
// before it is first run, for embedders executing code from an untrusted
// producer. It ensures:
//  1. Every opcode is recognized.
//  2. No A register, and no call's argument window, addresses past the
//     function's frame. B and C register operands are not checked.
//  3. No Bx constant index of LOADK, CLOSURE, IMPORTMODULE or IMPORTVAR
//     addresses past the constant pool. Constant indices in C are not
//     checked.
//  4. Every jump lands inside the function.
//  5. The last instruction is a RETURN or a backward JUMP.
//
// The interpreter never calls this itself; a host that trusts its compiler
// can skip it entirely.
func VerifyFn(fn *Fn) []VerifyError {
	var errs []VerifyError
	fail := func(i int, format string, args ...interface{}) {
		errs = append(errs, VerifyError{Index: i, Message: fmt.Sprintf(format, args...)})
	}

	if len(fn.Code) == 0 {
		fail(0, "function has no code")
		return errs
	}

	checkReg := func(i int, r int, what string) {
		if r >= fn.MaxSlots {
			fail(i, "%s register %d out of frame (maxSlots %d)", what, r, fn.MaxSlots)
		}
	}
	checkConst := func(i int, k int) {
		if k >= len(fn.Constants) {
			fail(i, "constant index %d out of bounds (pool size %d)", k, len(fn.Constants))
		}
	}

	for i, instr := range fn.Code {
		op := instr.Op()
		if !op.Valid() {
			fail(i, "unknown opcode %d", uint8(op))
			continue
		}

		switch op.Format() {
		case opcode.FormatABC:
			checkReg(i, int(instr.A()), "A")
		case opcode.FormatABx:
			checkReg(i, int(instr.A()), "A")
			switch op {
			case opcode.LOADK, opcode.CLOSURE, opcode.IMPORTMODULE, opcode.IMPORTVAR:
				checkConst(i, int(instr.Bx()))
			}
		case opcode.FormatAsBx:
			checkReg(i, int(instr.A()), "A")
		case opcode.FormatSJx:
			// rip has already advanced past the jump when the offset is
			// applied, so the target is i+1+sJx and must lie in [0, len).
			target := i + 1 + int(instr.SJx())
			if target < 0 || target >= len(fn.Code) {
				fail(i, "jump target %d out of bounds", target)
			}
		case opcode.FormatVBVC:
			checkReg(i, int(instr.A()), "A")
			checkReg(i, int(instr.A())+int(instr.VB())-1, "argument window end")
		}
	}

	// The frame must not be able to fall off the end: the last instruction
	// has to unconditionally leave the function or jump backward.
	last := fn.Code[len(fn.Code)-1]
	switch last.Op() {
	case opcode.RETURN:
	case opcode.JUMP:
		if last.SJx() >= 0 {
			fail(len(fn.Code)-1, "trailing jump does not branch backward")
		}
	default:
		fail(len(fn.Code)-1, "function does not end in RETURN or JUMP")
	}

	return errs
}
