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
	"strings"
	"testing"

	"github.com/wrenscript/wren/opcode"
	"github.com/wrenscript/wren/value"
)

func TestVerifyCleanFunction(t *testing.T) {
	v := newTestVM()
	m := v.NewModule("main")
	constants, code := fibProgram(10)
	fn := v.NewFn(FnProto{Module: m, MaxSlots: 6, Constants: constants, Code: code})

	if errs := VerifyFn(fn); len(errs) != 0 {
		t.Fatalf("clean function reported errors: %v", errs)
	}
}

func TestVerifyCatchesDefects(t *testing.T) {
	v := newTestVM()
	m := v.NewModule("main")

	cases := []struct {
		name string
		fn   *Fn
		want string
	}{
		{
			"constant out of bounds",
			v.NewFn(FnProto{Module: m, MaxSlots: 4, Code: []opcode.Instruction{
				abx(opcode.LOADK, 0, 9),
				ret(0),
			}}),
			"constant index",
		},
		{
			"jump out of bounds",
			v.NewFn(FnProto{Module: m, MaxSlots: 4, Code: []opcode.Instruction{
				jump(100),
				ret(0),
			}}),
			"jump target",
		},
		{
			"register out of frame",
			v.NewFn(FnProto{Module: m, MaxSlots: 2, Code: []opcode.Instruction{
				abc(opcode.MOVE, 7, 0, 0),
				ret(0),
			}}),
			"out of frame",
		},
		{
			"falls off the end",
			v.NewFn(FnProto{Module: m, MaxSlots: 2, Constants: []value.Value{value.NumVal(0)}, Code: []opcode.Instruction{
				abx(opcode.LOADK, 0, 0),
			}}),
			"does not end",
		},
		{
			"empty function",
			v.NewFn(FnProto{Module: m, MaxSlots: 2}),
			"no code",
		},
		{
			"call window past frame",
			v.NewFn(FnProto{Module: m, MaxSlots: 3, Code: []opcode.Instruction{
				callk(1, 4, 0),
				ret(0),
			}}),
			"argument window",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := VerifyFn(tc.fn)
			if len(errs) == 0 {
				t.Fatal("no errors reported")
			}
			found := false
			for _, e := range errs {
				if strings.Contains(e.Message, tc.want) {
					found = true
				}
				if e.Error() == "" {
					t.Error("empty Error() rendering")
				}
			}
			if !found {
				t.Fatalf("errors %v do not mention %q", errs, tc.want)
			}
		})
	}
}

func TestDisassemble(t *testing.T) {
	v := newTestVM()
	m := v.NewModule("main")
	fn := v.NewFn(FnProto{
		Module:    m,
		MaxSlots:  4,
		Constants: []value.Value{value.NumVal(7)},
		Code: []opcode.Instruction{
			abx(opcode.LOADK, 0, 0),
			abc(opcode.ADD, 1, 0, 0),
			jump(-3),
		},
		Name: "loop",
	})

	out := Disassemble(fn)
	for _, want := range []string{"loop", "LOADK", "ADD", "JUMP", "; 7"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
	if got := strings.Count(out, "\n"); got != 4 { // header + 3 instructions
		t.Errorf("disassembly has %d lines; want 4:\n%s", got, out)
	}
}
