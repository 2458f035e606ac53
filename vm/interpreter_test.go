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

	"github.com/wrenscript/wren/opcode"
	"github.com/wrenscript/wren/value"
)

// ---- Bytecode builder helpers ----------------------------------------------

func abc(op opcode.Op, a uint8, b, c uint16) opcode.Instruction {
	return opcode.EncodeABC(op, a, b, c)
}

func abx(op opcode.Op, a uint8, bx uint32) opcode.Instruction {
	return opcode.EncodeABx(op, a, bx)
}

func asbx(op opcode.Op, a uint8, sbx int32) opcode.Instruction {
	return opcode.EncodeAsBx(op, a, sbx)
}

func jump(sjx int32) opcode.Instruction {
	return opcode.EncodeSJx(opcode.JUMP, sjx)
}

func callk(a, argCount uint8, symbol int) opcode.Instruction {
	return opcode.EncodeVBVC(opcode.CALLK, a, argCount, uint16(symbol))
}

func ret(a uint8) opcode.Instruction {
	return abc(opcode.RETURN, a, 1, 0)
}

// flagged packs a register index with its K-bit for the opcodes that carry
// one in the B slot.
func flagged(reg uint8, flag bool) uint16 {
	return opcode.EncodeFlagged(reg, flag)
}

// newTestVM creates a VM with no host callbacks and default heap tuning.
func newTestVM() *VM {
	return NewVM(Config{})
}

// buildModule makes a named module plus a module-body closure over code.
func buildModule(v *VM, name string, maxSlots int, constants []value.Value, code ...opcode.Instruction) (*Module, *Closure) {
	m := v.NewModule(name)
	fn := v.NewFn(FnProto{
		Module:    m,
		MaxSlots:  maxSlots,
		Constants: constants,
		Code:      code,
		Name:      name + " body",
	})
	return m, v.NewClosure(fn)
}

// runModule interprets a module body and fails the test on a non-success
// result.
func runModule(t *testing.T, v *VM, name string, maxSlots int, constants []value.Value, code ...opcode.Instruction) *Module {
	t.Helper()
	m, closure := buildModule(v, name, maxSlots, constants, code...)
	if res := v.Interpret(name, closure); res != ResultSuccess {
		t.Fatalf("Interpret(%q) = %v; want success", name, res)
	}
	return m
}

// global reads a module variable by slot and fails if it was never written.
func global(t *testing.T, m *Module, idx int) value.Value {
	t.Helper()
	if idx >= len(m.Variables) {
		t.Fatalf("module %s has no variable slot %d", m, idx)
	}
	return m.Variables[idx]
}

func wantNum(t *testing.T, got value.Value, want float64) {
	t.Helper()
	if !got.IsNum() || got.AsNum() != want {
		t.Fatalf("got %s; want %g", got, want)
	}
}

// ---- Data movement ---------------------------------------------------------

func TestLoadAndMove(t *testing.T) {
	v := newTestVM()
	m := runModule(t, v, "main", 4,
		[]value.Value{value.NumVal(7)},
		abx(opcode.LOADK, 0, 0),
		abc(opcode.MOVE, 1, 0, 0),
		abx(opcode.SETGLOBAL, 1, 0),
		ret(1),
	)
	wantNum(t, global(t, m, 0), 7)
}

func TestLoadBoolSkipsExactlyOne(t *testing.T) {
	v := newTestVM()
	// r0 := true (skip next); the skipped LOADK would clobber r0 with 99.
	m := runModule(t, v, "main", 4,
		[]value.Value{value.NumVal(99)},
		abc(opcode.LOADBOOL, 0, 1, 1),
		abx(opcode.LOADK, 0, 0),
		abx(opcode.SETGLOBAL, 0, 0),
		ret(0),
	)
	if got := global(t, m, 0); got.Type() != value.True {
		t.Fatalf("got %s; want true (LOADBOOL C=1 must skip one instruction)", got)
	}
}

func TestLoadNull(t *testing.T) {
	v := newTestVM()
	m := runModule(t, v, "main", 2,
		nil,
		abc(opcode.LOADNULL, 0, 0, 0),
		abx(opcode.SETGLOBAL, 0, 0),
		ret(0),
	)
	if !global(t, m, 0).IsNull() {
		t.Fatal("LOADNULL did not produce null")
	}
}

// ---- Arithmetic ------------------------------------------------------------

func TestArithmetic(t *testing.T) {
	cases := []struct {
		name string
		op   opcode.Op
		l, r float64
		want float64
	}{
		{"add", opcode.ADD, 2, 3, 5},
		{"sub", opcode.SUB, 10, 4, 6},
		{"mul", opcode.MUL, 6, 7, 42},
		{"div", opcode.DIV, 9, 2, 4.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestVM()
			m := runModule(t, v, "main", 4,
				[]value.Value{value.NumVal(tc.l), value.NumVal(tc.r)},
				abx(opcode.LOADK, 0, 0),
				abx(opcode.LOADK, 1, 1),
				abc(tc.op, 2, 0, 1),
				abx(opcode.SETGLOBAL, 2, 0),
				ret(2),
			)
			wantNum(t, global(t, m, 0), tc.want)
		})
	}
}

// TestArithmeticKAsymmetry checks that the K-bit preserves operand order for
// the non-commutative ops: SUBK with the constant on the left computes K-R,
// with it on the right computes R-K.
func TestArithmeticKAsymmetry(t *testing.T) {
	v := newTestVM()
	m := runModule(t, v, "main", 4,
		[]value.Value{value.NumVal(3), value.NumVal(10)},
		abx(opcode.LOADK, 0, 0), // r0 = 3
		abc(opcode.SUBK, 1, flagged(0, false), 1), // r1 = r0 - 10 = -7
		abc(opcode.SUBK, 2, flagged(0, true), 1),  // r2 = 10 - r0 = 7
		abx(opcode.SETGLOBAL, 1, 0),
		abx(opcode.SETGLOBAL, 2, 1),
		ret(0),
	)
	wantNum(t, global(t, m, 0), -7)
	wantNum(t, global(t, m, 1), 7)
}

func TestNegateAndNot(t *testing.T) {
	v := newTestVM()
	m := runModule(t, v, "main", 4,
		[]value.Value{value.NumVal(5)},
		abx(opcode.LOADK, 0, 0),
		abc(opcode.NEG, 1, 0, 0),
		abc(opcode.NOT, 2, 0, 0), // numbers are truthy
		abx(opcode.SETGLOBAL, 1, 0),
		abx(opcode.SETGLOBAL, 2, 1),
		ret(0),
	)
	wantNum(t, global(t, m, 0), -5)
	if got := global(t, m, 1); got.Type() != value.False {
		t.Fatalf("!5 = %s; want false", got)
	}
}

func TestStringConcat(t *testing.T) {
	v := newTestVM()
	m := runModule(t, v, "main", 4,
		[]value.Value{v.NewStringValue("foo"), v.NewStringValue("bar")},
		abx(opcode.LOADK, 0, 0),
		abx(opcode.LOADK, 1, 1),
		abc(opcode.ADD, 2, 0, 1),
		abx(opcode.SETGLOBAL, 2, 0),
		ret(2),
	)
	got, ok := global(t, m, 0).AsObj().(*String)
	if !ok || got.Value != "foobar" {
		t.Fatalf(`"foo" + "bar" = %v; want "foobar"`, global(t, m, 0))
	}
}

func TestDivideByZeroIsInfinity(t *testing.T) {
	v := newTestVM()
	m := runModule(t, v, "main", 4,
		[]value.Value{value.NumVal(1), value.NumVal(0)},
		abx(opcode.LOADK, 0, 0),
		abx(opcode.LOADK, 1, 1),
		abc(opcode.DIV, 2, 0, 1),
		abx(opcode.SETGLOBAL, 2, 0),
		ret(2),
	)
	if got := global(t, m, 0); got.String() != "infinity" {
		t.Fatalf("1/0 = %s; want infinity", got)
	}
}

// ---- Relational + control flow ---------------------------------------------

func TestRelational(t *testing.T) {
	cases := []struct {
		name string
		op   opcode.Op
		l, r float64
		want bool
	}{
		{"lt true", opcode.LT, 1, 2, true},
		{"lt false", opcode.LT, 2, 1, false},
		{"lte equal", opcode.LTE, 2, 2, true},
		{"eq true", opcode.EQ, 3, 3, true},
		{"eq false", opcode.EQ, 3, 4, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestVM()
			m := runModule(t, v, "main", 4,
				[]value.Value{value.NumVal(tc.l), value.NumVal(tc.r)},
				abx(opcode.LOADK, 0, 0),
				abx(opcode.LOADK, 1, 1),
				abc(tc.op, 2, 0, 1),
				abx(opcode.SETGLOBAL, 2, 0),
				ret(2),
			)
			got := global(t, m, 0)
			if got.Truthy() != tc.want {
				t.Fatalf("%s(%g, %g) = %s; want %v", tc.op, tc.l, tc.r, got, tc.want)
			}
		})
	}
}

// fibProgram builds the iterated-fibonacci loop: n iterations of
// (a, b) = (b, a+b) starting from (0, 1), leaving a in module variable 0.
func fibProgram(n float64) ([]value.Value, []opcode.Instruction) {
	constants := []value.Value{value.NumVal(n), value.NumVal(0), value.NumVal(1)}
	code := []opcode.Instruction{
		abx(opcode.LOADK, 0, 0), // r0 = n
		abx(opcode.LOADK, 1, 1), // r1 = a = 0
		abx(opcode.LOADK, 2, 2), // r2 = b = 1
		abc(opcode.EQK, 3, flagged(0, false), 1), // r3 = (n == 0)
		abc(opcode.TEST, 0, 3, 1),                // if !r3, skip the exit jump
		jump(6),                                  // -> 12
		abc(opcode.ADD, 4, 1, 2),
		abc(opcode.MOVE, 1, 2, 0),
		abc(opcode.MOVE, 2, 4, 0),
		abc(opcode.SUBK, 0, flagged(0, false), 2), // n = n - 1
		abc(opcode.EQK, 3, flagged(0, false), 1),
		jump(-8), // -> 4
		abx(opcode.SETGLOBAL, 1, 0),
		ret(1),
	}
	return constants, code
}

func TestFibLoop(t *testing.T) {
	v := newTestVM()
	constants, code := fibProgram(60)
	m := runModule(t, v, "main", 6, constants, code...)
	wantNum(t, global(t, m, 0), 1548008755920)
}

// TestFibLoopSteadyState reruns the loop many times and checks that the
// collector returns the heap to the same size each cycle: the reachable set
// after a run is identical run over run, so bytesAllocated must be too.
func TestFibLoopSteadyState(t *testing.T) {
	v := newTestVM()
	constants, code := fibProgram(60)
	m, closure := buildModule(v, "main", 6, constants, code...)

	if res := v.Interpret("main", closure); res != ResultSuccess {
		t.Fatalf("Interpret = %v", res)
	}
	v.collectGarbage()
	steady := v.bytesAllocated

	for i := 0; i < 200; i++ {
		if res := v.Interpret("main", closure); res != ResultSuccess {
			t.Fatalf("iteration %d: Interpret = %v", i, res)
		}
	}
	v.collectGarbage()
	if v.bytesAllocated != steady {
		t.Fatalf("heap drifted: %d bytes after 200 runs; want steady %d", v.bytesAllocated, steady)
	}
	wantNum(t, global(t, m, 0), 1548008755920)
}

func TestFibLoopUnderGCStress(t *testing.T) {
	v := NewVM(Config{DebugStressGC: true})
	constants, code := fibProgram(30)
	m := runModule(t, v, "main", 6, constants, code...)
	wantNum(t, global(t, m, 0), 832040)
}

// ---- Constants are copy-on-load --------------------------------------------

func TestLoadKCopiesListConstant(t *testing.T) {
	v := newTestVM()
	listConst := v.NewListValue(value.NumVal(1))
	sym := v.MethodSymbol("add(_)")
	m := runModule(t, v, "main", 4,
		[]value.Value{listConst, value.NumVal(2)},
		abx(opcode.LOADK, 0, 0),
		abx(opcode.LOADK, 1, 1),
		callk(0, 2, sym), // loadedList.add(2)
		abx(opcode.LOADK, 2, 0),
		abx(opcode.SETGLOBAL, 2, 0),
		ret(2),
	)
	fresh := global(t, m, 0).AsObj().(*List)
	if len(fresh.Elements) != 1 {
		t.Fatalf("constant list was mutated through LOADK: %d elements; want 1", len(fresh.Elements))
	}
	if orig := listConst.AsObj().(*List); len(orig.Elements) != 1 {
		t.Fatalf("constant-table list itself was mutated: %d elements", len(orig.Elements))
	}
}

// ---- List operators ---------------------------------------------------------

func TestListAddAndMul(t *testing.T) {
	v := newTestVM()
	la := v.NewListValue(value.NumVal(1), value.NumVal(2))
	lb := v.NewListValue(value.NumVal(3))
	m := runModule(t, v, "main", 4,
		[]value.Value{la, lb, value.NumVal(2)},
		abx(opcode.LOADK, 0, 0),
		abx(opcode.LOADK, 1, 1),
		abc(opcode.ADD, 2, 0, 1), // [1,2] + [3]
		abx(opcode.SETGLOBAL, 2, 0),
		abx(opcode.LOADK, 1, 2),
		abc(opcode.MUL, 2, 0, 1), // [1,2] * 2
		abx(opcode.SETGLOBAL, 2, 1),
		ret(2),
	)
	sum := global(t, m, 0).AsObj().(*List)
	if len(sum.Elements) != 3 || sum.Elements[2].AsNum() != 3 {
		t.Fatalf("list + list produced %d elements", len(sum.Elements))
	}
	rep := global(t, m, 1).AsObj().(*List)
	if len(rep.Elements) != 4 || rep.Elements[2].AsNum() != 1 {
		t.Fatalf("list * 2 produced wrong elements: %v", rep.Elements)
	}
}

func TestAddElem(t *testing.T) {
	v := newTestVM()
	m := runModule(t, v, "main", 4,
		[]value.Value{v.NewListValue(), value.NumVal(9)},
		abx(opcode.LOADK, 0, 0),
		abx(opcode.LOADK, 1, 1),
		abc(opcode.ADDELEM, 0, flagged(0, false), 1),
		abx(opcode.SETGLOBAL, 0, 0),
		ret(0),
	)
	l := global(t, m, 0).AsObj().(*List)
	if len(l.Elements) != 1 || l.Elements[0].AsNum() != 9 {
		t.Fatalf("ADDELEM result: %v", l.Elements)
	}
}

// ---- Subscripts and ranges -------------------------------------------------

func TestSubscriptListAndMap(t *testing.T) {
	v := newTestVM()
	lst := v.NewListValue(value.NumVal(10), value.NumVal(20))
	mp := v.NewMapValue(v.NewStringValue("k"), value.NumVal(33))
	m := runModule(t, v, "main", 6,
		[]value.Value{lst, mp, value.NumVal(1), v.NewStringValue("k"), value.NumVal(44)},
		abx(opcode.LOADK, 0, 0),
		abc(opcode.GETSUB, 1, flagged(0, true), 2), // r1 = lst[K2=1] via const key
		abx(opcode.SETGLOBAL, 1, 0),
		abx(opcode.LOADK, 0, 1),
		abc(opcode.GETSUB, 1, flagged(0, true), 3), // r1 = map["k"]
		abx(opcode.SETGLOBAL, 1, 1),
		abx(opcode.LOADK, 2, 4),                    // r2 = 44
		abc(opcode.SETSUB, 0, flagged(2, true), 3), // map["k"] = r2
		abc(opcode.GETSUB, 1, flagged(0, true), 3),
		abx(opcode.SETGLOBAL, 1, 2),
		ret(1),
	)
	wantNum(t, global(t, m, 0), 20)
	wantNum(t, global(t, m, 1), 33)
	wantNum(t, global(t, m, 2), 44)
}

func TestRangeOpcodeAndIteration(t *testing.T) {
	v := newTestVM()
	// sum = 0; for i in 1..4 (inclusive) sum = sum + i  => 10
	m := runModule(t, v, "main", 8,
		[]value.Value{value.NumVal(1), value.NumVal(4), value.NumVal(0)},
		abx(opcode.LOADK, 0, 0),
		abx(opcode.LOADK, 1, 1),
		abc(opcode.RANGE, 2, flagged(0, true), 1), // r2 = 1..4 inclusive
		abx(opcode.LOADK, 3, 2),                   // r3 = sum = 0
		abc(opcode.LOADNULL, 4, 0, 0),             // r4 = iterator
		abc(opcode.ITERATE, 4, 2, 4),              // r4 = next(r2, r4) or false
		abc(opcode.TEST, 0, 4, 0),                 // if r4 truthy, skip exit
		jump(3),                                   // -> 11 exit
		abc(opcode.ITERATORVALUE, 5, 2, 4),        // r5 = value
		abc(opcode.ADD, 3, 3, 5),
		jump(-6), // -> 5
		abx(opcode.SETGLOBAL, 3, 0),
		ret(3),
	)
	wantNum(t, global(t, m, 0), 10)
}
