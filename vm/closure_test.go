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

// TestClosureCapturesAfterReturn is the classic escape test:
//
//	var make = Fn.new {|x| Fn.new { x } }
//	var f = make.call(5)
//	f.call() == 5
//
// The upvalue for x must be closed when make's frame returns, so the inner
// closure still reads 5 afterwards.
func TestClosureCapturesAfterReturn(t *testing.T) {
	v := newTestVM()
	m := v.NewModule("main")
	symCall0 := v.MethodSymbol("call()")
	symCall1 := v.MethodSymbol("call(_)")

	// inner: no params, one upvalue (x).
	innerFn := v.NewFn(FnProto{
		Module:      m,
		MaxSlots:    2,
		NumUpvalues: 1,
		Code: []opcode.Instruction{
			abx(opcode.GETUPVAL, 1, 0),
			ret(1),
		},
	})
	innerProto := value.ObjVal(v.NewPrototypeClosure(innerFn, []CompilerUpvalue{{IsLocal: true, Index: 1}}))

	// outer: |x| -> closure over x. x lives in r1 (r0 is the receiver).
	outerFn := v.NewFn(FnProto{
		Module:    m,
		MaxSlots:  3,
		Arity:     1,
		Constants: []value.Value{innerProto},
		Code: []opcode.Instruction{
			abx(opcode.CLOSURE, 2, 0),
			ret(2),
		},
	})
	outerProto := value.ObjVal(v.NewPrototypeClosure(outerFn, nil))

	fn := v.NewFn(FnProto{
		Module:    m,
		MaxSlots:  4,
		Constants: []value.Value{outerProto, value.NumVal(5)},
		Code: []opcode.Instruction{
			abx(opcode.CLOSURE, 0, 0), // r0 = make
			abx(opcode.LOADK, 1, 1),   // r1 = 5
			callk(0, 2, symCall1),     // r0 = make.call(5)
			callk(0, 1, symCall0),     // r0 = f.call()
			abx(opcode.SETGLOBAL, 0, 0),
			ret(0),
		},
	})
	if res := v.Interpret("main", v.NewClosure(fn)); res != ResultSuccess {
		t.Fatalf("Interpret = %v", res)
	}
	wantNum(t, global(t, m, 0), 5)
}

// TestSharedUpvalue: two closures built over the same local observe each
// other's writes through the shared upvalue, both before and after close.
func TestSharedUpvalue(t *testing.T) {
	v := newTestVM()
	m := v.NewModule("main")
	symCall0 := v.MethodSymbol("call()")

	// getter: returns the upvalue.
	getterFn := v.NewFn(FnProto{
		Module:      m,
		MaxSlots:    2,
		NumUpvalues: 1,
		Code: []opcode.Instruction{
			abx(opcode.GETUPVAL, 1, 0),
			ret(1),
		},
	})
	getterProto := value.ObjVal(v.NewPrototypeClosure(getterFn, []CompilerUpvalue{{IsLocal: true, Index: 1}}))

	// setter: upvalue = 77.
	setterFn := v.NewFn(FnProto{
		Module:      m,
		MaxSlots:    2,
		NumUpvalues: 1,
		Constants:   []value.Value{value.NumVal(77)},
		Code: []opcode.Instruction{
			abx(opcode.LOADK, 1, 0),
			abx(opcode.SETUPVAL, 1, 0),
			ret(1),
		},
	})
	setterProto := value.ObjVal(v.NewPrototypeClosure(setterFn, []CompilerUpvalue{{IsLocal: true, Index: 1}}))

	// maker: |unused| local x in r1; returns [getter, setter] via globals.
	makerFn := v.NewFn(FnProto{
		Module:    m,
		MaxSlots:  4,
		Arity:     1,
		Constants: []value.Value{getterProto, setterProto},
		Code: []opcode.Instruction{
			abx(opcode.CLOSURE, 2, 0),
			abx(opcode.SETGLOBAL, 2, 1), // G1 = getter
			abx(opcode.CLOSURE, 2, 1),
			abx(opcode.SETGLOBAL, 2, 2), // G2 = setter
			ret(2),
		},
	})
	makerProto := value.ObjVal(v.NewPrototypeClosure(makerFn, nil))

	fn := v.NewFn(FnProto{
		Module:    m,
		MaxSlots:  4,
		Constants: []value.Value{makerProto, value.NumVal(1)},
		Code: []opcode.Instruction{
			abx(opcode.CLOSURE, 0, 0),
			abx(opcode.LOADK, 1, 1), // x = 1
			callk(0, 2, v.MethodSymbol("call(_)")),
			abx(opcode.GETGLOBAL, 0, 2), // setter
			callk(0, 1, symCall0),       // upvalue = 77 (already closed)
			abx(opcode.GETGLOBAL, 0, 1), // getter
			callk(0, 1, symCall0),
			abx(opcode.SETGLOBAL, 0, 0), // G0 = getter() == 77
			ret(0),
		},
	})
	if res := v.Interpret("main", v.NewClosure(fn)); res != ResultSuccess {
		t.Fatalf("Interpret = %v", res)
	}
	wantNum(t, global(t, m, 0), 77)
}

// ---- captureUpvalue / closeUpvalues unit tests -----------------------------

func TestCaptureUpvalueDedupes(t *testing.T) {
	v := newTestVM()
	f := newFiber(v, nil)
	f.ensureStack(8)

	u1 := f.captureUpvalue(3)
	u2 := f.captureUpvalue(3)
	if u1 != u2 {
		t.Fatal("capturing the same slot twice returned distinct upvalues")
	}
}

func TestCaptureUpvalueSortedDescending(t *testing.T) {
	v := newTestVM()
	f := newFiber(v, nil)
	f.ensureStack(8)

	f.captureUpvalue(2)
	f.captureUpvalue(5)
	f.captureUpvalue(4)

	var slots []int
	for u := f.openUpvals; u != nil; u = u.nextOpen {
		slots = append(slots, u.slot)
	}
	want := []int{5, 4, 2}
	if len(slots) != len(want) {
		t.Fatalf("open list has %d entries; want %d", len(slots), len(want))
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("open list order %v; want %v", slots, want)
		}
	}
}

func TestCloseUpvalues(t *testing.T) {
	v := newTestVM()
	f := newFiber(v, nil)
	f.ensureStack(8)
	f.stack[2] = value.NumVal(20)
	f.stack[5] = value.NumVal(50)

	low := f.captureUpvalue(2)
	high := f.captureUpvalue(5)

	f.closeUpvalues(4)

	if low.open != true || high.open != false {
		t.Fatal("closeUpvalues(4) must close slot 5 and leave slot 2 open")
	}
	// The closed upvalue keeps its snapshot even after the stack slot is
	// reused.
	f.stack[5] = value.NumVal(-1)
	if got := high.Value(); got.AsNum() != 50 {
		t.Fatalf("closed upvalue reads %s; want 50", got)
	}
	if got := low.Value(); got.AsNum() != 20 {
		t.Fatalf("open upvalue reads %s; want 20", got)
	}
	for u := f.openUpvals; u != nil; u = u.nextOpen {
		if u.slot >= 4 {
			t.Fatal("an upvalue at or above the close boundary is still on the open list")
		}
	}
}
