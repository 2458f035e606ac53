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

func TestSlotScalars(t *testing.T) {
	v := newTestVM()
	v.EnsureSlots(4)

	v.SetSlotBool(0, true)
	v.SetSlotDouble(1, 3.5)
	v.SetSlotString(2, "hi")
	v.SetSlotNull(3)

	if !v.GetSlotBool(0) {
		t.Fatal("slot 0 bool")
	}
	if v.GetSlotDouble(1) != 3.5 {
		t.Fatal("slot 1 double")
	}
	if v.GetSlotString(2) != "hi" {
		t.Fatal("slot 2 string")
	}
	if v.GetSlotType(3) != value.Null {
		t.Fatal("slot 3 null")
	}
	if v.SlotCount() < 4 {
		t.Fatalf("SlotCount = %d; want >= 4", v.SlotCount())
	}
}

func TestSlotListOps(t *testing.T) {
	v := newTestVM()
	v.EnsureSlots(3)

	v.SetSlotNewList(0)
	v.SetSlotDouble(1, 10)
	v.InsertInList(0, -1, 1)
	v.SetSlotDouble(1, 20)
	v.InsertInList(0, -1, 1)

	if got := v.GetListCount(0); got != 2 {
		t.Fatalf("GetListCount = %d; want 2", got)
	}
	v.GetListElement(0, 1, 2)
	if v.GetSlotDouble(2) != 20 {
		t.Fatal("GetListElement read the wrong element")
	}
	v.SetSlotDouble(2, 99)
	v.SetListElement(0, 0, 2)
	v.GetListElement(0, 0, 1)
	if v.GetSlotDouble(1) != 99 {
		t.Fatal("SetListElement did not stick")
	}
}

func TestSlotMapOps(t *testing.T) {
	v := newTestVM()
	v.EnsureSlots(4)

	v.SetSlotNewMap(0)
	v.SetSlotString(1, "k")
	v.SetSlotDouble(2, 5)
	if err := v.SetMapValue(0, 1, 2); err != nil {
		t.Fatal(err)
	}
	if got := v.GetMapCount(0); got != 1 {
		t.Fatalf("GetMapCount = %d; want 1", got)
	}
	if !v.GetMapContainsKey(0, 1) {
		t.Fatal("GetMapContainsKey missed a present key")
	}
	v.GetMapValue(0, 1, 3)
	if v.GetSlotDouble(3) != 5 {
		t.Fatal("GetMapValue read the wrong value")
	}
	v.RemoveMapValue(0, 1, 3)
	if v.GetSlotDouble(3) != 5 {
		t.Fatal("RemoveMapValue did not return the removed value")
	}
	if v.GetMapContainsKey(0, 1) {
		t.Fatal("key still present after RemoveMapValue")
	}
}

func TestSlotModuleVariableAccess(t *testing.T) {
	v := newTestVM()
	m := v.NewModule("config")
	m.DeclareVariable("answer", value.NumVal(42))

	if !v.HasModule("config") {
		t.Fatal("HasModule missed a registered module")
	}
	if v.HasModule("nope") {
		t.Fatal("HasModule invented a module")
	}
	if !v.HasVariable("config", "answer") {
		t.Fatal("HasVariable missed a declared variable")
	}
	if v.HasVariable("config", "question") {
		t.Fatal("HasVariable invented a variable")
	}

	v.EnsureSlots(1)
	v.GetVariable("config", "answer", 0)
	if v.GetSlotDouble(0) != 42 {
		t.Fatalf("GetVariable = %g; want 42", v.GetSlotDouble(0))
	}

	// The core module is addressed by the empty name.
	if !v.HasVariable("", "Object") {
		t.Fatal("core module lookup failed for Object")
	}
}

func TestCallHandle(t *testing.T) {
	v := newTestVM()
	v.EnsureSlots(2)
	v.SetSlotNewList(0)
	listHandle := v.GetSlotHandle(0)
	v.SetSlotDouble(1, 7)

	h := v.MakeCallHandle("add(_)")
	if res := v.Call(h); res != ResultSuccess {
		t.Fatalf("Call = %v", res)
	}
	// List.add returns its argument, delivered to slot 0.
	if v.GetSlotDouble(0) != 7 {
		t.Fatalf("call result = %g; want 7", v.GetSlotDouble(0))
	}
	l := listHandle.Value().AsObj().(*List)
	if len(l.Elements) != 1 || l.Elements[0].AsNum() != 7 {
		t.Fatalf("handle-held list after call: %v", l.Elements)
	}
	v.ReleaseHandle(listHandle)
	v.ReleaseHandle(h)
}

func TestCallHandleRuntimeError(t *testing.T) {
	v := newTestVM()
	v.EnsureSlots(1)
	v.SetSlotDouble(0, 1)

	h := v.MakeCallHandle("noSuch()")
	if res := v.Call(h); res != ResultRuntimeError {
		t.Fatalf("Call on a missing method = %v; want runtime error", res)
	}
}

func TestForeignMethodSlotWindow(t *testing.T) {
	sawArg := 0.0
	v := NewVM(Config{
		BindForeignMethod: func(vm *VM, module, className string, isStatic bool, signature string) ForeignFn {
			if signature != "double(_)" {
				return nil
			}
			return func(vm *VM) error {
				sawArg = vm.GetSlotDouble(1)
				vm.SetSlotDouble(0, sawArg*2)
				return nil
			}
		},
	})
	m := v.NewModule("main")
	sym := v.MethodSymbol("double(_)")

	fn := v.NewFn(FnProto{
		Module:   m,
		MaxSlots: 6,
		Constants: []value.Value{
			v.NewStringValue("Calc"),
			v.NewStringValue("double(_)"),
			value.NumVal(21),
		},
		Code: []opcode.Instruction{
			abc(opcode.LOADNULL, 0, 0, 0),
			abx(opcode.LOADK, 1, 0),
			asbx(opcode.CLASS, 0, 0),
			abx(opcode.LOADK, 1, 1), // foreign signature as the body
			asbx(opcode.METHOD, 0, int32(sym+1)),
			abx(opcode.CONSTRUCT, 0, 0),
			abx(opcode.LOADK, 1, 2),
			callk(0, 2, sym),
			abx(opcode.SETGLOBAL, 0, 0),
			ret(0),
		},
	})
	if res := v.Interpret("main", v.NewClosure(fn)); res != ResultSuccess {
		t.Fatalf("Interpret = %v", res)
	}
	if sawArg != 21 {
		t.Fatalf("foreign method saw argument %g; want 21", sawArg)
	}
	wantNum(t, global(t, m, 0), 42)
}
