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

import "github.com/wrenscript/wren/value"

// The slot API is the host's data-exchange surface (spec.md §6): a window
// of value slots on the current fiber's stack. During a foreign method call
// the window is the method's argument registers (slot 0 = receiver = return
// slot); between interpreter runs the host owns a window at the bottom of a
// dedicated API fiber, created on first use.

// EnsureSlots guarantees at least n slots are addressable. Outside any
// foreign call, this (re)establishes the host's own slot window.
func (v *VM) EnsureSlots(n int) {
	if v.fiber == nil {
		f := newFiber(v, nil)
		f.ensureStack(n)
		v.fiber = f
	}
	f := v.fiber
	f.ensureStack(f.apiStart + n)
	if f.apiLen < n {
		for i := f.apiLen; i < n; i++ {
			f.stack[f.apiStart+i] = value.NullVal
		}
		f.apiLen = n
	}
}

// SlotCount returns the number of slots currently addressable.
func (v *VM) SlotCount() int {
	if v.fiber == nil {
		return 0
	}
	return v.fiber.apiLen
}

func (v *VM) slotIndex(slot int) int {
	if v.fiber == nil || slot < 0 || slot >= v.fiber.apiLen {
		panic("vm: slot index out of range; call EnsureSlots first")
	}
	return v.fiber.apiStart + slot
}

// GetSlot returns the raw value in slot.
func (v *VM) GetSlot(slot int) value.Value {
	return v.fiber.stack[v.slotIndex(slot)]
}

// SetSlot stores a raw value into slot.
func (v *VM) SetSlot(slot int, val value.Value) {
	v.fiber.stack[v.slotIndex(slot)] = val
}

// GetSlotType reports the variant tag of the value in slot.
func (v *VM) GetSlotType(slot int) value.Type {
	return v.GetSlot(slot).Type()
}

// GetSlotBool reads slot as a boolean (truthiness for non-bool values).
func (v *VM) GetSlotBool(slot int) bool {
	return v.GetSlot(slot).Truthy()
}

// GetSlotDouble reads slot as a number; zero if it holds anything else.
func (v *VM) GetSlotDouble(slot int) float64 {
	val := v.GetSlot(slot)
	if !val.IsNum() {
		return 0
	}
	return val.AsNum()
}

// GetSlotString reads slot as a string; "" if it holds anything else.
func (v *VM) GetSlotString(slot int) string {
	if s, ok := asObjSafe(v.GetSlot(slot)).(*String); ok {
		return s.Value
	}
	return ""
}

// GetSlotBytes reads slot's string content as raw bytes.
func (v *VM) GetSlotBytes(slot int) []byte {
	return []byte(v.GetSlotString(slot))
}

// GetSlotForeign returns the inline byte buffer of the Foreign in slot, or
// nil if the slot holds anything else. The buffer is shared, not copied.
func (v *VM) GetSlotForeign(slot int) []byte {
	if f, ok := asObjSafe(v.GetSlot(slot)).(*Foreign); ok {
		return f.Data
	}
	return nil
}

// GetSlotHandle wraps the value in slot in a new GC-rooted Handle.
func (v *VM) GetSlotHandle(slot int) *Handle {
	return v.MakeHandle(v.GetSlot(slot))
}

// SetSlotBool stores a boolean into slot.
func (v *VM) SetSlotBool(slot int, b bool) { v.SetSlot(slot, value.BoolVal(b)) }

// SetSlotDouble stores a number into slot.
func (v *VM) SetSlotDouble(slot int, n float64) { v.SetSlot(slot, value.NumVal(n)) }

// SetSlotNull stores null into slot.
func (v *VM) SetSlotNull(slot int) { v.SetSlot(slot, value.NullVal) }

// SetSlotString stores a new String into slot.
func (v *VM) SetSlotString(slot int, s string) {
	v.SetSlot(slot, value.ObjVal(newString(v, s)))
}

// SetSlotBytes stores bytes into slot as a String object.
func (v *VM) SetSlotBytes(slot int, b []byte) { v.SetSlotString(slot, string(b)) }

// SetSlotNewList stores a fresh empty list into slot.
func (v *VM) SetSlotNewList(slot int) {
	v.SetSlot(slot, value.ObjVal(newList(v, 0)))
}

// SetSlotNewMap stores a fresh empty map into slot.
func (v *VM) SetSlotNewMap(slot int) {
	v.SetSlot(slot, value.ObjVal(newMap(v)))
}

// SetSlotNewForeign allocates a zero-filled Foreign of size bytes whose
// class is read from classSlot, stores it into slot, and returns its
// buffer. This is how a foreign class's <allocate> hook materializes its
// instance (spec.md §6).
func (v *VM) SetSlotNewForeign(slot, classSlot, size int) []byte {
	class, ok := asObjSafe(v.GetSlot(classSlot)).(*Class)
	if !ok {
		panic("vm: SetSlotNewForeign class slot does not hold a class")
	}
	f := newForeign(class, size)
	v.track(f)
	v.SetSlot(slot, value.ObjVal(f))
	return f.Data
}

// SetSlotHandle stores a handle's rooted value into slot.
func (v *VM) SetSlotHandle(slot int, h *Handle) { v.SetSlot(slot, h.value) }

// GetListCount returns the element count of the list in slot.
func (v *VM) GetListCount(slot int) int {
	if l, ok := asObjSafe(v.GetSlot(slot)).(*List); ok {
		return len(l.Elements)
	}
	return 0
}

// GetListElement copies list[index] from listSlot into elementSlot.
func (v *VM) GetListElement(listSlot, index, elementSlot int) {
	l := v.GetSlot(listSlot).AsObj().(*List)
	v.SetSlot(elementSlot, l.Elements[index])
}

// SetListElement stores the value in elementSlot at list[index].
func (v *VM) SetListElement(listSlot, index, elementSlot int) {
	l := v.GetSlot(listSlot).AsObj().(*List)
	l.Elements[index] = v.GetSlot(elementSlot)
}

// InsertInList inserts the value in elementSlot into the list at index; a
// negative index counts back from the end, -1 appending.
func (v *VM) InsertInList(listSlot, index, elementSlot int) {
	l := v.GetSlot(listSlot).AsObj().(*List)
	if index < 0 {
		index += len(l.Elements) + 1
	}
	l.insert(index, v.GetSlot(elementSlot))
}

// GetMapCount returns the live entry count of the map in slot.
func (v *VM) GetMapCount(slot int) int {
	if m, ok := asObjSafe(v.GetSlot(slot)).(*Map); ok {
		return m.Count()
	}
	return 0
}

// GetMapContainsKey reports whether the map in mapSlot has the key in
// keySlot.
func (v *VM) GetMapContainsKey(mapSlot, keySlot int) bool {
	m := v.GetSlot(mapSlot).AsObj().(*Map)
	found, err := m.ContainsKey(v.GetSlot(keySlot))
	return err == nil && found
}

// GetMapValue copies map[key] into valueSlot (null when absent).
func (v *VM) GetMapValue(mapSlot, keySlot, valueSlot int) {
	m := v.GetSlot(mapSlot).AsObj().(*Map)
	val, err := m.Get(v.GetSlot(keySlot))
	if err != nil || val.IsUndefined() {
		val = value.NullVal
	}
	v.SetSlot(valueSlot, val)
}

// SetMapValue stores valueSlot's value under keySlot's key in the map.
func (v *VM) SetMapValue(mapSlot, keySlot, valueSlot int) error {
	m := v.GetSlot(mapSlot).AsObj().(*Map)
	return m.Set(v.GetSlot(keySlot), v.GetSlot(valueSlot))
}

// RemoveMapValue removes keySlot's key from the map, leaving the removed
// value (or null) in removedValueSlot.
func (v *VM) RemoveMapValue(mapSlot, keySlot, removedValueSlot int) {
	m := v.GetSlot(mapSlot).AsObj().(*Map)
	removed, err := m.Remove(v.GetSlot(keySlot))
	if err != nil || removed.IsUndefined() {
		removed = value.NullVal
	}
	v.SetSlot(removedValueSlot, removed)
}

// HasModule reports whether a module is registered under name.
func (v *VM) HasModule(name string) bool {
	_, ok := v.modules.get(name)
	return ok
}

// HasVariable reports whether the named module declares variable name. An
// empty module name addresses the core module.
func (v *VM) HasVariable(module, name string) bool {
	m := v.moduleByName(module)
	if m == nil {
		return false
	}
	return m.findVariable(name) >= 0
}

// GetVariable copies a module-level variable into slot.
func (v *VM) GetVariable(module, name string, slot int) {
	m := v.moduleByName(module)
	if m == nil {
		v.SetSlotNull(slot)
		return
	}
	val, ok := m.Variable(name)
	if !ok {
		val = value.NullVal
	}
	v.SetSlot(slot, val)
}

func (v *VM) moduleByName(name string) *Module {
	if name == "" {
		return v.coreModule
	}
	m, _ := v.modules.get(name)
	return m
}

// AbortFiber sets the current fiber's error from a slot value; the
// surrounding foreign call's dispatcher propagates it (spec.md §6).
func (v *VM) AbortFiber(slot int) {
	v.fiber.Error = v.GetSlot(slot)
}

// PushRoot temporarily roots a value against collection, for host code
// holding objects across allocating calls. Pair with PopRoot.
func (v *VM) PushRoot(val value.Value) {
	if o, ok := asObjSafe(val).(Object); ok {
		v.pushRoot(o)
	}
}

// PopRoot drops the most recent PushRoot.
func (v *VM) PopRoot() { v.popRoot() }

// Call runs a call handle made with MakeCallHandle against the current slot
// window: slot 0 must hold the receiver, slots 1..arity the arguments. On
// success the result is in slot 0.
func (v *VM) Call(h *Handle) InterpretResult {
	closure, ok := asObjSafe(h.value).(*Closure)
	if !ok {
		return ResultRuntimeError
	}
	f := v.fiber
	if f == nil || f.apiLen == 0 {
		return ResultRuntimeError
	}
	f.ensureStack(f.apiStart + closure.Fn.MaxSlots)
	f.frames = append(f.frames, CallFrame{
		closure:    closure,
		stackStart: f.apiStart,
		rip:        0,
		returnReg:  -1,
	})
	err := v.run()
	// The fiber cleared itself on completion; restore it so the host can
	// read the result and reuse the window.
	v.fiber = f
	if err != nil {
		return ResultRuntimeError
	}
	return ResultSuccess
}
