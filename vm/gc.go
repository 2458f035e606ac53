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

// objectSize estimates an object's footprint: a fixed per-kind base plus any
// variable-size buffer, so sweep can recompute bytesAllocated without a
// separate per-object size cache (spec.md §4.7 step 1).
func objectSize(o Object) int {
	const headerSize = 32
	switch t := o.(type) {
	case *Class:
		return headerSize + (len(t.Methods)+len(t.StaticMethods))*24
	case *Closure:
		return headerSize + len(t.Upvalues)*8
	case *Fiber:
		return headerSize + len(t.stack)*16 + len(t.frames)*32
	case *Fn:
		return headerSize + len(t.Constants)*16 + len(t.Code)*4
	case *Foreign:
		return headerSize + len(t.Data)
	case *Instance:
		return headerSize + len(t.Fields)*16
	case *List:
		return headerSize + cap(t.Elements)*16
	case *Map:
		return headerSize + cap(t.entries)*48
	case *MapEntry:
		return headerSize
	case *Module:
		return headerSize + len(t.Variables)*16
	case *Range:
		return headerSize
	case *String:
		return headerSize + len(t.Value)
	case *Upvalue:
		return headerSize
	default:
		return headerSize
	}
}

// maybeCollect triggers a GC cycle if bytesAllocated has crossed nextGC, or
// unconditionally when stress is set (a debug aid used by tests to verify
// the "every reachable object stays reachable" property from spec.md §8).
func (v *VM) maybeCollect(stress bool) {
	if !stress && v.bytesAllocated <= v.nextGC {
		return
	}
	v.collectGarbage()
}

// collectGarbage runs one full mark-sweep cycle per spec.md §4.7.
func (v *VM) collectGarbage() {
	v.bytesAllocated = 0
	v.gray = v.gray[:0]

	v.grayRoots()
	v.blackenAll()
	v.sweep()

	v.nextGC = v.bytesAllocated + v.bytesAllocated*v.config.HeapGrowthPercent/100
	if v.nextGC < v.config.MinHeapSize {
		v.nextGC = v.config.MinHeapSize
	}
}

func (v *VM) grayRoots() {
	for _, m := range v.modules.byName {
		v.grayObject(m)
	}
	v.grayObject(v.coreModule)
	for _, o := range v.tempRoots {
		v.grayObject(o)
	}
	if v.fiber != nil {
		v.grayObject(v.fiber)
	}
	for _, h := range v.handles {
		v.grayValue(h.value)
	}
	v.grayClassChain()
}

// grayClassChain roots the built-in classes themselves, since they are
// reached only through the core module's variables in the common case but
// must stay reachable even if a host clears its core-module reference.
func (v *VM) grayClassChain() {
	for _, c := range []*Class{
		v.objectClass, v.classClass, v.boolClass, v.nullClass, v.numClass,
		v.stringClass, v.listClass, v.mapClass, v.rangeClass, v.fiberClass,
		v.fnClass, v.systemClass,
	} {
		if c != nil {
			v.grayObject(c)
		}
	}
}

func (v *VM) grayValue(val value.Value) {
	if val.IsObj() {
		if o, ok := val.AsObj().(Object); ok {
			v.grayObject(o)
		}
	}
}

func (v *VM) grayObject(o Object) {
	if o == nil {
		return
	}
	h := o.header()
	if h.isDark {
		return
	}
	h.isDark = true
	v.gray = append(v.gray, o)
}

func (v *VM) blackenAll() {
	for len(v.gray) > 0 {
		o := v.gray[len(v.gray)-1]
		v.gray = v.gray[:len(v.gray)-1]
		v.bytesAllocated += objectSize(o)
		v.blacken(o)
	}
}

// blacken enqueues every object directly referenced by o, per the per-kind
// rules spec.md §4.7 step 3 enumerates.
func (v *VM) blacken(o Object) {
	if c := classOf(o); c != nil {
		v.grayObject(c)
	}
	switch t := o.(type) {
	case *Class:
		if t.Super != nil {
			v.grayObject(t.Super)
		}
		if t.Name != nil {
			v.grayObject(t.Name)
		}
		v.grayValue(t.Attributes)
		for _, m := range t.Methods {
			if m.Kind == MethodBlock && m.Block != nil {
				v.grayObject(m.Block)
			}
		}
		for _, m := range t.StaticMethods {
			if m.Kind == MethodBlock && m.Block != nil {
				v.grayObject(m.Block)
			}
		}
	case *Closure:
		v.grayObject(t.Fn)
		for _, u := range t.Upvalues {
			v.grayObject(u)
		}
	case *Fiber:
		for _, fr := range t.frames {
			v.grayObject(fr.closure)
			if fr.definingClass != nil {
				v.grayObject(fr.definingClass)
			}
		}
		for _, s := range t.stack {
			v.grayValue(s)
		}
		for u := t.openUpvals; u != nil; u = u.nextOpen {
			v.grayObject(u)
		}
		if t.caller != nil {
			v.grayObject(t.caller)
		}
		v.grayValue(t.Error)
	case *Fn:
		for _, c := range t.Constants {
			v.grayValue(c)
		}
		if t.Module != nil {
			v.grayObject(t.Module)
		}
	case *Instance:
		for _, f := range t.Fields {
			v.grayValue(f)
		}
	case *List:
		for _, e := range t.Elements {
			v.grayValue(e)
		}
	case *Map:
		for _, e := range t.entries {
			if e.isOccupied() {
				v.grayValue(e.Key)
				v.grayValue(e.Value)
			}
		}
	case *Module:
		if t.Name != nil {
			v.grayObject(t.Name)
		}
		for _, val := range t.Variables {
			v.grayValue(val)
		}
	case *Upvalue:
		if !t.open {
			v.grayValue(t.closed)
		}
	case *MapEntry:
		v.grayValue(t.Key)
		v.grayValue(t.Value)
	// Range: no references. String: size only, already counted above.
	// Foreign: opaque bytes, nothing to trace.
	case *Foreign, *Range, *String:
	}
}

// sweep walks the intrusive allocation list, freeing white objects and
// clearing isDark on survivors.
func (v *VM) sweep() {
	var prev Object
	cur := v.allHeap
	for cur != nil {
		h := cur.header()
		next := h.next
		if h.isDark {
			h.isDark = false
			prev = cur
		} else {
			if fo, ok := cur.(*Foreign); ok {
				if c := fo.classObj; c != nil && c.finalize != nil {
					c.finalize(fo.Data)
				}
			}
			if prev == nil {
				v.allHeap = next
			} else {
				prev.header().next = next
			}
		}
		cur = next
	}
}
