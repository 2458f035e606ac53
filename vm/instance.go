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

// Instance is a plain user-defined object: a class pointer (in Header) plus
// a fixed array of fields, initially all null.
type Instance struct {
	Header
	Fields []value.Value
}

func newInstance(class *Class) *Instance {
	inst := &Instance{Fields: make([]value.Value, class.NumFields)}
	for i := range inst.Fields {
		inst.Fields[i] = value.NullVal
	}
	inst.kind = KindInstance
	inst.classObj = class
	return inst
}

func (i *Instance) String() string {
	if i.classObj != nil {
		return "instance of " + i.classObj.String()
	}
	return "instance"
}

// Foreign is a host-owned object: an opaque, zero-filled byte buffer sized
// by the host's <allocate> implementation, finalized (if the class binds
// <finalize>) just before the collector frees it.
type Foreign struct {
	Header
	Data []byte
}

func newForeign(class *Class, size int) *Foreign {
	f := &Foreign{Data: make([]byte, size)}
	f.kind = KindForeign
	f.classObj = class
	return f
}

func (f *Foreign) String() string {
	if f.classObj != nil {
		return "instance of " + f.classObj.String()
	}
	return "foreign"
}
