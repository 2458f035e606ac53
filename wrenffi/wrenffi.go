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

// Package wrenffi is a ready-made foreign-function binder a host can hand
// to vm.Config: it resolves the methods of a small "digest" module that
// exposes cryptographic hashing to scripts. It doubles as the reference for
// how to wire BindForeignMethod/BindForeignClass against the slot API.
package wrenffi

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"

	"github.com/wrenscript/wren/vm"
)

// DigestModule is the module name whose classes this binder serves.
const DigestModule = "digest"

// BindMethod resolves the foreign methods of the digest module. It returns
// nil for anything it does not recognize, letting the host chain binders.
func BindMethod(v *vm.VM, module, className string, isStatic bool, signature string) vm.ForeignFn {
	if className != "Digest" {
		return nil
	}
	switch signature {
	case "sha3_256(_)":
		return digestSHA3
	case "keccak256(_)":
		return digestKeccak256
	case "shake256(_,_)":
		return digestShake256
	}
	return nil
}

// BindClass resolves the allocator for the digest module's foreign Hasher
// class. The allocator creates an instance with an empty (zero-byte)
// buffer and no finalizer; BindMethod binds no methods for Hasher.
func BindClass(v *vm.VM, module, className string) (vm.ForeignFn, func(data []byte)) {
	if className != "Hasher" {
		return nil, nil
	}
	allocate := func(v *vm.VM) error {
		v.SetSlotNewForeign(0, 0, 0)
		return nil
	}
	return allocate, nil
}

// digestSHA3 implements Digest.sha3_256(_): hex SHA3-256 of the argument
// string's bytes.
func digestSHA3(v *vm.VM) error {
	sum := sha3.Sum256(v.GetSlotBytes(1))
	v.SetSlotString(0, hex.EncodeToString(sum[:]))
	return nil
}

// digestKeccak256 implements Digest.keccak256(_): the pre-standardization
// padding variant used by the chain runtimes this binder grew out of.
func digestKeccak256(v *vm.VM) error {
	h := sha3.NewLegacyKeccak256()
	h.Write(v.GetSlotBytes(1))
	v.SetSlotString(0, hex.EncodeToString(h.Sum(nil)))
	return nil
}

// digestShake256 implements Digest.shake256(_,_): a variable-length
// SHAKE-256 digest of the first argument, sized by the second.
func digestShake256(v *vm.VM) error {
	n := int(v.GetSlotDouble(2))
	if n <= 0 || n > 1024 {
		v.EnsureSlots(1)
		v.SetSlotString(0, "digest length out of range")
		v.AbortFiber(0)
		return nil
	}
	out := make([]byte, n)
	sha3.ShakeSum256(out, v.GetSlotBytes(1))
	v.SetSlotString(0, hex.EncodeToString(out))
	return nil
}
