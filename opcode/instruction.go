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

package opcode

// Instruction is one packed 32-bit instruction word.
type Instruction uint32

const (
	opShift = 0
	opBits  = 6
	opMask  = 1<<opBits - 1

	aShift = 6
	aBits  = 8
	aMask  = 1<<aBits - 1

	bShift = 14
	bBits  = 9
	bMask  = 1<<bBits - 1

	cShift = 23
	cBits  = 9
	cMask  = 1<<cBits - 1

	bxShift = 14
	bxBits  = 18
	bxMask  = 1<<bxBits - 1

	sbxShift    = 14
	sbxMagBits  = 17
	sbxMagMask  = 1<<sbxMagBits - 1
	sbxSignBit  = 31
	sbxSignMask = 1 << sbxSignBit

	sjxShift = 6
	sjxBits  = 26

	vbShift = 14
	vbBits  = 6
	vbMask  = 1<<vbBits - 1

	vcShift = 20
	vcBits  = 12
	vcMask  = 1<<vcBits - 1

	// regFieldBits is the width used for a register index carried in a B or
	// C slot whenever that opcode also needs one spare "K-bit" flag in the
	// same field: the top bit of the 9-bit B/C slot is free for a flag
	// because every register file in this VM is addressed with 8 bits
	// elsewhere (the A field, and LOADK's destination), so no instruction
	// ever legitimately needs register index 256-511 in a flagged slot.
	regFieldBits = 8
	regFieldMask = 1<<regFieldBits - 1
	flagBit      = 1 << regFieldBits
)

// EncodeABC packs a 3-operand instruction: all of A, B, C are taken as given
// (B and C may be full 9-bit register indices, or — for opcodes that embed a
// flag — FlagIndex-encoded via EncodeFlagged).
func EncodeABC(op Op, a uint8, b, c uint16) Instruction {
	return Instruction(uint32(op)&opMask |
		uint32(a)&aMask<<aShift |
		uint32(b)&bMask<<bShift |
		uint32(c)&cMask<<cShift)
}

// EncodeABx packs a 2-operand instruction with an 18-bit unsigned Bx.
func EncodeABx(op Op, a uint8, bx uint32) Instruction {
	return Instruction(uint32(op)&opMask |
		uint32(a)&aMask<<aShift |
		bx&bxMask<<bxShift)
}

// EncodeAsBx packs a signed Bx: a 17-bit magnitude plus an explicit sign bit
// at position 31, per the instruction table's sBx layout.
func EncodeAsBx(op Op, a uint8, sbx int32) Instruction {
	mag := uint32(sbx)
	sign := uint32(0)
	if sbx < 0 {
		mag = uint32(-sbx)
		sign = sbxSignMask
	}
	return Instruction(uint32(op)&opMask |
		uint32(a)&aMask<<aShift |
		mag&sbxMagMask<<sbxShift |
		sign)
}

// EncodeSJx packs a signed 26-bit relative-jump-style operand. This format
// has no separately addressable A field.
func EncodeSJx(op Op, sjx int32) Instruction {
	const sjxMask = 1<<sjxBits - 1
	return Instruction(uint32(op)&opMask | uint32(sjx)&sjxMask<<sjxShift)
}

// EncodeVBVC packs CALLK/CALLSUPERK's A + 6-bit vB + 12-bit vC.
func EncodeVBVC(op Op, a uint8, vb uint8, vc uint16) Instruction {
	return Instruction(uint32(op)&opMask |
		uint32(a)&aMask<<aShift |
		uint32(vb)&vbMask<<vbShift |
		uint32(vc)&vcMask<<vcShift)
}

// EncodeFlagged packs a register/constant slot with its top bit reserved as
// a per-instruction "K-bit" flag (see the doc comments on ADDK, ADDELEM,
// GETSUB/SETSUB, and RANGE in package vm for what each opcode's flag means).
func EncodeFlagged(index uint8, flag bool) uint16 {
	v := uint16(index) & regFieldMask
	if flag {
		v |= flagBit
	}
	return v
}

// Op extracts the opcode.
func (i Instruction) Op() Op { return Op(uint32(i) >> opShift & opMask) }

// A extracts the 8-bit A field.
func (i Instruction) A() uint8 { return uint8(uint32(i) >> aShift & aMask) }

// B extracts the raw 9-bit B field.
func (i Instruction) B() uint16 { return uint16(uint32(i) >> bShift & bMask) }

// C extracts the raw 9-bit C field.
func (i Instruction) C() uint16 { return uint16(uint32(i) >> cShift & cMask) }

// Bx extracts the 18-bit unsigned Bx field (B and C read together).
func (i Instruction) Bx() uint32 { return uint32(i) >> bxShift & bxMask }

// SBx extracts the signed Bx field (17-bit magnitude + explicit sign bit).
func (i Instruction) SBx() int32 {
	mag := int32(uint32(i) >> sbxShift & sbxMagMask)
	if uint32(i)&sbxSignMask != 0 {
		return -mag
	}
	return mag
}

// SJx extracts the signed 26-bit jump operand.
func (i Instruction) SJx() int32 {
	v := int32(uint32(i) >> sjxShift)
	// sign-extend from sjxBits
	const shift = 32 - sjxBits
	return v << shift >> shift
}

// VB extracts CALLK/CALLSUPERK's 6-bit vB (argument count).
func (i Instruction) VB() uint8 { return uint8(uint32(i) >> vbShift & vbMask) }

// VC extracts CALLK/CALLSUPERK's 12-bit vC (method symbol).
func (i Instruction) VC() uint16 { return uint16(uint32(i) >> vcShift & vcMask) }

// FlagIndex splits a flagged B/C slot (see EncodeFlagged) back into its
// 8-bit index and boolean flag.
func FlagIndex(field uint16) (index uint8, flag bool) {
	return uint8(field & regFieldMask), field&flagBit != 0
}
