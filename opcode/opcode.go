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

// Package opcode defines the register-VM instruction set: the 32-bit word
// encoding, its field layouts, and the opcode enum dispatched by package vm.
//
// Every instruction is one 4-byte word, fields packed from the low end:
//
//	OP    6 bits  @ 0
//	A     8 bits  @ 6
//	B     9 bits  @ 14
//	C     9 bits  @ 23
//	Bx    18 bits @ 14   (B and C read together as one unsigned field)
//	sBx   17 bits @ 14, plus an explicit sign bit at 31
//	sJx   26 bits @ 6    (A/B/C are not separately addressable in this form)
//	vB    6 bits  @ 14
//	vC    12 bits @ 20
//
// Only one of {B+C, Bx, sBx, sJx, vB+vC} is meaningful for a given opcode;
// Op.Format reports which.
package opcode

import "fmt"

// Op is the 6-bit instruction code.
type Op uint8

const (
	LOADK Op = iota
	LOADNULL
	LOADBOOL
	MOVE

	GETGLOBAL
	SETGLOBAL
	GETUPVAL
	SETUPVAL
	GETFIELD
	SETFIELD

	TEST
	JUMP
	RETURN

	CALLK
	CALLSUPERK
	CLOSURE
	CLOSE

	CLASS
	ENDCLASS
	METHOD
	CONSTRUCT

	IMPORTMODULE
	IMPORTVAR

	ADD
	SUB
	MUL
	DIV
	ADDK
	SUBK
	MULK
	DIVK
	NEG
	NOT

	EQ
	LT
	LTE
	EQK
	LTK
	LTEK

	ADDELEM
	ADDELEMK
	ITERATE
	ITERATORVALUE
	GETSUB
	SETSUB
	RANGE

	NOOP

	opCount
)

// Format names which bit layout an opcode's operand word uses.
type Format uint8

const (
	FormatABC  Format = iota // A, B, C each addressed independently
	FormatABx                // A plus an 18-bit unsigned Bx
	FormatAsBx               // A plus a 17-bit magnitude + explicit sign sBx
	FormatSJx                // a 26-bit signed relative jump, no A
	FormatVBVC               // A plus a 6-bit vB and 12-bit vC (CALLK family)
)

type opInfo struct {
	name   string
	format Format
}

var opTable = [opCount]opInfo{
	LOADK:         {"LOADK", FormatABx},
	LOADNULL:      {"LOADNULL", FormatABC},
	LOADBOOL:      {"LOADBOOL", FormatABC},
	MOVE:          {"MOVE", FormatABC},
	GETGLOBAL:     {"GETGLOBAL", FormatABx},
	SETGLOBAL:     {"SETGLOBAL", FormatABx},
	GETUPVAL:      {"GETUPVAL", FormatABx},
	SETUPVAL:      {"SETUPVAL", FormatABx},
	GETFIELD:      {"GETFIELD", FormatABC},
	SETFIELD:      {"SETFIELD", FormatABC},
	TEST:          {"TEST", FormatABC},
	JUMP:          {"JUMP", FormatSJx},
	RETURN:        {"RETURN", FormatABC},
	CALLK:         {"CALLK", FormatVBVC},
	CALLSUPERK:    {"CALLSUPERK", FormatVBVC},
	CLOSURE:       {"CLOSURE", FormatABx},
	CLOSE:         {"CLOSE", FormatABC},
	CLASS:         {"CLASS", FormatAsBx},
	ENDCLASS:      {"ENDCLASS", FormatABC},
	METHOD:        {"METHOD", FormatAsBx},
	CONSTRUCT:     {"CONSTRUCT", FormatABx},
	IMPORTMODULE:  {"IMPORTMODULE", FormatABx},
	IMPORTVAR:     {"IMPORTVAR", FormatABx},
	ADD:           {"ADD", FormatABC},
	SUB:           {"SUB", FormatABC},
	MUL:           {"MUL", FormatABC},
	DIV:           {"DIV", FormatABC},
	ADDK:          {"ADDK", FormatABC},
	SUBK:          {"SUBK", FormatABC},
	MULK:          {"MULK", FormatABC},
	DIVK:          {"DIVK", FormatABC},
	NEG:           {"NEG", FormatABC},
	NOT:           {"NOT", FormatABC},
	EQ:            {"EQ", FormatABC},
	LT:            {"LT", FormatABC},
	LTE:           {"LTE", FormatABC},
	EQK:           {"EQK", FormatABC},
	LTK:           {"LTK", FormatABC},
	LTEK:          {"LTEK", FormatABC},
	ADDELEM:       {"ADDELEM", FormatABC},
	ADDELEMK:      {"ADDELEMK", FormatABC},
	ITERATE:       {"ITERATE", FormatABC},
	ITERATORVALUE: {"ITERATORVALUE", FormatABC},
	GETSUB:        {"GETSUB", FormatABC},
	SETSUB:        {"SETSUB", FormatABC},
	RANGE:         {"RANGE", FormatABC},
	NOOP:          {"NOOP", FormatABC},
}

func (op Op) String() string {
	if int(op) >= len(opTable) {
		return fmt.Sprintf("OP(%d)", uint8(op))
	}
	return opTable[op].name
}

// Format reports which bit layout op's operand word uses.
func (op Op) Format() Format {
	if int(op) >= len(opTable) {
		return FormatABC
	}
	return opTable[op].format
}

// Valid reports whether op is a recognized opcode.
func (op Op) Valid() bool { return int(op) < int(opCount) }
