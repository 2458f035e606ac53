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
	"github.com/wrenscript/wren/opcode"
	"github.com/wrenscript/wren/value"
)

// DebugInfo carries the per-instruction bookkeeping the interpreter and
// host tooling need but that bytecode execution itself does not: a name for
// stack traces, a source line per instruction, and a "stack top" watermark
// recording how many registers are live just before each instruction so
// overload fast paths can reserve scratch slots without re-scanning the
// function (spec.md §4.1's "stackTop table").
type DebugInfo struct {
	Name        string
	SourceLines []int
	StackTop    []int
}

// Fn is a compiled function prototype: the unit a compiler (out of this
// spec's scope) produces and the unit the interpreter executes. Multiple
// Closures may share one Fn (each capturing different upvalues).
type Fn struct {
	Header
	Module      *Module
	MaxSlots    int
	Arity       int
	NumUpvalues int
	Constants   []value.Value
	Code        []opcode.Instruction
	Debug       DebugInfo

	// CallStubSymbol is >= 0 for the synthetic, code-less closures
	// MakeCallHandle produces: instead of dispatching bytecode, the
	// interpreter directly issues a call to this method symbol over the
	// frame's argument registers (spec.md §6's makeCallHandle).
	CallStubSymbol int
}

func newFn(module *Module, maxSlots, arity, numUpvalues int, constants []value.Value, code []opcode.Instruction) *Fn {
	fn := &Fn{
		Module:         module,
		MaxSlots:       maxSlots,
		Arity:          arity,
		NumUpvalues:    numUpvalues,
		Constants:      constants,
		Code:           code,
		CallStubSymbol: -1,
	}
	fn.kind = KindFn
	return fn
}

func (f *Fn) String() string {
	if f.Debug.Name != "" {
		return f.Debug.Name
	}
	return "<fn>"
}

// stackTopAt returns the watermark recorded for instruction index ip, or
// MaxSlots if no per-instruction watermark was recorded (e.g. hand-built
// test bytecode) so callers always get a safe upper bound.
func (f *Fn) stackTopAt(ip int) int {
	if ip >= 0 && ip < len(f.Debug.StackTop) {
		return f.Debug.StackTop[ip]
	}
	return f.MaxSlots
}

// lineAt returns the source line recorded for instruction index ip, or 0.
func (f *Fn) lineAt(ip int) int {
	if ip >= 0 && ip < len(f.Debug.SourceLines) {
		return f.Debug.SourceLines[ip]
	}
	return 0
}
