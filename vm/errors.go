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
	"errors"
	"strings"
)

// ErrRuntimeUnhandled is the sentinel Interpret's caller sees when a
// runtime error unwinds past every Try fiber (spec.md §4.8).
var ErrRuntimeUnhandled = errors.New("vm: unhandled runtime error")

// registerRuntimeError implements spec.md §4.8's propagation walk up the
// caller chain. A fiber whose state is Try was invoked via try(): its
// caller catches, receiving the error as the result of the try call itself.
// Fibers that don't catch are unlinked as the walk passes them. If nothing
// catches, the trace is reported through the host's ErrorFn and the VM
// halts.
func (v *VM) registerRuntimeError() error {
	erroring := v.fiber
	if erroring == nil || !erroring.HasError() {
		return nil
	}

	for cur := erroring; cur != nil; {
		caller := cur.caller
		if cur.state == FiberTry && caller != nil {
			cur.caller = nil
			caller.stack[caller.lastCallReg] = erroring.Error
			v.fiber = caller
			return errFiberSwitched
		}
		cur.caller = nil
		cur = caller
	}

	v.reportStackTrace(erroring)
	v.fiber = nil
	return ErrRuntimeUnhandled
}

// reportStackTrace invokes ErrorFn once with the runtime message and once
// per stack frame, skipping core-module frames (nil module name) and call-
// handle stub frames, per spec.md §7.
func (v *VM) reportStackTrace(f *Fiber) {
	if v.config.Error == nil {
		return
	}
	v.config.Error(v, ErrorRuntime, "", 0, f.Error.String())

	for i := len(f.frames) - 1; i >= 0; i-- {
		frame := f.frames[i]
		fn := frame.closure.Fn
		if fn.CallStubSymbol >= 0 {
			continue
		}
		moduleName := ""
		if fn.Module != nil && fn.Module.Name != nil {
			moduleName = fn.Module.Name.Value
		}
		if moduleName == "" {
			continue
		}
		line := fn.lineAt(frame.rip - 1)
		v.config.Error(v, ErrorStackTrace, moduleName, line, fn.String())
	}
}

// FormatError implements spec.md §6's mini-formatter: "$" interpolates a
// plain string argument, "@" interpolates a value's rendered form, any
// other character is emitted literally.
func FormatError(v *VM, format string, args ...interface{}) string {
	var b strings.Builder
	argIdx := 0
	next := func() interface{} {
		if argIdx < len(args) {
			a := args[argIdx]
			argIdx++
			return a
		}
		return nil
	}
	for _, r := range format {
		switch r {
		case '$':
			if s, ok := next().(string); ok {
				b.WriteString(s)
			}
		case '@':
			if val, ok := next().(interface{ String() string }); ok {
				b.WriteString(val.String())
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
