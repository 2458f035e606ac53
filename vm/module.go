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

// Module is a compilation unit's top-level variable namespace. Unlike every
// other Object kind, a Module has no runtime class (spec.md §3) — it is
// never visible to script-level reflection, only to the import machinery
// and the host API's getVariable/hasVariable calls.
type Module struct {
	Header
	Name      *String // nil for the implicitly-created core module
	vars      *SymbolTable
	Variables []value.Value
}

func newModule(name *String) *Module {
	m := &Module{Name: name, vars: newSymbolTable()}
	m.kind = KindModule
	return m
}

func (m *Module) String() string {
	if m.Name != nil {
		return m.Name.Value
	}
	return "<core module>"
}

// declareVariable reserves a slot for name, initialized to val, and returns
// its symbol. Re-declaring an existing name overwrites its current value,
// matching top-level `var` re-assignment semantics.
func (m *Module) declareVariable(name string, val value.Value) int {
	sym := m.vars.Ensure(name)
	for len(m.Variables) <= sym {
		m.Variables = append(m.Variables, value.UndefinedVal)
	}
	m.Variables[sym] = val
	return sym
}

// findVariable returns the symbol for name, or -1 if not declared.
func (m *Module) findVariable(name string) int {
	return m.vars.Find(name)
}

// Variable returns the value bound to name and whether it is declared.
func (m *Module) Variable(name string) (value.Value, bool) {
	sym := m.vars.Find(name)
	if sym < 0 || sym >= len(m.Variables) {
		return value.NullVal, false
	}
	return m.Variables[sym], true
}

// registry tracks loaded modules by name, per spec.md §4.9's import model: a
// module is compiled and run at most once, and re-importing it reuses the
// already-populated variable namespace.
type registry struct {
	byName map[string]*Module
}

func newRegistry() *registry {
	return &registry{byName: make(map[string]*Module)}
}

func (r *registry) get(name string) (*Module, bool) {
	m, ok := r.byName[name]
	return m, ok
}

func (r *registry) put(name string, m *Module) {
	r.byName[name] = m
}
