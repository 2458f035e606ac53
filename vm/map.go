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

// MapEntry is one open-addressed bucket. An entry is:
//   - empty:     Key is Undefined, Value is False
//   - tombstone: Key is Undefined, Value is True (deleted, keep probing)
//   - live:      Key is anything else
//
// This mirrors spec.md §4.6's sentinel encoding exactly, avoiding a separate
// "occupied" bit per bucket.
type MapEntry struct {
	Header
	Key   value.Value
	Value value.Value
}

func (e *MapEntry) String() string { return "<map entry>" }

func (e *MapEntry) isEmpty() bool     { return e.Key.IsUndefined() && e.Value.Type() == value.False }
func (e *MapEntry) isTombstone() bool { return e.Key.IsUndefined() && e.Value.Type() == value.True }
func (e *MapEntry) isOccupied() bool  { return !e.Key.IsUndefined() }

const mapMinCapacity = 16
const mapLoadFactor = 0.75

// Map is an open-addressed hash table with linear probing, grown and
// shrunk in power-of-two steps with a floor capacity of 16 (spec.md §4.6).
type Map struct {
	Header
	entries []MapEntry
	count   int // live entries only, excludes tombstones
}

func newMap(v *VM) *Map {
	m := &Map{}
	m.kind = KindMap
	if v != nil {
		m.classObj = v.mapClass
		v.track(m)
	}
	return m
}

func (m *Map) String() string { return "<map>" }

// Count returns the number of live key/value pairs.
func (m *Map) Count() int { return m.count }

func emptyEntries(n int) []MapEntry {
	entries := make([]MapEntry, n)
	for i := range entries {
		entries[i].Key = value.UndefinedVal
		entries[i].Value = value.FalseVal
	}
	return entries
}

// find locates the bucket for key: a live bucket if present, or the first
// empty/tombstone bucket on its probe chain where it would be inserted.
func (m *Map) find(entries []MapEntry, key value.Value) (int, error) {
	h, err := hashValue(key)
	if err != nil {
		return -1, err
	}
	cap := len(entries)
	idx := int(h % uint64(cap))
	var tombstone = -1
	for {
		e := &entries[idx]
		switch {
		case e.isEmpty():
			if tombstone != -1 {
				return tombstone, nil
			}
			return idx, nil
		case e.isTombstone():
			if tombstone == -1 {
				tombstone = idx
			}
		default:
			if e.Key.Equal(key) {
				return idx, nil
			}
		}
		idx = (idx + 1) % cap
	}
}

func (m *Map) resize(newCap int) error {
	if newCap < mapMinCapacity {
		newCap = mapMinCapacity
	}
	fresh := emptyEntries(newCap)
	for _, e := range m.entries {
		if !e.isOccupied() {
			continue
		}
		idx, err := m.find(fresh, e.Key)
		if err != nil {
			return err
		}
		fresh[idx] = e
	}
	m.entries = fresh
	return nil
}

// Get looks up key, returning value.UndefinedVal if absent.
func (m *Map) Get(key value.Value) (value.Value, error) {
	if len(m.entries) == 0 {
		return value.UndefinedVal, nil
	}
	idx, err := m.find(m.entries, key)
	if err != nil {
		return value.Value{}, err
	}
	e := &m.entries[idx]
	if !e.isOccupied() {
		return value.UndefinedVal, nil
	}
	return e.Value, nil
}

// Set inserts or overwrites key/val, growing the table when the load factor
// would exceed 75%.
func (m *Map) Set(key, val value.Value) error {
	if len(m.entries) == 0 || float64(m.count+1) > float64(len(m.entries))*mapLoadFactor {
		if err := m.resize(growCapacity(len(m.entries))); err != nil {
			return err
		}
	}
	idx, err := m.find(m.entries, key)
	if err != nil {
		return err
	}
	e := &m.entries[idx]
	isNew := !e.isOccupied()
	e.Key = key
	e.Value = val
	if isNew {
		m.count++
	}
	return nil
}

// Remove deletes key if present, leaving a tombstone so later probe chains
// through this bucket still reach entries placed after it, and shrinks the
// table once occupancy falls well below capacity.
func (m *Map) Remove(key value.Value) (value.Value, error) {
	if len(m.entries) == 0 {
		return value.UndefinedVal, nil
	}
	idx, err := m.find(m.entries, key)
	if err != nil {
		return value.Value{}, err
	}
	e := &m.entries[idx]
	if !e.isOccupied() {
		return value.UndefinedVal, nil
	}
	removed := e.Value
	e.Key = value.UndefinedVal
	e.Value = value.TrueVal
	m.count--

	if m.count == 0 {
		// spec.md §4.6: the entries array is freed entirely once count hits zero.
		m.entries = nil
	} else if cap := len(m.entries); cap > mapMinCapacity && float64(m.count) < float64(cap)/2*mapLoadFactor {
		if err := m.resize(cap / 2); err != nil {
			return value.Value{}, err
		}
	}
	return removed, nil
}

func growCapacity(current int) int {
	if current < mapMinCapacity {
		return mapMinCapacity
	}
	return current * 2
}

// ContainsKey reports whether key is present.
func (m *Map) ContainsKey(key value.Value) (bool, error) {
	if len(m.entries) == 0 {
		return false, nil
	}
	idx, err := m.find(m.entries, key)
	if err != nil {
		return false, err
	}
	return m.entries[idx].isOccupied(), nil
}

// Clear empties the map without shrinking capacity bookkeeping beyond nil.
func (m *Map) Clear() {
	m.entries = nil
	m.count = 0
}

// iterate advances a Map iterator value (spec.md §4.5): starting state 0
// means "begin"; it returns the next bucket index to resume from (1-based,
// 0 meaning "done") so Map can be iterated with the same begin/advance
// protocol as List and Range despite tombstoned holes in the bucket array.
func (m *Map) iterate(it float64) float64 {
	start := 0
	if it != 0 {
		start = int(it)
	}
	for i := start; i < len(m.entries); i++ {
		if m.entries[i].isOccupied() {
			return float64(i + 1)
		}
	}
	return 0
}

// keyAtIterator returns the key at the bucket the iterator value refers to.
func (m *Map) keyAtIterator(it float64) value.Value {
	return m.entries[int(it)-1].Key
}

// valueAtIterator returns the value at the bucket the iterator refers to.
func (m *Map) valueAtIterator(it float64) value.Value {
	return m.entries[int(it)-1].Value
}
