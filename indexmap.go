package main

import "errors"

const (
	IndexCapacity = 255
	NoIndex       = 0xFF
)

var ErrIndexMapFull = errors.New("index map full")

// IndexMap assigns each participant a small integer for the wire. An id
// keeps its index while present; released indexes are reused lowest first.
type IndexMap struct {
	byID map[string]uint8
	ids  [IndexCapacity]string
	used [IndexCapacity]bool
}

// NewIndexMap creates an empty map
func NewIndexMap() *IndexMap {
	return &IndexMap{byID: make(map[string]uint8)}
}

// Acquire returns id's index, assigning the lowest free one if needed
func (m *IndexMap) Acquire(id string) (uint8, error) {
	if idx, ok := m.byID[id]; ok {
		return idx, nil
	}
	for i := 0; i < IndexCapacity; i++ {
		if !m.used[i] {
			m.set(uint8(i), id)
			return uint8(i), nil
		}
	}
	return NoIndex, ErrIndexMapFull
}

// Set binds idx to id, replacing any previous binding of either. Clients
// use it to mirror the server's assignments.
func (m *IndexMap) Set(idx uint8, id string) {
	if idx == NoIndex {
		return
	}
	m.Release(id)
	if m.used[idx] {
		delete(m.byID, m.ids[idx])
	}
	m.set(idx, id)
}

func (m *IndexMap) set(idx uint8, id string) {
	m.ids[idx] = id
	m.used[idx] = true
	m.byID[id] = idx
}

// Release frees id's index
func (m *IndexMap) Release(id string) {
	idx, ok := m.byID[id]
	if !ok {
		return
	}
	delete(m.byID, id)
	m.ids[idx] = ""
	m.used[idx] = false
}

// Index returns the index bound to id
func (m *IndexMap) Index(id string) (uint8, bool) {
	idx, ok := m.byID[id]
	return idx, ok
}

// ID returns the id bound to idx
func (m *IndexMap) ID(idx uint8) (string, bool) {
	if idx == NoIndex || !m.used[idx] {
		return "", false
	}
	return m.ids[idx], true
}

// Len returns the number of bound ids
func (m *IndexMap) Len() int {
	return len(m.byID)
}
