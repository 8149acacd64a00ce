package accounts

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrMapFrozen is returned by Put once the profile phase has finished
	ErrMapFrozen = errors.New("identity map is read-only after the profile phase")
	// ErrDuplicateSource is returned when a source id is already mapped to a
	// different account
	ErrDuplicateSource = errors.New("source id already mapped to another account")
)

// Record ties a source-system user to the account issued for it
type Record struct {
	SourceID    string
	DestID      string
	Email       string
	DisplayName string
}

// IdentityMap maps source user ids to issued account ids, and back. It is
// filled during the profile phase and frozen before any dependent rows are
// resolved through it.
type IdentityMap struct {
	forward map[string]string
	reverse map[string]string
	records []Record
	byID    map[string]int
	frozen  bool
}

// NewIdentityMap returns an empty, writable map
func NewIdentityMap() *IdentityMap {
	return &IdentityMap{
		forward: make(map[string]string),
		reverse: make(map[string]string),
		byID:    make(map[string]int),
	}
}

// Put adds a record. Re-adding an identical mapping is a no-op.
func (m *IdentityMap) Put(r Record) error {
	if m.frozen {
		return ErrMapFrozen
	}
	if existing, ok := m.forward[r.SourceID]; ok {
		if existing == r.DestID {
			return nil
		}
		return fmt.Errorf("%s -> %s (have %s): %w", r.SourceID, r.DestID, existing, ErrDuplicateSource)
	}
	m.forward[r.SourceID] = r.DestID
	// several source users may share an email and so an account; the first
	// one wins the reverse entry
	if _, ok := m.reverse[r.DestID]; !ok {
		m.reverse[r.DestID] = r.SourceID
	}
	m.byID[r.SourceID] = len(m.records)
	m.records = append(m.records, r)
	return nil
}

// Freeze makes the map read-only
func (m *IdentityMap) Freeze() { m.frozen = true }

// Frozen reports whether the map is read-only
func (m *IdentityMap) Frozen() bool { return m.frozen }

// Resolve returns the account id issued for sourceID
func (m *IdentityMap) Resolve(sourceID string) (string, bool) {
	id, ok := m.forward[sourceID]
	return id, ok
}

// Lookup returns the full record for sourceID
func (m *IdentityMap) Lookup(sourceID string) (Record, bool) {
	i, ok := m.byID[sourceID]
	if !ok {
		return Record{}, false
	}
	return m.records[i], true
}

// SourceOf returns the source id an account was issued for
func (m *IdentityMap) SourceOf(destID string) (string, bool) {
	id, ok := m.reverse[destID]
	return id, ok
}

// Len is the number of mapped source ids
func (m *IdentityMap) Len() int { return len(m.forward) }

// Pairs returns a copy of the sourceID -> destID mapping
func (m *IdentityMap) Pairs() map[string]string {
	out := make(map[string]string, len(m.forward))
	for k, v := range m.forward {
		out[k] = v
	}
	return out
}

// Records returns the records in source id order
func (m *IdentityMap) Records() []Record {
	out := make([]Record, len(m.records))
	copy(out, m.records)
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}
