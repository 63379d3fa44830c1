// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package snapshot

import (
	"sync"

	"github.com/juju/recordsync/core/record"
)

// Set is the retained state of all three record classes at one point in
// time.
type Set struct {
	Tests  Snapshot[record.TestID]
	Steps  Snapshot[record.StepKey]
	Points Snapshot[record.PointKey]
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	return Set{
		Tests:  s.Tests.Clone(),
		Steps:  s.Steps.Clone(),
		Points: s.Points.Clone(),
	}
}

// Store retains what the last successful sampling pass saw. It has a single
// writer, the watcher, but may be read from any goroutine. All three classes
// are replaced together so readers never see a mix of two passes.
type Store struct {
	mu     sync.RWMutex
	set    Set
	seeded bool
}

// NewStore returns an empty, unseeded store.
func NewStore() *Store {
	return &Store{
		set: Set{}.Clone(),
	}
}

// Current returns a copy of the retained snapshots.
func (s *Store) Current() Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set.Clone()
}

// Seeded reports whether a set has ever been committed.
func (s *Store) Seeded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seeded
}

// Commit replaces every retained snapshot with the ones in set. The store
// takes ownership of the maps in set.
func (s *Store) Commit(set Set) {
	if set.Tests == nil {
		set.Tests = Snapshot[record.TestID]{}
	}
	if set.Steps == nil {
		set.Steps = Snapshot[record.StepKey]{}
	}
	if set.Points == nil {
		set.Points = Snapshot[record.PointKey]{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = set
	s.seeded = true
}

// Reset forgets everything, so the next pass is treated as the first one.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = Set{}.Clone()
	s.seeded = false
}

// Len returns the number of identities retained per class.
func (s *Store) Len() map[record.Kind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[record.Kind]int{
		record.KindTest:  len(s.set.Tests),
		record.KindStep:  len(s.set.Steps),
		record.KindPoint: len(s.set.Points),
	}
}

// Read calls fn with the retained snapshots while holding the read lock.
// fn must not retain or modify the maps.
func (s *Store) Read(fn func(Set, bool)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.set, s.seeded)
}
