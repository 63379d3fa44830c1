// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package snapshot holds the identity to digest maps recordsync retains
// between sampling passes, and the detector that compares two of them.
package snapshot

import (
	"maps"

	"github.com/juju/recordsync/core/record"
	"github.com/juju/recordsync/internal/fingerprint"
)

// Snapshot maps each identity of one record class to its digest.
type Snapshot[K comparable] map[K]fingerprint.Digest

// Clone returns a copy of the snapshot. Cloning a nil snapshot returns an
// empty, non-nil one.
func (s Snapshot[K]) Clone() Snapshot[K] {
	if s == nil {
		return make(Snapshot[K])
	}
	return maps.Clone(s)
}

// Delta is the classification of identities produced by Diff.
type Delta[K record.Key[K]] struct {
	Added   []K
	Changed []K
	Deleted []K
}

// Empty reports whether the delta has no changes.
func (d Delta[K]) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Deleted) == 0
}

// Fetch returns the identities whose full records must be read to apply the
// delta: the added and changed ones, in key order.
func (d Delta[K]) Fetch() []K {
	return record.MergeKeys(d.Added, d.Changed)
}

// Diff classifies every identity of previous and current. Identities present
// in both with equal digests are left out of the result entirely, so the
// size of the delta is proportional to the number of real changes.
func Diff[K record.Key[K]](previous, current Snapshot[K]) Delta[K] {
	var delta Delta[K]
	for key, digest := range current {
		old, ok := previous[key]
		switch {
		case !ok:
			delta.Added = append(delta.Added, key)
		case old != digest:
			delta.Changed = append(delta.Changed, key)
		}
	}
	for key := range previous {
		if _, ok := current[key]; !ok {
			delta.Deleted = append(delta.Deleted, key)
		}
	}
	record.SortKeys(delta.Added)
	record.SortKeys(delta.Changed)
	record.SortKeys(delta.Deleted)
	return delta
}
