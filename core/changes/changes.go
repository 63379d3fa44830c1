// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package changes defines the aggregated change event published after every
// sampling pass that observed a difference in the store.
package changes

import (
	"github.com/juju/recordsync/core/record"
)

const (
	// Topic is the hub topic on which change events are published.
	Topic = "recordsync.changes"
)

// Delta describes the changes observed for one record class. Records holds
// the full records for every added and changed key, in key order. Deleted
// keys never carry a record.
type Delta[K comparable, R any] struct {
	Added   []K
	Changed []K
	Deleted []K
	Records []R
}

// Empty reports whether the delta carries no changes.
func (d Delta[K, R]) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Deleted) == 0
}

// Size returns the number of keys touched by the delta.
func (d Delta[K, R]) Size() int {
	return len(d.Added) + len(d.Changed) + len(d.Deleted)
}

// Event is the single batched delta for one sampling pass.
type Event struct {
	// Seq increases by one with every published event.
	Seq uint64

	// Initial is true for the event published by the first successful
	// pass, where every record is reported as added.
	Initial bool

	Tests  Delta[record.TestID, record.Test]
	Steps  Delta[record.StepKey, record.Step]
	Points Delta[record.PointKey, record.Point]
}

// Empty reports whether none of the record classes changed.
func (e Event) Empty() bool {
	return e.Tests.Empty() && e.Steps.Empty() && e.Points.Empty()
}

// AffectedTests returns the ids of every test touched by the event, either
// directly or through one of its steps, in ascending order. Points are not
// scoped by test and do not contribute.
func (e Event) AffectedTests() []record.TestID {
	seen := make(map[record.TestID]bool)
	var ids []record.TestID
	add := func(id record.TestID) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, keys := range [][]record.TestID{e.Tests.Added, e.Tests.Changed, e.Tests.Deleted} {
		for _, id := range keys {
			add(id)
		}
	}
	for _, keys := range [][]record.StepKey{e.Steps.Added, e.Steps.Changed, e.Steps.Deleted} {
		for _, k := range keys {
			add(k.TestID)
		}
	}
	record.SortKeys(ids)
	return ids
}

// AffectedSteps returns the ordinals of every step whose point group was
// touched by the event, in ascending order.
func (e Event) AffectedSteps() []record.StepSeq {
	seen := make(map[record.StepSeq]bool)
	var seqs []record.StepSeq
	for _, keys := range [][]record.PointKey{e.Points.Added, e.Points.Changed, e.Points.Deleted} {
		for _, k := range keys {
			if !seen[k.StepSeq] {
				seen[k.StepSeq] = true
				seqs = append(seqs, k.StepSeq)
			}
		}
	}
	record.SortKeys(seqs)
	return seqs
}
