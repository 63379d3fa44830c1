// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package view keeps a consumer's tree of tests, steps and points up to
// date by patching it with change events, without losing which nodes the
// operator has expanded.
package view

import (
	"fmt"
	"sync"

	"github.com/juju/collections/set"
	"github.com/juju/loggo/v2"

	"github.com/juju/recordsync/core/changes"
	"github.com/juju/recordsync/core/record"
)

var logger = loggo.GetLogger("recordsync.view")

// TestNode returns the node id of a test.
func TestNode(id record.TestID) string {
	return fmt.Sprintf("test/%s", id)
}

// StepNode returns the node id of a step.
func StepNode(key record.StepKey) string {
	return fmt.Sprintf("step/%s", key)
}

// Tree is an in-memory tree of records plus the set of expanded nodes.
// It is safe for concurrent use.
type Tree struct {
	mu       sync.RWMutex
	tests    map[record.TestID]record.Test
	steps    map[record.StepKey]record.Step
	points   map[record.PointKey]record.Point
	expanded set.Strings
	lastSeq  uint64
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{
		tests:    make(map[record.TestID]record.Test),
		steps:    make(map[record.StepKey]record.Step),
		points:   make(map[record.PointKey]record.Point),
		expanded: set.NewStrings(),
	}
}

// Load replaces the content of the tree, as a full reload would. Nodes
// that survive the reload stay expanded.
func (t *Tree) Load(tests []record.Test, steps []record.Step, points []record.Point) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tests = make(map[record.TestID]record.Test, len(tests))
	t.steps = make(map[record.StepKey]record.Step, len(steps))
	t.points = make(map[record.PointKey]record.Point, len(points))
	t.upsert(tests, steps, points)
	t.prune()
}

// Apply patches the tree with a change event. Events older than one
// already applied are ignored.
func (t *Tree) Apply(event changes.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if event.Seq != 0 && event.Seq <= t.lastSeq {
		logger.Debugf("ignoring stale change event %d, at %d", event.Seq, t.lastSeq)
		return
	}
	if event.Seq != 0 {
		t.lastSeq = event.Seq
	}

	for _, id := range event.Tests.Deleted {
		delete(t.tests, id)
	}
	for _, key := range event.Steps.Deleted {
		delete(t.steps, key)
	}
	for _, key := range event.Points.Deleted {
		delete(t.points, key)
	}
	t.upsert(event.Tests.Records, event.Steps.Records, event.Points.Records)
	t.prune()
}

func (t *Tree) upsert(tests []record.Test, steps []record.Step, points []record.Point) {
	for _, r := range tests {
		t.tests[r.Key()] = r
	}
	for _, r := range steps {
		t.steps[r.Key()] = r
	}
	for _, r := range points {
		t.points[r.Key()] = r
	}
}

// prune forgets the expansion of nodes that are no longer visible: removed
// tests, removed steps, and steps of removed tests.
func (t *Tree) prune() {
	if t.expanded.IsEmpty() {
		return
	}
	visible := set.NewStrings()
	for id := range t.tests {
		visible.Add(TestNode(id))
	}
	for key := range t.steps {
		if _, ok := t.tests[key.TestID]; ok {
			visible.Add(StepNode(key))
		}
	}
	t.expanded = t.expanded.Intersection(visible)
}

func (t *Tree) visible(node string) bool {
	for id := range t.tests {
		if TestNode(id) == node {
			return true
		}
	}
	for key := range t.steps {
		if StepNode(key) == node {
			_, ok := t.tests[key.TestID]
			return ok
		}
	}
	return false
}

// Expand marks a node as expanded. Unknown nodes are ignored.
func (t *Tree) Expand(node string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.visible(node) {
		t.expanded.Add(node)
	}
}

// Collapse marks a node as collapsed.
func (t *Tree) Collapse(node string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expanded.Remove(node)
}

// IsExpanded reports whether a node is expanded.
func (t *Tree) IsExpanded(node string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.expanded.Contains(node)
}

// Expanded returns the expanded nodes, sorted.
func (t *Tree) Expanded() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.expanded.SortedValues()
}

// Tests returns the tests, ordered by id.
func (t *Tree) Tests() []record.Test {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sorted(t.tests, nil)
}

// Steps returns the steps of a test, ordered by ordinal.
func (t *Tree) Steps(testID record.TestID) []record.Step {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sorted(t.steps, func(k record.StepKey) bool {
		return k.TestID == testID
	})
}

// Points returns the points of a step ordinal, ordered by position.
func (t *Tree) Points(seq record.StepSeq) []record.Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return sorted(t.points, func(k record.PointKey) bool {
		return k.StepSeq == seq
	})
}

// LastSeq returns the sequence number of the last event applied.
func (t *Tree) LastSeq() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastSeq
}

func sorted[K record.Key[K], R any](records map[K]R, keep func(K) bool) []R {
	keys := record.SortedKeys(records, keep)
	result := make([]R, len(keys))
	for i, k := range keys {
		result[i] = records[k]
	}
	return result
}
