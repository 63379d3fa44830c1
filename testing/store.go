// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"context"
	"slices"
	"sync"

	"github.com/juju/recordsync/core/record"
	"github.com/juju/recordsync/internal/store"
)

// FakeStore is an in-memory store.Reader. Tests mutate it between passes
// to simulate edits made by other writers.
type FakeStore struct {
	mu     sync.Mutex
	tests  map[record.TestID]record.Test
	steps  map[record.StepKey]record.Step
	points map[record.PointKey]record.Point

	err      error
	failNext int
	nextErr  error
	hidden   map[any]bool
	calls    map[string]int

	// Block, when set, is waited on by every read. Entered receives a
	// value each time a read starts waiting.
	Block   chan struct{}
	Entered chan struct{}
}

var _ store.Reader = (*FakeStore)(nil)

// NewFakeStore returns an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		tests:  make(map[record.TestID]record.Test),
		steps:  make(map[record.StepKey]record.Step),
		points: make(map[record.PointKey]record.Point),
		hidden: make(map[any]bool),
		calls:  make(map[string]int),
	}
}

// PutTests inserts or replaces tests.
func (f *FakeStore) PutTests(tests ...record.Test) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tests {
		f.tests[t.Key()] = t
	}
}

// PutSteps inserts or replaces steps.
func (f *FakeStore) PutSteps(steps ...record.Step) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range steps {
		f.steps[s.Key()] = s
	}
}

// PutPoints inserts or replaces points.
func (f *FakeStore) PutPoints(points ...record.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range points {
		f.points[p.Key()] = p
	}
}

// DeleteTest removes a test, leaving its steps alone.
func (f *FakeStore) DeleteTest(id record.TestID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tests, id)
}

// DeleteStep removes a step, leaving its points alone.
func (f *FakeStore) DeleteStep(key record.StepKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.steps, key)
}

// DeletePoint removes a point.
func (f *FakeStore) DeletePoint(key record.PointKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.points, key)
}

// Hide makes the full record of key unreadable while its lightweight row
// stays visible, as if it were deleted between the two reads. key is a
// record.TestID, record.StepKey or record.PointKey.
func (f *FakeStore) Hide(key any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden[key] = true
}

// Show undoes Hide.
func (f *FakeStore) Show(key any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hidden, key)
}

// SetError makes every subsequent read fail with err, until it is reset
// with nil.
func (f *FakeStore) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// FailNext makes the next n reads fail with err.
func (f *FakeStore) FailNext(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = n
	f.nextErr = err
}

// Calls returns the number of times method was called.
func (f *FakeStore) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// FullReads returns the number of full record reads made so far.
func (f *FakeStore) FullReads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls["Tests"] + f.calls["Steps"] + f.calls["Points"]
}

// ResetCalls forgets every recorded call.
func (f *FakeStore) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = make(map[string]int)
}

func (f *FakeStore) enter(ctx context.Context, method string) error {
	f.mu.Lock()
	f.calls[method]++
	block, entered := f.Block, f.Entered
	f.mu.Unlock()

	if block != nil {
		if entered != nil {
			select {
			case entered <- struct{}{}:
			default:
			}
		}
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return f.nextErr
	}
	return f.err
}

// TestRows is part of the store.Reader interface.
func (f *FakeStore) TestRows(ctx context.Context, filter store.TestFilter) ([]record.Row, error) {
	if err := f.enter(ctx, "TestRows"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []record.Row
	for id, t := range f.tests {
		if filter.IDs != nil && !slices.Contains(filter.IDs, id) {
			continue
		}
		rows = append(rows, TestRow(t))
	}
	return rows, nil
}

// StepRows is part of the store.Reader interface.
func (f *FakeStore) StepRows(ctx context.Context, filter store.StepFilter) ([]record.Row, error) {
	if err := f.enter(ctx, "StepRows"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []record.Row
	for key, s := range f.steps {
		if filter.TestIDs != nil && !slices.Contains(filter.TestIDs, key.TestID) {
			continue
		}
		rows = append(rows, StepRow(s))
	}
	return rows, nil
}

// PointRows is part of the store.Reader interface.
func (f *FakeStore) PointRows(ctx context.Context, filter store.PointFilter) ([]record.Row, error) {
	if err := f.enter(ctx, "PointRows"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []record.Row
	for key, p := range f.points {
		if filter.StepSeqs != nil && !slices.Contains(filter.StepSeqs, key.StepSeq) {
			continue
		}
		if filter.TestIDs != nil && !f.seqOwnedBy(key.StepSeq, filter.TestIDs) {
			continue
		}
		rows = append(rows, PointRow(p))
	}
	return rows, nil
}

func (f *FakeStore) seqOwnedBy(seq record.StepSeq, ids []record.TestID) bool {
	for key := range f.steps {
		if key.Seq == seq && slices.Contains(ids, key.TestID) {
			return true
		}
	}
	return false
}

// Tests is part of the store.Reader interface.
func (f *FakeStore) Tests(ctx context.Context, ids []record.TestID) ([]record.Test, error) {
	if err := f.enter(ctx, "Tests"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []record.Test
	for id, t := range f.tests {
		if f.hidden[id] || (ids != nil && !slices.Contains(ids, id)) {
			continue
		}
		result = append(result, t)
	}
	slices.SortFunc(result, func(a, b record.Test) int { return a.ID.Compare(b.ID) })
	return result, nil
}

// Steps is part of the store.Reader interface.
func (f *FakeStore) Steps(ctx context.Context, testID record.TestID, seqs []record.StepSeq) ([]record.Step, error) {
	if err := f.enter(ctx, "Steps"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []record.Step
	for key, s := range f.steps {
		if key.TestID != testID || f.hidden[key] || (seqs != nil && !slices.Contains(seqs, key.Seq)) {
			continue
		}
		result = append(result, s)
	}
	slices.SortFunc(result, func(a, b record.Step) int { return a.Key().Compare(b.Key()) })
	return result, nil
}

// Points is part of the store.Reader interface.
func (f *FakeStore) Points(ctx context.Context, seq record.StepSeq, positions []int64) ([]record.Point, error) {
	if err := f.enter(ctx, "Points"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []record.Point
	for key, p := range f.points {
		if key.StepSeq != seq || f.hidden[key] || (positions != nil && !slices.Contains(positions, key.Position)) {
			continue
		}
		result = append(result, p)
	}
	slices.SortFunc(result, func(a, b record.Point) int { return a.Key().Compare(b.Key()) })
	return result, nil
}
