// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package recordwatcher

import (
	"context"

	"github.com/juju/errors"

	"github.com/juju/recordsync/core/changes"
	"github.com/juju/recordsync/core/record"
	"github.com/juju/recordsync/internal/fingerprint"
	"github.com/juju/recordsync/internal/snapshot"
	"github.com/juju/recordsync/internal/store"
)

// passResult is the outcome of a sampling pass that has not yet been
// committed.
type passResult struct {
	// event is nil when nothing changed.
	event *changes.Event

	// set is what the store looked like, minus any identity whose full
	// record could not be read.
	set snapshot.Set

	// seeded is false when the retained snapshot was empty before the
	// pass.
	seeded bool
}

// sample reads the store, diffs it against the retained snapshot and reads
// the full records for everything added or changed. Nothing is committed.
func (w *Watcher) sample(ctx context.Context) (passResult, error) {
	reader := w.config.Reader
	scope := w.config.Scope

	testRows, err := reader.TestRows(ctx, store.TestFilter{IDs: scope})
	if err != nil {
		return passResult{}, errors.Trace(err)
	}
	stepRows, err := reader.StepRows(ctx, store.StepFilter{TestIDs: scope})
	if err != nil {
		return passResult{}, errors.Trace(err)
	}
	pointRows, err := reader.PointRows(ctx, store.PointFilter{TestIDs: scope})
	if err != nil {
		return passResult{}, errors.Trace(err)
	}

	var result passResult
	var dropped int
	result.set.Tests, dropped = snapshot.Build(fingerprint.Tests(), testRows, w.logger)
	w.config.Metrics.droppedRows(record.KindTest, dropped)
	result.set.Steps, dropped = snapshot.Build(fingerprint.Steps(), stepRows, w.logger)
	w.config.Metrics.droppedRows(record.KindStep, dropped)
	result.set.Points, dropped = snapshot.Build(fingerprint.Points(), pointRows, w.logger)
	w.config.Metrics.droppedRows(record.KindPoint, dropped)

	var (
		testDelta  snapshot.Delta[record.TestID]
		stepDelta  snapshot.Delta[record.StepKey]
		pointDelta snapshot.Delta[record.PointKey]
		previous   snapshot.Set
	)
	w.snapshots.Read(func(retained snapshot.Set, seeded bool) {
		result.seeded = seeded
		testDelta = snapshot.Diff(retained.Tests, result.set.Tests)
		stepDelta = snapshot.Diff(retained.Steps, result.set.Steps)
		pointDelta = snapshot.Diff(retained.Points, result.set.Points)

		// Only the digests of changed identities are needed later on,
		// should their full record have vanished in the meantime.
		previous = snapshot.Set{
			Tests:  pick(retained.Tests, testDelta.Changed),
			Steps:  pick(retained.Steps, stepDelta.Changed),
			Points: pick(retained.Points, pointDelta.Changed),
		}
	})
	if testDelta.Empty() && stepDelta.Empty() && pointDelta.Empty() {
		return result, nil
	}

	event := &changes.Event{Initial: !result.seeded}

	tests, err := w.fetchTests(ctx, testDelta.Fetch())
	if err != nil {
		return passResult{}, errors.Annotate(err, "reading changed tests")
	}
	event.Tests = buildDelta(testDelta, tests, result.set.Tests, previous.Tests, w.logger)

	steps, err := w.fetchSteps(ctx, stepDelta.Fetch())
	if err != nil {
		return passResult{}, errors.Annotate(err, "reading changed steps")
	}
	event.Steps = buildDelta(stepDelta, steps, result.set.Steps, previous.Steps, w.logger)

	points, err := w.fetchPoints(ctx, pointDelta.Fetch())
	if err != nil {
		return passResult{}, errors.Annotate(err, "reading changed points")
	}
	event.Points = buildDelta(pointDelta, points, result.set.Points, previous.Points, w.logger)

	if !event.Empty() {
		result.event = event
	}
	return result, nil
}

func (w *Watcher) fetchTests(ctx context.Context, ids []record.TestID) (map[record.TestID]record.Test, error) {
	result := make(map[record.TestID]record.Test, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	w.config.Metrics.fullRead(record.KindTest)
	tests, err := w.config.Reader.Tests(ctx, ids)
	if err != nil {
		return nil, errors.Trace(err)
	}
	for _, t := range tests {
		result[t.Key()] = t
	}
	return result, nil
}

// fetchSteps reads the given steps with one store call per owning test.
func (w *Watcher) fetchSteps(ctx context.Context, keys []record.StepKey) (map[record.StepKey]record.Step, error) {
	result := make(map[record.StepKey]record.Step, len(keys))
	groups, order := groupBy(keys, func(k record.StepKey) (record.TestID, record.StepSeq) {
		return k.TestID, k.Seq
	})
	for _, testID := range order {
		w.config.Metrics.fullRead(record.KindStep)
		steps, err := w.config.Reader.Steps(ctx, testID, groups[testID])
		if err != nil {
			return nil, errors.Annotatef(err, "test %s", testID)
		}
		for _, s := range steps {
			result[s.Key()] = s
		}
	}
	return result, nil
}

// fetchPoints reads the given points with one store call per step ordinal.
func (w *Watcher) fetchPoints(ctx context.Context, keys []record.PointKey) (map[record.PointKey]record.Point, error) {
	result := make(map[record.PointKey]record.Point, len(keys))
	groups, order := groupBy(keys, func(k record.PointKey) (record.StepSeq, int64) {
		return k.StepSeq, k.Position
	})
	for _, seq := range order {
		w.config.Metrics.fullRead(record.KindPoint)
		points, err := w.config.Reader.Points(ctx, seq, groups[seq])
		if err != nil {
			return nil, errors.Annotatef(err, "step %s", seq)
		}
		for _, p := range points {
			result[p.Key()] = p
		}
	}
	return result, nil
}

// keyed is satisfied by every full record type.
type keyed[K comparable] interface {
	Key() K
}

// buildDelta turns a snapshot delta and the full records read for it into
// the event delta. An added or changed identity whose full record could not
// be read was removed from the store between the two reads: it is left out
// of the event, and current is rolled back for it so the next pass looks at
// it again.
func buildDelta[K record.Key[K], R keyed[K]](
	delta snapshot.Delta[K],
	records map[K]R,
	current, previous snapshot.Snapshot[K],
	logger Logger,
) changes.Delta[K, R] {
	var result changes.Delta[K, R]
	for _, k := range delta.Added {
		if _, ok := records[k]; !ok {
			logger.Debugf("added %v vanished before it could be read", k)
			delete(current, k)
			continue
		}
		result.Added = append(result.Added, k)
	}
	for _, k := range delta.Changed {
		if _, ok := records[k]; !ok {
			logger.Debugf("changed %v vanished before it could be read", k)
			current[k] = previous[k]
			continue
		}
		result.Changed = append(result.Changed, k)
	}
	result.Deleted = delta.Deleted

	for _, k := range record.MergeKeys(result.Added, result.Changed) {
		result.Records = append(result.Records, records[k])
	}
	return result
}

// groupBy splits keys by their owning group, keeping the groups in the
// order they were first seen.
func groupBy[K any, G comparable, M any](keys []K, split func(K) (G, M)) (map[G][]M, []G) {
	groups := make(map[G][]M)
	var order []G
	for _, k := range keys {
		g, m := split(k)
		if _, ok := groups[g]; !ok {
			order = append(order, g)
		}
		groups[g] = append(groups[g], m)
	}
	return groups, order
}

func pick[K comparable](snap snapshot.Snapshot[K], keys []K) snapshot.Snapshot[K] {
	result := make(snapshot.Snapshot[K], len(keys))
	for _, k := range keys {
		result[k] = snap[k]
	}
	return result
}
