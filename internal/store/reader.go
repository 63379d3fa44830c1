// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package store defines the narrow read interface recordsync needs from
// the backing record store.
package store

import (
	"context"

	"github.com/juju/recordsync/core/record"
)

// TestFilter restricts test reads. The zero value matches every test.
type TestFilter struct {
	IDs []record.TestID
}

// StepFilter restricts step reads. The zero value matches every step.
type StepFilter struct {
	TestIDs []record.TestID
}

// PointFilter restricts point reads. The zero value matches every point.
// TestIDs selects the points whose step ordinal belongs to a step of one of
// the given tests.
type PointFilter struct {
	StepSeqs []record.StepSeq
	TestIDs  []record.TestID
}

// Reader reads the current state of the store. It does no caching and no
// diffing.
type Reader interface {
	// TestRows returns the lightweight field-sets of the tests matching
	// filter: the key columns plus every digest column.
	TestRows(ctx context.Context, filter TestFilter) ([]record.Row, error)

	// StepRows returns the lightweight field-sets of the matching steps.
	StepRows(ctx context.Context, filter StepFilter) ([]record.Row, error)

	// PointRows returns the lightweight field-sets of the matching points.
	PointRows(ctx context.Context, filter PointFilter) ([]record.Row, error)

	// Tests returns the full records of the given tests. A nil slice reads
	// every test.
	Tests(ctx context.Context, ids []record.TestID) ([]record.Test, error)

	// Steps returns the full records of the given steps of one test. A nil
	// slice reads every step of the test.
	Steps(ctx context.Context, testID record.TestID, seqs []record.StepSeq) ([]record.Step, error)

	// Points returns the full records of the given points of one step
	// ordinal. A nil slice reads the whole point group.
	Points(ctx context.Context, seq record.StepSeq, positions []int64) ([]record.Point, error)
}
