// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package snapshot_test

import (
	"math/rand"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/recordsync/core/record"
	"github.com/juju/recordsync/internal/fingerprint"
	"github.com/juju/recordsync/internal/snapshot"
)

type diffSuite struct{}

var _ = gc.Suite(&diffSuite{})

func (s *diffSuite) TestIdenticalSnapshotsAreEmpty(c *gc.C) {
	a := snapshot.Snapshot[record.TestID]{1: 10, 2: 20, 3: 30}
	delta := snapshot.Diff(a, a.Clone())
	c.Check(delta.Empty(), jc.IsTrue)
	c.Check(delta.Fetch(), gc.HasLen, 0)
}

func (s *diffSuite) TestClassification(c *gc.C) {
	previous := snapshot.Snapshot[record.TestID]{1: 10, 2: 20, 3: 30}
	current := snapshot.Snapshot[record.TestID]{2: 21, 3: 30, 4: 40, 5: 50}

	delta := snapshot.Diff(previous, current)
	c.Check(delta.Added, jc.DeepEquals, []record.TestID{4, 5})
	c.Check(delta.Changed, jc.DeepEquals, []record.TestID{2})
	c.Check(delta.Deleted, jc.DeepEquals, []record.TestID{1})
	c.Check(delta.Fetch(), jc.DeepEquals, []record.TestID{2, 4, 5})
}

func (s *diffSuite) TestFirstSample(c *gc.C) {
	current := snapshot.Snapshot[record.StepKey]{
		{TestID: 1, Seq: 2}:   1,
		{TestID: 1, Seq: 1.5}: 2,
	}
	delta := snapshot.Diff(nil, current)
	c.Check(delta.Added, jc.DeepEquals, []record.StepKey{{TestID: 1, Seq: 1.5}, {TestID: 1, Seq: 2}})
	c.Check(delta.Changed, gc.HasLen, 0)
	c.Check(delta.Deleted, gc.HasLen, 0)
}

func (s *diffSuite) TestCompositeKeysAreDecomposable(c *gc.C) {
	previous := snapshot.Snapshot[record.StepKey]{{TestID: 1, Seq: 5}: 1}
	delta := snapshot.Diff(previous, snapshot.Snapshot[record.StepKey]{})
	c.Assert(delta.Deleted, gc.HasLen, 1)
	c.Check(delta.Deleted[0].TestID, gc.Equals, record.TestID(1))
	c.Check(delta.Deleted[0].Seq, gc.Equals, record.StepSeq(5))
}

// TestProperties checks the classification invariants over random pairs of
// snapshots.
func (s *diffSuite) TestProperties(c *gc.C) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		previous := randomSnapshot(r)
		current := randomSnapshot(r)
		delta := snapshot.Diff(previous, current)

		seen := make(map[record.PointKey]int)
		for _, k := range delta.Added {
			_, inPrev := previous[k]
			c.Assert(inPrev, jc.IsFalse)
			seen[k]++
		}
		for _, k := range delta.Changed {
			c.Assert(previous[k], gc.Not(gc.Equals), current[k])
			seen[k]++
		}
		for _, k := range delta.Deleted {
			_, inCur := current[k]
			c.Assert(inCur, jc.IsFalse)
			seen[k]++
		}
		for k, n := range seen {
			c.Assert(n, gc.Equals, 1, gc.Commentf("key %s reported %d times", k, n))
		}
		for k, d := range current {
			if old, ok := previous[k]; ok && old == d {
				c.Assert(seen[k], gc.Equals, 0)
			}
		}

		fetch := delta.Fetch()
		c.Assert(fetch, gc.HasLen, len(delta.Added)+len(delta.Changed))
		for j := 1; j < len(fetch); j++ {
			c.Assert(fetch[j-1].Compare(fetch[j]) < 0, jc.IsTrue)
		}
	}
}

func randomSnapshot(r *rand.Rand) snapshot.Snapshot[record.PointKey] {
	snap := make(snapshot.Snapshot[record.PointKey])
	for i := 0; i < r.Intn(20); i++ {
		key := record.PointKey{
			StepSeq:  record.StepSeq(float64(r.Intn(4)) / 2),
			Position: int64(r.Intn(5)),
		}
		snap[key] = fingerprint.Digest(r.Intn(3))
	}
	return snap
}
