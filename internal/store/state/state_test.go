// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state_test

import (
	"context"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/recordsync/core/record"
	"github.com/juju/recordsync/internal/fingerprint"
	"github.com/juju/recordsync/internal/store"
	"github.com/juju/recordsync/internal/store/state"
	coretesting "github.com/juju/recordsync/testing"
)

type stateSuite struct {
	baseSuite

	st *state.State
}

var _ = gc.Suite(&stateSuite{})

func (s *stateSuite) SetUpTest(c *gc.C) {
	s.baseSuite.SetUpTest(c)

	st, err := state.NewState(s.db)
	c.Assert(err, jc.ErrorIsNil)
	s.st = st
}

func (s *stateSuite) TestNewStateNilDB(c *gc.C) {
	_, err := state.NewState(nil)
	c.Check(err, gc.ErrorMatches, "nil db not valid")
}

func (s *stateSuite) TestEnsureSchemaIsIdempotent(c *gc.C) {
	err := state.EnsureSchema(context.Background(), s.db)
	c.Check(err, jc.ErrorIsNil)
}

func (s *stateSuite) TestTestRowsMatchFixtureRows(c *gc.C) {
	t1, t2 := coretesting.MakeTest(1), coretesting.MakeTest(2)
	coretesting.InsertTests(c, s.db, t1, t2)

	rows, err := s.st.TestRows(context.Background(), store.TestFilter{})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(rows, jc.SameContents, []record.Row{
		coretesting.TestRow(t1),
		coretesting.TestRow(t2),
	})
}

func (s *stateSuite) TestTestRowsFilter(c *gc.C) {
	coretesting.InsertTests(c, s.db, coretesting.MakeTest(1), coretesting.MakeTest(2), coretesting.MakeTest(3))

	rows, err := s.st.TestRows(context.Background(), store.TestFilter{IDs: []record.TestID{1, 3}})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(rows, gc.HasLen, 2)

	rows, err = s.st.TestRows(context.Background(), store.TestFilter{IDs: []record.TestID{}})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(rows, gc.HasLen, 0)
}

func (s *stateSuite) TestTestRowsKeepNulls(c *gc.C) {
	_, err := s.db.Exec(`INSERT INTO test_definition (test_id, name) VALUES (9, NULL)`)
	c.Assert(err, jc.ErrorIsNil)

	rows, err := s.st.TestRows(context.Background(), store.TestFilter{})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(rows, gc.HasLen, 1)
	c.Check(rows[0][record.ColName], gc.IsNil)
	c.Check(rows[0][record.ColTestID], gc.Equals, int64(9))
}

func (s *stateSuite) TestStepRowsFingerprintLikeFixtures(c *gc.C) {
	step := coretesting.MakeStep(1, 2.5)
	coretesting.InsertSteps(c, s.db, step)

	rows, err := s.st.StepRows(context.Background(), store.StepFilter{})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(rows, gc.HasLen, 1)

	key, got, err := fingerprint.Steps().Fingerprint(rows[0])
	c.Assert(err, jc.ErrorIsNil)
	c.Check(key, gc.Equals, record.StepKey{TestID: 1, Seq: 2.5})

	_, want, err := fingerprint.Steps().Fingerprint(coretesting.StepRow(step))
	c.Assert(err, jc.ErrorIsNil)
	c.Check(got, gc.Equals, want)
}

func (s *stateSuite) TestPointRowsFilterByTest(c *gc.C) {
	coretesting.InsertSteps(c, s.db, coretesting.MakeStep(1, 1), coretesting.MakeStep(2, 2))
	coretesting.InsertPoints(c, s.db,
		coretesting.MakePoint(1, 1),
		coretesting.MakePoint(1, 2),
		coretesting.MakePoint(2, 1),
	)

	rows, err := s.st.PointRows(context.Background(), store.PointFilter{TestIDs: []record.TestID{2}})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(rows, gc.HasLen, 1)
	c.Check(rows[0][record.ColStepSeq], gc.Equals, float64(2))

	rows, err = s.st.PointRows(context.Background(), store.PointFilter{StepSeqs: []record.StepSeq{1}})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(rows, gc.HasLen, 2)
}

func (s *stateSuite) TestTests(c *gc.C) {
	t1, t2, t3 := coretesting.MakeTest(1), coretesting.MakeTest(2), coretesting.MakeTest(3)
	coretesting.InsertTests(c, s.db, t3, t1, t2)

	tests, err := s.st.Tests(context.Background(), []record.TestID{3, 1})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(tests, jc.DeepEquals, []record.Test{t1, t3})

	tests, err = s.st.Tests(context.Background(), nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(tests, jc.DeepEquals, []record.Test{t1, t2, t3})
}

func (s *stateSuite) TestTestsEmpty(c *gc.C) {
	tests, err := s.st.Tests(context.Background(), nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(tests, gc.HasLen, 0)

	tests, err = s.st.Tests(context.Background(), []record.TestID{})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(tests, gc.HasLen, 0)
}

func (s *stateSuite) TestSteps(c *gc.C) {
	a, b, other := coretesting.MakeStep(1, 1.5), coretesting.MakeStep(1, 3), coretesting.MakeStep(2, 1.5)
	coretesting.InsertSteps(c, s.db, b, other, a)

	steps, err := s.st.Steps(context.Background(), 1, nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(steps, jc.DeepEquals, []record.Step{a, b})

	steps, err = s.st.Steps(context.Background(), 1, []record.StepSeq{3})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(steps, jc.DeepEquals, []record.Step{b})
}

func (s *stateSuite) TestPoints(c *gc.C) {
	p1, p2, other := coretesting.MakePoint(2.5, 1), coretesting.MakePoint(2.5, 2), coretesting.MakePoint(3, 1)
	coretesting.InsertPoints(c, s.db, p2, other, p1)

	points, err := s.st.Points(context.Background(), 2.5, nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(points, jc.DeepEquals, []record.Point{p1, p2})

	points, err = s.st.Points(context.Background(), 2.5, []int64{2})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(points, jc.DeepEquals, []record.Point{p2})

	points, err = s.st.Points(context.Background(), 7, nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(points, gc.HasLen, 0)
}

func (s *stateSuite) TestReadsHonourCancellation(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.st.TestRows(ctx, store.TestFilter{})
	c.Check(err, gc.NotNil)
}
