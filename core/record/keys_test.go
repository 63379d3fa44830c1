// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package record_test

import (
	"math"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/recordsync/core/record"
)

type keysSuite struct{}

var _ = gc.Suite(&keysSuite{})

func (s *keysSuite) TestParseStepSeq(c *gc.C) {
	seq, err := record.ParseStepSeq(1.5)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(seq, gc.Equals, record.StepSeq(1.5))
	c.Check(seq.String(), gc.Equals, "1.5")

	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := record.ParseStepSeq(f)
		c.Check(errors.Is(err, errors.NotValid), jc.IsTrue)
	}
}

func (s *keysSuite) TestParseStepSeqFoldsNegativeZero(c *gc.C) {
	neg, err := record.ParseStepSeq(math.Copysign(0, -1))
	c.Assert(err, jc.ErrorIsNil)
	pos, err := record.ParseStepSeq(0)
	c.Assert(err, jc.ErrorIsNil)

	m := map[record.StepKey]bool{{TestID: 1, Seq: pos}: true}
	c.Check(m[record.StepKey{TestID: 1, Seq: neg}], jc.IsTrue)
}

func (s *keysSuite) TestStepKeyOrdering(c *gc.C) {
	a := record.StepKey{TestID: 1, Seq: 2.5}
	b := record.StepKey{TestID: 1, Seq: 10}
	d := record.StepKey{TestID: 2, Seq: 0.5}

	c.Check(a.Compare(b), gc.Equals, -1)
	c.Check(b.Compare(d), gc.Equals, -1)
	c.Check(d.Compare(a), gc.Equals, 1)
	c.Check(a.Compare(a), gc.Equals, 0)
	c.Check(a.String(), gc.Equals, "1/2.5")
}

func (s *keysSuite) TestPointKeyOrdering(c *gc.C) {
	a := record.PointKey{StepSeq: 1, Position: 7}
	b := record.PointKey{StepSeq: 1.25, Position: 0}

	c.Check(a.Compare(b), gc.Equals, -1)
	c.Check(b.Compare(a), gc.Equals, 1)
	c.Check(a.String(), gc.Equals, "1#7")
}

func (s *keysSuite) TestParamColumns(c *gc.C) {
	cols := record.ParamColumns()
	c.Assert(cols, gc.HasLen, record.ParamSlots)
	c.Check(cols[0], gc.Equals, "param_1")
	c.Check(cols[record.ParamSlots-1], gc.Equals, "param_10")
}
