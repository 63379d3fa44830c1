// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package record

import (
	"cmp"
	"fmt"
	"math"
	"strconv"

	"github.com/juju/errors"
)

// Kind identifies one of the three record classes.
type Kind string

const (
	// KindTest is the parent record class.
	KindTest Kind = "test"
	// KindStep is the child record class.
	KindStep Kind = "step"
	// KindPoint is the grandchild record class.
	KindPoint Kind = "point"
)

// Kinds returns every record class, parents first.
func Kinds() []Kind {
	return []Kind{KindTest, KindStep, KindPoint}
}

// TestID is the identity of a Test.
type TestID int64

// Compare orders test ids numerically.
func (id TestID) Compare(other TestID) int {
	return cmp.Compare(id, other)
}

// String implements fmt.Stringer.
func (id TestID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// StepSeq is the ordinal of a step. The store hands these out as floating
// point sequence numbers, so fractional values are valid identities.
type StepSeq float64

// ParseStepSeq validates f as a step ordinal. NaN and the infinities are
// rejected since they cannot be compared for equality; negative zero is
// folded into zero so both spellings address the same step.
func ParseStepSeq(f float64) (StepSeq, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.NotValidf("step ordinal %v", f)
	}
	if f == 0 {
		f = 0
	}
	return StepSeq(f), nil
}

// Valid reports whether the ordinal can be used as an identity.
func (s StepSeq) Valid() bool {
	f := float64(s)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Compare orders step ordinals numerically.
func (s StepSeq) Compare(other StepSeq) int {
	return cmp.Compare(s, other)
}

// String implements fmt.Stringer.
func (s StepSeq) String() string {
	return strconv.FormatFloat(float64(s), 'g', -1, 64)
}

// StepKey is the composite identity of a Step.
type StepKey struct {
	TestID TestID
	Seq    StepSeq
}

// Compare orders step keys by test, then by ordinal.
func (k StepKey) Compare(other StepKey) int {
	if c := k.TestID.Compare(other.TestID); c != 0 {
		return c
	}
	return k.Seq.Compare(other.Seq)
}

// String implements fmt.Stringer.
func (k StepKey) String() string {
	return fmt.Sprintf("%s/%s", k.TestID, k.Seq)
}

// PointKey is the composite identity of a Point.
type PointKey struct {
	StepSeq  StepSeq
	Position int64
}

// Compare orders point keys by step ordinal, then by position.
func (k PointKey) Compare(other PointKey) int {
	if c := k.StepSeq.Compare(other.StepSeq); c != 0 {
		return c
	}
	return cmp.Compare(k.Position, other.Position)
}

// String implements fmt.Stringer.
func (k PointKey) String() string {
	return fmt.Sprintf("%s#%d", k.StepSeq, k.Position)
}
