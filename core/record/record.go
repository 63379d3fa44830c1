// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package record

// ParamSlots is the number of free-form parameter columns carried by steps
// and points.
const ParamSlots = 10

// Params holds the parameter slots of a step or point, in column order.
type Params [ParamSlots]string

// Test is the full parent record.
type Test struct {
	ID          TestID
	Name        string
	Status      string
	Active      bool
	Description string
	ModifiedAt  string

	// CreatedAt and CreatedBy are written once when the test is created
	// and are not part of change detection.
	CreatedAt string
	CreatedBy string
}

// Key returns the identity of the test.
func (t Test) Key() TestID {
	return t.ID
}

// Step is the full child record.
type Step struct {
	TestID   TestID
	Seq      StepSeq
	Name     string
	Position int64
	Operator string
	Comment  string
	Params   Params
}

// Key returns the identity of the step.
func (s Step) Key() StepKey {
	return StepKey{TestID: s.TestID, Seq: s.Seq}
}

// Point is the full grandchild record.
type Point struct {
	StepSeq     StepSeq
	Position    int64
	Name        string
	Description string
	ActualValue string
	Breakpoint  string
	Params      Params
}

// Key returns the identity of the point.
func (p Point) Key() PointKey {
	return PointKey{StepSeq: p.StepSeq, Position: p.Position}
}
