// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"database/sql"

	"github.com/juju/recordsync/core/record"
)

// testIDs is used as a slice input to IN clauses.
type testIDs []int64

// stepSeqs is used as a slice input to IN clauses.
type stepSeqs []float64

// positions is used as a slice input to IN clauses.
type positions []int64

// testGroup scopes a step read to one test.
type testGroup struct {
	TestID int64 `db:"test_id"`
}

// stepGroup scopes a point read to one step ordinal.
type stepGroup struct {
	StepSeq float64 `db:"step_seq"`
}

type testRow struct {
	ID          int64          `db:"test_id"`
	Name        sql.NullString `db:"name"`
	Status      sql.NullString `db:"status"`
	Active      sql.NullBool   `db:"active"`
	Description sql.NullString `db:"description"`
	ModifiedAt  sql.NullString `db:"modified_at"`
	CreatedAt   sql.NullString `db:"created_at"`
	CreatedBy   sql.NullString `db:"created_by"`
}

func (r testRow) toRecord() record.Test {
	return record.Test{
		ID:          record.TestID(r.ID),
		Name:        r.Name.String,
		Status:      r.Status.String,
		Active:      r.Active.Bool,
		Description: r.Description.String,
		ModifiedAt:  r.ModifiedAt.String,
		CreatedAt:   r.CreatedAt.String,
		CreatedBy:   r.CreatedBy.String,
	}
}

// paramRow holds the parameter slots shared by steps and points.
type paramRow struct {
	Param1  sql.NullString `db:"param_1"`
	Param2  sql.NullString `db:"param_2"`
	Param3  sql.NullString `db:"param_3"`
	Param4  sql.NullString `db:"param_4"`
	Param5  sql.NullString `db:"param_5"`
	Param6  sql.NullString `db:"param_6"`
	Param7  sql.NullString `db:"param_7"`
	Param8  sql.NullString `db:"param_8"`
	Param9  sql.NullString `db:"param_9"`
	Param10 sql.NullString `db:"param_10"`
}

func (p paramRow) params() record.Params {
	return record.Params{
		p.Param1.String, p.Param2.String, p.Param3.String, p.Param4.String, p.Param5.String,
		p.Param6.String, p.Param7.String, p.Param8.String, p.Param9.String, p.Param10.String,
	}
}

type stepRow struct {
	TestID   int64          `db:"test_id"`
	Seq      float64        `db:"seq"`
	Name     sql.NullString `db:"name"`
	Position sql.NullInt64  `db:"position"`
	Operator sql.NullString `db:"operator"`
	Comment  sql.NullString `db:"comment"`
}

type pointRow struct {
	StepSeq     float64        `db:"step_seq"`
	Position    int64          `db:"position"`
	Name        sql.NullString `db:"name"`
	Description sql.NullString `db:"description"`
	ActualValue sql.NullString `db:"actual_value"`
	Breakpoint  sql.NullString `db:"breakpoint"`
}

func toStep(r stepRow, p paramRow) (record.Step, error) {
	seq, err := record.ParseStepSeq(r.Seq)
	if err != nil {
		return record.Step{}, err
	}
	return record.Step{
		TestID:   record.TestID(r.TestID),
		Seq:      seq,
		Name:     r.Name.String,
		Position: r.Position.Int64,
		Operator: r.Operator.String,
		Comment:  r.Comment.String,
		Params:   p.params(),
	}, nil
}

func toPoint(r pointRow, p paramRow) (record.Point, error) {
	seq, err := record.ParseStepSeq(r.StepSeq)
	if err != nil {
		return record.Point{}, err
	}
	return record.Point{
		StepSeq:     seq,
		Position:    r.Position,
		Name:        r.Name.String,
		Description: r.Description.String,
		ActualValue: r.ActualValue.String,
		Breakpoint:  r.Breakpoint.String,
		Params:      p.params(),
	}, nil
}
