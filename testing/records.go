// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"database/sql"
	"fmt"
	"strings"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/recordsync/core/record"
)

// MakeTest returns a test record with predictable content.
func MakeTest(id record.TestID) record.Test {
	return record.Test{
		ID:          id,
		Name:        fmt.Sprintf("test-%d", id),
		Status:      "draft",
		Active:      true,
		Description: fmt.Sprintf("description of test %d", id),
		ModifiedAt:  "2026-01-01T00:00:00Z",
		CreatedAt:   "2025-01-01T00:00:00Z",
		CreatedBy:   "admin",
	}
}

// MakeStep returns a step record with predictable content.
func MakeStep(testID record.TestID, seq record.StepSeq) record.Step {
	s := record.Step{
		TestID:   testID,
		Seq:      seq,
		Name:     fmt.Sprintf("step-%d-%s", testID, seq),
		Position: int64(seq),
		Operator: "op",
	}
	for i := range s.Params {
		s.Params[i] = fmt.Sprintf("p%d", i+1)
	}
	return s
}

// MakePoint returns a point record with predictable content.
func MakePoint(seq record.StepSeq, position int64) record.Point {
	p := record.Point{
		StepSeq:     seq,
		Position:    position,
		Name:        fmt.Sprintf("point-%s-%d", seq, position),
		ActualValue: "0",
	}
	for i := range p.Params {
		p.Params[i] = fmt.Sprintf("q%d", i+1)
	}
	return p
}

// TestRow renders t as the lightweight field-set a store reader returns.
func TestRow(t record.Test) record.Row {
	return record.Row{
		record.ColTestID:      int64(t.ID),
		record.ColName:        t.Name,
		record.ColStatus:      t.Status,
		record.ColActive:      boolInt(t.Active),
		record.ColDescription: t.Description,
		record.ColModifiedAt:  t.ModifiedAt,
	}
}

// StepRow renders s as the lightweight field-set a store reader returns.
func StepRow(s record.Step) record.Row {
	row := record.Row{
		record.ColTestID:   int64(s.TestID),
		record.ColSeq:      float64(s.Seq),
		record.ColName:     s.Name,
		record.ColPosition: s.Position,
		record.ColOperator: s.Operator,
		record.ColComment:  s.Comment,
	}
	for i, p := range s.Params {
		row[record.ParamColumn(i)] = p
	}
	return row
}

// PointRow renders p as the lightweight field-set a store reader returns.
func PointRow(p record.Point) record.Row {
	row := record.Row{
		record.ColStepSeq:     float64(p.StepSeq),
		record.ColPosition:    p.Position,
		record.ColName:        p.Name,
		record.ColDescription: p.Description,
		record.ColActualValue: p.ActualValue,
		record.ColBreakpoint:  p.Breakpoint,
	}
	for i, v := range p.Params {
		row[record.ParamColumn(i)] = v
	}
	return row
}

// InsertTests writes tests into the test_definition table of db.
func InsertTests(c *gc.C, db *sql.DB, tests ...record.Test) {
	for _, t := range tests {
		_, err := db.Exec(`
INSERT INTO test_definition (test_id, name, status, active, description, modified_at, created_at, created_by)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(t.ID), t.Name, t.Status, boolInt(t.Active), t.Description, t.ModifiedAt, t.CreatedAt, t.CreatedBy)
		c.Assert(err, jc.ErrorIsNil)
	}
}

// InsertSteps writes steps into the test_step table of db.
func InsertSteps(c *gc.C, db *sql.DB, steps ...record.Step) {
	cols := append([]string{"test_id", "seq", "name", "position", "operator", "comment"}, record.ParamColumns()...)
	stmt := insertStmt("test_step", cols)
	for _, s := range steps {
		args := []any{int64(s.TestID), float64(s.Seq), s.Name, s.Position, s.Operator, s.Comment}
		for _, p := range s.Params {
			args = append(args, p)
		}
		_, err := db.Exec(stmt, args...)
		c.Assert(err, jc.ErrorIsNil)
	}
}

// InsertPoints writes points into the test_point table of db.
func InsertPoints(c *gc.C, db *sql.DB, points ...record.Point) {
	cols := append([]string{"step_seq", "position", "name", "description", "actual_value", "breakpoint"}, record.ParamColumns()...)
	stmt := insertStmt("test_point", cols)
	for _, p := range points {
		args := []any{float64(p.StepSeq), p.Position, p.Name, p.Description, p.ActualValue, p.Breakpoint}
		for _, v := range p.Params {
			args = append(args, v)
		}
		_, err := db.Exec(stmt, args...)
		c.Assert(err, jc.ErrorIsNil)
	}
}

func insertStmt(table string, cols []string) string {
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
