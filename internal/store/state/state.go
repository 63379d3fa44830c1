// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package state implements store.Reader on top of a SQLite database.
//
// Lightweight reads scan into untyped field-sets so that fingerprints see
// exactly what the driver returned, NULLs included. Full reads go through
// sqlair into typed rows.
package state

import (
	"context"
	"database/sql"
	"strings"

	"github.com/canonical/sqlair"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/recordsync/core/record"
	"github.com/juju/recordsync/internal/store"
)

var logger = loggo.GetLogger("recordsync.store.state")

// State reads test definitions from a SQLite database.
type State struct {
	db  *sql.DB
	sdb *sqlair.DB

	allTestsStmt  *sqlair.Statement
	testsStmt     *sqlair.Statement
	allStepsStmt  *sqlair.Statement
	stepsStmt     *sqlair.Statement
	allPointsStmt *sqlair.Statement
	pointsStmt    *sqlair.Statement
}

var _ store.Reader = (*State)(nil)

// NewState returns a State reading from db. The record tables are expected
// to exist; see EnsureSchema.
func NewState(db *sql.DB) (*State, error) {
	if db == nil {
		return nil, errors.NotValidf("nil db")
	}
	st := &State{
		db:  db,
		sdb: sqlair.NewDB(db),
	}
	if err := st.prepare(); err != nil {
		return nil, errors.Trace(err)
	}
	return st, nil
}

func (st *State) prepare() error {
	var err error
	prepare := func(name, query string, typeSamples ...any) *sqlair.Statement {
		if err != nil {
			return nil
		}
		var stmt *sqlair.Statement
		stmt, err = sqlair.Prepare(query, typeSamples...)
		if err != nil {
			err = errors.Annotatef(err, "preparing %s", name)
		}
		return stmt
	}

	st.allTestsStmt = prepare("all tests", `
SELECT &testRow.*
FROM   `+testTable+`
WHERE  test_id IS NOT NULL
ORDER BY test_id`, testRow{})

	st.testsStmt = prepare("tests", `
SELECT &testRow.*
FROM   `+testTable+`
WHERE  test_id IN ($testIDs[:])
ORDER BY test_id`, testRow{}, testIDs{})

	st.allStepsStmt = prepare("all steps", `
SELECT &stepRow.*, &paramRow.*
FROM   `+stepTable+`
WHERE  test_id = $testGroup.test_id
AND    seq IS NOT NULL
ORDER BY seq`, stepRow{}, paramRow{}, testGroup{})

	st.stepsStmt = prepare("steps", `
SELECT &stepRow.*, &paramRow.*
FROM   `+stepTable+`
WHERE  test_id = $testGroup.test_id
AND    seq IN ($stepSeqs[:])
ORDER BY seq`, stepRow{}, paramRow{}, testGroup{}, stepSeqs{})

	st.allPointsStmt = prepare("all points", `
SELECT &pointRow.*, &paramRow.*
FROM   `+pointTable+`
WHERE  step_seq = $stepGroup.step_seq
AND    position IS NOT NULL
ORDER BY position`, pointRow{}, paramRow{}, stepGroup{})

	st.pointsStmt = prepare("points", `
SELECT &pointRow.*, &paramRow.*
FROM   `+pointTable+`
WHERE  step_seq = $stepGroup.step_seq
AND    position IN ($positions[:])
ORDER BY position`, pointRow{}, paramRow{}, stepGroup{}, positions{})

	return err
}

// TestRows is part of the store.Reader interface.
func (st *State) TestRows(ctx context.Context, filter store.TestFilter) ([]record.Row, error) {
	q := newSelect(testTable, testLightColumns)
	q.whereIn(record.ColTestID, int64Args(filter.IDs))
	rows, err := st.queryRows(ctx, q)
	return rows, errors.Annotate(err, "reading test rows")
}

// StepRows is part of the store.Reader interface.
func (st *State) StepRows(ctx context.Context, filter store.StepFilter) ([]record.Row, error) {
	q := newSelect(stepTable, stepLightColumns)
	q.whereIn(record.ColTestID, int64Args(filter.TestIDs))
	rows, err := st.queryRows(ctx, q)
	return rows, errors.Annotate(err, "reading step rows")
}

// PointRows is part of the store.Reader interface.
func (st *State) PointRows(ctx context.Context, filter store.PointFilter) ([]record.Row, error) {
	q := newSelect(pointTable, pointLightColumns)
	q.whereIn(record.ColStepSeq, floatArgs(filter.StepSeqs))
	if filter.TestIDs != nil {
		q.whereSub(record.ColStepSeq, "SELECT seq FROM "+stepTable, record.ColTestID, int64Args(filter.TestIDs))
	}
	rows, err := st.queryRows(ctx, q)
	return rows, errors.Annotate(err, "reading point rows")
}

// Tests is part of the store.Reader interface.
func (st *State) Tests(ctx context.Context, ids []record.TestID) ([]record.Test, error) {
	if ids != nil && len(ids) == 0 {
		return nil, nil
	}

	var (
		rows []testRow
		err  error
	)
	if ids == nil {
		err = st.sdb.Query(ctx, st.allTestsStmt).GetAll(&rows)
	} else {
		args := make(testIDs, len(ids))
		for i, id := range ids {
			args[i] = int64(id)
		}
		err = st.sdb.Query(ctx, st.testsStmt, args).GetAll(&rows)
	}
	if err != nil && !errors.Is(err, sqlair.ErrNoRows) {
		return nil, errors.Annotate(err, "reading tests")
	}

	tests := make([]record.Test, len(rows))
	for i, row := range rows {
		tests[i] = row.toRecord()
	}
	return tests, nil
}

// Steps is part of the store.Reader interface.
func (st *State) Steps(ctx context.Context, testID record.TestID, seqs []record.StepSeq) ([]record.Step, error) {
	if seqs != nil && len(seqs) == 0 {
		return nil, nil
	}

	var (
		rows   []stepRow
		params []paramRow
		err    error
	)
	group := testGroup{TestID: int64(testID)}
	if seqs == nil {
		err = st.sdb.Query(ctx, st.allStepsStmt, group).GetAll(&rows, &params)
	} else {
		args := make(stepSeqs, len(seqs))
		for i, seq := range seqs {
			args[i] = float64(seq)
		}
		err = st.sdb.Query(ctx, st.stepsStmt, group, args).GetAll(&rows, &params)
	}
	if err != nil && !errors.Is(err, sqlair.ErrNoRows) {
		return nil, errors.Annotatef(err, "reading steps of test %s", testID)
	}

	steps := make([]record.Step, 0, len(rows))
	for i, row := range rows {
		step, err := toStep(row, params[i])
		if err != nil {
			logger.Warningf("dropping step of test %s: %v", testID, err)
			continue
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// Points is part of the store.Reader interface.
func (st *State) Points(ctx context.Context, seq record.StepSeq, pos []int64) ([]record.Point, error) {
	if pos != nil && len(pos) == 0 {
		return nil, nil
	}

	var (
		rows   []pointRow
		params []paramRow
		err    error
	)
	group := stepGroup{StepSeq: float64(seq)}
	if pos == nil {
		err = st.sdb.Query(ctx, st.allPointsStmt, group).GetAll(&rows, &params)
	} else {
		err = st.sdb.Query(ctx, st.pointsStmt, group, positions(pos)).GetAll(&rows, &params)
	}
	if err != nil && !errors.Is(err, sqlair.ErrNoRows) {
		return nil, errors.Annotatef(err, "reading points of step %s", seq)
	}

	points := make([]record.Point, 0, len(rows))
	for i, row := range rows {
		point, err := toPoint(row, params[i])
		if err != nil {
			logger.Warningf("dropping point of step %s: %v", seq, err)
			continue
		}
		points = append(points, point)
	}
	return points, nil
}

func (st *State) queryRows(ctx context.Context, q *selectQuery) ([]record.Row, error) {
	query, args := q.build()
	rows, err := st.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() { _ = rows.Close() }()

	var result []record.Row
	values := make([]any, len(q.columns))
	dest := make([]any, len(q.columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.Trace(err)
		}
		row := make(record.Row, len(q.columns))
		for i, col := range q.columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	return result, errors.Trace(rows.Err())
}

var (
	testLightColumns = []string{
		record.ColTestID,
		record.ColName,
		record.ColStatus,
		record.ColActive,
		record.ColDescription,
		record.ColModifiedAt,
	}
	stepLightColumns = append([]string{
		record.ColTestID,
		record.ColSeq,
		record.ColName,
		record.ColPosition,
		record.ColOperator,
		record.ColComment,
	}, record.ParamColumns()...)
	pointLightColumns = append([]string{
		record.ColStepSeq,
		record.ColPosition,
		record.ColName,
		record.ColDescription,
		record.ColActualValue,
		record.ColBreakpoint,
	}, record.ParamColumns()...)
)

// selectQuery builds the dynamic lightweight reads, whose IN lists vary in
// length from one pass to the next.
type selectQuery struct {
	table   string
	columns []string
	where   []string
	args    []any
}

func newSelect(table string, columns []string) *selectQuery {
	return &selectQuery{table: table, columns: columns}
}

// whereIn restricts column to values. A nil slice adds no restriction; an
// empty, non-nil one matches nothing.
func (q *selectQuery) whereIn(column string, values []any) {
	if values == nil {
		return
	}
	if len(values) == 0 {
		q.where = append(q.where, "0")
		return
	}
	q.where = append(q.where, column+" IN ("+placeholders(len(values))+")")
	q.args = append(q.args, values...)
}

func (q *selectQuery) whereSub(column, sub, subColumn string, values []any) {
	if len(values) == 0 {
		q.where = append(q.where, "0")
		return
	}
	q.where = append(q.where, column+" IN ("+sub+" WHERE "+subColumn+" IN ("+placeholders(len(values))+"))")
	q.args = append(q.args, values...)
}

func (q *selectQuery) build() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(q.table)
	if len(q.where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.where, " AND "))
	}
	return b.String(), q.args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []record.TestID) []any {
	if ids == nil {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = int64(id)
	}
	return args
}

func floatArgs(seqs []record.StepSeq) []any {
	if seqs == nil {
		return nil
	}
	args := make([]any, len(seqs))
	for i, seq := range seqs {
		args[i] = float64(seq)
	}
	return args
}
