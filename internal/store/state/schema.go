// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/juju/errors"

	"github.com/juju/recordsync/core/record"
)

const (
	testTable  = "test_definition"
	stepTable  = "test_step"
	pointTable = "test_point"
)

// The tables mirror the legacy schema, which carries no key constraints:
// rows without identity and duplicate identities both occur in the wild.
func schema() []string {
	params := make([]string, record.ParamSlots)
	for i := range params {
		params[i] = fmt.Sprintf("    %s TEXT", record.ParamColumn(i))
	}
	paramCols := strings.Join(params, ",\n")

	return []string{
		`
CREATE TABLE IF NOT EXISTS ` + testTable + ` (
    test_id INTEGER,
    name TEXT,
    status TEXT,
    active INTEGER,
    description TEXT,
    modified_at TEXT,
    created_at TEXT,
    created_by TEXT
);`,
		`
CREATE INDEX IF NOT EXISTS idx_test_definition_id ON ` + testTable + ` (test_id);`,
		`
CREATE TABLE IF NOT EXISTS ` + stepTable + ` (
    test_id INTEGER,
    seq REAL,
    name TEXT,
    position INTEGER,
    operator TEXT,
    comment TEXT,
` + paramCols + `
);`,
		`
CREATE INDEX IF NOT EXISTS idx_test_step_test ON ` + stepTable + ` (test_id, seq);`,
		`
CREATE TABLE IF NOT EXISTS ` + pointTable + ` (
    step_seq REAL,
    position INTEGER,
    name TEXT,
    description TEXT,
    actual_value TEXT,
    breakpoint TEXT,
` + paramCols + `
);`,
		`
CREATE INDEX IF NOT EXISTS idx_test_point_step ON ` + pointTable + ` (step_seq, position);`,
	}
}

// EnsureSchema creates the record tables if they do not already exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Annotate(err, "applying schema")
		}
	}
	return nil
}
