// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package record

import "fmt"

// Row is a flat field-set as read from the store, keyed by column name.
// A nil value is a NULL column.
type Row map[string]any

// Column names shared by the store reader and the fingerprinters.
const (
	ColTestID      = "test_id"
	ColName        = "name"
	ColStatus      = "status"
	ColActive      = "active"
	ColDescription = "description"
	ColModifiedAt  = "modified_at"
	ColCreatedAt   = "created_at"
	ColCreatedBy   = "created_by"

	ColSeq      = "seq"
	ColPosition = "position"
	ColOperator = "operator"
	ColComment  = "comment"

	ColStepSeq     = "step_seq"
	ColActualValue = "actual_value"
	ColBreakpoint  = "breakpoint"
)

// ParamColumn returns the column name of the i'th (zero based) parameter
// slot.
func ParamColumn(i int) string {
	return fmt.Sprintf("param_%d", i+1)
}

// ParamColumns returns the column names of every parameter slot in order.
func ParamColumns() []string {
	cols := make([]string, ParamSlots)
	for i := range cols {
		cols[i] = ParamColumn(i)
	}
	return cols
}
