// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package fingerprint

import (
	"math"
	"strconv"
	"strings"

	"github.com/juju/errors"

	"github.com/juju/recordsync/core/record"
)

// Fingerprinter derives the identity and digest of rows of one record class.
type Fingerprinter[K comparable] interface {
	// Kind returns the record class handled by the fingerprinter.
	Kind() record.Kind

	// Fields returns the ordered digest field list.
	Fields() []string

	// Fingerprint returns the identity and digest of row. An error
	// satisfying errors.NotValid is returned when the identity is missing
	// or cannot be parsed.
	Fingerprint(row record.Row) (K, Digest, error)
}

var (
	testFields = []string{
		record.ColName,
		record.ColStatus,
		record.ColActive,
		record.ColDescription,
		record.ColModifiedAt,
	}
	stepFields = append([]string{
		record.ColName,
		record.ColPosition,
		record.ColOperator,
		record.ColComment,
	}, record.ParamColumns()...)
	pointFields = append([]string{
		record.ColName,
		record.ColDescription,
		record.ColActualValue,
		record.ColBreakpoint,
	}, record.ParamColumns()...)
)

// Tests returns the fingerprinter for test rows.
func Tests() Fingerprinter[record.TestID] {
	return testFingerprinter{}
}

// Steps returns the fingerprinter for step rows.
func Steps() Fingerprinter[record.StepKey] {
	return stepFingerprinter{}
}

// Points returns the fingerprinter for point rows.
func Points() Fingerprinter[record.PointKey] {
	return pointFingerprinter{}
}

type testFingerprinter struct{}

func (testFingerprinter) Kind() record.Kind { return record.KindTest }

func (testFingerprinter) Fields() []string { return clone(testFields) }

func (testFingerprinter) Fingerprint(row record.Row) (record.TestID, Digest, error) {
	id, err := TestIDFrom(row[record.ColTestID])
	if err != nil {
		return 0, 0, errors.Annotatef(err, "test row")
	}
	return id, Sum(row, testFields), nil
}

type stepFingerprinter struct{}

func (stepFingerprinter) Kind() record.Kind { return record.KindStep }

func (stepFingerprinter) Fields() []string { return clone(stepFields) }

func (stepFingerprinter) Fingerprint(row record.Row) (record.StepKey, Digest, error) {
	testID, err := TestIDFrom(row[record.ColTestID])
	if err != nil {
		return record.StepKey{}, 0, errors.Annotatef(err, "step row")
	}
	seq, err := StepSeqFrom(row[record.ColSeq])
	if err != nil {
		return record.StepKey{}, 0, errors.Annotatef(err, "step row of test %s", testID)
	}
	return record.StepKey{TestID: testID, Seq: seq}, Sum(row, stepFields), nil
}

type pointFingerprinter struct{}

func (pointFingerprinter) Kind() record.Kind { return record.KindPoint }

func (pointFingerprinter) Fields() []string { return clone(pointFields) }

func (pointFingerprinter) Fingerprint(row record.Row) (record.PointKey, Digest, error) {
	seq, err := StepSeqFrom(row[record.ColStepSeq])
	if err != nil {
		return record.PointKey{}, 0, errors.Annotatef(err, "point row")
	}
	pos, err := intFrom(row[record.ColPosition])
	if err != nil {
		return record.PointKey{}, 0, errors.Annotatef(err, "point row of step %s", seq)
	}
	return record.PointKey{StepSeq: seq, Position: pos}, Sum(row, pointFields), nil
}

// TestIDFrom parses a test identity out of a column value.
func TestIDFrom(v any) (record.TestID, error) {
	id, err := intFrom(v)
	if err != nil {
		return 0, errors.Annotate(err, "test id")
	}
	return record.TestID(id), nil
}

// StepSeqFrom parses a step ordinal out of a column value.
func StepSeqFrom(v any) (record.StepSeq, error) {
	var f float64
	switch v := v.(type) {
	case nil:
		return 0, errors.NotValidf("missing step ordinal")
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int64:
		f = float64(v)
	case int:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, errors.NotValidf("step ordinal %q", v)
		}
		f = parsed
	case []byte:
		return StepSeqFrom(string(v))
	default:
		return 0, errors.NotValidf("step ordinal of type %T", v)
	}
	return record.ParseStepSeq(f)
}

func intFrom(v any) (int64, error) {
	switch v := v.(type) {
	case nil:
		return 0, errors.NotValidf("missing value")
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, errors.NotValidf("non integral value %v", v)
		}
		return int64(v), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, errors.NotValidf("value %q", v)
		}
		return i, nil
	case []byte:
		return intFrom(string(v))
	default:
		return 0, errors.NotValidf("value of type %T", v)
	}
}

func clone(fields []string) []string {
	return append([]string(nil), fields...)
}
