// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package fingerprint turns raw store rows into an identity and a digest.
//
// The identity is taken from the key columns only. The digest is a 64-bit
// xxhash over every column listed in the record class's digest field list,
// rendered in that fixed order. A column left out of the list is invisible
// to change detection; the lists below are the single place where that
// choice is made:
//
//	tests:  name, status, active, description, modified_at
//	steps:  name, position, operator, comment, param_1 .. param_10
//	points: name, description, actual_value, breakpoint, param_1 .. param_10
//
// created_at and created_by are never edited after a test is inserted and
// are therefore excluded.
package fingerprint
