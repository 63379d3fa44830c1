// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package record holds the three-level hierarchy of test definition records
// that recordsync keeps in step with the backing store.
//
// A Test owns zero or more Steps. A Step owns zero or more Points, but Points
// are scoped by the step ordinal only, not by the owning test. That quirk of
// the schema is preserved rather than hidden: a PointKey never carries a
// TestID.
package record
