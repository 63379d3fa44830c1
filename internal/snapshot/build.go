// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package snapshot

import (
	"github.com/juju/recordsync/core/record"
	"github.com/juju/recordsync/internal/fingerprint"
)

// Logger is the logging interface used when building snapshots.
type Logger interface {
	Warningf(string, ...any)
}

// Build fingerprints rows into a snapshot. Rows without a usable identity
// are logged and dropped; they neither appear in the snapshot nor count as
// deletions later. When the store hands back the same identity twice the
// last row wins. The number of dropped rows is returned.
func Build[K comparable](fp fingerprint.Fingerprinter[K], rows []record.Row, logger Logger) (Snapshot[K], int) {
	snap := make(Snapshot[K], len(rows))
	var dropped int
	for _, row := range rows {
		key, digest, err := fp.Fingerprint(row)
		if err != nil {
			dropped++
			logger.Warningf("dropping %s row: %v", fp.Kind(), err)
			continue
		}
		snap[key] = digest
	}
	return snap, dropped
}
