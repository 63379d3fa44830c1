// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import "time"

const (
	// ShortWait is how long a test waits to be confident that something,
	// such as a change event, is not going to happen.
	ShortWait = 50 * time.Millisecond

	// LongWait bounds waits for things that should happen almost at once.
	// Only a failing test ever waits this long.
	LongWait = 10 * time.Second
)
