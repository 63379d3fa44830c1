// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"fmt"
	"sync"

	"github.com/juju/loggo/v2"
)

// CheckLog is an interface that can be used to log messages to a
// *testing.T or *check.C.
type CheckLog interface {
	Logf(string, ...any)
}

// CheckLogger logs to a *testing.T or *check.C, so that log output is only
// shown for failing tests.
type CheckLogger struct {
	Log CheckLog
}

// NewCheckLogger returns a CheckLogger that logs to the given CheckLog.
func NewCheckLogger(log CheckLog) CheckLogger {
	return CheckLogger{Log: log}
}

func (c CheckLogger) Criticalf(msg string, args ...any) { c.logf(loggo.CRITICAL, msg, args...) }
func (c CheckLogger) Errorf(msg string, args ...any)    { c.logf(loggo.ERROR, msg, args...) }
func (c CheckLogger) Warningf(msg string, args ...any)  { c.logf(loggo.WARNING, msg, args...) }
func (c CheckLogger) Infof(msg string, args ...any)     { c.logf(loggo.INFO, msg, args...) }
func (c CheckLogger) Debugf(msg string, args ...any)    { c.logf(loggo.DEBUG, msg, args...) }
func (c CheckLogger) Tracef(msg string, args ...any)    { c.logf(loggo.TRACE, msg, args...) }

func (c CheckLogger) logf(level loggo.Level, msg string, args ...any) {
	c.Log.Logf("%s: %s", level.String(), fmt.Sprintf(msg, args...))
}

// LogEntry is a single message captured by a RecordingLogger.
type LogEntry struct {
	Level   loggo.Level
	Message string
}

// RecordingLogger captures every message so tests can assert on what was
// reported. It is safe for concurrent use.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (r *RecordingLogger) Criticalf(msg string, args ...any) { r.record(loggo.CRITICAL, msg, args) }
func (r *RecordingLogger) Errorf(msg string, args ...any)    { r.record(loggo.ERROR, msg, args) }
func (r *RecordingLogger) Warningf(msg string, args ...any)  { r.record(loggo.WARNING, msg, args) }
func (r *RecordingLogger) Infof(msg string, args ...any)     { r.record(loggo.INFO, msg, args) }
func (r *RecordingLogger) Debugf(msg string, args ...any)    { r.record(loggo.DEBUG, msg, args) }
func (r *RecordingLogger) Tracef(msg string, args ...any)    { r.record(loggo.TRACE, msg, args) }

func (r *RecordingLogger) record(level loggo.Level, msg string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, LogEntry{Level: level, Message: fmt.Sprintf(msg, args...)})
}

// Entries returns the messages logged at level or above.
func (r *RecordingLogger) Entries(level loggo.Level) []LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []LogEntry
	for _, e := range r.entries {
		if e.Level >= level {
			result = append(result, e)
		}
	}
	return result
}
