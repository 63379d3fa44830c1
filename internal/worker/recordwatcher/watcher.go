// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package recordwatcher polls the record store, detects which tests, steps
// and points were added, changed or deleted since the previous sample, and
// publishes one aggregated change event per pass that saw a difference.
//
// The store offers no change notifications, so this is deliberately a pull
// design: only the latest sampled state is ever observed.
package recordwatcher

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/juju/recordsync/core/changes"
	"github.com/juju/recordsync/core/record"
	"github.com/juju/recordsync/internal/snapshot"
)

// Watcher owns the retained snapshot and the lifecycle of the polling loop.
// It is created once per process and shared by reference.
//
// A Watcher is either stopped or running. Start and Stop may be called from
// any goroutine; Stop never waits for a pass in flight, whose results are
// then discarded.
type Watcher struct {
	config    Config
	logger    Logger
	snapshots *snapshot.Store

	// passMu serialises sampling passes, so that no two passes ever diff
	// against, or commit to, the retained snapshot at the same time.
	passMu sync.Mutex
	seq    uint64

	mu       sync.Mutex
	interval time.Duration
	loop     *pollWorker
	running  sync.WaitGroup
	loopErr  error

	statsMu sync.Mutex
	stats   stats
}

type stats struct {
	passes    int
	events    int
	skipped   int
	discarded int
	errors    int
	lastError string
	lastEvent uint64
}

// New returns a stopped Watcher.
func New(config Config) (*Watcher, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	interval := config.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		config:    config,
		logger:    config.Logger,
		snapshots: snapshot.NewStore(),
		interval:  interval,
	}, nil
}

// Start begins polling. Starting a running watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.loop != nil {
		w.logger.Warningf("record watcher already running")
		return nil
	}
	loop, err := newPollWorker(w)
	if err != nil {
		return errors.Trace(err)
	}
	w.loop = loop

	w.running.Add(1)
	go func() {
		defer w.running.Done()
		if err := loop.Wait(); err != nil {
			w.logger.Errorf("record watcher loop stopped: %v", err)
			w.mu.Lock()
			w.loopErr = err
			w.mu.Unlock()
		}
	}()
	w.logger.Infof("record watcher started, polling every %v", w.interval)
	return nil
}

// Stop stops polling. It does not wait for a pass in flight; that pass's
// results are discarded. Stopping a stopped watcher is a no-op.
func (w *Watcher) Stop() {
	w.mu.Lock()
	loop := w.loop
	w.loop = nil
	w.mu.Unlock()

	if loop == nil {
		return
	}
	loop.Kill()
	w.logger.Infof("record watcher stopped")
}

// IsRunning reports whether the polling loop is active.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loop != nil
}

// Kill is part of the worker.Worker interface. It stops the watcher.
func (w *Watcher) Kill() {
	w.Stop()
}

// Wait is part of the worker.Worker interface. It blocks until every
// polling loop started so far has finished.
func (w *Watcher) Wait() error {
	w.running.Wait()
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loopErr
}

// Interval returns the current polling interval.
func (w *Watcher) Interval() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.interval
}

// SetInterval changes the polling interval. A running loop picks up the
// new interval straight away.
func (w *Watcher) SetInterval(d time.Duration) error {
	if d <= 0 {
		return errors.NotValidf("interval %v", d)
	}
	w.mu.Lock()
	w.interval = d
	loop := w.loop
	w.mu.Unlock()

	if loop != nil {
		loop.intervalChanged()
	}
	return nil
}

// CheckNow runs one sampling pass straight away, waiting for any pass in
// flight to finish first. It works whether or not the watcher is running.
// It reports whether a change event was published; failures are logged,
// never returned.
func (w *Watcher) CheckNow(ctx context.Context) bool {
	w.passMu.Lock()
	defer w.passMu.Unlock()
	return w.runPass(ctx, nil)
}

// Subscribe registers fn for every change event the watcher publishes.
// Delivery is asynchronous; the returned func unsubscribes.
func (w *Watcher) Subscribe(fn func(changes.Event)) func() {
	return changes.Subscribe(w.config.Hub, fn)
}

// Snapshot returns a copy of the retained snapshot. After receiving a
// change event, a consumer calling Snapshot observes at least the state the
// event described.
func (w *Watcher) Snapshot() snapshot.Set {
	return w.snapshots.Current()
}

// Reset forgets the retained snapshot, so the next pass reports every
// record as added. It is used when the store has been pointed at a
// different dataset.
func (w *Watcher) Reset() {
	w.passMu.Lock()
	defer w.passMu.Unlock()
	w.snapshots.Reset()
}

// Report returns details about the watcher, for diagnostics.
func (w *Watcher) Report() map[string]interface{} {
	w.statsMu.Lock()
	s := w.stats
	w.statsMu.Unlock()

	sizes := w.snapshots.Len()
	report := map[string]interface{}{
		"running":         w.IsRunning(),
		"interval":        w.Interval().String(),
		"passes":          s.passes,
		"events":          s.events,
		"skipped-ticks":   s.skipped,
		"discarded":       s.discarded,
		"errors":          s.errors,
		"last-event":      s.lastEvent,
		"retained-tests":  sizes[record.KindTest],
		"retained-steps":  sizes[record.KindStep],
		"retained-points": sizes[record.KindPoint],
	}
	if s.lastError != "" {
		report["last-error"] = s.lastError
	}
	return report
}

// tick runs a scheduled pass unless one is already in flight.
func (w *Watcher) tick(ctx context.Context, dying <-chan struct{}) {
	if !w.passMu.TryLock() {
		w.logger.Debugf("sampling pass still in flight, skipping tick")
		w.updateStats(func(s *stats) { s.skipped++ })
		w.config.Metrics.pass(outcomeSkipped, 0)
		return
	}
	defer w.passMu.Unlock()
	w.runPass(ctx, dying)
}

// runPass performs one sampling pass. The caller must hold passMu. When
// dying is closed by the time the pass completes, its results are thrown
// away. Reports whether an event was published.
func (w *Watcher) runPass(ctx context.Context, dying <-chan struct{}) bool {
	start := w.config.Clock.Now()
	elapsed := func() time.Duration {
		return w.config.Clock.Now().Sub(start)
	}
	w.updateStats(func(s *stats) { s.passes++ })

	discard := func() bool {
		if !isDying(dying) {
			return false
		}
		w.logger.Debugf("record watcher stopped, discarding sampling pass")
		w.updateStats(func(s *stats) { s.discarded++ })
		w.config.Metrics.pass(outcomeDiscarded, elapsed())
		return true
	}

	result, err := w.sample(ctx)
	if discard() {
		return false
	}
	if err != nil {
		w.logger.Errorf("sampling pass failed, retaining last good snapshot: %v", err)
		w.updateStats(func(s *stats) {
			s.errors++
			s.lastError = err.Error()
		})
		w.config.Metrics.pass(outcomeError, elapsed())
		return false
	}

	// Stop may have landed while the event was being assembled.
	if discard() {
		return false
	}
	if result.event == nil {
		if !result.seeded {
			w.snapshots.Commit(result.set)
		}
		w.logger.Tracef("sampling pass found no changes")
		w.config.Metrics.pass(outcomeUnchanged, elapsed())
		return false
	}

	w.seq++
	event := *result.event
	event.Seq = w.seq

	// The snapshot is committed before the event is published, so a
	// consumer reacting to the event never sees an older snapshot.
	w.snapshots.Commit(result.set)
	w.config.Hub.Publish(changes.Topic, event)

	w.logger.Debugf("published change event %d: tests %d, steps %d, points %d",
		event.Seq, event.Tests.Size(), event.Steps.Size(), event.Points.Size())
	w.updateStats(func(s *stats) {
		s.events++
		s.lastEvent = event.Seq
	})
	w.config.Metrics.pass(outcomeChanged, elapsed())
	w.config.Metrics.observeEvent(event)
	return true
}

func (w *Watcher) updateStats(fn func(*stats)) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	fn(&w.stats)
}

func isDying(dying <-chan struct{}) bool {
	if dying == nil {
		return false
	}
	select {
	case <-dying:
		return true
	default:
		return false
	}
}
