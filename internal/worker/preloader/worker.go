// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package preloader loads point groups into the shared cache in the
// background, so that a consumer expanding a step later finds its points
// already cached.
package preloader

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"golang.org/x/time/rate"
	"gopkg.in/tomb.v2"

	"github.com/juju/recordsync/core/record"
)

// PointLoader loads the point group of a step ordinal into the cache. It
// is implemented by *cache.Loader.
type PointLoader interface {
	PointsForStep(ctx context.Context, seq record.StepSeq) ([]record.Point, error)
}

// Cache reports which point groups are already cached. It is implemented
// by *cache.Cache.
type Cache interface {
	ArePointsLoaded(seq record.StepSeq) bool
}

// Logger represents the logging methods used by the preloader.
type Logger interface {
	Warningf(string, ...any)
	Debugf(string, ...any)
}

// Config holds the dependencies of the preloader worker.
type Config struct {
	Loader  PointLoader
	Cache   Cache
	Limiter *rate.Limiter
	Logger  Logger
}

// Validate ensures that all the values that have to be set are set.
func (config Config) Validate() error {
	if config.Loader == nil {
		return errors.NotValidf("missing Loader")
	}
	if config.Cache == nil {
		return errors.NotValidf("missing Cache")
	}
	if config.Limiter == nil {
		return errors.NotValidf("missing Limiter")
	}
	if config.Limiter.Limit() != rate.Inf && config.Limiter.Burst() < 1 {
		return errors.NotValidf("Limiter burst %d", config.Limiter.Burst())
	}
	if config.Logger == nil {
		return errors.NotValidf("missing Logger")
	}
	return nil
}

// Worker drains a queue of step ordinals, loading the point group of each
// one no faster than its limiter allows. Ordinals already queued, or whose
// group is already cached, are never loaded twice. Killing the worker
// interrupts both the limiter wait and any load in flight.
type Worker struct {
	tomb   tomb.Tomb
	config Config

	mu     sync.Mutex
	queue  []record.StepSeq
	queued map[record.StepSeq]bool
	stats  stats
	wake   chan struct{}
}

type stats struct {
	loaded  int
	skipped int
	failed  int
}

// NewWorker starts a preloader worker.
func NewWorker(config Config) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &Worker{
		config: config,
		queued: make(map[record.StepSeq]bool),
		wake:   make(chan struct{}, 1),
	}
	w.tomb.Go(w.loop)
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *Worker) Kill() {
	w.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Worker) Wait() error {
	return w.tomb.Wait()
}

// Enqueue adds step ordinals to the back of the queue and returns how many
// were not already waiting.
func (w *Worker) Enqueue(seqs ...record.StepSeq) int {
	w.mu.Lock()
	added := 0
	for _, seq := range seqs {
		if w.queued[seq] {
			continue
		}
		w.queued[seq] = true
		w.queue = append(w.queue, seq)
		added++
	}
	w.mu.Unlock()

	if added > 0 {
		select {
		case w.wake <- struct{}{}:
		default:
		}
	}
	return added
}

// Pending returns the number of ordinals waiting to be loaded.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Report returns details about the worker, for diagnostics.
func (w *Worker) Report() map[string]interface{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return map[string]interface{}{
		"pending": len(w.queue),
		"loaded":  w.stats.loaded,
		"skipped": w.stats.skipped,
		"failed":  w.stats.failed,
	}
}

func (w *Worker) loop() error {
	ctx := w.tomb.Context(context.Background())
	for {
		select {
		case <-w.tomb.Dying():
			return tomb.ErrDying
		case <-w.wake:
			if err := w.drain(ctx); err != nil {
				return err
			}
		}
	}
}

// drain loads every queued group. It only returns an error when the
// worker is dying.
func (w *Worker) drain(ctx context.Context) error {
	for {
		seq, ok := w.pop()
		if !ok {
			return nil
		}
		if w.config.Cache.ArePointsLoaded(seq) {
			w.count(func(s *stats) { s.skipped++ })
			continue
		}
		if err := w.config.Limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return tomb.ErrDying
			}
			return errors.Annotate(err, "waiting to preload")
		}
		if _, err := w.config.Loader.PointsForStep(ctx, seq); err != nil {
			select {
			case <-w.tomb.Dying():
				return tomb.ErrDying
			default:
			}
			w.config.Logger.Warningf("preloading points of step %s: %v", seq, err)
			w.count(func(s *stats) { s.failed++ })
			continue
		}
		w.config.Logger.Debugf("preloaded points of step %s", seq)
		w.count(func(s *stats) { s.loaded++ })
	}
}

func (w *Worker) pop() (record.StepSeq, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return 0, false
	}
	seq := w.queue[0]
	w.queue = w.queue[1:]
	delete(w.queued, seq)
	return seq, true
}

func (w *Worker) count(fn func(*stats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.stats)
}
