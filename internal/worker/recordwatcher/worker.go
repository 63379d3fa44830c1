// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package recordwatcher

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"
)

// pollWorker drives scheduled sampling passes for one Start/Stop cycle of
// a Watcher. A fresh pollWorker is created on every Start, so a stale loop
// can never outlive the Stop that killed it.
type pollWorker struct {
	catacomb catacomb.Catacomb
	watcher  *Watcher
	reset    chan struct{}
}

func newPollWorker(w *Watcher) (*pollWorker, error) {
	p := &pollWorker{
		watcher: w,
		reset:   make(chan struct{}, 1),
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &p.catacomb,
		Work: p.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return p, nil
}

// Kill is part of the worker.Worker interface.
func (p *pollWorker) Kill() {
	p.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (p *pollWorker) Wait() error {
	return p.catacomb.Wait()
}

// intervalChanged asks the loop to rearm its timer with the watcher's
// current interval.
func (p *pollWorker) intervalChanged() {
	select {
	case p.reset <- struct{}{}:
	default:
	}
}

func (p *pollWorker) loop() error {
	ctx, cancel := p.scopedContext()
	defer cancel()

	w := p.watcher
	dying := p.catacomb.Dying()

	// The first pass runs as soon as the loop starts.
	w.tick(ctx, dying)

	timer := w.config.Clock.NewTimer(w.Interval())
	defer timer.Stop()

	for {
		select {
		case <-dying:
			return p.catacomb.ErrDying()
		case <-p.reset:
			timer.Reset(w.Interval())
		case <-timer.Chan():
			w.tick(ctx, dying)
			timer.Reset(w.Interval())
		}
	}
}

// scopedContext returns a context that is cancelled when the worker is
// killed, so a pass in flight stops reading from the store.
func (p *pollWorker) scopedContext() (context.Context, context.CancelFunc) {
	return context.WithCancel(p.catacomb.Context(context.Background()))
}
