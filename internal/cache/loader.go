// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"
	"golang.org/x/sync/singleflight"

	"github.com/juju/recordsync/core/record"
	"github.com/juju/recordsync/internal/store"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 250 * time.Millisecond
)

// Logger represents the logging methods used by the loader.
type Logger interface {
	Warningf(string, ...any)
	Debugf(string, ...any)
}

// LoaderConfig holds the dependencies of a Loader.
type LoaderConfig struct {
	Cache  *Cache
	Reader store.Reader
	Clock  clock.Clock
	Logger Logger

	// RetryAttempts is the number of times a failing store read is tried.
	// Zero means 3.
	RetryAttempts int

	// RetryDelay is the pause between two attempts. Zero means 250ms.
	RetryDelay time.Duration
}

// Validate ensures that all the values that have to be set are set.
func (config LoaderConfig) Validate() error {
	if config.Cache == nil {
		return errors.NotValidf("missing Cache")
	}
	if config.Reader == nil {
		return errors.NotValidf("missing Reader")
	}
	if config.Clock == nil {
		return errors.NotValidf("missing Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("missing Logger")
	}
	if config.RetryAttempts < 0 {
		return errors.NotValidf("negative RetryAttempts %d", config.RetryAttempts)
	}
	if config.RetryDelay < 0 {
		return errors.NotValidf("negative RetryDelay %v", config.RetryDelay)
	}
	return nil
}

// Loader serves record groups from the cache, reading them from the store
// on a miss. Concurrent requests for the same group share one store read.
// The shared read outlives the caller that started it, and is only
// abandoned once every caller waiting on it has gone away.
type Loader struct {
	config LoaderConfig
	cache  *Cache
	flight singleflight.Group

	mu    sync.Mutex
	calls map[string]*call
}

// call is the lifetime of one shared store read.
type call struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewLoader returns a Loader for the given config.
func NewLoader(config LoaderConfig) (*Loader, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.RetryAttempts == 0 {
		config.RetryAttempts = defaultRetryAttempts
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = defaultRetryDelay
	}
	return &Loader{
		config: config,
		cache:  config.Cache,
		calls:  make(map[string]*call),
	}, nil
}

// Tests returns every test. When the cache already holds a significant
// number of tests they are returned without reading the store.
func (l *Loader) Tests(ctx context.Context) ([]record.Test, error) {
	if l.cache.HasSignificantData() {
		l.cache.tests.lookup(true)
		return l.cache.AllTests(), nil
	}
	err := l.share(ctx, "tests", func(ctx context.Context) error {
		if l.cache.HasSignificantData() {
			return nil
		}
		l.cache.tests.lookup(false)
		var tests []record.Test
		err := l.withRetry(ctx, "tests", func() (err error) {
			tests, err = l.config.Reader.Tests(ctx, nil)
			return err
		})
		if err != nil {
			return errors.Trace(err)
		}
		l.cache.PutTests(tests...)
		return nil
	})
	if err != nil {
		return nil, errors.Annotate(err, "loading tests")
	}
	return l.cache.AllTests(), nil
}

// StepsForTest returns every step of the test, reading the group from the
// store only when it has not been loaded before.
func (l *Loader) StepsForTest(ctx context.Context, testID record.TestID) ([]record.Step, error) {
	if l.cache.AreStepsLoaded(testID) {
		l.cache.steps.lookup(true)
		return l.cache.StepsOf(testID), nil
	}
	key := fmt.Sprintf("steps/%s", testID)
	err := l.share(ctx, key, func(ctx context.Context) error {
		// Another caller may have completed the load while we queued.
		if l.cache.AreStepsLoaded(testID) {
			return nil
		}
		l.cache.steps.lookup(false)
		var steps []record.Step
		err := l.withRetry(ctx, key, func() (err error) {
			steps, err = l.config.Reader.Steps(ctx, testID, nil)
			return err
		})
		if err != nil {
			return errors.Trace(err)
		}
		l.cache.PutSteps(steps...)
		l.cache.MarkStepsLoaded(testID)
		return nil
	})
	if err != nil {
		return nil, errors.Annotatef(err, "loading steps of test %s", testID)
	}
	return l.cache.StepsOf(testID), nil
}

// PointsForStep returns every point of the step ordinal, reading the group
// from the store only when it has not been loaded before.
func (l *Loader) PointsForStep(ctx context.Context, seq record.StepSeq) ([]record.Point, error) {
	if l.cache.ArePointsLoaded(seq) {
		l.cache.points.lookup(true)
		return l.cache.PointsOf(seq), nil
	}
	key := fmt.Sprintf("points/%s", seq)
	err := l.share(ctx, key, func(ctx context.Context) error {
		if l.cache.ArePointsLoaded(seq) {
			return nil
		}
		l.cache.points.lookup(false)
		var points []record.Point
		err := l.withRetry(ctx, key, func() (err error) {
			points, err = l.config.Reader.Points(ctx, seq, nil)
			return err
		})
		if err != nil {
			return errors.Trace(err)
		}
		l.cache.PutPoints(points...)
		l.cache.MarkPointsLoaded(seq)
		return nil
	})
	if err != nil {
		return nil, errors.Annotatef(err, "loading points of step %s", seq)
	}
	return l.cache.PointsOf(seq), nil
}

// share runs load at most once at a time per key and waits for its result,
// or for ctx to be done. load runs under a context of its own which is
// cancelled when it completes or when its last waiter leaves.
func (l *Loader) share(ctx context.Context, key string, load func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}

	l.mu.Lock()
	c, ok := l.calls[key]
	if !ok {
		callCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call{ctx: callCtx, cancel: cancel}
		l.calls[key] = c
	}
	c.waiters++
	// Joining the flight under mu keeps the call registered for key
	// and the running flight in step with each other.
	result := l.flight.DoChan(key, func() (interface{}, error) {
		defer l.finish(key, c)
		return nil, load(c.ctx)
	})
	l.mu.Unlock()

	select {
	case res := <-result:
		l.leave(key, c)
		return res.Err
	case <-ctx.Done():
		l.leave(key, c)
		return errors.Trace(ctx.Err())
	}
}

func (l *Loader) finish(key string, c *call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls[key] == c {
		delete(l.calls, key)
	}
	c.cancel()
}

func (l *Loader) leave(key string, c *call) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c.waiters--
	if c.waiters > 0 {
		return
	}
	c.cancel()
	if l.calls[key] == c {
		delete(l.calls, key)
		// An abandoned read must not be joined by a later caller.
		l.flight.Forget(key)
	}
}

func (l *Loader) withRetry(ctx context.Context, what string, fn func() error) error {
	err := retry.Call(retry.CallArgs{
		Func: fn,
		IsFatalError: func(err error) bool {
			return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		NotifyFunc: func(err error, attempt int) {
			l.config.Logger.Debugf("reading %s, attempt %d: %v", what, attempt, err)
		},
		Attempts: l.config.RetryAttempts,
		Delay:    l.config.RetryDelay,
		Clock:    l.config.Clock,
		Stop:     ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		l.config.Logger.Warningf("giving up reading %s: %v", what, err)
		return errors.Trace(retry.LastError(err))
	}
	return errors.Trace(err)
}
