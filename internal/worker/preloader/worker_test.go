// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package preloader_test

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	"golang.org/x/time/rate"
	gc "gopkg.in/check.v1"

	"github.com/juju/recordsync/core/record"
	"github.com/juju/recordsync/internal/cache"
	"github.com/juju/recordsync/internal/worker/preloader"
	coretesting "github.com/juju/recordsync/testing"
)

type workerSuite struct {
	store  *coretesting.FakeStore
	cache  *cache.Cache
	loader *cache.Loader
	logger *coretesting.RecordingLogger
}

var _ = gc.Suite(&workerSuite{})

func (s *workerSuite) SetUpTest(c *gc.C) {
	s.store = coretesting.NewFakeStore()
	s.store.PutPoints(
		coretesting.MakePoint(1, 1),
		coretesting.MakePoint(1, 2),
		coretesting.MakePoint(2, 1),
		coretesting.MakePoint(3.5, 1),
	)
	var err error
	s.cache, err = cache.New(cache.Config{})
	c.Assert(err, jc.ErrorIsNil)
	s.logger = &coretesting.RecordingLogger{}
	s.loader, err = cache.NewLoader(cache.LoaderConfig{
		Cache:         s.cache,
		Reader:        s.store,
		Clock:         clock.WallClock,
		Logger:        s.logger,
		RetryAttempts: 1,
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *workerSuite) config() preloader.Config {
	return preloader.Config{
		Loader:  s.loader,
		Cache:   s.cache,
		Limiter: rate.NewLimiter(rate.Inf, 1),
		Logger:  s.logger,
	}
}

func (s *workerSuite) newWorker(c *gc.C) *preloader.Worker {
	w, err := preloader.NewWorker(s.config())
	c.Assert(err, jc.ErrorIsNil)
	return w
}

// waitReport waits until the named counter of the worker's report reaches
// want.
func waitReport(c *gc.C, w *preloader.Worker, key string, want int) {
	timeout := time.After(coretesting.LongWait)
	for {
		if w.Report()[key] == want {
			return
		}
		select {
		case <-timeout:
			c.Fatalf("%s never reached %d: %v", key, want, w.Report())
		case <-time.After(time.Millisecond):
		}
	}
}

func (s *workerSuite) TestValidate(c *gc.C) {
	cfg := s.config()
	cfg.Loader = nil
	_, err := preloader.NewWorker(cfg)
	c.Check(err, gc.ErrorMatches, "missing Loader not valid")

	cfg = s.config()
	cfg.Limiter = rate.NewLimiter(rate.Every(time.Second), 0)
	_, err = preloader.NewWorker(cfg)
	c.Check(err, jc.ErrorIs, errors.NotValid)
}

func (s *workerSuite) TestLoadsQueuedGroups(c *gc.C) {
	w := s.newWorker(c)
	defer workertest.CleanKill(c, w)

	c.Check(w.Enqueue(1, 2, 3.5), gc.Equals, 3)
	waitReport(c, w, "loaded", 3)

	for _, seq := range []record.StepSeq{1, 2, 3.5} {
		c.Check(s.cache.ArePointsLoaded(seq), jc.IsTrue)
	}
	c.Check(s.cache.PointsOf(1), gc.HasLen, 2)
	c.Check(w.Pending(), gc.Equals, 0)
}

func (s *workerSuite) TestNeverDuplicatesACachedLoad(c *gc.C) {
	_, err := s.loader.PointsForStep(context.Background(), 1)
	c.Assert(err, jc.ErrorIsNil)
	s.store.ResetCalls()

	w := s.newWorker(c)
	defer workertest.CleanKill(c, w)

	w.Enqueue(1, 2)
	waitReport(c, w, "loaded", 1)
	waitReport(c, w, "skipped", 1)
	c.Check(s.store.Calls("Points"), gc.Equals, 1)
}

func (s *workerSuite) TestQueueIsDeduplicated(c *gc.C) {
	s.store.Block = make(chan struct{})
	s.store.Entered = make(chan struct{}, 1)
	w := s.newWorker(c)
	defer workertest.CleanKill(c, w)

	c.Check(w.Enqueue(1), gc.Equals, 1)
	select {
	case <-s.store.Entered:
	case <-time.After(coretesting.LongWait):
		c.Fatalf("load never started")
	}
	// 2 is queued once; 1 is in flight, so it may be queued again but
	// is skipped once its load completes.
	c.Check(w.Enqueue(2, 2, 1), gc.Equals, 2)
	c.Check(w.Pending(), gc.Equals, 2)

	close(s.store.Block)
	waitReport(c, w, "loaded", 2)
	waitReport(c, w, "skipped", 1)
	c.Check(s.store.Calls("Points"), gc.Equals, 2)
}

func (s *workerSuite) TestFailedLoadIsLoggedAndSkipped(c *gc.C) {
	s.store.FailNext(1, errors.New("database is locked"))
	w := s.newWorker(c)
	defer workertest.CleanKill(c, w)

	w.Enqueue(1, 2)
	waitReport(c, w, "failed", 1)
	waitReport(c, w, "loaded", 1)
	c.Check(s.cache.ArePointsLoaded(1), jc.IsFalse)
	c.Check(s.cache.ArePointsLoaded(2), jc.IsTrue)
}

func (s *workerSuite) TestKillInterruptsLimiterWait(c *gc.C) {
	cfg := s.config()
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	// Use up the only token so the first load has to wait.
	c.Assert(limiter.Allow(), jc.IsTrue)
	cfg.Limiter = limiter
	w, err := preloader.NewWorker(cfg)
	c.Assert(err, jc.ErrorIsNil)

	w.Enqueue(1)
	workertest.CleanKill(c, w)
	c.Check(s.store.Calls("Points"), gc.Equals, 0)
}

func (s *workerSuite) TestKillInterruptsLoad(c *gc.C) {
	s.store.Block = make(chan struct{})
	s.store.Entered = make(chan struct{}, 1)
	w := s.newWorker(c)

	w.Enqueue(1)
	select {
	case <-s.store.Entered:
	case <-time.After(coretesting.LongWait):
		c.Fatalf("load never started")
	}
	workertest.CleanKill(c, w)
	c.Check(s.cache.ArePointsLoaded(1), jc.IsFalse)
}
