// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cache_test

import (
	"context"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/recordsync/core/record"
	"github.com/juju/recordsync/internal/cache"
	coretesting "github.com/juju/recordsync/testing"
)

type loaderSuite struct {
	store  *coretesting.FakeStore
	cache  *cache.Cache
	loader *cache.Loader
}

var _ = gc.Suite(&loaderSuite{})

func (s *loaderSuite) SetUpTest(c *gc.C) {
	s.store = coretesting.NewFakeStore()
	var err error
	s.cache, err = cache.New(cache.Config{})
	c.Assert(err, jc.ErrorIsNil)
	s.loader, err = cache.NewLoader(cache.LoaderConfig{
		Cache:      s.cache,
		Reader:     s.store,
		Clock:      clock.WallClock,
		Logger:     coretesting.NewCheckLogger(c),
		RetryDelay: time.Millisecond,
	})
	c.Assert(err, jc.ErrorIsNil)
}

func (s *loaderSuite) TestValidate(c *gc.C) {
	_, err := cache.NewLoader(cache.LoaderConfig{Reader: s.store, Clock: clock.WallClock, Logger: coretesting.NewCheckLogger(c)})
	c.Check(err, gc.ErrorMatches, "missing Cache not valid")
	_, err = cache.NewLoader(cache.LoaderConfig{Cache: s.cache, Clock: clock.WallClock, Logger: coretesting.NewCheckLogger(c)})
	c.Check(err, jc.ErrorIs, errors.NotValid)
}

func (s *loaderSuite) TestSignificantCacheSkipsBulkLoad(c *gc.C) {
	for i := 1; i <= 150; i++ {
		t := coretesting.MakeTest(record.TestID(i))
		s.store.PutTests(t)
		s.cache.PutTests(t)
	}
	c.Assert(s.cache.HasSignificantData(), jc.IsTrue)

	tests, err := s.loader.Tests(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(tests, gc.HasLen, 150)
	c.Check(s.store.FullReads(), gc.Equals, 0)
	c.Check(s.cache.Stats().Tests.Hits, gc.Equals, int64(1))
}

func (s *loaderSuite) TestSmallCacheLoadsTests(c *gc.C) {
	s.store.PutTests(coretesting.MakeTest(1), coretesting.MakeTest(2))

	tests, err := s.loader.Tests(context.Background())
	c.Assert(err, jc.ErrorIsNil)
	c.Check(tests, jc.DeepEquals, []record.Test{coretesting.MakeTest(1), coretesting.MakeTest(2)})
	c.Check(s.store.Calls("Tests"), gc.Equals, 1)
	c.Check(s.cache.Stats().Tests.Misses, gc.Equals, int64(1))
}

func (s *loaderSuite) TestStepsLoadedOnce(c *gc.C) {
	s.store.PutSteps(coretesting.MakeStep(1, 1), coretesting.MakeStep(1, 2), coretesting.MakeStep(2, 1))

	steps, err := s.loader.StepsForTest(context.Background(), 1)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(steps, jc.DeepEquals, []record.Step{coretesting.MakeStep(1, 1), coretesting.MakeStep(1, 2)})
	c.Check(s.cache.AreStepsLoaded(1), jc.IsTrue)

	steps, err = s.loader.StepsForTest(context.Background(), 1)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(steps, gc.HasLen, 2)
	c.Check(s.store.Calls("Steps"), gc.Equals, 1)
}

func (s *loaderSuite) TestPointsLoadedOnce(c *gc.C) {
	s.store.PutPoints(coretesting.MakePoint(1.5, 1), coretesting.MakePoint(1.5, 2))

	c.Check(s.cache.ArePointsLoaded(1.5), jc.IsFalse)
	points, err := s.loader.PointsForStep(context.Background(), 1.5)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(points, gc.HasLen, 2)
	c.Check(s.cache.ArePointsLoaded(1.5), jc.IsTrue)

	_, err = s.loader.PointsForStep(context.Background(), 1.5)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.store.Calls("Points"), gc.Equals, 1)

	stats := s.cache.Stats().Points
	c.Check(stats.Hits, gc.Equals, int64(1))
	c.Check(stats.Misses, gc.Equals, int64(1))
}

func (s *loaderSuite) TestEmptyGroupIsRemembered(c *gc.C) {
	points, err := s.loader.PointsForStep(context.Background(), 9)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(points, gc.HasLen, 0)

	_, err = s.loader.PointsForStep(context.Background(), 9)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.store.Calls("Points"), gc.Equals, 1)
}

func (s *loaderSuite) TestConcurrentLoadsShareOneRead(c *gc.C) {
	s.store.PutPoints(coretesting.MakePoint(3, 1))
	s.store.Block = make(chan struct{})
	s.store.Entered = make(chan struct{}, 1)

	const consumers = 5
	var wg sync.WaitGroup
	results := make(chan int, consumers)
	start := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			points, err := s.loader.PointsForStep(context.Background(), 3)
			c.Check(err, jc.ErrorIsNil)
			results <- len(points)
		}()
	}

	start()
	select {
	case <-s.store.Entered:
	case <-time.After(coretesting.LongWait):
		c.Fatalf("load never started")
	}
	for i := 1; i < consumers; i++ {
		start()
	}
	// Give the late consumers a chance to join the load in flight.
	time.Sleep(coretesting.ShortWait)
	close(s.store.Block)
	wg.Wait()
	close(results)

	for n := range results {
		c.Check(n, gc.Equals, 1)
	}
	c.Check(s.store.Calls("Points"), gc.Equals, 1)
}

func (s *loaderSuite) TestTransientFailureIsRetried(c *gc.C) {
	s.store.PutSteps(coretesting.MakeStep(1, 1))
	s.store.FailNext(2, errors.New("database is locked"))

	steps, err := s.loader.StepsForTest(context.Background(), 1)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(steps, gc.HasLen, 1)
	c.Check(s.store.Calls("Steps"), gc.Equals, 3)
}

func (s *loaderSuite) TestPersistentFailure(c *gc.C) {
	s.store.SetError(errors.New("database is locked"))

	_, err := s.loader.StepsForTest(context.Background(), 1)
	c.Assert(err, gc.ErrorMatches, "loading steps of test 1: database is locked")
	c.Check(s.store.Calls("Steps"), gc.Equals, 3)
	c.Check(s.cache.AreStepsLoaded(1), jc.IsFalse)

	// A later call tries again.
	s.store.SetError(nil)
	_, err = s.loader.StepsForTest(context.Background(), 1)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(s.cache.AreStepsLoaded(1), jc.IsTrue)
}

func (s *loaderSuite) TestCancelledContextSkipsStore(c *gc.C) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.loader.PointsForStep(ctx, 1)
	c.Check(err, jc.ErrorIs, context.Canceled)
	c.Check(s.store.Calls("Points"), gc.Equals, 0)
}

func (s *loaderSuite) TestCancelledConsumerDoesNotFailOthers(c *gc.C) {
	s.store.PutPoints(coretesting.MakePoint(1, 1), coretesting.MakePoint(1, 2))
	s.store.Block = make(chan struct{})
	s.store.Entered = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan error, 1)
	go func() {
		_, err := s.loader.PointsForStep(ctx, 1)
		first <- err
	}()
	select {
	case <-s.store.Entered:
	case <-time.After(coretesting.LongWait):
		c.Fatalf("load never started")
	}

	type result struct {
		points []record.Point
		err    error
	}
	second := make(chan result, 1)
	go func() {
		points, err := s.loader.PointsForStep(context.Background(), 1)
		second <- result{points, err}
	}()
	// Give the second consumer a chance to join the load in flight.
	time.Sleep(coretesting.ShortWait)

	cancel()
	select {
	case err := <-first:
		c.Check(err, jc.ErrorIs, context.Canceled)
	case <-time.After(coretesting.LongWait):
		c.Fatalf("cancelled consumer still waiting")
	}

	close(s.store.Block)
	select {
	case res := <-second:
		c.Assert(res.err, jc.ErrorIsNil)
		c.Check(res.points, gc.HasLen, 2)
	case <-time.After(coretesting.LongWait):
		c.Fatalf("second consumer never got its points")
	}
	c.Check(s.store.Calls("Points"), gc.Equals, 1)
	c.Check(s.cache.ArePointsLoaded(1), jc.IsTrue)
}

func (s *loaderSuite) TestAbandonedLoadIsCancelled(c *gc.C) {
	s.store.PutPoints(coretesting.MakePoint(1, 1))
	s.store.Block = make(chan struct{})
	s.store.Entered = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.loader.PointsForStep(ctx, 1)
		done <- err
	}()
	select {
	case <-s.store.Entered:
	case <-time.After(coretesting.LongWait):
		c.Fatalf("load never started")
	}
	cancel()
	select {
	case err := <-done:
		c.Check(err, jc.ErrorIs, context.Canceled)
	case <-time.After(coretesting.LongWait):
		c.Fatalf("consumer still waiting")
	}
	c.Check(s.cache.ArePointsLoaded(1), jc.IsFalse)

	// Nobody waits on the blocked read any more, so a new consumer
	// starts a fresh one rather than joining it.
	close(s.store.Block)
	points, err := s.loader.PointsForStep(context.Background(), 1)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(points, gc.HasLen, 1)
	c.Check(s.store.Calls("Points"), gc.Equals, 2)
}
