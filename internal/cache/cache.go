// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cache

import (
	"fmt"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"github.com/juju/recordsync/core/changes"
	"github.com/juju/recordsync/core/record"
)

var logger = loggo.GetLogger("recordsync.cache")

// DefaultSignificantTests is the number of cached tests from which a
// consumer should skip its own bulk load of tests.
const DefaultSignificantTests = 100

// Config holds the settings of a Cache.
type Config struct {
	// SignificantTests is the threshold used by HasSignificantData. Zero
	// means DefaultSignificantTests.
	SignificantTests int
}

// Validate ensures the config is usable.
func (config Config) Validate() error {
	if config.SignificantTests < 0 {
		return errors.NotValidf("negative SignificantTests %d", config.SignificantTests)
	}
	return nil
}

// ClassStats describes the cache content for one record class.
type ClassStats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// Stats describes the cache content and its hit/miss counters. Reads of
// single records and group or bulk loads through a Loader count towards
// hits and misses; writes never do.
type Stats struct {
	Tests         ClassStats
	Steps         ClassStats
	Points        ClassStats
	StepGroups    int
	PointGroups   int
	EventsApplied int64
}

// Cache is the shared, de-duplicating record cache. It is safe for
// concurrent use without external locking. The same identity put twice is
// last-write-wins.
type Cache struct {
	significant int

	tests  *table[record.TestID, record.Test]
	steps  *table[record.StepKey, record.Step]
	points *table[record.PointKey, record.Point]

	mu            sync.Mutex
	stepGroups    map[record.TestID]bool
	pointGroups   map[record.StepSeq]bool
	eventsApplied int64
}

// New returns an empty Cache.
func New(config Config) (*Cache, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	significant := config.SignificantTests
	if significant == 0 {
		significant = DefaultSignificantTests
	}
	return &Cache{
		significant: significant,
		tests:       newTable[record.TestID, record.Test](),
		steps:       newTable[record.StepKey, record.Step](),
		points:      newTable[record.PointKey, record.Point](),
		stepGroups:  make(map[record.TestID]bool),
		pointGroups: make(map[record.StepSeq]bool),
	}, nil
}

// PutTests upserts tests.
func (c *Cache) PutTests(tests ...record.Test) {
	for _, t := range tests {
		c.tests.put(t.Key(), t)
	}
}

// GetTest returns the cached test with the given id.
func (c *Cache) GetTest(id record.TestID) (record.Test, bool) {
	return c.tests.get(id)
}

// AllTests returns every cached test, ordered by id.
func (c *Cache) AllTests() []record.Test {
	return c.tests.all(nil)
}

// DeleteTest removes a test. Its steps are left alone.
func (c *Cache) DeleteTest(id record.TestID) {
	c.tests.delete(id)
}

// PutSteps upserts steps.
func (c *Cache) PutSteps(steps ...record.Step) {
	for _, s := range steps {
		c.steps.put(mustStepKey(s.Key()), s)
	}
}

// GetStep returns the cached step with the given key.
func (c *Cache) GetStep(key record.StepKey) (record.Step, bool) {
	return c.steps.get(mustStepKey(key))
}

// AllSteps returns every cached step, ordered by key.
func (c *Cache) AllSteps() []record.Step {
	return c.steps.all(nil)
}

// StepsOf returns the cached steps of one test, ordered by ordinal. The
// result is only complete once AreStepsLoaded reports true.
func (c *Cache) StepsOf(testID record.TestID) []record.Step {
	return c.steps.all(func(k record.StepKey) bool {
		return k.TestID == testID
	})
}

// DeleteStep removes a step. Its points are left alone.
func (c *Cache) DeleteStep(key record.StepKey) {
	c.steps.delete(mustStepKey(key))
}

// PutPoints upserts points.
func (c *Cache) PutPoints(points ...record.Point) {
	for _, p := range points {
		c.points.put(mustPointKey(p.Key()), p)
	}
}

// GetPoint returns the cached point with the given key.
func (c *Cache) GetPoint(key record.PointKey) (record.Point, bool) {
	return c.points.get(mustPointKey(key))
}

// AllPoints returns every cached point, ordered by key.
func (c *Cache) AllPoints() []record.Point {
	return c.points.all(nil)
}

// PointsOf returns the cached points of one step ordinal, ordered by
// position. The result is only complete once ArePointsLoaded reports true.
func (c *Cache) PointsOf(seq record.StepSeq) []record.Point {
	mustSeq(seq)
	return c.points.all(func(k record.PointKey) bool {
		return k.StepSeq == seq
	})
}

// DeletePoint removes a point.
func (c *Cache) DeletePoint(key record.PointKey) {
	c.points.delete(mustPointKey(key))
}

// MarkStepsLoaded records that every step of the test is cached.
func (c *Cache) MarkStepsLoaded(testID record.TestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepGroups[testID] = true
}

// AreStepsLoaded reports whether every step of the test is cached.
func (c *Cache) AreStepsLoaded(testID record.TestID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stepGroups[testID]
}

// MarkPointsLoaded records that every point of the step ordinal is cached.
func (c *Cache) MarkPointsLoaded(seq record.StepSeq) {
	mustSeq(seq)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pointGroups[seq] = true
}

// ArePointsLoaded reports whether every point of the step ordinal is
// cached.
func (c *Cache) ArePointsLoaded(seq record.StepSeq) bool {
	mustSeq(seq)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pointGroups[seq]
}

// HasSignificantData reports whether enough tests are cached that a
// consumer should use them rather than bulk loading tests itself. It is a
// size heuristic and says nothing about completeness.
func (c *Cache) HasSignificantData() bool {
	return c.tests.len() >= c.significant
}

// Clear forgets every record, group flag and counter. It is used when the
// store is pointed at a different dataset.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.stepGroups = make(map[record.TestID]bool)
	c.pointGroups = make(map[record.StepSeq]bool)
	c.eventsApplied = 0
	c.mu.Unlock()

	c.tests.clear()
	c.steps.clear()
	c.points.clear()
	logger.Debugf("cache cleared")
}

// Apply patches the cache with a change event: deleted records are
// removed, added and changed records are upserted. Group flags are kept,
// since the event brings every group it touches up to date.
func (c *Cache) Apply(event changes.Event) {
	for _, id := range event.Tests.Deleted {
		c.DeleteTest(id)
	}
	for _, key := range event.Steps.Deleted {
		c.DeleteStep(key)
	}
	for _, key := range event.Points.Deleted {
		c.DeletePoint(key)
	}
	c.PutTests(event.Tests.Records...)
	c.PutSteps(event.Steps.Records...)
	c.PutPoints(event.Points.Records...)

	c.mu.Lock()
	c.eventsApplied++
	c.mu.Unlock()
	logger.Tracef("applied change event %d", event.Seq)
}

// Stats returns the cache content and counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	stats := Stats{
		StepGroups:    len(c.stepGroups),
		PointGroups:   len(c.pointGroups),
		EventsApplied: c.eventsApplied,
	}
	c.mu.Unlock()

	stats.Tests = c.tests.stats()
	stats.Steps = c.steps.stats()
	stats.Points = c.points.stats()
	return stats
}

// Report returns details about the cache, for diagnostics.
func (c *Cache) Report() map[string]interface{} {
	stats := c.Stats()
	class := func(s ClassStats) map[string]interface{} {
		return map[string]interface{}{
			"entries": s.Entries,
			"hits":    s.Hits,
			"misses":  s.Misses,
		}
	}
	return map[string]interface{}{
		"tests":          class(stats.Tests),
		"steps":          class(stats.Steps),
		"points":         class(stats.Points),
		"step-groups":    stats.StepGroups,
		"point-groups":   stats.PointGroups,
		"events-applied": stats.EventsApplied,
		"significant":    c.HasSignificantData(),
	}
}

// A key with an unusable ordinal can only come from a caller bug; rows
// read from the store are validated long before they get here.

func mustSeq(seq record.StepSeq) {
	if !seq.Valid() {
		panic(fmt.Sprintf("programming error: invalid step ordinal %v", float64(seq)))
	}
}

func mustStepKey(key record.StepKey) record.StepKey {
	mustSeq(key.Seq)
	return key
}

func mustPointKey(key record.PointKey) record.PointKey {
	mustSeq(key.StepSeq)
	return key
}
