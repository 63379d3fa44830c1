// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package cache

import (
	"sync"
	"sync/atomic"

	"github.com/juju/recordsync/core/record"
)

// table is one record class. Reads and writes for different keys never
// block each other for longer than a map operation.
type table[K record.Key[K], R any] struct {
	mu      sync.RWMutex
	records map[K]R

	hits   atomic.Int64
	misses atomic.Int64
}

func newTable[K record.Key[K], R any]() *table[K, R] {
	return &table[K, R]{records: make(map[K]R)}
}

func (t *table[K, R]) put(key K, r R) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[key] = r
}

func (t *table[K, R]) get(key K) (R, bool) {
	t.mu.RLock()
	r, ok := t.records[key]
	t.mu.RUnlock()
	t.lookup(ok)
	return r, ok
}

// lookup counts a read that was served, or not, without touching the
// records.
func (t *table[K, R]) lookup(hit bool) {
	if hit {
		t.hits.Add(1)
	} else {
		t.misses.Add(1)
	}
}

func (t *table[K, R]) delete(key K) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, key)
}

// all returns the records matching keep, ordered by key. A nil keep
// matches everything.
func (t *table[K, R]) all(keep func(K) bool) []R {
	t.mu.RLock()
	keys := record.SortedKeys(t.records, keep)
	result := make([]R, len(keys))
	for i, k := range keys {
		result[i] = t.records[k]
	}
	t.mu.RUnlock()
	return result
}

func (t *table[K, R]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

func (t *table[K, R]) clear() {
	t.mu.Lock()
	t.records = make(map[K]R)
	t.mu.Unlock()
	t.hits.Store(0)
	t.misses.Store(0)
}

func (t *table[K, R]) stats() ClassStats {
	return ClassStats{
		Entries: t.len(),
		Hits:    t.hits.Load(),
		Misses:  t.misses.Load(),
	}
}
