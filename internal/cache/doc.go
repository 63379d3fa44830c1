// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package cache holds the full test, step and point records shared by every
// consumer in the process.
//
// The cache is filled on demand by consumers (usually through a Loader) and
// kept fresh by applying the watcher's change events. Nothing is ever
// evicted: the dataset is assumed to fit in memory, and staleness is fixed
// by change events rather than by expiry.
//
// Step groups (all steps of a test) and point groups (all points of a step
// ordinal) carry a loaded flag, so that a group fetched once by one consumer
// is served from memory to every later consumer.
package cache
