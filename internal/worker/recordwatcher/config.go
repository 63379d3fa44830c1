// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package recordwatcher

import (
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/juju/recordsync/core/record"
	"github.com/juju/recordsync/internal/store"
)

// DefaultInterval is the polling interval used when none is configured.
const DefaultInterval = 3 * time.Second

// Logger represents the logging methods used by the watcher.
type Logger interface {
	Errorf(string, ...any)
	Warningf(string, ...any)
	Infof(string, ...any)
	Debugf(string, ...any)
	Tracef(string, ...any)
}

// Hub represents a pubsub hub, such as a *pubsub.SimpleHub.
type Hub interface {
	Publish(topic string, data interface{}) func()
	Subscribe(topic string, handler func(string, interface{})) func()
}

// Config holds the dependencies and settings of a Watcher.
type Config struct {
	// Reader is the store the watcher samples.
	Reader store.Reader

	// Hub is where change events are published.
	Hub Hub

	// Clock drives the polling timer.
	Clock clock.Clock

	// Logger receives every error encountered by a sampling pass.
	Logger Logger

	// Interval is the initial polling interval. Zero means
	// DefaultInterval.
	Interval time.Duration

	// Scope restricts the watcher to the given tests and their steps and
	// points. A nil slice watches the whole store.
	Scope []record.TestID

	// Metrics is optional.
	Metrics *Collector
}

// Validate ensures that all the values that have to be set are set.
func (config Config) Validate() error {
	if config.Reader == nil {
		return errors.NotValidf("missing Reader")
	}
	if config.Hub == nil {
		return errors.NotValidf("missing Hub")
	}
	if config.Clock == nil {
		return errors.NotValidf("missing Clock")
	}
	if config.Logger == nil {
		return errors.NotValidf("missing Logger")
	}
	if config.Interval < 0 {
		return errors.NotValidf("negative Interval %v", config.Interval)
	}
	return nil
}
