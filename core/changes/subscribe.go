// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package changes

import (
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("recordsync.changes")

// Subscriber is the subscribing half of a pubsub.SimpleHub.
type Subscriber interface {
	Subscribe(topic string, handler func(string, interface{})) func()
}

// Subscribe registers fn for every change event published on hub. Handlers
// run on the hub's goroutines, so publishing never waits for fn. The
// returned func unsubscribes.
func Subscribe(hub Subscriber, fn func(Event)) func() {
	return hub.Subscribe(Topic, func(topic string, data interface{}) {
		event, ok := data.(Event)
		if !ok {
			logger.Criticalf("programming error: topic %q data expected Event, got %T", topic, data)
			return
		}
		fn(event)
	})
}
