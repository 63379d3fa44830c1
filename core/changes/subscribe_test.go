// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package changes_test

import (
	"time"

	"github.com/juju/loggo/v2"
	"github.com/juju/pubsub/v2"
	gc "gopkg.in/check.v1"

	"github.com/juju/recordsync/core/changes"
)

type subscribeSuite struct {
	hub *pubsub.SimpleHub
}

var _ = gc.Suite(&subscribeSuite{})

func (s *subscribeSuite) SetUpTest(c *gc.C) {
	s.hub = pubsub.NewSimpleHub(&pubsub.SimpleHubConfig{
		Logger: loggo.GetLogger("test"),
	})
}

func (s *subscribeSuite) TestDeliversEvents(c *gc.C) {
	received := make(chan changes.Event, 1)
	unsub := changes.Subscribe(s.hub, func(e changes.Event) {
		received <- e
	})
	defer unsub()

	done := s.hub.Publish(changes.Topic, changes.Event{Seq: 4})
	// Blocks until every handler has seen the event.
	done()
	select {
	case e := <-received:
		c.Check(e.Seq, gc.Equals, uint64(4))
	case <-time.After(10 * time.Second):
		c.Fatalf("event not delivered")
	}
}

func (s *subscribeSuite) TestIgnoresForeignData(c *gc.C) {
	received := make(chan changes.Event, 1)
	unsub := changes.Subscribe(s.hub, func(e changes.Event) {
		received <- e
	})
	defer unsub()

	done := s.hub.Publish(changes.Topic, "not an event")
	done()
	select {
	case e := <-received:
		c.Fatalf("unexpected event %d", e.Seq)
	default:
	}
}
