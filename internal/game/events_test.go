package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingSubscriber struct {
	count int
}

func (c *countingSubscriber) OnEvent(GameEvent) { c.count++ }

func TestEventBusDelivery(t *testing.T) {
	bus := NewEventBus()
	a := &countingSubscriber{}
	b := &countingSubscriber{}
	var seen []EventType
	bus.Subscribe(a)
	bus.Subscribe(b)
	bus.Subscribe(SubscriberFunc(func(e GameEvent) { seen = append(seen, e.EventType()) }))

	now := time.Now()
	bus.Publish(NewGameStartedEvent("alice", "g1", now))
	bus.Publish(NewCardMatchedEvent("alice", "g1", 0, 1, 1, now))

	assert.Equal(t, 2, a.count)
	assert.Equal(t, 2, b.count)
	assert.Equal(t, []EventType{EventTypeGameStarted, EventTypeCardMatched}, seen)

	bus.Unsubscribe(a)
	bus.Unsubscribe(SubscriberFunc(func(GameEvent) {}))
	bus.Publish(NewGameEndedEvent("alice", "g1", 4, now))

	assert.Equal(t, 2, a.count)
	assert.Equal(t, 3, b.count)
	assert.Len(t, seen, 3)
}

func TestEventAccessors(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	tests := []struct {
		event GameEvent
		want  EventType
	}{
		{NewGameStartedEvent("a", "g", ts), EventTypeGameStarted},
		{NewCardMatchedEvent("a", "g", 2, 3, 2, ts), EventTypeCardMatched},
		{NewGameEndedEvent("a", "g", 3, ts), EventTypeGameEnded},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.EventType())
			assert.Equal(t, ts, tt.event.Timestamp())
		})
	}
}
