package game

import (
	"sync"
	"time"
)

// EventType represents a game event type with type safety
type EventType string

// Signals emitted by the engine on state transitions
const (
	EventTypeGameStarted EventType = "game_started"
	EventTypeCardMatched EventType = "card_matched"
	EventTypeGameEnded   EventType = "game_ended"
)

// String returns the string representation of the event type
func (et EventType) String() string {
	return string(et)
}

// GameEvent represents any signal the engine publishes
type GameEvent interface {
	EventType() EventType
	Timestamp() time.Time
}

// GameStartedEvent is published when Start succeeds
type GameStartedEvent struct {
	Caller    string
	GameID    string
	timestamp time.Time
}

func (e GameStartedEvent) EventType() EventType { return EventTypeGameStarted }
func (e GameStartedEvent) Timestamp() time.Time { return e.timestamp }

// NewGameStartedEvent creates a new game started event
func NewGameStartedEvent(caller, gameID string, ts time.Time) GameStartedEvent {
	return GameStartedEvent{Caller: caller, GameID: gameID, timestamp: ts}
}

// CardMatchedEvent is published when a caller resolves a pair
type CardMatchedEvent struct {
	Caller    string
	GameID    string
	Card1     int
	Card2     int
	PairID    int
	timestamp time.Time
}

func (e CardMatchedEvent) EventType() EventType { return EventTypeCardMatched }
func (e CardMatchedEvent) Timestamp() time.Time { return e.timestamp }

// NewCardMatchedEvent creates a new card matched event
func NewCardMatchedEvent(caller, gameID string, card1, card2, pairID int, ts time.Time) CardMatchedEvent {
	return CardMatchedEvent{
		Caller:    caller,
		GameID:    gameID,
		Card1:     card1,
		Card2:     card2,
		PairID:    pairID,
		timestamp: ts,
	}
}

// GameEndedEvent is published when the last pair is resolved. Score is the
// accumulated score of the caller who resolved it.
type GameEndedEvent struct {
	Caller    string
	GameID    string
	Score     int
	timestamp time.Time
}

func (e GameEndedEvent) EventType() EventType { return EventTypeGameEnded }
func (e GameEndedEvent) Timestamp() time.Time { return e.timestamp }

// NewGameEndedEvent creates a new game ended event
func NewGameEndedEvent(caller, gameID string, score int, ts time.Time) GameEndedEvent {
	return GameEndedEvent{Caller: caller, GameID: gameID, Score: score, timestamp: ts}
}

// EventSubscriber can subscribe to game events
type EventSubscriber interface {
	OnEvent(event GameEvent)
}

// SubscriberFunc adapts a plain function to EventSubscriber.
type SubscriberFunc func(GameEvent)

// OnEvent calls f(event).
func (f SubscriberFunc) OnEvent(event GameEvent) { f(event) }

// EventBus manages event publishing and subscription
type EventBus interface {
	Subscribe(subscriber EventSubscriber)
	Unsubscribe(subscriber EventSubscriber)
	Publish(event GameEvent)
}

// SimpleEventBus is a basic in-memory event bus implementation. Delivery is
// synchronous and in publish order.
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers []EventSubscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{
		subscribers: make([]EventSubscriber, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (bus *SimpleEventBus) Subscribe(subscriber EventSubscriber) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subscribers = append(bus.subscribers, subscriber)
}

// Unsubscribe removes a subscriber from receiving events. Only comparable
// subscribers can be removed; SubscriberFunc values cannot.
func (bus *SimpleEventBus) Unsubscribe(subscriber EventSubscriber) {
	if _, ok := subscriber.(SubscriberFunc); ok {
		return
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i, sub := range bus.subscribers {
		if _, ok := sub.(SubscriberFunc); ok {
			continue
		}
		if sub == subscriber {
			bus.subscribers = append(bus.subscribers[:i], bus.subscribers[i+1:]...)
			break
		}
	}
}

// Publish sends an event to all subscribers
func (bus *SimpleEventBus) Publish(event GameEvent) {
	bus.mu.RLock()
	subs := make([]EventSubscriber, len(bus.subscribers))
	copy(subs, bus.subscribers)
	bus.mu.RUnlock()

	for _, subscriber := range subs {
		subscriber.OnEvent(event)
	}
}
