// Package notify fans engine signals out to a NATS subject hierarchy so
// processes outside the server can follow games without a WebSocket.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"

	"github.com/lox/memoryforbots/internal/game"
)

// DefaultSubject is the subject prefix used when none is configured.
const DefaultSubject = "memory"

// publisher is the subset of *nats.Conn used for fan-out
type publisher interface {
	Publish(subject string, data []byte) error
}

// Signal is the JSON body published for every engine signal.
type Signal struct {
	Type      game.EventType `json:"type"`
	Caller    string         `json:"caller"`
	GameID    string         `json:"gameId"`
	Card1     *int           `json:"card1,omitempty"`
	Card2     *int           `json:"card2,omitempty"`
	PairID    *int           `json:"pairId,omitempty"`
	Score     *int           `json:"score,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// SignalFromEvent builds the published body for event.
func SignalFromEvent(event game.GameEvent) (Signal, error) {
	sig := Signal{Type: event.EventType(), Timestamp: event.Timestamp()}
	switch ev := event.(type) {
	case game.GameStartedEvent:
		sig.Caller, sig.GameID = ev.Caller, ev.GameID
	case game.CardMatchedEvent:
		sig.Caller, sig.GameID = ev.Caller, ev.GameID
		sig.Card1, sig.Card2, sig.PairID = &ev.Card1, &ev.Card2, &ev.PairID
	case game.GameEndedEvent:
		sig.Caller, sig.GameID = ev.Caller, ev.GameID
		sig.Score = &ev.Score
	default:
		return Signal{}, fmt.Errorf("unsupported event %T", event)
	}
	return sig, nil
}

// Publisher publishes engine signals to <subject>.<event type>.
type Publisher struct {
	pub     publisher
	subject string
	logger  *log.Logger
}

// NewPublisher wraps a NATS connection. An empty subject uses DefaultSubject.
func NewPublisher(nc *nats.Conn, subject string, logger *log.Logger) *Publisher {
	return newPublisher(nc, subject, logger)
}

func newPublisher(pub publisher, subject string, logger *log.Logger) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{
		pub:     pub,
		subject: subject,
		logger:  logger.WithPrefix("notify"),
	}
}

// Subject returns the subject a signal of type t is published on.
func (p *Publisher) Subject(t game.EventType) string {
	return p.subject + "." + string(t)
}

// OnEvent implements game.EventSubscriber. Publish failures are logged and
// never reach the engine.
func (p *Publisher) OnEvent(event game.GameEvent) {
	sig, err := SignalFromEvent(event)
	if err != nil {
		p.logger.Error("Failed to convert event", "error", err)
		return
	}
	data, err := json.Marshal(sig)
	if err != nil {
		p.logger.Error("Failed to encode signal", "error", err)
		return
	}

	subject := p.Subject(event.EventType())
	if err := p.pub.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish signal", "subject", subject, "error", err)
		return
	}
	p.logger.Debug("Published signal", "subject", subject, "game_id", sig.GameID)
}

// Connect dials a NATS server with reconnect settings suited to a
// long-running game server.
func Connect(url string, logger *log.Logger) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	logger = logger.WithPrefix("notify")

	opts := []nats.Option{
		nats.Name("memoryforbots"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(5),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("Disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}
