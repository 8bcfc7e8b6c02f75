package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lox/memoryforbots/internal/game"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	msg := &Message{
		Type:      messageType,
		Timestamp: time.Now(),
	}
	if data != nil {
		dataBytes, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = dataBytes
	}
	return msg, nil
}

// Decode unmarshals the message payload into v. An empty payload leaves v
// untouched.
func (m *Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", m.Type, err)
	}
	return nil
}

// Client → Server Messages

type HelloData struct {
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

type AttemptMatchData struct {
	Card1 int `json:"card1"`
	Card2 int `json:"card2"`
}

// Server → Client Messages

type WelcomeData struct {
	Caller string `json:"caller"`
	Name   string `json:"name"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type StartResultData struct {
	GameID string `json:"gameId"`
}

type MatchResultData struct {
	Matched  bool `json:"matched"`
	Card1    int  `json:"card1"`
	Card2    int  `json:"card2"`
	PairID   int  `json:"pairId,omitempty"`
	Score    int  `json:"score"`
	GameOver bool `json:"gameOver"`
}

type CardsData struct {
	Cards []game.Card `json:"cards"`
}

type ScoresData struct {
	Scores []game.ScoreEntry `json:"scores"`
}

type GameStartedData struct {
	Caller string `json:"caller"`
	GameID string `json:"gameId"`
}

type CardMatchedData struct {
	Caller string `json:"caller"`
	GameID string `json:"gameId"`
	Card1  int    `json:"card1"`
	Card2  int    `json:"card2"`
	PairID int    `json:"pairId"`
}

type GameEndedData struct {
	Caller string `json:"caller"`
	GameID string `json:"gameId"`
	Score  int    `json:"score"`
}

// MessageFromEvent converts an engine signal into a broadcast message.
func MessageFromEvent(event game.GameEvent) (*Message, error) {
	var (
		msg *Message
		err error
	)
	switch ev := event.(type) {
	case game.GameStartedEvent:
		msg, err = NewMessage(MessageTypeGameStarted, GameStartedData{Caller: ev.Caller, GameID: ev.GameID})
	case game.CardMatchedEvent:
		msg, err = NewMessage(MessageTypeCardMatched, CardMatchedData{
			Caller: ev.Caller,
			GameID: ev.GameID,
			Card1:  ev.Card1,
			Card2:  ev.Card2,
			PairID: ev.PairID,
		})
	case game.GameEndedEvent:
		msg, err = NewMessage(MessageTypeGameEnded, GameEndedData{Caller: ev.Caller, GameID: ev.GameID, Score: ev.Score})
	default:
		return nil, fmt.Errorf("unsupported event %T", event)
	}
	if err != nil {
		return nil, err
	}
	msg.Timestamp = event.Timestamp()
	return msg, nil
}

// EventFromMessage is the inverse of MessageFromEvent, used by clients to
// turn a broadcast back into an engine signal.
func EventFromMessage(msg *Message) (game.GameEvent, error) {
	switch msg.Type {
	case MessageTypeGameStarted:
		var data GameStartedData
		if err := msg.Decode(&data); err != nil {
			return nil, err
		}
		return game.NewGameStartedEvent(data.Caller, data.GameID, msg.Timestamp), nil
	case MessageTypeCardMatched:
		var data CardMatchedData
		if err := msg.Decode(&data); err != nil {
			return nil, err
		}
		return game.NewCardMatchedEvent(data.Caller, data.GameID, data.Card1, data.Card2, data.PairID, msg.Timestamp), nil
	case MessageTypeGameEnded:
		var data GameEndedData
		if err := msg.Decode(&data); err != nil {
			return nil, err
		}
		return game.NewGameEndedEvent(data.Caller, data.GameID, data.Score, msg.Timestamp), nil
	default:
		return nil, fmt.Errorf("%s is not a broadcast", msg.Type)
	}
}
