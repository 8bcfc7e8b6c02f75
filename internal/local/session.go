// Package local binds a caller identity to an in-process engine so callers
// can share code with the network client.
package local

import (
	"context"

	"github.com/lox/memoryforbots/internal/game"
)

// Session exposes the client request set on top of an engine.
type Session struct {
	engine *game.Engine
	caller string
}

// New returns a session acting as caller.
func New(engine *game.Engine, caller string) *Session {
	return &Session{engine: engine, caller: caller}
}

func (s *Session) Caller() string { return s.caller }

func (s *Session) StartGame(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ev, err := s.engine.Start(s.caller)
	return ev.GameID, err
}

func (s *Session) AttemptMatch(ctx context.Context, card1, card2 int) (game.MatchResult, error) {
	if err := ctx.Err(); err != nil {
		return game.MatchResult{}, err
	}
	return s.engine.AttemptMatch(s.caller, card1, card2)
}

func (s *Session) ListCards(ctx context.Context) ([]game.Card, error) {
	return s.engine.Cards(), ctx.Err()
}

func (s *Session) State(ctx context.Context) (game.State, error) {
	return s.engine.State(), ctx.Err()
}

func (s *Session) Scores(ctx context.Context) ([]game.ScoreEntry, error) {
	return s.engine.Leaderboard(), ctx.Err()
}
