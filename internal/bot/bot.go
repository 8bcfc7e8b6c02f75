// Package bot plays memory games automatically against any backend that
// speaks the client request set, either a network client or a local
// session.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/memoryforbots/internal/game"
)

// ErrStalled is returned when a game is active but has nothing left to
// match, which happens when games restart without resetting the deck.
var ErrStalled = errors.New("bot: active game has no unmatched pairs")

// Backend is the request set a bot needs.
type Backend interface {
	StartGame(ctx context.Context) (string, error)
	AttemptMatch(ctx context.Context, card1, card2 int) (game.MatchResult, error)
	ListCards(ctx context.Context) ([]game.Card, error)
	State(ctx context.Context) (game.State, error)
}

// Result summarises one game as seen by a single bot.
type Result struct {
	GameID   string
	Matches  int
	Misses   int
	Rejected int
	Score    int
	Finished bool
}

// Bot drives a Strategy against a Backend.
type Bot struct {
	name     string
	backend  Backend
	strategy Strategy
	clock    quartz.Clock
	delay    time.Duration
	logger   *log.Logger
}

// Option configures a Bot
type Option func(*Bot)

// WithClock sets the clock used for think delays
func WithClock(clock quartz.Clock) Option {
	return func(b *Bot) { b.clock = clock }
}

// WithDelay pauses between guesses
func WithDelay(d time.Duration) Option {
	return func(b *Bot) { b.delay = d }
}

// NewBot creates a new bot
func NewBot(name string, backend Backend, strategy Strategy, logger *log.Logger, opts ...Option) *Bot {
	b := &Bot{
		name:     name,
		backend:  backend,
		strategy: strategy,
		clock:    quartz.NewReal(),
		logger:   logger.WithPrefix("bot").With("bot", name),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// PlayGame joins or starts a game and guesses until it ends. Losing a race
// to another player (already_matched, already_active) is not an error.
func (b *Bot) PlayGame(ctx context.Context) (Result, error) {
	gameID, err := b.backend.StartGame(ctx)
	switch {
	case err == nil:
		b.logger.Info("Started game", "game_id", gameID)
	case errors.Is(err, game.ErrAlreadyActive):
		state, err := b.backend.State(ctx)
		if err != nil {
			return Result{}, err
		}
		gameID = state.GameID
		b.logger.Info("Joined game", "game_id", gameID)
	default:
		return Result{}, fmt.Errorf("start game: %w", err)
	}
	return b.play(ctx, gameID)
}

// JoinGame plays the running game and never starts one. It returns
// game.ErrGameNotActive when nothing is running.
func (b *Bot) JoinGame(ctx context.Context) (Result, error) {
	state, err := b.backend.State(ctx)
	if err != nil {
		return Result{}, err
	}
	if !state.Active {
		return Result{}, game.ErrGameNotActive
	}
	b.logger.Info("Joined game", "game_id", state.GameID)
	return b.play(ctx, state.GameID)
}

func (b *Bot) play(ctx context.Context, gameID string) (Result, error) {
	res := Result{GameID: gameID}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		cards, err := b.backend.ListCards(ctx)
		if err != nil {
			return res, fmt.Errorf("list cards: %w", err)
		}
		card1, card2, ok := b.strategy.Choose(cards)
		if !ok {
			state, err := b.backend.State(ctx)
			if err != nil {
				return res, err
			}
			if state.Active && state.GameID == gameID {
				return res, ErrStalled
			}
			return res, nil
		}

		m, err := b.backend.AttemptMatch(ctx, card1, card2)
		switch {
		case errors.Is(err, game.ErrAlreadyMatched):
			res.Rejected++
			b.logger.Debug("Lost race", "card1", card1, "card2", card2)
		case errors.Is(err, game.ErrGameNotActive):
			b.logger.Debug("Game ended under us", "game_id", gameID)
			return res, nil
		case err != nil:
			return res, fmt.Errorf("attempt match: %w", err)
		case m.Matched:
			res.Matches++
			res.Score = m.Score
			b.logger.Debug("Matched pair", "pair_id", m.PairID, "score", m.Score)
			if m.GameOver {
				res.Finished = true
				b.logger.Info("Finished game", "game_id", gameID, "score", m.Score)
				return res, nil
			}
		default:
			res.Misses++
		}

		if err := b.pause(ctx); err != nil {
			return res, err
		}
	}
}

// Run plays games until n have been played or ctx is cancelled. n <= 0
// plays forever.
func (b *Bot) Run(ctx context.Context, n int) ([]Result, error) {
	var results []Result
	for i := 0; n <= 0 || i < n; i++ {
		res, err := b.PlayGame(ctx)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		if err := b.pause(ctx); err != nil {
			return results, err
		}
	}
	return results, nil
}

func (b *Bot) pause(ctx context.Context) error {
	if b.delay <= 0 {
		return ctx.Err()
	}
	timer := b.clock.NewTimer(b.delay, "bot", "pause")
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
