package game

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/memoryforbots/internal/randutil"
)

// State is a point-in-time view of the engine lifecycle.
type State struct {
	Active        bool   `json:"active"`
	RevealedPairs int    `json:"revealedPairs"`
	TotalPairs    int    `json:"totalPairs"`
	GamesStarted  int    `json:"gamesStarted"`
	GameID        string `json:"gameId,omitempty"`
}

// MatchResult describes the outcome of a successful AttemptMatch call.
// Matched is false for a valid guess whose cards belong to different pairs.
type MatchResult struct {
	Matched  bool
	Card1    int
	Card2    int
	PairID   int
	Score    int
	GameOver bool
}

// ScoreEntry is a single row of the leaderboard.
type ScoreEntry struct {
	Caller string `json:"caller"`
	Score  int    `json:"score"`
}

// Engine owns the deck, the game lifecycle and the score table. All mutation
// goes through Start, AttemptMatch and Apply, each of which runs to
// completion under a single lock, including signal delivery.
type Engine struct {
	mu sync.Mutex

	deck          Deck
	active        bool
	revealedPairs int
	gamesStarted  int
	gameID        string
	scores        map[string]int

	resetOnStart bool
	rng          *rand.Rand

	bus    EventBus
	clock  quartz.Clock
	logger *log.Logger
	newID  func() string
}

// NewEngine builds the deck and returns an inactive engine.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	deck, err := NewDeck(cfg.pattern)
	if err != nil {
		return nil, fmt.Errorf("build deck: %w", err)
	}

	var rng *rand.Rand
	if cfg.shuffleSeed != 0 {
		rng = randutil.New(cfg.shuffleSeed)
		deck.Shuffle(rng)
	}

	bus := cfg.bus
	if bus == nil {
		bus = NewEventBus()
	}

	e := &Engine{
		deck:         deck,
		scores:       make(map[string]int),
		resetOnStart: cfg.resetOnStart,
		rng:          rng,
		bus:          bus,
		clock:        cfg.clock,
		logger:       cfg.logger.WithPrefix("engine"),
		newID:        cfg.newID,
	}

	e.logger.Debug("Engine initialized", "cards", len(deck), "pairs", deck.Pairs(), "shuffled", rng != nil)
	return e, nil
}

// EventBus returns the bus signals are published on.
func (e *Engine) EventBus() EventBus {
	return e.bus
}

// Start begins a new game. It fails with ErrAlreadyActive while a game is
// running. Scores carry over between games.
func (e *Engine) Start(caller string) (GameStartedEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active {
		return GameStartedEvent{}, ErrAlreadyActive
	}

	e.beginGame(e.newID())

	event := NewGameStartedEvent(caller, e.gameID, e.clock.Now())
	e.logger.Info("Game started", "caller", caller, "game", e.gameID, "unmatched", len(e.deck.Unmatched()))
	e.bus.Publish(event)

	return event, nil
}

func (e *Engine) beginGame(gameID string) {
	if e.resetOnStart {
		e.deck.Reset()
		if e.rng != nil {
			e.deck.Shuffle(e.rng)
		}
	}
	e.revealedPairs = 0
	e.active = true
	e.gamesStarted++
	e.gameID = gameID
}

// AttemptMatch tries to resolve card1 and card2 as a pair on behalf of caller.
//
// Preconditions are checked in order: the game must be active, both indices
// must be in range, neither card may be matched, and the cards must differ.
// A valid guess on two different pairs is not an error; it returns a result
// with Matched false and changes nothing.
func (e *Engine) AttemptMatch(caller string, card1, card2 int) (MatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return MatchResult{}, ErrGameNotActive
	}
	if !e.deck.Valid(card1) {
		return MatchResult{}, fmt.Errorf("%w: %d", ErrInvalidCard, card1)
	}
	if !e.deck.Valid(card2) {
		return MatchResult{}, fmt.Errorf("%w: %d", ErrInvalidCard, card2)
	}
	if e.deck[card1].Matched {
		return MatchResult{}, fmt.Errorf("%w: %d", ErrAlreadyMatched, card1)
	}
	if e.deck[card2].Matched {
		return MatchResult{}, fmt.Errorf("%w: %d", ErrAlreadyMatched, card2)
	}
	if card1 == card2 {
		return MatchResult{}, fmt.Errorf("%w: %d", ErrSameCard, card1)
	}

	result := MatchResult{Card1: card1, Card2: card2}
	if e.deck[card1].PairID != e.deck[card2].PairID {
		e.logger.Debug("No match", "caller", caller, "card1", card1, "card2", card2)
		result.Score = e.scores[caller]
		return result, nil
	}

	pairID := e.deck[card1].PairID
	e.resolvePair(caller, card1, card2)

	result.Matched = true
	result.PairID = pairID
	result.Score = e.scores[caller]
	result.GameOver = !e.active

	e.logger.Info("Pair matched",
		"caller", caller,
		"card1", card1,
		"card2", card2,
		"revealed", e.revealedPairs,
		"score", result.Score)
	e.bus.Publish(NewCardMatchedEvent(caller, e.gameID, card1, card2, pairID, e.clock.Now()))

	if result.GameOver {
		e.logger.Info("Game ended", "caller", caller, "game", e.gameID, "score", result.Score)
		e.bus.Publish(NewGameEndedEvent(caller, e.gameID, result.Score, e.clock.Now()))
	}

	return result, nil
}

// resolvePair applies a confirmed match. Reaching the last pair ends the game
// in the same step.
func (e *Engine) resolvePair(caller string, card1, card2 int) {
	e.deck[card1].Matched = true
	e.deck[card2].Matched = true
	e.scores[caller]++
	e.revealedPairs++
	if e.revealedPairs == e.deck.Pairs() {
		e.active = false
	}
}

// Apply re-applies a previously published signal without republishing it.
// It is used to rebuild state from a journal and trusts the ordering of the
// events it is given.
func (e *Engine) Apply(event GameEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev := event.(type) {
	case GameStartedEvent:
		if e.active {
			return fmt.Errorf("apply %s: %w", ev.EventType(), ErrAlreadyActive)
		}
		e.beginGame(ev.GameID)
	case CardMatchedEvent:
		if !e.active {
			return fmt.Errorf("apply %s: %w", ev.EventType(), ErrGameNotActive)
		}
		if !e.deck.Valid(ev.Card1) || !e.deck.Valid(ev.Card2) || ev.Card1 == ev.Card2 {
			return fmt.Errorf("apply %s: %w: %d,%d", ev.EventType(), ErrInvalidCard, ev.Card1, ev.Card2)
		}
		if e.deck[ev.Card1].Matched || e.deck[ev.Card2].Matched {
			return fmt.Errorf("apply %s: %w: %d,%d", ev.EventType(), ErrAlreadyMatched, ev.Card1, ev.Card2)
		}
		if e.deck[ev.Card1].PairID != e.deck[ev.Card2].PairID {
			return fmt.Errorf("apply %s: cards %d and %d are not a pair", ev.EventType(), ev.Card1, ev.Card2)
		}
		e.resolvePair(ev.Caller, ev.Card1, ev.Card2)
	case GameEndedEvent:
		if e.active {
			return fmt.Errorf("apply %s: game still active with %d/%d pairs", ev.EventType(), e.revealedPairs, e.deck.Pairs())
		}
	default:
		return fmt.Errorf("apply: unknown event type %T", event)
	}
	return nil
}

// Cards returns a snapshot of the deck.
func (e *Engine) Cards() []Card {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deck.Clone()
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Active:        e.active,
		RevealedPairs: e.revealedPairs,
		TotalPairs:    e.deck.Pairs(),
		GamesStarted:  e.gamesStarted,
		GameID:        e.gameID,
	}
}

// Active reports whether a game is in progress.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Score returns the accumulated score for caller.
func (e *Engine) Score(caller string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scores[caller]
}

// Scores returns a copy of the score table.
func (e *Engine) Scores() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.scores))
	for k, v := range e.scores {
		out[k] = v
	}
	return out
}

// Leaderboard returns scores ordered by score descending, then caller.
func (e *Engine) Leaderboard() []ScoreEntry {
	scores := e.Scores()
	entries := make([]ScoreEntry, 0, len(scores))
	for caller, score := range scores {
		entries = append(entries, ScoreEntry{Caller: caller, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Caller < entries[j].Caller
	})
	return entries
}
