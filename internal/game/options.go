package game

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/memoryforbots/internal/gameid"
)

// Option configures an Engine during creation.
type Option func(*engineConfig)

// engineConfig holds all configuration for creating an engine.
type engineConfig struct {
	pattern      []int
	resetOnStart bool
	shuffleSeed  int64
	clock        quartz.Clock
	logger       *log.Logger
	bus          EventBus
	newID        func() string
}

func defaultEngineConfig() *engineConfig {
	return &engineConfig{
		pattern: DefaultPattern(DefaultPairs),
		clock:   quartz.NewReal(),
		logger:  log.NewWithOptions(io.Discard, log.Options{}),
		newID:   gameid.Generate,
	}
}

// WithPairs builds the deck from the default pattern with n pairs.
func WithPairs(n int) Option {
	return func(c *engineConfig) {
		c.pattern = DefaultPattern(n)
	}
}

// WithPattern builds the deck from an explicit pairing pattern.
func WithPattern(pattern []int) Option {
	return func(c *engineConfig) {
		c.pattern = append([]int(nil), pattern...)
	}
}

// WithResetOnStart makes Start clear all matched flags (and reshuffle when a
// shuffle seed is set) so a completed deck can be replayed.
func WithResetOnStart(reset bool) Option {
	return func(c *engineConfig) {
		c.resetOnStart = reset
	}
}

// WithShuffleSeed shuffles the pair arrangement with a deterministic seeded
// generator. Zero keeps the fixed pattern.
func WithShuffleSeed(seed int64) Option {
	return func(c *engineConfig) {
		c.shuffleSeed = seed
	}
}

// WithClock sets the clock used to timestamp events.
func WithClock(clock quartz.Clock) Option {
	return func(c *engineConfig) {
		c.clock = clock
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithEventBus publishes signals on an existing bus instead of a private one.
func WithEventBus(bus EventBus) Option {
	return func(c *engineConfig) {
		c.bus = bus
	}
}

// WithIDGenerator overrides how game IDs are minted.
func WithIDGenerator(newID func() string) Option {
	return func(c *engineConfig) {
		c.newID = newID
	}
}
