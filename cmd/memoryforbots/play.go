package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/lox/memoryforbots/internal/bot"
	"github.com/lox/memoryforbots/internal/game"
	"github.com/lox/memoryforbots/internal/local"
	"github.com/lox/memoryforbots/internal/randutil"
	"github.com/lox/memoryforbots/internal/tui"
)

// PlayCmd runs an in-process engine behind the TUI, optionally with bots.
type PlayCmd struct {
	Name     string        `default:"player" help:"Your caller name"`
	Pairs    int           `default:"8" help:"Number of pairs on the board"`
	Seed     int64         `help:"Shuffle seed (0 picks one from the clock)"`
	Bots     int           `default:"0" help:"Number of bots to play against"`
	Strategy string        `default:"sloppy" enum:"perfect,random,sloppy" help:"Bot strategy"`
	Delay    time.Duration `default:"2s" help:"Bot think time between guesses"`
	LogFile  string        `default:"" help:"Write logs to this file"`
	LogLevel string        `default:"info" help:"Log level (debug|info|warn|error)"`
}

func (c *PlayCmd) Run() error {
	logger, closeLog, err := fileLogger(c.LogFile, c.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	engine, err := game.NewEngine(
		game.WithPairs(c.Pairs),
		game.WithResetOnStart(true),
		game.WithShuffleSeed(seed),
		game.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	model := tui.NewTUIModel(local.New(engine, c.Name), c.Name, 0, logger)
	program := tea.NewProgram(model, tea.WithAltScreen())
	engine.EventBus().Subscribe(game.SubscriberFunc(func(event game.GameEvent) {
		program.Send(tui.SignalMsg{Event: event})
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.Bots; i++ {
		name := fmt.Sprintf("bot-%d", i+1)
		strategy, err := bot.New(c.Strategy, randutil.New(seed+int64(i)+1))
		if err != nil {
			return err
		}
		b := bot.NewBot(name, local.New(engine, name), strategy, logger, bot.WithDelay(c.Delay))
		g.Go(func() error {
			return playUntilDone(ctx, b, c.Delay)
		})
	}

	g.Go(func() error {
		defer cancel()
		_, err := program.Run()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// playUntilDone keeps a bot joining games started by anyone until ctx ends
func playUntilDone(ctx context.Context, b *bot.Bot, idle time.Duration) error {
	for {
		_, err := b.JoinGame(ctx)
		if err != nil && !errors.Is(err, game.ErrGameNotActive) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(idle):
		}
	}
}
