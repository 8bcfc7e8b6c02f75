package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/memoryforbots/internal/bot"
	"github.com/lox/memoryforbots/internal/client"
	"github.com/lox/memoryforbots/internal/randutil"
)

// BotCmd runs bots against a server, each on its own connection.
type BotCmd struct {
	Server   string        `default:"http://localhost:8080" help:"Server URL"`
	Count    int           `short:"n" default:"1" help:"Number of bots"`
	Prefix   string        `default:"bot" help:"Name prefix; bots are named <prefix>-<n>"`
	Strategy string        `default:"perfect" enum:"perfect,random,sloppy" help:"Guessing strategy"`
	Games    int           `default:"1" help:"Games per bot (0 plays until interrupted)"`
	Delay    time.Duration `default:"0s" help:"Pause between guesses"`
	Seed     int64         `help:"Seed for bot randomness (0 picks one from the clock)"`
	Token    string        `env:"MEMORYFORBOTS_TOKEN" help:"Auth token shared by all bots"`
	LogLevel string        `default:"info" help:"Log level (debug|info|warn|error)"`
}

func (c *BotCmd) Run() error {
	logger := newLogger(os.Stderr, c.LogLevel)

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.Count; i++ {
		name := fmt.Sprintf("%s-%d", c.Prefix, i+1)
		strategy, err := bot.New(c.Strategy, randutil.New(seed+int64(i)))
		if err != nil {
			return err
		}

		g.Go(func() error {
			conn := client.NewClient(c.Server, logger)
			if err := conn.Connect(ctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			defer func() { _ = conn.Close() }()

			if _, err := conn.Hello(ctx, name, c.Token); err != nil {
				return fmt.Errorf("%s: hello: %w", name, err)
			}

			b := bot.NewBot(name, conn, strategy, logger, bot.WithDelay(c.Delay))
			results, err := b.Run(ctx, c.Games)
			for _, res := range results {
				logger.Info("Game result",
					"bot", name,
					"game_id", res.GameID,
					"matches", res.Matches,
					"misses", res.Misses,
					"rejected", res.Rejected,
					"score", res.Score,
					"finished", res.Finished)
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
