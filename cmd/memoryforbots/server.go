package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/memoryforbots/internal/auth"
	"github.com/lox/memoryforbots/internal/game"
	"github.com/lox/memoryforbots/internal/journal"
	"github.com/lox/memoryforbots/internal/notify"
	"github.com/lox/memoryforbots/internal/server"
)

// ServerCmd runs the WebSocket server. Flags override the HCL file.
type ServerCmd struct {
	Config       string `short:"c" default:"memoryforbots.hcl" help:"Path to HCL configuration file"`
	Addr         string `short:"a" help:"Address to bind to (overrides config)"`
	Port         int    `short:"p" help:"Port to listen on (overrides config)"`
	LogLevel     string `short:"l" help:"Log level (overrides config)"`
	Pairs        int    `help:"Number of pairs on the board (overrides config)"`
	ResetOnStart *bool  `help:"Reset and reshuffle the board when a game starts (overrides config)"`
	Seed         *int64 `help:"Shuffle seed (overrides config)"`
	Journal      string `help:"Signal journal path (overrides config)"`
	NATS         string `name:"nats" help:"NATS URL for signal fan-out (overrides config)"`
}

func (c *ServerCmd) config() (*server.Config, error) {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return nil, err
	}

	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Pairs != 0 {
		cfg.Game.Pairs = c.Pairs
	}
	if c.ResetOnStart != nil {
		cfg.Game.ResetOnStart = *c.ResetOnStart
	}
	if c.Seed != nil {
		cfg.Game.ShuffleSeed = *c.Seed
	}
	if c.Journal != "" {
		cfg.Journal.Path = c.Journal
	}
	if c.NATS != "" {
		cfg.Notify.NATSURL = c.NATS
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *ServerCmd) Run() error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.Server.LogLevel)

	engine, err := game.NewEngine(engineOptions(cfg, logger)...)
	if err != nil {
		return err
	}

	var writer *journal.Writer
	if cfg.Journal.Path != "" {
		writer, err = openJournal(engine, cfg.Journal, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("Failed to close journal", "error", err)
			}
		}()
	}

	if cfg.Notify.NATSURL != "" {
		nc, err := notify.Connect(cfg.Notify.NATSURL, logger)
		if err != nil {
			return err
		}
		defer func() { _ = nc.Drain() }()
		engine.EventBus().Subscribe(notify.NewPublisher(nc, cfg.Notify.Subject, logger))
		logger.Info("Publishing signals to NATS", "url", cfg.Notify.NATSURL, "subject", cfg.Notify.Subject)
	}

	validator, err := auth.New(cfg.Auth.Mode, cfg.Auth.Secret, cfg.Auth.URL)
	if err != nil {
		return err
	}

	srv := server.NewServer(engine, validator, logger)

	logger.Info("Starting memoryforbots server",
		"addr", cfg.ListenAddress(),
		"pairs", cfg.Game.Pairs,
		"reset_on_start", cfg.Game.ResetOnStart,
		"auth", cfg.Auth.Mode,
		"journal", cfg.Journal.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx, cfg.ListenAddress())
	})
	if writer != nil {
		g.Go(func() error {
			return watchJournal(ctx, writer)
		})
	}
	return g.Wait()
}

// engineOptions builds the engine a server config describes. Journal replay
// uses the same options so reshuffles line up with the recorded matches.
func engineOptions(cfg *server.Config, logger *log.Logger) []game.Option {
	return []game.Option{
		game.WithPairs(cfg.Game.Pairs),
		game.WithResetOnStart(cfg.Game.ResetOnStart),
		game.WithShuffleSeed(cfg.Game.ShuffleSeed),
		game.WithLogger(logger),
	}
}

// openJournal replays an existing journal into engine and subscribes a
// writer so new signals are appended.
func openJournal(engine *game.Engine, settings server.JournalSettings, logger *log.Logger) (*journal.Writer, error) {
	records, err := journal.Load(settings.Path)
	if err != nil {
		return nil, err
	}
	n, err := journal.Restore(engine, records)
	if err != nil {
		return nil, fmt.Errorf("restore journal %s after %d records: %w", settings.Path, n, err)
	}
	if n > 0 {
		state := engine.State()
		logger.Info("Restored journal", "records", n, "games", state.GamesStarted, "active", state.Active)
	}

	opts := []journal.WriterOption{journal.WithWriterLogger(logger)}
	if settings.Snapshot != "" {
		opts = append(opts, journal.WithSnapshot(settings.Snapshot))
	}
	writer, err := journal.Open(settings.Path, opts...)
	if err != nil {
		return nil, err
	}
	engine.EventBus().Subscribe(writer)
	return writer, nil
}

// watchJournal stops the server as soon as the journal can no longer persist
// signals.
func watchJournal(ctx context.Context, w *journal.Writer) error {
	select {
	case <-ctx.Done():
		return nil
	case <-w.Failed():
		return fmt.Errorf("journal failed: %w", w.Err())
	}
}
