package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/log"

	"github.com/lox/memoryforbots/internal/game"
	"github.com/lox/memoryforbots/internal/journal"
	"github.com/lox/memoryforbots/internal/server"
)

type JournalCmd struct {
	Show   JournalShowCmd   `cmd:"" help:"Print journal records"`
	Verify JournalVerifyCmd `cmd:"" help:"Replay a journal and print the resulting state"`
}

type JournalShowCmd struct {
	Path string `arg:"" type:"existingfile" help:"Journal file"`
	JSON bool   `help:"Print raw JSON lines"`
}

func (c *JournalShowCmd) Run() error {
	records, err := journal.Load(c.Path)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tTIME\tTYPE\tCALLER\tGAME\tDETAIL")
	for _, rec := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			rec.Seq, rec.Timestamp.Format("2006-01-02 15:04:05"), rec.Type, rec.Caller, rec.GameID, recordDetail(rec))
	}
	return w.Flush()
}

func recordDetail(rec journal.Record) string {
	switch {
	case rec.Card1 != nil && rec.Card2 != nil && rec.PairID != nil:
		return fmt.Sprintf("cards %d,%d pair %d", *rec.Card1, *rec.Card2, *rec.PairID)
	case rec.Score != nil:
		return fmt.Sprintf("score %d", *rec.Score)
	default:
		return ""
	}
}

// JournalVerifyCmd replays a journal into a scratch engine built from the
// server's game settings.
type JournalVerifyCmd struct {
	Path         string `arg:"" type:"existingfile" help:"Journal file"`
	Config       string `short:"c" default:"memoryforbots.hcl" help:"Server HCL configuration the journal was written with"`
	Pairs        int    `help:"Number of pairs (overrides config)"`
	ResetOnStart *bool  `help:"Reset and reshuffle on start (overrides config)"`
	Seed         *int64 `help:"Shuffle seed (overrides config)"`
}

func (c *JournalVerifyCmd) Run() error {
	return c.run(os.Stdout)
}

func (c *JournalVerifyCmd) config() (*server.Config, error) {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return nil, err
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
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *JournalVerifyCmd) run(out io.Writer) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	records, err := journal.Load(c.Path)
	if err != nil {
		return err
	}

	engine, err := game.NewEngine(engineOptions(cfg, log.New(os.Stderr))...)
	if err != nil {
		return err
	}
	n, err := journal.Restore(engine, records)
	if err != nil {
		return fmt.Errorf("replay failed after %d of %d records: %w", n, len(records), err)
	}

	state := engine.State()
	fmt.Fprintf(out, "records: %d\ngames:   %d\nactive:  %t\npairs:   %d/%d\n",
		n, state.GamesStarted, state.Active, state.RevealedPairs, state.TotalPairs)
	for _, entry := range engine.Leaderboard() {
		fmt.Fprintf(out, "  %-16s %d\n", entry.Caller, entry.Score)
	}
	return nil
}
