package main

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lox/memoryforbots/internal/client"
	"github.com/lox/memoryforbots/internal/server"
	"github.com/lox/memoryforbots/internal/tui"
)

// ClientCmd connects the TUI to a remote server.
type ClientCmd struct {
	Config  string        `short:"c" default:"memoryforbots-client.hcl" help:"Path to HCL client configuration"`
	Server  string        `help:"Server URL (overrides config)"`
	Name    string        `help:"Caller name (overrides config)"`
	Token   string        `env:"MEMORYFORBOTS_TOKEN" help:"Auth token (overrides config)"`
	Refresh time.Duration `default:"5s" help:"Board polling interval"`
}

func (c *ClientCmd) Run() error {
	cfg, err := client.LoadClientConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Server != "" {
		cfg.Server.URL = strings.TrimSpace(c.Server)
	}
	if c.Name != "" {
		cfg.Player.Name = strings.TrimSpace(c.Name)
	}
	if c.Token != "" {
		cfg.Player.Token = c.Token
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := fileLogger(cfg.UI.LogFile, cfg.UI.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	conn := client.NewClient(cfg.Server.URL, logger)
	conn.SetRequestTimeout(cfg.RequestTimeout())

	dialCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout())
	defer cancel()
	if err := conn.Connect(dialCtx); err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	welcome, err := conn.Hello(dialCtx, cfg.Player.Name, cfg.Player.Token)
	if err != nil {
		return err
	}

	model := tui.NewTUIModel(conn, welcome.Caller, c.Refresh, logger)
	program := tea.NewProgram(model, tea.WithAltScreen())

	forward := func(msg *server.Message) {
		event, err := server.EventFromMessage(msg)
		if err != nil {
			logger.Warn("Ignoring broadcast", "type", msg.Type, "error", err)
			return
		}
		program.Send(tui.SignalMsg{Event: event})
	}
	for _, typ := range []server.MessageType{
		server.MessageTypeGameStarted,
		server.MessageTypeCardMatched,
		server.MessageTypeGameEnded,
	} {
		conn.AddEventHandler(typ, forward)
	}

	go func() {
		<-conn.Done()
		program.Quit()
	}()

	_, err = program.Run()
	return err
}
