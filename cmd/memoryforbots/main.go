package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Server  ServerCmd        `cmd:"" help:"Run the memory game server"`
	Play    PlayCmd          `cmd:"" help:"Play locally in the terminal"`
	Client  ClientCmd        `cmd:"" help:"Connect to a server as an interactive client"`
	Bot     BotCmd           `cmd:"" help:"Run one or more bots against a server"`
	Journal JournalCmd       `cmd:"" help:"Inspect signal journals"`
	Token   TokenCmd         `cmd:"" help:"Issue a signed caller token for jwt auth"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("memoryforbots"),
		kong.Description("Concurrent memory card game server for bots and humans"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
