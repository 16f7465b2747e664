package main

import (
	"os"

	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Config  string           `short:"c" default:"roomwager.hcl" type:"path" help:"Path to the HCL configuration file"`

	Server  ServerCmd  `cmd:"" help:"Run the game server"`
	Client  ClientCmd  `cmd:"" help:"Join a room as an interactive client"`
	Balance BalanceCmd `cmd:"" help:"Show a user's balance and recent transactions"`
	Results ResultsCmd `cmd:"" help:"Show recent game results"`
	Check   CheckCmd   `cmd:"" name:"check-config" help:"Validate the configuration file and print the resolved settings"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("roomwager"),
		kong.Description("Room-scoped wagering games for chat rooms"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
			"user":    os.Getenv("USER"),
		},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
