package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/lox/roomwager/internal/config"
	"github.com/lox/roomwager/internal/outcome"
)

// CheckCmd validates the configuration file
type CheckCmd struct{}

func (c *CheckCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", cli.Config, err)
	}

	e := cfg.Engine
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "address\t%s\n", cfg.Server.Address)
	fmt.Fprintf(w, "ledger\t%s\n", cfg.Ledger.Driver)
	fmt.Fprintf(w, "starting balance\t%d\n", cfg.Ledger.StartingBalance)
	fmt.Fprintf(w, "default game\t%s\n", e.DefaultVariant.Title())
	fmt.Fprintf(w, "lobby\t%s\n", e.LobbyDuration)
	fmt.Fprintf(w, "round\t%s\n", e.RoundDuration)
	fmt.Fprintf(w, "betting\t%s\n", e.BettingDuration)
	fmt.Fprintf(w, "stakes\t%d-%d (default %d)\n", e.MinStake, e.MaxStake, e.DefaultStake)
	fmt.Fprintf(w, "max participants\t%d\n", e.MaxParticipants)
	fmt.Fprintf(w, "house cut\t%s\n", e.HouseCut.String())

	for _, cat := range outcome.Categories {
		fmt.Fprintf(w, "pays %s\t%sx\n", cat, e.Multipliers[cat].String())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%s is valid\n", cli.Config)
	return nil
}
