package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/lox/roomwager/cmd/roomwager/shared"
	"github.com/lox/roomwager/internal/config"
	"github.com/lox/roomwager/internal/engine"
	"github.com/lox/roomwager/internal/results"
)

// ResultsCmd lists recently finished games
type ResultsCmd struct {
	Room  string `kong:"help='Only show games from this room (required for postgres)'"`
	Limit int    `kong:"default='20',help='Maximum number of games to show'"`
}

func (c *ResultsCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var games []engine.GameResult
	switch {
	case cfg.Results.Postgres:
		if c.Room == "" {
			return errors.New("--room is required when results are stored in postgres")
		}
		ctx := shared.SetupSignalHandler()
		st, err := openStack(ctx, cfg, shared.SetupLogger(zerolog.WarnLevel))
		if err != nil {
			return err
		}
		defer st.Close()
		games, err = st.store.Recent(ctx, c.Room, c.Limit)
		if err != nil {
			return err
		}
	case cfg.Results.File != "":
		all, err := results.ReadFile(cfg.Results.File)
		if err != nil {
			return err
		}
		for i := len(all) - 1; i >= 0 && len(games) < c.Limit; i-- {
			if c.Room == "" || all[i].Room == c.Room {
				games = append(games, all[i])
			}
		}
	default:
		return errors.New("no results store configured")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENDED\tROOM\tGAME\tOUTCOME\tSTAKES\tPAID\tPLAYERS")
	for _, g := range games {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			g.EndedAt.Local().Format(time.DateTime), g.Room, g.Variant.Title(),
			g.Outcome, g.TotalStakes, g.TotalPayout, len(g.Stakes))
	}
	return w.Flush()
}
