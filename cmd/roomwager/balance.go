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
)

// BalanceCmd prints a user's balance from the configured ledger
type BalanceCmd struct {
	User  string `kong:"arg,help='User ID'"`
	Limit int    `kong:"default='10',help='Number of recent transactions to show'"`
}

func (c *BalanceCmd) Run(cli *CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Ledger.Driver == config.DriverMemory {
		return errors.New("the memory ledger only lives inside a running server; configure a postgres or redis ledger")
	}

	logger := shared.SetupLogger(zerolog.WarnLevel)
	ctx := shared.SetupSignalHandler()
	st, err := openStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	balance, err := st.ledger.GetBalance(ctx, c.User)
	if err != nil {
		return err
	}
	fmt.Printf("%s has %d credits\n", c.User, balance)

	lister, err := st.transactions()
	if err != nil {
		return err
	}
	txs, err := lister.recent(ctx, c.User, c.Limit)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tAMOUNT\tNOTE")
	for _, tx := range txs {
		fmt.Fprintf(w, "%s\t%s\t%+d\t%s\n", tx.Time.Local().Format(time.DateTime), tx.Kind, tx.Amount, tx.Note)
	}
	return w.Flush()
}
