package main

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/lox/roomwager/cmd/roomwager/shared"
	"github.com/lox/roomwager/internal/client"
)

// ClientCmd joins a room from the terminal
type ClientCmd struct {
	Server  string `kong:"default='http://localhost:8080',help='Server URL'"`
	Room    string `kong:"required,help='Room to join'"`
	User    string `kong:"default='${user}',help='User ID (defaults to $USER)'"`
	Name    string `kong:"help='Display name (defaults to the user ID)'"`
	Role    string `kong:"default='member',enum='member,moderator,admin',help='Role to claim in the room'"`
	Token   string `kong:"env='ROOMWAGER_TOKEN',help='Auth token, when the server validates identities'"`
	Admin   string `kong:"help='Admin credentials as user:password, needed for privileged roles'"`
	Plain   bool   `kong:"help='Line-oriented output instead of the full-screen interface'"`
	NoColor bool   `kong:"name='no-color',help='Disable colored output'"`
	Debug   bool   `kong:"help='Enable debug logging'"`
}

func (c *ClientCmd) Run() error {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if c.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	if c.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	cfg := client.Config{
		ServerURL: strings.TrimSpace(c.Server),
		Room:      strings.TrimSpace(c.Room),
		UserID:    strings.TrimSpace(c.User),
		Name:      strings.TrimSpace(c.Name),
		Role:      c.Role,
		Token:     c.Token,
	}
	if user, pass, ok := strings.Cut(c.Admin, ":"); ok {
		cfg.AdminUser, cfg.AdminPassword = user, pass
	}

	ctx := shared.SetupSignalHandler()
	cl := client.New(cfg, logger)
	if err := cl.Connect(ctx); err != nil {
		return err
	}
	if !c.Plain {
		// the full-screen interface owns the terminal
		logger.SetOutput(io.Discard)
		return client.RunTUI(ctx, cl)
	}
	logger.Info("Type commands such as start, join, bet player 50 or draw. /quit exits.")
	return client.Run(ctx, cl, os.Stdin, os.Stdout)
}
