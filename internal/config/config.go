// Package config loads the roomwager HCL configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/shopspring/decimal"

	"github.com/lox/roomwager/internal/engine"
	"github.com/lox/roomwager/internal/outcome"
)

// Ledger drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// file mirrors the HCL document. Every block is optional.
type file struct {
	Server  *serverBlock  `hcl:"server,block"`
	Engine  *engineBlock  `hcl:"engine,block"`
	Payouts *payoutsBlock `hcl:"payouts,block"`
	Ledger  *ledgerBlock  `hcl:"ledger,block"`
	Results *resultsBlock `hcl:"results,block"`
}

type serverBlock struct {
	Address       string `hcl:"address,optional"`
	LogLevel      string `hcl:"log_level,optional"`
	AdminUser     string `hcl:"admin_user,optional"`
	AdminPassword string `hcl:"admin_password,optional"`
	AuthURL       string `hcl:"auth_url,optional"`
	AuthSecret    string `hcl:"auth_secret,optional"`
}

type engineBlock struct {
	LobbyDuration    string `hcl:"lobby_duration,optional"`
	RoundDuration    string `hcl:"round_duration,optional"`
	RoundResultDelay string `hcl:"round_result_delay,optional"`
	FinishDelay      string `hcl:"finish_delay,optional"`
	BettingDuration  string `hcl:"betting_duration,optional"`
	MinStake         int64  `hcl:"min_stake,optional"`
	MaxStake         int64  `hcl:"max_stake,optional"`
	DefaultStake     int64  `hcl:"default_stake,optional"`
	MaxParticipants  int    `hcl:"max_participants,optional"`
	HouseCut         string `hcl:"house_cut,optional"`
	DefaultVariant   string `hcl:"default_variant,optional"`
	EnabledByDefault *bool  `hcl:"enabled_by_default,optional"`
	LedgerTimeout    string `hcl:"ledger_timeout,optional"`
	BotName          string `hcl:"bot_name,optional"`
}

type payoutsBlock struct {
	Player string `hcl:"player,optional"`
	Banker string `hcl:"banker,optional"`
	Tie    string `hcl:"tie,optional"`
}

type ledgerBlock struct {
	Driver          string `hcl:"driver,optional"`
	DSN             string `hcl:"dsn,optional"`
	StartingBalance int64  `hcl:"starting_balance,optional"`
	Snapshot        string `hcl:"snapshot,optional"`
}

type resultsBlock struct {
	File        string `hcl:"file,optional"`
	Postgres    bool   `hcl:"postgres,optional"`
	PostgresDSN string `hcl:"postgres_dsn,optional"`
}

// Config is the resolved configuration
type Config struct {
	Server  ServerConfig
	Engine  engine.Config
	Ledger  LedgerConfig
	Results ResultsConfig
}

// ServerConfig holds HTTP gateway settings
type ServerConfig struct {
	Address       string
	LogLevel      string
	AdminUser     string
	AdminPassword string

	// AuthURL, when set, is called to resolve websocket tokens into identities
	AuthURL    string
	AuthSecret string
}

// LedgerConfig selects the credit store
type LedgerConfig struct {
	Driver          string
	DSN             string
	StartingBalance int64

	// Snapshot is where the memory driver persists balances between runs
	Snapshot string
}

// ResultsConfig selects where finished games are written
type ResultsConfig struct {
	File        string
	Postgres    bool
	PostgresDSN string
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:  "localhost:8080",
			LogLevel: "info",
		},
		Engine: engine.DefaultConfig(),
		Ledger: LedgerConfig{
			Driver:          DriverMemory,
			StartingBalance: 1000,
		},
	}
}

// Load reads filename. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}
	src, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(src, filename)
}

// Parse decodes an HCL document and applies defaults for anything it omits
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var doc file
	if diags := gohcl.DecodeBody(f.Body, nil, &doc); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg := Default()
	if s := doc.Server; s != nil {
		setString(&cfg.Server.Address, s.Address)
		setString(&cfg.Server.LogLevel, s.LogLevel)
		cfg.Server.AdminUser = s.AdminUser
		cfg.Server.AdminPassword = s.AdminPassword
		cfg.Server.AuthURL = s.AuthURL
		cfg.Server.AuthSecret = s.AuthSecret
	}
	if e := doc.Engine; e != nil {
		if err := applyEngine(&cfg.Engine, e); err != nil {
			return nil, err
		}
	}
	if p := doc.Payouts; p != nil {
		if err := applyPayouts(&cfg.Engine, p); err != nil {
			return nil, err
		}
	}
	if l := doc.Ledger; l != nil {
		setString(&cfg.Ledger.Driver, l.Driver)
		cfg.Ledger.DSN = l.DSN
		cfg.Ledger.Snapshot = l.Snapshot
		if l.StartingBalance != 0 {
			cfg.Ledger.StartingBalance = l.StartingBalance
		}
	}
	if r := doc.Results; r != nil {
		cfg.Results = ResultsConfig{File: r.File, Postgres: r.Postgres, PostgresDSN: r.PostgresDSN}
	}
	return cfg, nil
}

func applyEngine(c *engine.Config, b *engineBlock) error {
	durations := []struct {
		name string
		src  string
		dst  *time.Duration
	}{
		{"lobby_duration", b.LobbyDuration, &c.LobbyDuration},
		{"round_duration", b.RoundDuration, &c.RoundDuration},
		{"round_result_delay", b.RoundResultDelay, &c.RoundResultDelay},
		{"finish_delay", b.FinishDelay, &c.FinishDelay},
		{"betting_duration", b.BettingDuration, &c.BettingDuration},
		{"ledger_timeout", b.LedgerTimeout, &c.LedgerTimeout},
	}
	for _, d := range durations {
		if d.src == "" {
			continue
		}
		v, err := time.ParseDuration(d.src)
		if err != nil {
			return fmt.Errorf("engine.%s: %w", d.name, err)
		}
		*d.dst = v
	}

	setInt64(&c.MinStake, b.MinStake)
	setInt64(&c.MaxStake, b.MaxStake)
	setInt64(&c.DefaultStake, b.DefaultStake)
	if b.MaxParticipants != 0 {
		c.MaxParticipants = b.MaxParticipants
	}
	if b.HouseCut != "" {
		v, err := decimal.NewFromString(b.HouseCut)
		if err != nil {
			return fmt.Errorf("engine.house_cut: %w", err)
		}
		c.HouseCut = v
	}
	if b.DefaultVariant != "" {
		v, ok := engine.ParseVariant(b.DefaultVariant)
		if !ok {
			return fmt.Errorf("engine.default_variant: unknown variant %q", b.DefaultVariant)
		}
		c.DefaultVariant = v
	}
	if b.EnabledByDefault != nil {
		c.EnabledByDefault = *b.EnabledByDefault
	}
	setString(&c.BotName, b.BotName)
	return nil
}

func applyPayouts(c *engine.Config, b *payoutsBlock) error {
	for cat, src := range map[outcome.Category]string{
		outcome.Player: b.Player,
		outcome.Banker: b.Banker,
		outcome.Tie:    b.Tie,
	} {
		if src == "" {
			continue
		}
		v, err := decimal.NewFromString(src)
		if err != nil {
			return fmt.Errorf("payouts.%s: %w", cat, err)
		}
		c.Multipliers[cat] = v
	}
	return nil
}

// Validate checks the whole configuration
func (c *Config) Validate() error {
	var errs []error
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	switch c.Ledger.Driver {
	case DriverMemory:
	case DriverPostgres, DriverRedis:
		if c.Ledger.DSN == "" {
			errs = append(errs, fmt.Errorf("ledger: %s driver requires dsn", c.Ledger.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("ledger: unknown driver %q", c.Ledger.Driver))
	}
	if c.Ledger.Snapshot != "" && c.Ledger.Driver != DriverMemory {
		errs = append(errs, fmt.Errorf("ledger: snapshot only applies to the %s driver", DriverMemory))
	}
	if c.Ledger.StartingBalance < 0 {
		errs = append(errs, errors.New("ledger: starting_balance must not be negative"))
	}
	if c.Results.Postgres && c.ResultsDSN() == "" {
		errs = append(errs, errors.New("results: postgres requires postgres_dsn or a postgres ledger"))
	}
	if (c.Server.AdminUser == "") != (c.Server.AdminPassword == "") {
		errs = append(errs, errors.New("server: admin_user and admin_password must be set together"))
	}
	return errors.Join(errs...)
}

// ResultsDSN is the database used for result persistence
func (c *Config) ResultsDSN() string {
	if c.Results.PostgresDSN != "" {
		return c.Results.PostgresDSN
	}
	if c.Ledger.Driver == DriverPostgres {
		return c.Ledger.DSN
	}
	return ""
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, v int64) {
	if v != 0 {
		*dst = v
	}
}
