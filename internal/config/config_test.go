package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/roomwager/internal/engine"
	"github.com/lox/roomwager/internal/outcome"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.Server.Address)
	assert.Equal(t, DriverMemory, cfg.Ledger.Driver)
	assert.Equal(t, 30*time.Second, cfg.Engine.LobbyDuration)
	assert.NoError(t, cfg.Validate())
}

func TestParseFullFile(t *testing.T) {
	t.Parallel()
	src := `
server {
  address        = ":9000"
  log_level      = "debug"
  admin_user     = "ops"
  admin_password = "hunter2"
}

engine {
  lobby_duration     = "45s"
  round_duration     = "10s"
  finish_delay       = "500ms"
  min_stake          = 5
  max_stake          = 500
  default_stake      = 50
  max_participants   = 6
  house_cut          = "0.05"
  default_variant    = "baccarat"
  enabled_by_default = false
  bot_name           = "Croupier"
}

payouts {
  banker = "1.9"
}

ledger {
  driver           = "postgres"
  dsn              = "postgres://localhost/roomwager"
  starting_balance = 2500
}

results {
  file     = "results.jsonl"
  postgres = true
}
`
	cfg, err := Parse([]byte(src), "roomwager.hcl")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "ops", cfg.Server.AdminUser)

	e := cfg.Engine
	assert.Equal(t, 45*time.Second, e.LobbyDuration)
	assert.Equal(t, 10*time.Second, e.RoundDuration)
	assert.Equal(t, 500*time.Millisecond, e.FinishDelay)
	assert.Equal(t, 60*time.Second, e.BettingDuration, "unset values keep their defaults")
	assert.Equal(t, int64(50), e.DefaultStake)
	assert.Equal(t, 6, e.MaxParticipants)
	assert.True(t, decimal.RequireFromString("0.05").Equal(e.HouseCut))
	assert.Equal(t, engine.Comparison, e.DefaultVariant)
	assert.False(t, e.EnabledByDefault)
	assert.Equal(t, "Croupier", e.BotName)
	assert.True(t, decimal.RequireFromString("1.9").Equal(e.Multipliers[outcome.Banker]))
	assert.True(t, decimal.NewFromInt(2).Equal(e.Multipliers[outcome.Player]))

	assert.Equal(t, DriverPostgres, cfg.Ledger.Driver)
	assert.Equal(t, int64(2500), cfg.Ledger.StartingBalance)
	assert.Equal(t, "results.jsonl", cfg.Results.File)
	assert.Equal(t, "postgres://localhost/roomwager", cfg.ResultsDSN())
}

func TestParseErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "bad duration", src: `engine { lobby_duration = "soon" }`, want: "engine.lobby_duration"},
		{name: "bad decimal", src: `payouts { tie = "nine" }`, want: "payouts.tie"},
		{name: "bad variant", src: `engine { default_variant = "poker" }`, want: "unknown variant"},
		{name: "unknown attribute", src: `engine { colour = "red" }`, want: "failed to decode HCL"},
		{name: "syntax", src: `engine {`, want: "failed to parse HCL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "test.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "redis without dsn", mutate: func(c *Config) { c.Ledger.Driver = DriverRedis }, want: "redis driver requires dsn"},
		{name: "unknown driver", mutate: func(c *Config) { c.Ledger.Driver = "sqlite" }, want: "unknown driver"},
		{name: "postgres results without dsn", mutate: func(c *Config) { c.Results.Postgres = true }, want: "results: postgres"},
		{name: "half admin credentials", mutate: func(c *Config) { c.Server.AdminUser = "ops" }, want: "set together"},
		{name: "deck exhaustion", mutate: func(c *Config) { c.Engine.MaxParticipants = 12 }, want: "exhaust the deck"},
		{name: "snapshot on redis", mutate: func(c *Config) {
			c.Ledger.Driver, c.Ledger.DSN, c.Ledger.Snapshot = DriverRedis, "redis://localhost", "balances.json"
		}, want: "snapshot only applies"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "roomwager.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`ledger { starting_balance = 42 }`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Ledger.StartingBalance)
}

func TestParseAuthAndSnapshot(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte(`
server {
  auth_url    = "https://chat.example.com/validate"
  auth_secret = "s3cret"
}
ledger {
  snapshot = "balances.json"
}
`), "test.hcl")
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com/validate", cfg.Server.AuthURL)
	assert.Equal(t, "s3cret", cfg.Server.AuthSecret)
	assert.Equal(t, "balances.json", cfg.Ledger.Snapshot)
	assert.Equal(t, DriverMemory, cfg.Ledger.Driver)
	assert.NoError(t, cfg.Validate())
}
