package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lox/roomwager/internal/outcome"
	"github.com/lox/roomwager/internal/payout"
)

// Config holds the tunables recognised by the engine
type Config struct {
	LobbyDuration    time.Duration
	RoundDuration    time.Duration
	RoundResultDelay time.Duration
	FinishDelay      time.Duration
	BettingDuration  time.Duration

	MinStake     int64
	MaxStake     int64
	DefaultStake int64

	MaxParticipants int
	HouseCut        decimal.Decimal
	Multipliers     payout.Multipliers

	DefaultVariant   Variant
	EnabledByDefault bool
	LedgerTimeout    time.Duration
	BotName          string
}

// DefaultConfig returns the standard engine configuration
func DefaultConfig() Config {
	return Config{
		LobbyDuration:    30 * time.Second,
		RoundDuration:    20 * time.Second,
		RoundResultDelay: 3 * time.Second,
		FinishDelay:      1500 * time.Millisecond,
		BettingDuration:  60 * time.Second,
		MinStake:         10,
		MaxStake:         10000,
		DefaultStake:     100,
		MaxParticipants:  8,
		HouseCut:         decimal.RequireFromString("0.10"),
		Multipliers:      payout.DefaultMultipliers(),
		DefaultVariant:   Elimination,
		EnabledByDefault: true,
		LedgerTimeout:    5 * time.Second,
		BotName:          "Dealer",
	}
}

// DeckDemand is the worst-case number of cards an elimination game with n
// participants consumes: every round deals one card per active player.
func DeckDemand(n int) int {
	return n*(n+1)/2 - 1
}

// Validate reports configuration errors
func (c Config) Validate() error {
	var errs []error
	for name, d := range map[string]time.Duration{
		"lobby duration":   c.LobbyDuration,
		"round duration":   c.RoundDuration,
		"betting duration": c.BettingDuration,
		"ledger timeout":   c.LedgerTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.RoundResultDelay < 0 || c.FinishDelay < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}
	if c.MinStake <= 0 {
		errs = append(errs, errors.New("min stake must be positive"))
	}
	if c.MaxStake < c.MinStake {
		errs = append(errs, fmt.Errorf("max stake %d is below min stake %d", c.MaxStake, c.MinStake))
	}
	if c.DefaultStake < c.MinStake || c.DefaultStake > c.MaxStake {
		errs = append(errs, fmt.Errorf("default stake %d outside [%d, %d]", c.DefaultStake, c.MinStake, c.MaxStake))
	}
	if c.MaxParticipants < 2 {
		errs = append(errs, errors.New("max participants must be at least 2"))
	} else if DeckDemand(c.MaxParticipants) > 52 {
		errs = append(errs, fmt.Errorf("max participants %d would exhaust the deck", c.MaxParticipants))
	}
	if c.HouseCut.IsNegative() || c.HouseCut.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("house cut %s outside [0, 1]", c.HouseCut))
	}
	for _, cat := range outcome.Categories {
		m, ok := c.Multipliers[cat]
		if !ok {
			errs = append(errs, fmt.Errorf("missing payout multiplier for %s", cat))
			continue
		}
		if !m.GreaterThan(decimal.Zero) {
			errs = append(errs, fmt.Errorf("payout multiplier for %s must be positive", cat))
		}
	}
	if c.DefaultVariant != Elimination && c.DefaultVariant != Comparison {
		errs = append(errs, fmt.Errorf("unknown default variant %q", c.DefaultVariant))
	}
	return errors.Join(errs...)
}
