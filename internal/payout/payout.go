// Package payout computes settlements for both room games. Amounts are whole
// credits; every fractional result is floored per participant, and the
// remainder stays with the house.
package payout

import (
	"github.com/shopspring/decimal"

	"github.com/lox/roomwager/internal/outcome"
)

// Result classifies a single participant's settlement
type Result string

const (
	Win  Result = "win"
	Loss Result = "loss"
	Push Result = "push"
)

// Multipliers maps each category to the total-return multiplier paid on a
// winning stake (2 returns the stake plus an equal amount).
type Multipliers map[outcome.Category]decimal.Decimal

// DefaultMultipliers returns the standard return multipliers
func DefaultMultipliers() Multipliers {
	return Multipliers{
		outcome.Player: decimal.NewFromInt(2),
		outcome.Banker: decimal.RequireFromString("1.95"),
		outcome.Tie:    decimal.NewFromInt(9),
	}
}

// Bet is one confirmed comparison wager
type Bet struct {
	UserID   string
	Category outcome.Category
	Stake    int64
}

// Payout is the amount credited back to one participant
type Payout struct {
	UserID   string
	Category outcome.Category
	Stake    int64
	Amount   int64
	Result   Result
}

// Settlement summarises a comparison coup
type Settlement struct {
	Payouts   []Payout
	Collected int64
	Paid      int64 // winnings credited, excluding pushes
	Pushed    int64
	Scaled    bool // claims exceeded the pool and were reduced pro rata
}

// HouseTake is what the house keeps from the pot
func (s Settlement) HouseTake() int64 {
	return s.Collected - s.Paid - s.Pushed
}

// Comparison settles bets against the winning category. Winning bets claim
// floor(stake * multiplier). On a Tie outcome player and banker bets push.
// Claims are capped by the pot that remains after pushes: when they exceed
// it, every claim is scaled by available/claims and floored, so the total
// paid never exceeds the total collected.
func Comparison(bets []Bet, winner outcome.Category, multipliers Multipliers) Settlement {
	var s Settlement
	s.Payouts = make([]Payout, len(bets))

	claims := make([]decimal.Decimal, len(bets))
	totalClaims := decimal.Zero
	for i, b := range bets {
		s.Collected += b.Stake
		s.Payouts[i] = Payout{UserID: b.UserID, Category: b.Category, Stake: b.Stake, Result: Loss}

		switch {
		case b.Category == winner:
			m, ok := multipliers[b.Category]
			if !ok {
				m = decimal.NewFromInt(1)
			}
			claims[i] = decimal.NewFromInt(b.Stake).Mul(m).Floor()
			totalClaims = totalClaims.Add(claims[i])
			s.Payouts[i].Result = Win
		case winner == outcome.Tie:
			s.Payouts[i].Result = Push
			s.Payouts[i].Amount = b.Stake
			s.Pushed += b.Stake
		}
	}

	available := decimal.NewFromInt(s.Collected - s.Pushed)
	if totalClaims.GreaterThan(available) {
		s.Scaled = true
	}
	for i := range bets {
		if s.Payouts[i].Result != Win {
			continue
		}
		amount := claims[i]
		if s.Scaled {
			amount = amount.Mul(available).Div(totalClaims).Floor()
		}
		s.Payouts[i].Amount = amount.IntPart()
		s.Paid += s.Payouts[i].Amount
	}
	return s
}

// Elimination returns the winner's payout and the house cut for a pot:
// payout = floor(total * (1 - houseCut)).
func Elimination(total int64, houseCut decimal.Decimal) (winner int64, cut int64) {
	if houseCut.IsNegative() {
		houseCut = decimal.Zero
	}
	if houseCut.GreaterThan(decimal.NewFromInt(1)) {
		houseCut = decimal.NewFromInt(1)
	}
	winner = decimal.NewFromInt(total).Mul(decimal.NewFromInt(1).Sub(houseCut)).Floor().IntPart()
	return winner, total - winner
}
