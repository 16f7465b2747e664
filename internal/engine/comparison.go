package engine

import (
	"fmt"
	"strings"

	"github.com/lox/roomwager/internal/cards"
	"github.com/lox/roomwager/internal/ledger"
	"github.com/lox/roomwager/internal/outcome"
	"github.com/lox/roomwager/internal/payout"
)

func (s *Session) openBetting() {
	s.transition(PhaseBetting)
	s.arm(s.cfg.BettingDuration, s.closeBetting)
	m := s.cfg.Multipliers
	s.broadcast(fmt.Sprintf("%s opened Baccarat betting! Type bet <player|banker|tie> <amount> within %s. Pays player %sx, banker %sx, tie %sx.",
		s.Initiator.Name, formatSeconds(s.cfg.BettingDuration),
		m[outcome.Player], m[outcome.Banker], m[outcome.Tie]), "")
}

func (s *Session) bet(u User, cat outcome.Category, amount int64) error {
	if s.Variant != Comparison {
		return reject(ErrWrongVariant, "This is a LowCard game. Type join to play.")
	}
	if s.phase != PhaseBetting {
		return reject(ErrWrongPhase, "Betting is closed.")
	}
	if err := s.checkStake(amount); err != nil {
		return err
	}
	return s.reserve(u, amount, cat)
}

// deal forces the accepting phase to close early. Only the initiator and
// moderators may do this.
func (s *Session) deal(u User) error {
	if u.ID != s.Initiator.ID && !u.Role.Privileged() {
		return reject(ErrNotPrivileged, "Only %s or a moderator can deal early.", s.Initiator.Name)
	}
	switch s.phase {
	case PhaseBetting:
		s.logger.Info().Str("user_id", u.ID).Msg("Betting closed early")
		s.closeBetting()
	case PhaseLobby:
		s.logger.Info().Str("user_id", u.ID).Msg("Lobby closed early")
		s.closeLobby()
	default:
		return reject(ErrWrongPhase, "The cards are already out.")
	}
	return nil
}

func (s *Session) closeBetting() {
	s.discardPending()
	bets := s.confirmed()
	if len(bets) == 0 {
		s.cancel("No bets were placed, so the Baccarat game was cancelled.")
		return
	}

	s.transition(PhaseDealing)
	coup, err := outcome.DealComparison(s.deck)
	if err != nil {
		s.fail(err, "Deck exhausted while dealing")
		return
	}
	s.coup = &coup

	natural := ""
	if coup.Natural {
		natural = " Natural!"
	}
	s.broadcast(fmt.Sprintf("Player: %s (%d). Banker: %s (%d).%s %s",
		hand(coup.Player), coup.PlayerValue, hand(coup.Banker), coup.BankerValue,
		natural, winnerLine(coup.Winner)), "")
	s.settleComparison(bets, coup)
}

func (s *Session) settleComparison(bets []*Participant, coup outcome.Coup) {
	s.transition(PhaseFinished)

	in := make([]payout.Bet, len(bets))
	for i, p := range bets {
		in[i] = payout.Bet{UserID: p.UserID, Category: p.Category, Stake: p.Stake}
	}
	st := payout.Comparison(in, coup.Winner, s.cfg.Multipliers)

	byUser := make(map[string]payout.Payout, len(st.Payouts))
	var lines []string
	for i, po := range st.Payouts {
		p := bets[i]
		p.settled = true
		byUser[p.UserID] = po
		switch po.Result {
		case payout.Win:
			s.credit(p, po.Amount, ledger.KindPayout, s.note("winnings"))
			lines = append(lines, fmt.Sprintf("%s +%d", p.Name, po.Amount))
		case payout.Push:
			s.credit(p, po.Amount, ledger.KindPush, s.note("push"))
			lines = append(lines, fmt.Sprintf("%s push", p.Name))
		}
	}

	summary := "The house takes it all."
	if len(lines) > 0 {
		summary = "Payouts: " + strings.Join(lines, ", ") + "."
	}
	if st.Scaled {
		summary += " Winnings were capped at the pot and shared pro rata."
	}
	s.broadcast(summary, "")
	s.logger.Info().
		Str("winner", string(coup.Winner)).
		Int64("collected", st.Collected).
		Int64("paid", st.Paid).
		Int64("pushed", st.Pushed).
		Bool("scaled", st.Scaled).
		Msg("Comparison settled")

	s.record(string(coup.Winner), stakeRecords(bets, func(p *Participant) (int64, string) {
		po := byUser[p.UserID]
		return po.Amount, string(po.Result)
	}))
}

func hand(cs []cards.Card) string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.String()
	}
	return strings.Join(out, " ")
}

func winnerLine(c outcome.Category) string {
	switch c {
	case outcome.Player:
		return "Player wins!"
	case outcome.Banker:
		return "Banker wins!"
	default:
		return "It's a tie!"
	}
}
