package engine

import (
	"fmt"
	"strings"

	"github.com/lox/roomwager/internal/cards"
	"github.com/lox/roomwager/internal/ledger"
	"github.com/lox/roomwager/internal/outcome"
	"github.com/lox/roomwager/internal/payout"
)

func (s *Session) openLobby() {
	s.transition(PhaseLobby)
	s.arm(s.cfg.LobbyDuration, s.closeLobby)
	s.broadcast(fmt.Sprintf("%s started a LowCard game for %d credits! Type join within %s. Lowest card each round is out; last one standing takes the pot.",
		s.Initiator.Name, s.stake, formatSeconds(s.cfg.LobbyDuration)), "")
}

func (s *Session) join(u User) error {
	if s.Variant != Elimination {
		return reject(ErrWrongVariant, "This is a Baccarat game. Use bet <player|banker|tie> <amount>.")
	}
	if s.phase != PhaseLobby {
		return reject(ErrWrongPhase, "The game has already started.")
	}
	return s.reserve(u, s.stake, "")
}

// closeLobby snapshots the confirmed players into round one, or cancels
// when fewer than two made it in
func (s *Session) closeLobby() {
	s.discardPending()
	players := s.confirmed()
	if len(players) < 2 {
		s.cancel("Not enough players joined, so the LowCard game was cancelled.")
		return
	}
	for _, p := range players {
		p.Active = true
	}
	s.logger.Info().Int("players", len(players)).Int64("pot", s.pot()).Msg("Lobby closed")
	s.broadcast(fmt.Sprintf("LowCard begins with %s: %s. Pot: %d credits.",
		plural(len(players), "player"), names(players), s.pot()), "")
	s.startRound()
}

func (s *Session) active() []*Participant {
	var out []*Participant
	for _, id := range s.order {
		if p := s.participants[id]; p.Active {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) allDrawn() bool {
	for _, p := range s.active() {
		if !p.HasCard {
			return false
		}
	}
	return true
}

func (s *Session) startRound() {
	s.round++
	s.transition(PhaseRoundActive)
	players := s.active()
	for _, p := range players {
		p.Card, p.HasCard = cards.Card{}, false
	}
	s.arm(s.cfg.RoundDuration, s.roundDeadline)
	s.broadcast(fmt.Sprintf("Round %d: %s. Type draw within %s.",
		s.round, names(players), formatSeconds(s.cfg.RoundDuration)), "")

	for _, p := range players {
		if p.Disconnected {
			s.assignForfeit(p, "is gone")
		}
	}
	if s.allDrawn() {
		s.resolveRound()
	}
}

func (s *Session) draw(u User) error {
	if s.Variant != Elimination {
		return reject(ErrWrongVariant, "There's nothing to draw in Baccarat.")
	}
	p, ok := s.participants[u.ID]
	switch {
	case s.phase == PhaseLobby:
		return reject(ErrWrongPhase, "The game hasn't started yet.")
	case s.phase != PhaseRoundActive:
		return reject(ErrWrongPhase, "Wait for the next round.")
	case !ok:
		return reject(ErrNotParticipant, "You're not in this game.")
	case !p.Active:
		return reject(ErrNotParticipant, "You've been eliminated.")
	case p.HasCard:
		return reject(ErrDuplicate, "You already drew this round.")
	}

	c, err := s.dealTo(p)
	if err != nil {
		s.fail(err, "Deck exhausted during elimination round")
		return nil
	}
	s.broadcast(fmt.Sprintf("%s drew %s.", p.Name, c), c.Media())
	if s.allDrawn() {
		s.resolveRound()
	}
	return nil
}

func (s *Session) dealTo(p *Participant) (cards.Card, error) {
	c, ok := s.deck.Draw()
	if !ok {
		return cards.Card{}, outcome.ErrDeckExhausted
	}
	p.Card, p.HasCard = c, true
	return c, nil
}

// roundDeadline auto-draws for everyone who has not drawn yet
func (s *Session) roundDeadline() {
	for _, p := range s.active() {
		if p.HasCard {
			continue
		}
		c, err := s.dealTo(p)
		if err != nil {
			s.fail(err, "Deck exhausted during auto-draw")
			return
		}
		s.broadcast(fmt.Sprintf("Time's up! %s gets %s.", p.Name, c), c.Media())
	}
	s.resolveRound()
}

// assignForfeit gives p the forfeit card for the current round
func (s *Session) assignForfeit(p *Participant, why string) {
	p.Card, p.HasCard = cards.ForfeitCard, true
	s.broadcast(fmt.Sprintf("%s %s and takes a forfeit card.", p.Name, why), "")
}

// forfeit handles an active player who left mid-game. During a draw the
// player takes the forfeit card now, replacing anything drawn; between
// rounds it is applied when the next round starts.
func (s *Session) forfeit(p *Participant, why string) {
	p.Disconnected = true
	if s.phase != PhaseRoundActive {
		s.logger.Info().Str("user_id", p.UserID).Msg("Player will forfeit next round")
		return
	}
	s.assignForfeit(p, why)
	if s.allDrawn() {
		s.resolveRound()
	}
}

func (s *Session) resolveRound() {
	s.transition(PhaseRoundResolving)
	players := s.active()
	hands := make([]cards.Card, len(players))
	for i, p := range players {
		hands[i] = p.Card
	}

	idx, tied, err := outcome.Eliminate(s.rng, hands)
	if err != nil {
		s.fail(err, "Resolved a round with no active participants")
		return
	}
	loser := players[idx]
	loser.Active = false
	loser.EliminatedRound = s.round

	var b strings.Builder
	fmt.Fprintf(&b, "Round %d results:", s.round)
	for _, p := range players {
		fmt.Fprintf(&b, " %s %s,", p.Name, p.Card)
	}
	msg := strings.TrimSuffix(b.String(), ",") + "."
	if len(tied) > 1 {
		tiedNames := make([]string, len(tied))
		for i, t := range tied {
			tiedNames[i] = players[t].Name
		}
		msg += fmt.Sprintf(" %s tied for lowest and %s lost the coin toss.", strings.Join(tiedNames, " and "), loser.Name)
	} else {
		msg += fmt.Sprintf(" %s is eliminated.", loser.Name)
	}
	s.broadcast(msg, "")
	s.logger.Info().
		Int("round", s.round).
		Str("eliminated", loser.UserID).
		Int("tied", len(tied)).
		Msg("Round resolved")

	remaining := s.active()
	if len(remaining) == 1 {
		winner := remaining[0]
		s.arm(s.cfg.FinishDelay, func() { s.finishElimination(winner) })
		return
	}
	s.arm(s.cfg.RoundResultDelay, s.startRound)
}

func (s *Session) finishElimination(winner *Participant) {
	s.transition(PhaseFinished)
	players := s.confirmed()
	total := s.pot()
	amount, cut := payout.Elimination(total, s.cfg.HouseCut)

	winner.settled = true
	for _, p := range players {
		p.settled = true
	}
	s.credit(winner, amount, ledger.KindPayout, s.note("winnings"))

	s.broadcast(fmt.Sprintf("%s wins LowCard and takes %d credits! (pot %d, house %d)",
		winner.Name, amount, total, cut), "")
	s.logger.Info().
		Str("winner", winner.UserID).
		Int64("pot", total).
		Int64("payout", amount).
		Int64("house", cut).
		Msg("Elimination settled")

	s.record(winner.UserID, stakeRecords(players, func(p *Participant) (int64, string) {
		if p == winner {
			return amount, string(payout.Win)
		}
		return 0, string(payout.Loss)
	}))
}
