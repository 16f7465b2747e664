package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/lox/roomwager/internal/ledger"
	"github.com/lox/roomwager/internal/outcome"
)

// reserve records a pending entry for u and starts the ledger round-trip.
// The entry is inserted before any asynchronous work so a second request
// from the same user is rejected while the first is still in flight.
func (s *Session) reserve(u User, stake int64, cat outcome.Category) error {
	if !s.phase.Accepting() {
		return reject(ErrWrongPhase, "Entries are closed.")
	}
	if p, ok := s.participants[u.ID]; ok {
		if p.State == Pending {
			return reject(ErrDuplicate, "Your previous request is still being processed.")
		}
		if s.Variant == Comparison {
			return reject(ErrDuplicate, "You already bet %d on %s.", p.Stake, p.Category)
		}
		return reject(ErrDuplicate, "You have already joined.")
	}
	if len(s.participants) >= s.cfg.MaxParticipants {
		return reject(ErrCapacity, "This game is full (%d players).", s.cfg.MaxParticipants)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Participant{
		UserID:   u.ID,
		Name:     u.Name,
		Stake:    stake,
		State:    Pending,
		Category: cat,
		JoinedAt: s.e.clock.Now(),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.add(p)
	s.logger.Debug().
		Str("user_id", p.UserID).
		Int64("stake", stake).
		Str("category", string(cat)).
		Msg("Reservation pending")

	s.confirm(p)
	return nil
}

// confirm checks funds and debits the stake off the actor, then posts the
// outcome back. If the actor has already exited, a successful debit is
// compensated here since nobody else will see it.
func (s *Session) confirm(p *Participant) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(p.ctx, s.cfg.LedgerTimeout)
		err := ledger.CheckAndDebit(ctx, s.e.ledger, p.UserID, p.Stake, s.cfg.LedgerTimeout)
		cancel()

		if !s.post(func() { s.onDebit(p, err) }) && err == nil {
			s.compensate(p)
		}
	}()
}

// onDebit applies a ledger result to the reservation it was made for
func (s *Session) onDebit(p *Participant, err error) {
	if s.participants[p.UserID] != p || p.State != Pending || s.phase.Terminal() {
		if err == nil {
			s.compensate(p)
		} else {
			s.logger.Debug().Str("user_id", p.UserID).Msg("Abandoning result for discarded reservation")
		}
		return
	}

	if err != nil {
		s.remove(p)
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			s.notify(p.UserID, fmt.Sprintf("You don't have enough credits for a %d stake.", p.Stake))
			return
		}
		s.logger.Warn().Err(err).Str("user_id", p.UserID).Msg("Ledger check failed")
		s.notify(p.UserID, "We couldn't reach the bank. Please try again.")
		return
	}

	p.State = Confirmed
	s.e.logTransaction(ledger.Transaction{
		UserID: p.UserID,
		Amount: -p.Stake,
		Kind:   ledger.KindStake,
		Note:   s.note("stake"),
		Time:   s.e.clock.Now(),
	})
	s.logger.Info().Str("user_id", p.UserID).Int64("stake", p.Stake).Msg("Reservation confirmed")

	switch s.Variant {
	case Comparison:
		s.broadcast(fmt.Sprintf("%s bet %d on %s. Pot: %d.", p.Name, p.Stake, p.Category, s.pot()), "")
	default:
		s.broadcast(fmt.Sprintf("%s joined for %d credits. %s in, pot %d.",
			p.Name, p.Stake, plural(len(s.confirmed()), "player"), s.pot()), "")
	}
}

// withdraw removes p before the game starts. A confirmed stake is refunded;
// a pending one is dropped without touching the ledger.
func (s *Session) withdraw(p *Participant, verb string) {
	state := p.State
	s.remove(p)
	if state != Confirmed {
		s.logger.Debug().Str("user_id", p.UserID).Msg("Pending reservation withdrawn")
		return
	}
	if s.refund(p) {
		s.broadcast(fmt.Sprintf("%s %s. %d credits refunded.", p.Name, verb, p.Stake), "")
		return
	}
	s.broadcast(fmt.Sprintf("%s %s.", p.Name, verb), "")
}

func (s *Session) leave(u User) error {
	p, ok := s.participants[u.ID]
	if !ok {
		return reject(ErrNotParticipant, "You're not in this game.")
	}
	switch {
	case s.phase.Accepting():
		s.withdraw(p, "left the game")
		return nil
	case s.Variant == Elimination && (s.phase == PhaseRoundActive || s.phase == PhaseRoundResolving):
		if !p.Active {
			return reject(ErrNotParticipant, "You've already been eliminated.")
		}
		s.forfeit(p, "folded")
		return nil
	}
	return reject(ErrWrongPhase, "It's too late to leave this game.")
}

func (s *Session) checkStake(amount int64) error {
	if amount < s.cfg.MinStake || amount > s.cfg.MaxStake {
		return reject(ErrStakeOutOfRange, "Stake must be between %d and %d credits.", s.cfg.MinStake, s.cfg.MaxStake)
	}
	return nil
}
