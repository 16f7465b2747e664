package engine

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/lox/roomwager/internal/cards"
	"github.com/lox/roomwager/internal/ledger"
	"github.com/lox/roomwager/internal/outcome"
)

const inboxSize = 64

// Session is one running game in one room. All of its state is owned by
// the goroutine started in run; every other goroutine talks to it through
// post or call.
type Session struct {
	ID        string
	Room      string
	Variant   Variant
	Initiator User

	e      *Engine
	cfg    Config
	logger zerolog.Logger
	rng    *rand.Rand
	deck   *cards.Deck

	phase     Phase
	epoch     uint64
	deadline  time.Time
	timer     *quartz.Timer
	stake     int64
	round     int
	startedAt time.Time
	coup      *outcome.Coup

	participants map[string]*Participant
	order        []string

	inbox    chan func()
	stopped  chan struct{}
	inflight sync.WaitGroup
	summary  atomic.Pointer[SessionSummary]
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		fn := <-s.inbox
		s.apply(fn)
		if s.phase.Terminal() {
			s.drain()
			s.logger.Debug().Msg("Session actor stopped")
			return
		}
	}
}

// drain keeps applying posted work until every outstanding ledger
// confirmation has reported back, so late debits are always compensated.
func (s *Session) drain() {
	idle := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(idle)
	}()
	for {
		select {
		case fn := <-s.inbox:
			s.apply(fn)
		case <-idle:
			for {
				select {
				case fn := <-s.inbox:
					s.apply(fn)
				default:
					return
				}
			}
		}
	}
}

func (s *Session) apply(fn func()) {
	fn()
	s.publish()
}

// post enqueues fn for the actor. It reports false once the actor has exited.
func (s *Session) post(fn func()) bool {
	select {
	case <-s.stopped:
		return false
	default:
	}
	select {
	case s.inbox <- fn:
		return true
	case <-s.stopped:
		return false
	}
}

// call runs fn on the actor and waits for its result. Work that reaches a
// session that has already ended is rejected with ErrNoSession.
func (s *Session) call(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	ok := s.post(func() {
		if s.phase.Terminal() {
			reply <- noSession()
			return
		}
		reply <- fn()
	})
	if !ok {
		return noSession()
	}
	select {
	case err := <-reply:
		return err
	case <-s.stopped:
		select {
		case err := <-reply:
			return err
		default:
			return noSession()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the session has ended and settled every reservation
func (s *Session) Done() <-chan struct{} {
	return s.stopped
}

// Summary returns the most recent snapshot of the session
func (s *Session) Summary() SessionSummary {
	if sum := s.summary.Load(); sum != nil {
		return *sum
	}
	return SessionSummary{ID: s.ID, Room: s.Room, Variant: s.Variant}
}

func noSession() error {
	return reject(ErrNoSession, "No game in progress. Type start to begin.")
}

func (s *Session) open() {
	s.startedAt = s.e.clock.Now()
	switch s.Variant {
	case Comparison:
		s.openBetting()
	default:
		s.openLobby()
	}
	s.publish()
}

// handle dispatches a parsed command on the actor
func (s *Session) handle(u User, req request) error {
	switch req.action {
	case actJoin:
		return s.join(u)
	case actLeave:
		return s.leave(u)
	case actBet:
		return s.bet(u, req.category, req.stake)
	case actDraw:
		return s.draw(u)
	case actDeal:
		return s.deal(u)
	case actStatus:
		s.notify(u.ID, s.statusText())
		return nil
	case actStart:
		return reject(ErrAlreadyActive, "Game already in progress!")
	}
	return reject(ErrUnknownCommand, "Unknown command. Type help for the list of commands.")
}

// transition moves to phase to, invalidating any timer armed for the
// previous phase. Terminal phases release the room immediately.
func (s *Session) transition(to Phase) {
	from := s.phase
	s.epoch++
	s.phase = to
	s.stopTimer()
	s.deadline = time.Time{}

	s.logger.Info().
		Str("from", string(from)).
		Str("to", string(to)).
		Int("round", s.round).
		Msg("Phase transition")

	if to.Terminal() {
		s.e.registry.release(s.Room, s)
	}
}

// arm schedules fire after d. The callback is dropped if the session has
// transitioned since arming.
func (s *Session) arm(d time.Duration, fire func()) {
	s.stopTimer()
	epoch := s.epoch
	s.deadline = s.e.clock.Now().Add(d)
	s.timer = s.e.clock.AfterFunc(d, func() {
		s.post(func() {
			if s.epoch != epoch || s.phase.Terminal() {
				s.logger.Debug().Uint64("epoch", epoch).Msg("Ignoring stale timer")
				return
			}
			fire()
		})
	})
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// cancel ends the session without a winner. Confirmed stakes are refunded
// once; pending reservations are discarded and their confirmations
// compensated if a debit still lands.
func (s *Session) cancel(reason string) {
	if s.phase.Terminal() {
		return
	}
	s.transition(PhaseCancelled)
	s.discardPending()

	confirmed := s.confirmed()
	var returned int64
	for _, p := range confirmed {
		if s.refund(p) {
			returned += p.Stake
		}
	}

	msg := reason
	if returned > 0 {
		msg = fmt.Sprintf("%s %d credits refunded to %s.", reason, returned, plural(len(confirmed), "player"))
	}
	s.broadcast(msg, "")
	s.logger.Info().Str("reason", reason).Int64("refunded", returned).Msg("Session cancelled")

	if len(confirmed) > 0 {
		s.record("cancelled", stakeRecords(confirmed, refunded))
	}
}

// fail handles a broken invariant: it is logged loudly and the session is
// cancelled with full refunds. Other rooms are unaffected.
func (s *Session) fail(err error, what string) {
	s.logger.Error().Err(err).Str("phase", string(s.phase)).Msg(what)
	s.cancel("Something went wrong with this game. It was cancelled.")
}

func (s *Session) add(p *Participant) {
	s.participants[p.UserID] = p
	s.order = append(s.order, p.UserID)
}

func (s *Session) remove(p *Participant) {
	if s.participants[p.UserID] != p {
		return
	}
	delete(s.participants, p.UserID)
	for i, id := range s.order {
		if id == p.UserID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
}

// discardPending drops every reservation still waiting for the ledger
func (s *Session) discardPending() {
	for _, p := range s.all() {
		if p.State == Pending {
			s.logger.Debug().Str("user_id", p.UserID).Msg("Discarding pending reservation")
			s.remove(p)
		}
	}
}

func (s *Session) all() []*Participant {
	out := make([]*Participant, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.participants[id])
	}
	return out
}

func (s *Session) confirmed() []*Participant {
	var out []*Participant
	for _, id := range s.order {
		if p := s.participants[id]; p.State == Confirmed {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) pot() int64 {
	var total int64
	for _, p := range s.confirmed() {
		total += p.Stake
	}
	return total
}

func (s *Session) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.cfg.LedgerTimeout)
}

func (s *Session) broadcast(content, media string) {
	ctx, cancel := s.opContext()
	defer cancel()
	msg := Message{Sender: s.cfg.BotName, Content: content, Media: media}
	if err := s.e.transport.Broadcast(ctx, s.Room, msg); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to broadcast message")
	}
}

func (s *Session) notify(userID, content string) {
	s.e.notify(s.Room, userID, content)
}

// credit pays amount to p and logs the transaction. A failed credit is an
// error for the operator; it is reported once and not retried.
func (s *Session) credit(p *Participant, amount int64, kind ledger.Kind, note string) bool {
	if amount <= 0 {
		return false
	}
	ctx, cancel := s.opContext()
	defer cancel()
	if err := s.e.ledger.Credit(ctx, p.UserID, amount); err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", p.UserID).
			Int64("amount", amount).
			Str("kind", string(kind)).
			Msg("Ledger credit failed")
		return false
	}
	s.e.logTransaction(ledger.Transaction{
		UserID: p.UserID,
		Amount: amount,
		Kind:   kind,
		Note:   note,
		Time:   s.e.clock.Now(),
	})
	return true
}

// refund returns a confirmed stake exactly once
func (s *Session) refund(p *Participant) bool {
	if p.State != Confirmed || p.settled {
		return false
	}
	p.settled = true
	return s.credit(p, p.Stake, ledger.KindRefund, s.note("refund"))
}

// compensate reverses a debit that completed after its reservation was
// discarded. It only reads immutable participant fields and may run off
// the actor.
func (s *Session) compensate(p *Participant) {
	s.logger.Warn().
		Str("user_id", p.UserID).
		Int64("amount", p.Stake).
		Msg("Debit completed for discarded reservation, compensating")
	s.credit(p, p.Stake, ledger.KindCompensation, s.note("compensation"))
}

func (s *Session) note(what string) string {
	return fmt.Sprintf("%s %s %s", strings.ToLower(s.Variant.Title()), s.ID, what)
}

// stakeRecords builds result lines; settle returns each participant's
// payout and result label
func stakeRecords(ps []*Participant, settle func(*Participant) (int64, string)) []StakeRecord {
	out := make([]StakeRecord, 0, len(ps))
	for _, p := range ps {
		amount, result := settle(p)
		out = append(out, StakeRecord{
			UserID:   p.UserID,
			Name:     p.Name,
			Category: string(p.Category),
			Stake:    p.Stake,
			Payout:   amount,
			Result:   result,
		})
	}
	return out
}

func refunded(p *Participant) (int64, string) {
	return p.Stake, "refund"
}

// record hands the finished game to the recorder without waiting for it
func (s *Session) record(result string, stakes []StakeRecord) {
	gr := GameResult{
		SessionID: s.ID,
		Room:      s.Room,
		Variant:   s.Variant,
		Outcome:   result,
		Stakes:    stakes,
		StartedAt: s.startedAt,
		EndedAt:   s.e.clock.Now(),
	}
	for _, st := range stakes {
		gr.TotalStakes += st.Stake
		gr.TotalPayout += st.Payout
	}
	s.e.recordResult(s.logger, gr)
}

func (s *Session) remaining() time.Duration {
	if s.deadline.IsZero() {
		return 0
	}
	d := s.deadline.Sub(s.e.clock.Now())
	if d < 0 {
		return 0
	}
	return d
}

func (s *Session) publish() {
	sum := SessionSummary{
		ID:        s.ID,
		Room:      s.Room,
		Variant:   s.Variant,
		Phase:     s.phase,
		Round:     s.round,
		Deadline:  s.deadline,
		Stake:     s.stake,
		Initiator: s.Initiator.ID,
	}
	for _, p := range s.all() {
		sum.Participants = append(sum.Participants, ParticipantSummary{
			UserID:   p.UserID,
			Name:     p.Name,
			Stake:    p.Stake,
			State:    p.State.String(),
			Category: string(p.Category),
			Active:   p.Active,
		})
	}
	s.summary.Store(&sum)
}

func (s *Session) statusText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", s.Variant.Title(), phaseLabel(s.phase))
	if s.phase == PhaseRoundActive || s.phase == PhaseRoundResolving {
		fmt.Fprintf(&b, ", round %d", s.round)
	}
	if left := s.remaining(); left > 0 {
		fmt.Fprintf(&b, ", %s left", formatSeconds(left))
	}
	if s.Variant == Elimination {
		fmt.Fprintf(&b, ", stake %d", s.stake)
	}
	fmt.Fprintf(&b, ", pot %d", s.pot())

	ps := s.all()
	if len(ps) == 0 {
		b.WriteString(". Nobody has joined yet.")
		return b.String()
	}
	b.WriteString(".")
	for _, p := range ps {
		b.WriteString("\n  ")
		b.WriteString(p.Name)
		switch {
		case p.State == Pending:
			b.WriteString(" (pending)")
		case s.Variant == Comparison:
			fmt.Fprintf(&b, " %d on %s", p.Stake, p.Category)
		case s.phase == PhaseLobby:
		case !p.Active:
			fmt.Fprintf(&b, " (out in round %d)", p.EliminatedRound)
		case p.HasCard:
			fmt.Fprintf(&b, " drew %s", p.Card)
		default:
			b.WriteString(" waiting to draw")
		}
	}
	return b.String()
}

func phaseLabel(p Phase) string {
	switch p {
	case PhaseLobby:
		return "waiting for players"
	case PhaseRoundActive:
		return "drawing"
	case PhaseRoundResolving:
		return "between rounds"
	case PhaseBetting:
		return "taking bets"
	case PhaseDealing:
		return "dealing"
	case PhaseFinished:
		return "finished"
	default:
		return "cancelled"
	}
}

func formatSeconds(d time.Duration) string {
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%ds", secs)
}

func names(ps []*Participant) string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Name
	}
	return strings.Join(out, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
