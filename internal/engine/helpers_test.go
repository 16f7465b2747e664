package engine

import (
	"context"
	"errors"
	"io"
	rand "math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lox/roomwager/internal/cards"
	"github.com/lox/roomwager/internal/ledger"
	"github.com/lox/roomwager/internal/randutil"
)

const room = "lounge"

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard).Level(zerolog.Disabled)
}

type sent struct {
	room   string
	userID string
	msg    Message
}

type fakeTransport struct {
	mu         sync.Mutex
	broadcasts []sent
	notices    []sent
}

func (f *fakeTransport) Broadcast(_ context.Context, room string, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, sent{room: room, msg: msg})
	return nil
}

func (f *fakeTransport) Notify(_ context.Context, room, userID string, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, sent{room: room, userID: userID, msg: msg})
	return nil
}

// feed returns every broadcast in room joined by newlines
func (f *fakeTransport) feed(room string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lines []string
	for _, b := range f.broadcasts {
		if b.room == room {
			lines = append(lines, b.msg.Content)
		}
	}
	return strings.Join(lines, "\n")
}

func (f *fakeTransport) media() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, b := range f.broadcasts {
		if b.msg.Media != "" {
			out = append(out, b.msg.Media)
		}
	}
	return out
}

func (f *fakeTransport) noticesFor(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.notices {
		if n.userID == userID {
			out = append(out, n.msg.Content)
		}
	}
	return out
}

type fakeRecorder struct {
	mu      sync.Mutex
	results []GameResult
}

func (f *fakeRecorder) RecordGameResult(_ context.Context, r GameResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
	return nil
}

func (f *fakeRecorder) all() []GameResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GameResult(nil), f.results...)
}

// recordingLedger remembers every credit so tests can assert refunds
// happened exactly once
type recordingLedger struct {
	*ledger.Memory
	mu      sync.Mutex
	credits map[string][]int64
}

func newRecordingLedger(opening int64) *recordingLedger {
	return &recordingLedger{Memory: ledger.NewMemory(opening), credits: make(map[string][]int64)}
}

func (r *recordingLedger) Credit(ctx context.Context, userID string, amount int64) error {
	r.mu.Lock()
	r.credits[userID] = append(r.credits[userID], amount)
	r.mu.Unlock()
	return r.Memory.Credit(ctx, userID, amount)
}

func (r *recordingLedger) creditsFor(userID string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.credits[userID]...)
}

func (r *recordingLedger) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := r.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

// gatedLedger holds every confirmation open until the test sends on
// release. With gateBalance it blocks in the balance read and honours
// cancellation, so a discarded reservation never reaches Debit. Otherwise
// it blocks inside Debit, commits regardless, and then reports its
// context's state, as a remote store that already committed would.
type gatedLedger struct {
	*recordingLedger
	gateBalance bool
	entered     chan string
	release     chan struct{}
}

func newGatedLedger(opening int64, gateBalance bool) *gatedLedger {
	return &gatedLedger{
		recordingLedger: newRecordingLedger(opening),
		gateBalance:     gateBalance,
		entered:         make(chan string, 16),
		release:         make(chan struct{}, 16),
	}
}

func (g *gatedLedger) GetBalance(ctx context.Context, userID string) (int64, error) {
	if g.gateBalance {
		g.entered <- userID
		select {
		case <-g.release:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return g.Memory.GetBalance(ctx, userID)
}

func (g *gatedLedger) Debit(ctx context.Context, userID string, amount int64) error {
	if g.gateBalance {
		return g.Memory.Debit(ctx, userID, amount)
	}
	g.entered <- userID
	<-g.release
	if err := g.Memory.Debit(context.Background(), userID, amount); err != nil {
		return err
	}
	return ctx.Err()
}

// failingLedger refuses every debit with a transport error
type failingLedger struct {
	*recordingLedger
	fail map[string]bool
}

func (f *failingLedger) Debit(ctx context.Context, userID string, amount int64) error {
	if f.fail[userID] {
		return errors.New("connection refused")
	}
	return f.Memory.Debit(ctx, userID, amount)
}

func (g *gatedLedger) waitEntered(t *testing.T, userID string) {
	t.Helper()
	select {
	case got := <-g.entered:
		require.Equal(t, userID, got)
	case <-time.After(5 * time.Second):
		t.Fatalf("debit for %s never started", userID)
	}
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	clock     *quartz.Mock
	transport *fakeTransport
	recorder  *fakeRecorder
	engine    *Engine
}

func newHarness(t *testing.T, l ledger.Ledger, opts ...Option) *harness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	h := &harness{
		t:         t,
		ctx:       ctx,
		clock:     quartz.NewMock(t),
		transport: &fakeTransport{},
		recorder:  &fakeRecorder{},
	}
	all := append([]Option{
		WithClock(h.clock),
		WithRand(randutil.New(1)),
		WithRecorder(h.recorder),
	}, opts...)
	h.engine = New(testLogger(), l, h.transport, all...)
	t.Cleanup(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.engine.Close(closeCtx)
	})
	return h
}

func stackedDeck(codes ...string) Option {
	return WithDeckFactory(func(*rand.Rand) *cards.Deck {
		draws := make([]cards.Card, len(codes))
		for i, c := range codes {
			draws[i] = cards.MustParse(c)
		}
		return cards.Stacked(draws...)
	})
}

func (h *harness) send(userID, text string) error {
	return h.sendAs(userID, RoleMember, text)
}

func (h *harness) sendAs(userID string, role Role, text string) error {
	return h.engine.Handle(h.ctx, Command{Room: room, UserID: userID, Name: userID, Role: role, Text: text})
}

func (h *harness) session() *Session {
	h.t.Helper()
	s := h.engine.Registry().Get(room)
	require.NotNil(h.t, s, "expected a live session")
	return s
}

// sync waits for every ledger confirmation to report back and for the actor
// to apply everything queued so far
func (h *harness) sync(s *Session) {
	h.t.Helper()
	s.inflight.Wait()
	err := s.call(h.ctx, func() error { return nil })
	if err != nil && !errors.Is(err, ErrNoSession) {
		require.NoError(h.t, err)
	}
}

// fire advances the mock clock to the next deadline and waits for the
// session to act on it
func (h *harness) fire(s *Session) {
	h.t.Helper()
	_, w := h.clock.AdvanceNext()
	w.MustWait(h.ctx)
	h.sync(s)
}

func (h *harness) waitDone(s *Session) {
	h.t.Helper()
	select {
	case <-s.Done():
	case <-h.ctx.Done():
		h.t.Fatal("session never stopped")
	}
}

func (h *harness) summary(s *Session) SessionSummary {
	h.sync(s)
	return s.Summary()
}

func confirmedIDs(sum SessionSummary) []string {
	var out []string
	for _, p := range sum.Participants {
		if p.State == Confirmed.String() {
			out = append(out, p.UserID)
		}
	}
	return out
}
