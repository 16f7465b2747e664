package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuplicateJoinWhilePendingIsRejected(t *testing.T) {
	t.Parallel()
	l := newGatedLedger(1000, true)
	h := newHarness(t, l)

	require.NoError(t, h.send("alice", "start"))
	l.waitEntered(t, "alice")
	require.NoError(t, h.send("bob", "join"))
	l.waitEntered(t, "bob")

	// both debits are still in flight
	err := h.send("bob", "join")
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "still being processed")
	assert.ErrorIs(t, h.send("alice", "join"), ErrDuplicate)

	s := h.session()
	for _, p := range s.Summary().Participants {
		assert.Equal(t, Pending.String(), p.State, p.UserID)
	}

	l.release <- struct{}{}
	l.release <- struct{}{}
	h.sync(s)

	assert.ElementsMatch(t, []string{"alice", "bob"}, confirmedIDs(s.Summary()))
	assert.Equal(t, int64(900), l.balance(t, "alice"))
	assert.Equal(t, int64(900), l.balance(t, "bob"), "charged exactly once")
	assert.Contains(t, h.transport.feed(room), "bob joined for 100 credits.")
}

func TestCancelledPendingReservationIsNeverCredited(t *testing.T) {
	t.Parallel()
	l := newGatedLedger(1000, true)
	h := newHarness(t, l)

	require.NoError(t, h.send("alice", "start"))
	l.waitEntered(t, "alice")
	l.release <- struct{}{}
	s := h.session()
	h.sync(s)

	require.NoError(t, h.send("bob", "join"))
	l.waitEntered(t, "bob")

	require.NoError(t, h.sendAs("mod", RoleModerator, "disable"))
	h.waitDone(s)

	assert.Equal(t, []int64{100}, l.creditsFor("alice"), "confirmed stake refunded once")
	assert.Empty(t, l.creditsFor("bob"), "pending stake never credited")
	assert.Equal(t, int64(1000), l.balance(t, "alice"))
	assert.Equal(t, int64(1000), l.balance(t, "bob"))
	assert.Empty(t, h.transport.noticesFor("bob"))
}

func TestLateDebitIsCompensatedOnce(t *testing.T) {
	t.Parallel()
	l := newGatedLedger(1000, false)
	h := newHarness(t, l)

	require.NoError(t, h.send("alice", "start baccarat"))
	require.NoError(t, h.send("bob", "bet player 100"))
	l.waitEntered(t, "bob")

	// betting closes while bob's debit is still outstanding; the store
	// commits it anyway and must not see the discard as a cancellation
	s := h.session()
	require.NoError(t, h.send("alice", "deal"))
	assert.Contains(t, h.transport.feed(room), "No bets were placed")
	assert.Nil(t, h.engine.Registry().Get(room))

	l.release <- struct{}{}
	h.waitDone(s)

	assert.Equal(t, []int64{100}, l.creditsFor("bob"))
	assert.Equal(t, int64(1000), l.balance(t, "bob"))
}

func TestLeaveWhilePendingThenRejoin(t *testing.T) {
	t.Parallel()
	l := newGatedLedger(1000, false)
	h := newHarness(t, l)

	require.NoError(t, h.send("alice", "start baccarat"))
	require.NoError(t, h.send("bob", "bet banker 100"))
	l.waitEntered(t, "bob")
	require.NoError(t, h.send("bob", "leave"))

	// a fresh bet gets its own reservation; the first one's late debit is reversed
	require.NoError(t, h.send("bob", "bet tie 20"))
	l.waitEntered(t, "bob")
	l.release <- struct{}{}
	l.release <- struct{}{}

	s := h.session()
	h.sync(s)
	sum := s.Summary()
	require.Len(t, sum.Participants, 1)
	assert.Equal(t, "tie", sum.Participants[0].Category)
	assert.Equal(t, Confirmed.String(), sum.Participants[0].State)
	assert.Equal(t, []int64{100}, l.creditsFor("bob"))
	assert.Equal(t, int64(980), l.balance(t, "bob"))
}

func TestLedgerFailureDropsReservation(t *testing.T) {
	t.Parallel()
	l := &failingLedger{recordingLedger: newRecordingLedger(1000), fail: map[string]bool{"bob": true}}
	h := newHarness(t, l)

	require.NoError(t, h.send("alice", "start 100"))
	require.NoError(t, h.send("bob", "join"))
	s := h.session()
	h.sync(s)

	assert.Equal(t, []string{"alice"}, confirmedIDs(s.Summary()))
	require.Len(t, s.Summary().Participants, 1, "failed reservation is removed")
	assert.Equal(t, []string{"We couldn't reach the bank. Please try again."}, h.transport.noticesFor("bob"))
	assert.Empty(t, h.transport.noticesFor("alice"))
	assert.NotContains(t, h.transport.feed(room), "bob")
	assert.Equal(t, int64(1000), l.balance(t, "bob"))
	assert.Empty(t, l.creditsFor("bob"))

	// the failure is not fatal: the user may try again
	l.fail["bob"] = false
	require.NoError(t, h.send("bob", "join"))
	h.sync(s)
	assert.ElementsMatch(t, []string{"alice", "bob"}, confirmedIDs(s.Summary()))
}

func TestInsufficientFundsNotifiesOnlyRequester(t *testing.T) {
	t.Parallel()
	l := newRecordingLedger(1000)
	l.SetBalance("bob", 50)
	h := newHarness(t, l)

	require.NoError(t, h.send("alice", "start 100"))
	require.NoError(t, h.send("bob", "join"))
	s := h.session()
	h.sync(s)

	assert.Equal(t, []string{"alice"}, confirmedIDs(s.Summary()))
	assert.Equal(t, []string{"You don't have enough credits for a 100 stake."}, h.transport.noticesFor("bob"))
	assert.NotContains(t, h.transport.feed(room), "bob")
	assert.Equal(t, int64(50), l.balance(t, "bob"))
}

func TestStaleTimerIsIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(t, newRecordingLedger(1000))

	require.NoError(t, h.send("alice", "start baccarat"))
	s := h.session()

	var fired atomic.Bool
	require.NoError(t, s.call(h.ctx, func() error {
		s.arm(time.Second, func() { fired.Store(true) })
		s.epoch++ // the phase moved on while the timer was in flight
		return nil
	}))

	h.fire(s)
	assert.False(t, fired.Load())
	assert.Equal(t, PhaseBetting, h.summary(s).Phase)
}

func TestRegistryDestroyCancelsSession(t *testing.T) {
	t.Parallel()
	l := newRecordingLedger(1000)
	h := newHarness(t, l)

	require.NoError(t, h.send("alice", "start"))
	s := h.session()
	h.sync(s)

	assert.Same(t, s, h.engine.Registry().Destroy(room))
	assert.Nil(t, h.engine.Registry().Get(room))
	h.waitDone(s)
	assert.Equal(t, int64(1000), l.balance(t, "alice"))

	// a stale session can never release its successor
	require.NoError(t, h.send("bob", "start"))
	next := h.session()
	assert.False(t, h.engine.Registry().release(room, s))
	assert.Same(t, next, h.engine.Registry().Get(room))
	assert.Nil(t, h.engine.Registry().Destroy("elsewhere"))
}
