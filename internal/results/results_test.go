package results

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/roomwager/internal/engine"
)

func TestFileRecorderAppends(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "results.jsonl")
	ctx := context.Background()

	rec, err := OpenFile(path)
	require.NoError(t, err)
	first := engine.GameResult{SessionID: "game_1", Room: "lounge", Variant: engine.Elimination, Outcome: "alice", TotalStakes: 300, TotalPayout: 270, EndedAt: time.Unix(100, 0).UTC()}
	require.NoError(t, rec.RecordGameResult(ctx, first))
	require.NoError(t, rec.Close())

	// reopening appends rather than truncating
	rec, err = OpenFile(path)
	require.NoError(t, err)
	second := engine.GameResult{SessionID: "game_2", Room: "lounge", Variant: engine.Comparison, Outcome: "tie",
		Stakes: []engine.StakeRecord{{UserID: "bob", Category: "tie", Stake: 10, Payout: 10, Result: "win"}}}
	require.NoError(t, rec.RecordGameResult(ctx, second))
	require.NoError(t, rec.Close())

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "game_1", got[0].SessionID)
	assert.True(t, first.EndedAt.Equal(got[0].EndedAt))
	assert.Equal(t, second.Stakes, got[1].Stakes)
}

type failingRecorder struct{ calls int }

func (f *failingRecorder) RecordGameResult(context.Context, engine.GameResult) error {
	f.calls++
	return errors.New("unavailable")
}

func TestMultiTriesEveryRecorder(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "results.jsonl")
	file, err := OpenFile(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })

	bad := &failingRecorder{}
	m := Multi{bad, file}

	err = m.RecordGameResult(context.Background(), engine.GameResult{SessionID: "game_3"})
	assert.ErrorContains(t, err, "unavailable")
	assert.Equal(t, 1, bad.calls)

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 1, "later recorders still run after a failure")
}
