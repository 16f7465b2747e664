package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/roomwager/cmd/roomwager/shared"
	"github.com/lox/roomwager/internal/config"
	"github.com/lox/roomwager/internal/engine"
	"github.com/lox/roomwager/internal/ledger"
	"github.com/lox/roomwager/internal/results"
)

func TestOpenStackMemoryWithFileResults(t *testing.T) {
	cfg := config.Default()
	cfg.Ledger.StartingBalance = 250
	cfg.Results.File = filepath.Join(t.TempDir(), "results.jsonl")

	st, err := openStack(context.Background(), cfg, zerolog.New(io.Discard))
	require.NoError(t, err)

	mem, ok := st.ledger.(*ledger.Memory)
	require.True(t, ok, "memory driver should build a memory ledger")
	balance, err := mem.GetBalance(context.Background(), "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 250, balance)

	require.NotNil(t, st.recorder)
	require.NoError(t, st.recorder.RecordGameResult(context.Background(), engine.GameResult{
		SessionID: "s1",
		Room:      "lounge",
		Variant:   engine.Comparison,
		Outcome:   "banker",
	}))
	st.Close()

	got, err := results.ReadFile(cfg.Results.File)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SessionID)

	_, err = st.transactions()
	assert.Error(t, err, "memory ledger has no persistent log")
}

func TestOpenStackWithoutRecorders(t *testing.T) {
	st, err := openStack(context.Background(), config.Default(), zerolog.New(io.Discard))
	require.NoError(t, err)
	defer st.Close()
	assert.Nil(t, st.recorder)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, shared.ParseLevel("", false))
	assert.Equal(t, zerolog.WarnLevel, shared.ParseLevel("warn", false))
	assert.Equal(t, zerolog.InfoLevel, shared.ParseLevel("loud", false))
	assert.Equal(t, zerolog.DebugLevel, shared.ParseLevel("error", true))
}

func TestOpenStackMemorySnapshot(t *testing.T) {
	cfg := config.Default()
	cfg.Ledger.Snapshot = filepath.Join(t.TempDir(), "balances.json")
	ctx := context.Background()

	st, err := openStack(ctx, cfg, zerolog.New(io.Discard))
	require.NoError(t, err)
	require.NoError(t, st.ledger.Debit(ctx, "alice", 400))
	st.Close()

	st, err = openStack(ctx, cfg, zerolog.New(io.Discard))
	require.NoError(t, err)
	defer st.Close()
	balance, err := st.ledger.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 600, balance)
}
