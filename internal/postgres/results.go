package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lox/roomwager/internal/engine"
)

// ResultStore persists finished games to the game_results table
type ResultStore struct {
	db *DB
}

// NewResultStore creates a result store
func NewResultStore(db *DB) *ResultStore {
	return &ResultStore{db: db}
}

var _ engine.Recorder = (*ResultStore)(nil)

func (r *ResultStore) RecordGameResult(ctx context.Context, result engine.GameResult) error {
	stakes, err := json.Marshal(result.Stakes)
	if err != nil {
		return fmt.Errorf("encode stakes: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx,
		`INSERT INTO game_results
		 (session_id, room, variant, outcome, total_stakes, total_payout, stakes, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
		 ON CONFLICT (session_id) DO NOTHING`,
		result.SessionID, result.Room, string(result.Variant), result.Outcome,
		result.TotalStakes, result.TotalPayout, string(stakes), result.StartedAt, result.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("record game result: %w", err)
	}
	return nil
}

// Recent returns the latest results for room, newest first
func (r *ResultStore) Recent(ctx context.Context, room string, limit int) ([]engine.GameResult, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT session_id, room, variant, outcome, total_stakes, total_payout, stakes, started_at, ended_at
		 FROM game_results WHERE room = $1 ORDER BY ended_at DESC LIMIT $2`,
		room, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var out []engine.GameResult
	for rows.Next() {
		var (
			gr      engine.GameResult
			variant string
			stakes  []byte
		)
		if err := rows.Scan(&gr.SessionID, &gr.Room, &variant, &gr.Outcome,
			&gr.TotalStakes, &gr.TotalPayout, &stakes, &gr.StartedAt, &gr.EndedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		gr.Variant = engine.Variant(variant)
		if err := json.Unmarshal(stakes, &gr.Stakes); err != nil {
			return nil, fmt.Errorf("decode stakes: %w", err)
		}
		out = append(out, gr)
	}
	return out, rows.Err()
}
