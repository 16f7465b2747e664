package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lox/roomwager/internal/ledger"
)

// Ledger keeps balances in the balances table. Users without a row start
// with the opening balance. Debits are a single conditional UPDATE, so a
// balance can never go negative.
type Ledger struct {
	db      *DB
	opening int64
}

// NewLedger creates a Postgres-backed ledger
func NewLedger(db *DB, openingBalance int64) *Ledger {
	return &Ledger{db: db, opening: openingBalance}
}

var _ ledger.Ledger = (*Ledger)(nil)

func (l *Ledger) ensure(ctx context.Context, userID string) error {
	_, err := l.db.Pool.Exec(ctx,
		`INSERT INTO balances (user_id, balance) VALUES ($1, $2) ON CONFLICT (user_id) DO NOTHING`,
		userID, l.opening,
	)
	if err != nil {
		return fmt.Errorf("ensure balance: %w", err)
	}
	return nil
}

func (l *Ledger) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := l.db.Pool.QueryRow(ctx,
		`SELECT balance FROM balances WHERE user_id = $1`,
		userID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return l.opening, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (l *Ledger) Debit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	if err := l.ensure(ctx, userID); err != nil {
		return err
	}
	tag, err := l.db.Pool.Exec(ctx,
		`UPDATE balances SET balance = balance - $2, updated_at = now()
		 WHERE user_id = $1 AND balance >= $2`,
		userID, amount,
	)
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrInsufficientFunds
	}
	return nil
}

func (l *Ledger) Credit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	_, err := l.db.Pool.Exec(ctx,
		`INSERT INTO balances (user_id, balance) VALUES ($1, $2::bigint + $3::bigint)
		 ON CONFLICT (user_id) DO UPDATE SET balance = balances.balance + $3::bigint, updated_at = now()`,
		userID, l.opening, amount,
	)
	if err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	return nil
}

func (l *Ledger) LogTransaction(ctx context.Context, tx ledger.Transaction) error {
	_, err := l.db.Pool.Exec(ctx,
		`INSERT INTO ledger_transactions (user_id, amount, kind, note, created_at) VALUES ($1, $2, $3, $4, $5)`,
		tx.UserID, tx.Amount, string(tx.Kind), tx.Note, tx.Time,
	)
	if err != nil {
		return fmt.Errorf("log transaction: %w", err)
	}
	return nil
}

// Transactions returns the most recent log entries for userID, newest first
func (l *Ledger) Transactions(ctx context.Context, userID string, limit int) ([]ledger.Transaction, error) {
	rows, err := l.db.Pool.Query(ctx,
		`SELECT user_id, amount, kind, note, created_at FROM ledger_transactions
		 WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		var kind string
		if err := rows.Scan(&tx.UserID, &tx.Amount, &kind, &tx.Note, &tx.Time); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = ledger.Kind(kind)
		out = append(out, tx)
	}
	return out, rows.Err()
}
