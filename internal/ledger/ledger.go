// Package ledger defines the credit ledger the game engine settles against
// and ships an in-memory implementation for development and tests.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInsufficientFunds is returned when a debit exceeds the balance
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInvalidAmount is returned for non-positive debit or credit amounts
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Kind labels a transaction log entry
type Kind string

const (
	KindStake        Kind = "stake"
	KindPayout       Kind = "payout"
	KindRefund       Kind = "refund"
	KindPush         Kind = "push"
	KindCompensation Kind = "compensation"
)

// Transaction is a log record of one ledger movement. Amount is negative for
// debits and positive for credits.
type Transaction struct {
	UserID string    `json:"user_id"`
	Amount int64     `json:"amount"`
	Kind   Kind      `json:"kind"`
	Note   string    `json:"note"`
	Time   time.Time `json:"time"`
}

// Ledger is the persistent credit store. Implementations must make Debit
// atomic: it either moves the full amount or fails with ErrInsufficientFunds.
type Ledger interface {
	GetBalance(ctx context.Context, userID string) (int64, error)
	Debit(ctx context.Context, userID string, amount int64) error
	Credit(ctx context.Context, userID string, amount int64) error
	LogTransaction(ctx context.Context, tx Transaction) error
}

// CheckAndDebit verifies the balance covers amount and then debits it. It
// stops before debiting when ctx has been cancelled during the balance read,
// so an abandoned reservation never moves funds. Once the debit is issued it
// runs on a context that ctx's cancellation cannot reach, bounded by
// timeout, so a debit the store committed is never reported as cancelled.
func CheckAndDebit(ctx context.Context, l Ledger, userID string, amount int64, timeout time.Duration) error {
	balance, err := l.GetBalance(ctx, userID)
	if err != nil {
		return fmt.Errorf("get balance: %w", err)
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	debitCtx := context.WithoutCancel(ctx)
	if timeout > 0 {
		var cancel context.CancelFunc
		debitCtx, cancel = context.WithTimeout(debitCtx, timeout)
		defer cancel()
	}
	if err := l.Debit(debitCtx, userID, amount); err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	return nil
}
