package ledger

import (
	"context"
	"sync"
)

// Memory is a process-local Ledger. Unknown users start with the configured
// opening balance.
type Memory struct {
	mu       sync.Mutex
	opening  int64
	balances map[string]int64
	log      []Transaction
}

// NewMemory creates an in-memory ledger
func NewMemory(openingBalance int64) *Memory {
	return &Memory{
		opening:  openingBalance,
		balances: make(map[string]int64),
	}
}

// SetBalance overrides a user's balance
func (m *Memory) SetBalance(userID string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = amount
}

func (m *Memory) balance(userID string) int64 {
	if b, ok := m.balances[userID]; ok {
		return b
	}
	return m.opening
}

func (m *Memory) GetBalance(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance(userID), nil
}

func (m *Memory) Debit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.balance(userID)
	if b < amount {
		return ErrInsufficientFunds
	}
	m.balances[userID] = b - amount
	return nil
}

func (m *Memory) Credit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] = m.balance(userID) + amount
	return nil
}

func (m *Memory) LogTransaction(ctx context.Context, tx Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, tx)
	return nil
}

// Transactions returns a copy of the transaction log
func (m *Memory) Transactions() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transaction, len(m.log))
	copy(out, m.log)
	return out
}
