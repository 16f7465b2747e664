// Package redisledger implements the engine ledger on Redis. Balance checks
// and debits run as one Lua script so concurrent debits cannot overdraw.
package redisledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/lox/roomwager/internal/ledger"
)

const defaultPrefix = "roomwager"

// maxLogEntries bounds the transaction log list
const maxLogEntries = 10000

// debitScript returns the new balance, or -1 when funds are short.
// KEYS[1] balance key; ARGV[1] amount; ARGV[2] opening balance.
var debitScript = redis.NewScript(`
local balance = tonumber(redis.call('GET', KEYS[1]) or ARGV[2])
local amount = tonumber(ARGV[1])
if balance < amount then
	return -1
end
redis.call('SET', KEYS[1], balance - amount)
return balance - amount
`)

var creditScript = redis.NewScript(`
local balance = tonumber(redis.call('GET', KEYS[1]) or ARGV[2])
local updated = balance + tonumber(ARGV[1])
redis.call('SET', KEYS[1], updated)
return updated
`)

// Ledger stores balances as plain integer keys
type Ledger struct {
	rdb     redis.UniversalClient
	prefix  string
	opening int64
}

// Option configures a Ledger
type Option func(*Ledger)

// WithPrefix namespaces every key
func WithPrefix(prefix string) Option {
	return func(l *Ledger) {
		l.prefix = prefix
	}
}

// New creates a ledger on rdb. Users without a key start with openingBalance.
func New(rdb redis.UniversalClient, openingBalance int64, opts ...Option) *Ledger {
	l := &Ledger{rdb: rdb, prefix: defaultPrefix, opening: openingBalance}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dial connects to the Redis server at url (redis://host:port/db)
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

var _ ledger.Ledger = (*Ledger)(nil)

func (l *Ledger) balanceKey(userID string) string {
	return l.prefix + ":balance:" + userID
}

func (l *Ledger) logKey() string {
	return l.prefix + ":transactions"
}

func (l *Ledger) GetBalance(ctx context.Context, userID string) (int64, error) {
	v, err := l.rdb.Get(ctx, l.balanceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return l.opening, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", v, err)
	}
	return n, nil
}

func (l *Ledger) Debit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	n, err := debitScript.Run(ctx, l.rdb, []string{l.balanceKey(userID)}, amount, l.opening).Int64()
	if err != nil {
		return fmt.Errorf("debit: %w", err)
	}
	if n < 0 {
		return ledger.ErrInsufficientFunds
	}
	return nil
}

func (l *Ledger) Credit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ledger.ErrInvalidAmount
	}
	if err := creditScript.Run(ctx, l.rdb, []string{l.balanceKey(userID)}, amount, l.opening).Err(); err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	return nil
}

// LogTransaction appends tx to a capped list
func (l *Ledger) LogTransaction(ctx context.Context, tx ledger.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}
	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, l.logKey(), data)
		pipe.LTrim(ctx, l.logKey(), -maxLogEntries, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("log transaction: %w", err)
	}
	return nil
}

// Transactions returns up to limit of the most recent log entries, oldest first
func (l *Ledger) Transactions(ctx context.Context, limit int64) ([]ledger.Transaction, error) {
	raw, err := l.rdb.LRange(ctx, l.logKey(), -limit, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read transactions: %w", err)
	}
	out := make([]ledger.Transaction, 0, len(raw))
	for _, r := range raw {
		var tx ledger.Transaction
		if err := json.Unmarshal([]byte(r), &tx); err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, nil
}
