package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/lox/roomwager/internal/config"
	"github.com/lox/roomwager/internal/engine"
	"github.com/lox/roomwager/internal/ledger"
	"github.com/lox/roomwager/internal/postgres"
	"github.com/lox/roomwager/internal/redisledger"
	"github.com/lox/roomwager/internal/results"
)

// stack holds the storage backends selected by configuration
type stack struct {
	ledger   ledger.Ledger
	recorder engine.Recorder
	store    *postgres.ResultStore
	file     string

	closers []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStack connects the ledger and result stores named in cfg
func openStack(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stack, error) {
	s := &stack{file: cfg.Results.File}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	dbs := make(map[string]*postgres.DB)
	openDB := func(dsn string) (*postgres.DB, error) {
		if db, ok := dbs[dsn]; ok {
			return db, nil
		}
		db, err := postgres.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		if err := db.Migrate(ctx); err != nil {
			return nil, err
		}
		dbs[dsn] = db
		return db, nil
	}

	switch cfg.Ledger.Driver {
	case config.DriverPostgres:
		db, err := openDB(cfg.Ledger.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres ledger: %w", err)
		}
		s.ledger = postgres.NewLedger(db, cfg.Ledger.StartingBalance)
	case config.DriverRedis:
		rdb, err := redisledger.Dial(ctx, cfg.Ledger.DSN)
		if err != nil {
			return nil, fmt.Errorf("redis ledger: %w", err)
		}
		s.closers = append(s.closers, func() { _ = rdb.Close() })
		s.ledger = redisledger.New(rdb, cfg.Ledger.StartingBalance)
	case config.DriverMemory:
		mem := ledger.NewMemory(cfg.Ledger.StartingBalance)
		s.ledger = mem
		if path := cfg.Ledger.Snapshot; path != "" {
			n, err := mem.LoadSnapshot(path)
			if err != nil {
				return nil, err
			}
			logger.Info().Str("path", path).Int("balances", n).Msg("Restored ledger snapshot")
			s.closers = append(s.closers, func() {
				if err := mem.SaveSnapshot(path); err != nil {
					logger.Error().Err(err).Str("path", path).Msg("Failed to save ledger snapshot")
					return
				}
				logger.Info().Str("path", path).Msg("Saved ledger snapshot")
			})
		} else {
			logger.Warn().Msg("Using in-memory ledger without a snapshot, balances are lost on restart")
		}
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
	}
	logger.Info().Str("driver", cfg.Ledger.Driver).Int64("starting_balance", cfg.Ledger.StartingBalance).Msg("Ledger ready")

	var recorders results.Multi
	if cfg.Results.File != "" {
		f, err := results.OpenFile(cfg.Results.File)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() {
			if err := f.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close results file")
			}
		})
		recorders = append(recorders, f)
		logger.Info().Str("path", cfg.Results.File).Msg("Recording results to file")
	}
	if cfg.Results.Postgres {
		db, err := openDB(cfg.ResultsDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres results: %w", err)
		}
		s.store = postgres.NewResultStore(db)
		recorders = append(recorders, s.store)
		logger.Info().Msg("Recording results to postgres")
	}
	if len(recorders) > 0 {
		s.recorder = recorders
	}

	ok = true
	return s, nil
}

// transactionLister is implemented by ledgers that can replay their log
type transactionLister interface {
	recent(ctx context.Context, userID string, limit int) ([]ledger.Transaction, error)
}

type postgresTransactions struct{ l *postgres.Ledger }

func (p postgresTransactions) recent(ctx context.Context, userID string, limit int) ([]ledger.Transaction, error) {
	return p.l.Transactions(ctx, userID, limit)
}

type redisTransactions struct{ l *redisledger.Ledger }

// The redis log is shared by all users and stored oldest first
func (r redisTransactions) recent(ctx context.Context, userID string, limit int) ([]ledger.Transaction, error) {
	all, err := r.l.Transactions(ctx, int64(limit)*10)
	if err != nil {
		return nil, err
	}
	var out []ledger.Transaction
	for i := len(all) - 1; i >= 0; i-- {
		if tx := all[i]; tx.UserID == userID {
			out = append(out, tx)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *stack) transactions() (transactionLister, error) {
	switch l := s.ledger.(type) {
	case *postgres.Ledger:
		return postgresTransactions{l}, nil
	case *redisledger.Ledger:
		return redisTransactions{l}, nil
	default:
		return nil, errors.New("the configured ledger does not keep a transaction log")
	}
}
