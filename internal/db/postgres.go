// Package db persists the ledger's daily rollover row across restarts.
// PostgreSQL is optional here (spec §6: "implementers may persist a small
// rollover file if desired") — the engine runs fine with no store (nil
// *PostgresStore), it just loses counters across a restart within the
// same local day.
package db

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(ctx context.Context, connStr string, log *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	log.Info("connected to rollover store")
	return &PostgresStore{pool: pool, log: log}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the single rollover table if it doesn't exist yet.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	if _, err := s.pool.Exec(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema migration: %w", err)
	}
	return nil
}

// RolloverRow is the counter set the ledger needs restored after a restart
// within the same local day (spec §3's daily_pnl/daily_trade_count).
type RolloverRow struct {
	Day                 string
	DailyPnL            float64
	DailyTradeCount     int
	ConsecutiveFailures int
}

// SaveRollover upserts the current day's counters. Called after every
// processed submission outcome; cheap enough at the engine's trade rate
// that no batching is needed.
func (s *PostgresStore) SaveRollover(ctx context.Context, row RolloverRow) error {
	sql := `
		INSERT INTO ledger_rollover (day, daily_pnl, daily_trade_count, consecutive_failures, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (day) DO UPDATE
		SET daily_pnl = EXCLUDED.daily_pnl,
		    daily_trade_count = EXCLUDED.daily_trade_count,
		    consecutive_failures = EXCLUDED.consecutive_failures,
		    updated_at = NOW();
	`
	_, err := s.pool.Exec(ctx, sql, row.Day, row.DailyPnL, row.DailyTradeCount, row.ConsecutiveFailures)
	return err
}

// LoadRollover fetches the persisted row for day, if any. ok is false with
// a nil error when no row exists yet for that day — a fresh day, or a
// fresh deployment.
func (s *PostgresStore) LoadRollover(ctx context.Context, day string) (row RolloverRow, ok bool, err error) {
	sql := `SELECT day, daily_pnl, daily_trade_count, consecutive_failures FROM ledger_rollover WHERE day = $1`
	err = s.pool.QueryRow(ctx, sql, day).Scan(&row.Day, &row.DailyPnL, &row.DailyTradeCount, &row.ConsecutiveFailures)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RolloverRow{}, false, nil
		}
		return RolloverRow{}, false, err
	}
	return row, true, nil
}
