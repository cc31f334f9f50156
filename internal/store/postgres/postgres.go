// Package postgres is the production store.Store backend, a Postgres
// database reached through lib/pq. Shape modeled on haasonsaas-nexus's
// CockroachStore: a bounded *sql.DB, a DSN constructor, a ping on open.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/agentplexus/reflectcall/internal/store/sqlcommon"
)

// PoolConfig bounds the shared connection pool (spec §5: "recommend pool
// size ≈ 2 × expected concurrent-call ceiling, capped ≪ provider limit").
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPoolConfig returns sane defaults for a single-process deployment.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// Open connects to Postgres at dsn, applies pool bounds, pings, and returns
// a store.Store. One *sql.DB per process; do not call Open once per worker
// (spec §5's "deployment hazard").
func Open(dsn string, cfg PoolConfig) (*sqlcommon.Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return sqlcommon.New(db, sqlcommon.Postgres), nil
}

// Migrate applies the shared schema. Idempotent (CREATE TABLE/INDEX IF NOT
// EXISTS), safe to call on every startup.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("postgres: open: %w", err)
	}
	defer db.Close()
	if _, err := db.ExecContext(ctx, sqlcommon.Schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
