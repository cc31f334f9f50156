// Package sqlite is the embedded store.Store backend, backed by
// modernc.org/sqlite (no cgo required). The migrate command opens it when
// USE_MOCKS=1 (serve then uses the in-memory store), and the conformance
// suite runs against it. Same schema and CAS semantics as internal/store/postgres,
// via the shared internal/store/sqlcommon implementation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/agentplexus/reflectcall/internal/store/sqlcommon"
)

// Open opens (creating if absent) a sqlite database at path. Use ":memory:"
// for ephemeral test stores.
func Open(path string) (*sqlcommon.Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// modernc.org/sqlite serializes writers internally; a single connection
	// avoids "database is locked" errors under concurrent access.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: pragma: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), sqlcommon.Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return sqlcommon.New(db, sqlcommon.SQLite), nil
}
