package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/agentplexus/reflectcall/internal/store/postgres"
	"github.com/agentplexus/reflectcall/internal/store/storetest"
)

// TestPostgresStoreConformance runs the shared conformance suite against a
// real Postgres instance named by POSTGRES_TEST_DSN. It skips when that
// variable is unset, since no live database is assumed to be available.
func TestPostgresStoreConformance(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set, skipping postgres conformance test")
	}

	ctx := context.Background()
	if err := postgres.Migrate(ctx, dsn); err != nil {
		t.Fatalf("postgres.Migrate: %v", err)
	}

	st, err := postgres.Open(dsn, postgres.DefaultPoolConfig())
	if err != nil {
		t.Fatalf("postgres.Open: %v", err)
	}
	defer st.Close()

	storetest.Run(t, st)
}
