package main

import (
	"context"
	"fmt"

	"github.com/agentplexus/reflectcall/internal/config"
	"github.com/agentplexus/reflectcall/internal/store/postgres"
	"github.com/agentplexus/reflectcall/internal/store/sqlite"
)

func runMigrate(ctx context.Context) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.UseMocks {
		// sqlite.Open applies the schema as part of opening the database, so
		// local/dev migration is just opening it once.
		st, err := sqlite.Open(cfg.DBURL)
		if err != nil {
			return fmt.Errorf("sqlite migrate: %w", err)
		}
		return st.Close()
	}

	if err := postgres.Migrate(ctx, cfg.DBURL); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
