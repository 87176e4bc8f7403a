package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/draftops/gavel/internal/dbconfig"
)

func openDatabase(ctx context.Context) (*pgxpool.Pool, error) {
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := cfg.OpenPool(ctx)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("host", cfg.Host).
		Str("database", cfg.Database).
		Msg("connected to database")

	return pool, nil
}
