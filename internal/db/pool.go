package db

import (
	"context"
	"fmt"
	"time"

	"github.com/osintbuddy/backend/internal/util"
	pgstore "github.com/osintbuddy/backend/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a connection pool whose connections have AGE loaded.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.AfterConnect = pgstore.AfterConnect

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	// the database container may still be starting
	if err := util.RetryErrWithContext(ctx, 5, time.Second, pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
