package db

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nastyazhadan/spot-order-trigger/shared/infra/db/migrator"
)

const connectTimeout = 5 * time.Second

// SetupDB opens a pool and applies every pending migration from migrationsFS.
func SetupDB(ctx context.Context, dbURI string, migrationsFS fs.FS) (*pgxpool.Pool, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := newPgxPool(connectCtx, dbURI)
	if err != nil {
		return nil, fmt.Errorf("newPgxPool: %w", err)
	}

	if err := migrate(ctx, dbURI, migrationsFS); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

func migrate(ctx context.Context, dbURI string, migrationsFS fs.FS) error {
	sqlDB, err := sql.Open("pgx", dbURI)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	defer sqlDB.Close()

	if err := migrator.NewMigrator(sqlDB, migrationsFS).Up(ctx); err != nil {
		return fmt.Errorf("migrator.Up: %w", err)
	}

	return nil
}

func newPgxPool(ctx context.Context, dbURI string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dbURI)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.ParseConfig: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.NewWithConfig: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pool.Ping: %w", err)
	}

	return pool, nil
}
