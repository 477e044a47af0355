package migrator

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/pressly/goose/v3"
)

type Migrator struct {
	db           *sql.DB
	migrationsFS fs.FS
}

func NewMigrator(db *sql.DB, migrationsFS fs.FS) *Migrator {
	return &Migrator{
		db:           db,
		migrationsFS: migrationsFS,
	}
}

// Up uses a goose provider bound to the embedded FS so concurrent callers do
// not race on goose's package-level base FS.
func (m *Migrator) Up(ctx context.Context) error {
	provider, err := goose.NewProvider(goose.DialectPostgres, m.db, m.migrationsFS)
	if err != nil {
		return err
	}

	_, err = provider.Up(ctx)
	return err
}
