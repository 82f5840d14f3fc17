package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
)

// Migration System Overview:
//
// The schema is small (four tables plus one embedding table), so migration is
// fresh-install only: if the database has not been initialized yet, the full
// LATEST.sql for the active driver is applied in a single transaction.
// Incremental schema changes are handled by shipping a new LATEST.sql and
// migrating data out-of-band.
//
// Migration Files:
// - Location: store/migration/{driver}/LATEST.sql
// - LATEST.sql: Full schema for new installations

//go:embed migration
var migrationFS embed.FS

// LatestSchemaFileName is the name of the latest schema file.
// This file is used to initialize fresh installations with the current schema.
const LatestSchemaFileName = "LATEST.sql"

// Migrate initializes the database schema when needed.
func (s *Store) Migrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check database initialization")
	}
	if initialized {
		return nil
	}

	filePath := fmt.Sprintf("migration/%s/%s", s.profile.Driver, LatestSchemaFileName)
	buf, err := migrationFS.ReadFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to read latest schema file %q", filePath)
	}

	tx, err := s.driver.GetDB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin migration transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(buf)); err != nil {
		return errors.Wrap(err, "failed to apply latest schema")
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit migration")
	}

	slog.Info("database initialized", "driver", s.profile.Driver)
	return nil
}
