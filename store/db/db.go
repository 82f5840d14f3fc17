package db

import (
	"github.com/pkg/errors"

	"github.com/consiglia/memoria/internal/profile"
	"github.com/consiglia/memoria/store"
	"github.com/consiglia/memoria/store/db/postgres"
	"github.com/consiglia/memoria/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// PostgreSQL: full support for production use, including vector search
// (pgvector). The relational store is the source of truth; the vector index
// is an eventually-consistent accelerator synced after the write commits.
// SQLite: development/testing only. No vector search; semantic retrieval
// degrades to confidence ordering.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
