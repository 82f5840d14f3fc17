// Package test hosts store-level tests that run against a real driver.
// SQLite needs no external service, so these run everywhere; point
// MEMORIA_TEST_DRIVER/MEMORIA_TEST_DSN at a PostgreSQL instance to exercise
// the production driver instead.
package test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/consiglia/memoria/internal/profile"
	"github.com/consiglia/memoria/store"
	"github.com/consiglia/memoria/store/db"
)

func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()

	p := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		Data:   t.TempDir(),
	}
	if driver := os.Getenv("MEMORIA_TEST_DRIVER"); driver != "" {
		p.Driver = driver
		p.DSN = os.Getenv("MEMORIA_TEST_DSN")
	}
	p.FromEnv()
	require.NoError(t, p.Validate())

	dbDriver, err := db.NewDBDriver(p)
	require.NoError(t, err)

	s := store.New(dbDriver, p)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { _ = s.Close() })
	return s
}
