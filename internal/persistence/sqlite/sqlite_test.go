package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/defense-scheduler/internal/persistence/sqlite/migration"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	ctx := context.Background()
	cfg := migration.TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "defenses.db"))
	storage, err := Open(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	_, err = storage.Migrate(ctx)
	require.NoError(t, err)
	return storage
}

func TestStorageMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	applied, err := storage.Migrate(ctx)
	require.NoError(t, err)
	require.Zero(t, applied)

	status, err := storage.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, "002", status.CurrentVersion)
	require.Zero(t, status.PendingCount)
	require.NoError(t, storage.Ping(ctx))
}
