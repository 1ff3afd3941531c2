package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/defense-scheduler/internal/persistence"
	"github.com/example/defense-scheduler/internal/persistence/sqlite"
	"github.com/example/defense-scheduler/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style tests.
type SQLiteHarness struct {
	Storage       *sqlite.Storage
	Defenses      persistence.DefenseRepository
	Users         persistence.UserRepository
	Notifications persistence.NotificationRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "defenses.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx := context.Background()
	storage, err := sqlite.Open(ctx, migration.TempFileTestSQLiteConfig(path), logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if _, err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Storage:       storage,
		Defenses:      storage.Defenses,
		Users:         storage.Users,
		Notifications: storage.Notifications,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedUsers upserts users into the directory. With no arguments the standard
// Directory is seeded.
func (h *SQLiteHarness) SeedUsers(tb testing.TB, users ...UserFixture) {
	tb.Helper()
	if len(users) == 0 {
		users = Directory()
	}
	for _, u := range users {
		if err := h.Users.UpsertUser(context.Background(), u.Persistence()); err != nil {
			tb.Fatalf("failed to seed user %s: %v", u.ID, err)
		}
	}
}

// SeedDefenses stores defenses without a conflict check.
func (h *SQLiteHarness) SeedDefenses(tb testing.TB, defenses ...DefenseFixture) {
	tb.Helper()
	for _, d := range defenses {
		if _, err := h.Defenses.CreateDefense(context.Background(), d.Persistence(), persistence.ConflictCheck{}); err != nil {
			tb.Fatalf("failed to seed defense %s: %v", d.ID, err)
		}
	}
}
