package migration

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSQLiteConfigDSN(t *testing.T) {
	cfg := SQLiteConfig{
		Path:              "/var/lib/defenses.db",
		BusyTimeout:       5 * time.Second,
		EnableForeignKeys: true,
		JournalMode:       "WAL",
		ImmediateTx:       true,
	}

	dsn := cfg.DSN()
	if !strings.HasPrefix(dsn, "file:/var/lib/defenses.db?") {
		t.Fatalf("unexpected DSN prefix: %s", dsn)
	}
	for _, part := range []string{
		"_pragma=busy_timeout(5000)",
		"_pragma=foreign_keys(1)",
		"_pragma=journal_mode(WAL)",
		"_txlock=immediate",
	} {
		if !strings.Contains(dsn, part) {
			t.Errorf("DSN %s missing %s", dsn, part)
		}
	}
}

func TestSQLiteConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SQLiteConfig)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*SQLiteConfig) {}},
		{name: "empty path", mutate: func(c *SQLiteConfig) { c.Path = "" }, wantErr: true},
		{name: "bad journal", mutate: func(c *SQLiteConfig) { c.JournalMode = "FAST" }, wantErr: true},
		{name: "bad synchronous", mutate: func(c *SQLiteConfig) { c.Synchronous = "SOMETIMES" }, wantErr: true},
		{name: "negative timeout", mutate: func(c *SQLiteConfig) { c.BusyTimeout = -time.Second }, wantErr: true},
		{name: "shared memory pool", mutate: func(c *SQLiteConfig) { c.Path = MemoryPath }, wantErr: true},
		{name: "single memory conn", mutate: func(c *SQLiteConfig) { c.Path = MemoryPath; c.MaxOpenConns = 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultSQLiteConfig("data/defenses.db")
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenAppliesPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "defenses.db")
	db, err := Open(context.Background(), TempFileTestSQLiteConfig(path))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("query pragma: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("foreign_keys = %d, want 1", foreignKeys)
	}
}
