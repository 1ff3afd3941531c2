package migration

import (
	"errors"
	"testing"
	"testing/fstest"
)

func TestScanMigrationsOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/010_tenth.sql":          {Data: []byte("CREATE TABLE ten (id INTEGER);")},
		"migrations/002_second.sql":         {Data: []byte("-- Description: Adds the second table\nCREATE TABLE two (id INTEGER);")},
		"migrations/001_initial_schema.sql": {Data: []byte("CREATE TABLE one (id INTEGER);")},
		"migrations/README.md":              {Data: []byte("ignored")},
	}

	migrations, err := NewFileScanner().ScanMigrations(fsys, "migrations")
	if err != nil {
		t.Fatalf("ScanMigrations: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	want := []string{"001", "002", "010"}
	for i, m := range migrations {
		if m.Version != want[i] {
			t.Errorf("migration %d: version = %s, want %s", i, m.Version, want[i])
		}
		if m.Checksum == "" {
			t.Errorf("migration %s has no checksum", m.Version)
		}
	}
	if migrations[0].Description != "initial schema" {
		t.Errorf("filename description = %q", migrations[0].Description)
	}
	if migrations[1].Description != "Adds the second table" {
		t.Errorf("content description = %q", migrations[1].Description)
	}
}

func TestScanMigrationsRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
		want error
	}{
		{
			name: "bad name",
			fsys: fstest.MapFS{"m/initial.sql": {Data: []byte("SELECT 1;")}},
			want: ErrInvalidMigrationFile,
		},
		{
			name: "duplicate version",
			fsys: fstest.MapFS{
				"m/001_a.sql":  {Data: []byte("SELECT 1;")},
				"m/0001_b.sql": {Data: []byte("SELECT 2;")},
			},
			want: ErrDuplicateVersion,
		},
		{
			name: "comments only",
			fsys: fstest.MapFS{"m/001_empty.sql": {Data: []byte("-- nothing here\n")}},
			want: ErrInvalidMigrationFile,
		},
		{
			name: "unbalanced parentheses",
			fsys: fstest.MapFS{"m/001_bad.sql": {Data: []byte("CREATE TABLE t (id INTEGER;")}},
			want: ErrInvalidMigrationFile,
		},
		{
			name: "unterminated string",
			fsys: fstest.MapFS{"m/001_bad.sql": {Data: []byte("INSERT INTO t VALUES ('x);")}},
			want: ErrInvalidMigrationFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileScanner().ScanMigrations(tt.fsys, "m")
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestScannerAllowsParenthesesInStrings(t *testing.T) {
	fsys := fstest.MapFS{
		"m/001_check.sql": {Data: []byte("CREATE TABLE t (v TEXT CHECK (v IN ('a(', 'b')));")},
	}
	if _, err := NewFileScanner().ScanMigrations(fsys, "m"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseSQLSkipsComments(t *testing.T) {
	statements := parseSQL(`
-- header
CREATE TABLE a (id INTEGER);

-- second
CREATE INDEX idx_a ON a(id);
`)
	if len(statements) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(statements), statements)
	}
	if statements[1] != "CREATE INDEX idx_a ON a(id)" {
		t.Errorf("unexpected statement %q", statements[1])
	}
}
