package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// isolate runs the test in an empty directory with the database under it.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	dbPath := filepath.Join(dir, "defenses.db")
	t.Setenv("DEFENSE_DATABASE_PATH", dbPath)
	t.Setenv("DEFENSE_LOG_LEVEL", "error")
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version returned error: %v", err)
	}
	if !strings.HasPrefix(out, "defensed ") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestMigrateCommand(t *testing.T) {
	isolate(t)

	out, err := runCLI(t, "migrate", "--status")
	if err != nil {
		t.Fatalf("migrate --status returned error: %v", err)
	}
	var status migrateOutput
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("failed to decode status output %q: %v", out, err)
	}
	if len(status.Pending) == 0 {
		t.Fatal("expected pending migrations on a fresh database")
	}

	out, err = runCLI(t, "migrate")
	if err != nil {
		t.Fatalf("migrate returned error: %v", err)
	}
	var applied migrateOutput
	if err := json.Unmarshal([]byte(out), &applied); err != nil {
		t.Fatalf("failed to decode migrate output %q: %v", out, err)
	}
	if applied.Applied != len(status.Pending) {
		t.Fatalf("expected %d applied migrations, got %d", len(status.Pending), applied.Applied)
	}

	out, err = runCLI(t, "migrate", "--status")
	if err != nil {
		t.Fatalf("migrate --status returned error: %v", err)
	}
	status = migrateOutput{}
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("failed to decode status output %q: %v", out, err)
	}
	if len(status.Pending) != 0 || status.CurrentVersion == "" {
		t.Fatalf("expected an up to date schema, got %+v", status)
	}
}

func TestInvalidConfigFails(t *testing.T) {
	isolate(t)
	t.Setenv("DEFENSE_SCHEDULING_TIMEZONE", "Mars/Olympus")

	if _, err := runCLI(t, "migrate"); err == nil {
		t.Fatal("expected an invalid timezone to fail")
	}
}

func TestUsersImportCommand(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "users.yaml")
	doc := `users:
  - id: coord-1
    name: Defense Coordinator
    role: Coordinator
    email: coordinator@example.edu
  - id: faculty-a
    name: Sara Alemu
    role: faculty
`
	if err := os.WriteFile(file, []byte(doc), 0o600); err != nil {
		t.Fatalf("failed to write directory file: %v", err)
	}

	out, err := runCLI(t, "users", "import", file)
	if err != nil {
		t.Fatalf("users import returned error: %v", err)
	}
	if strings.TrimSpace(out) != "imported 2 users" {
		t.Fatalf("unexpected output %q", out)
	}
}
