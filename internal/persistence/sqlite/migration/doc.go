// Package migration applies versioned SQL files to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (e.g., "001_initial_schema.sql") and are read from an fs.FS, usually an
// embedded directory. Applied versions and their checksums are tracked in the
// schema_migrations table; each file runs in its own transaction.
//
// Example usage:
//
//	executor := migration.NewSQLiteExecutor(db)
//	manager := migration.NewManager(migration.NewFileScanner(), executor, migrationsFS, "migrations", logger)
//	applied, err := manager.RunMigrations(ctx)
package migration
