package shared

import (
	"database/sql"
	"testing"
)

func mustMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, table string) bool {
	t.Helper()
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	if err != nil {
		t.Fatalf("failed to inspect schema: %v", err)
	}
	return n == 1
}

func TestMigrationRunner(t *testing.T) {
	t.Run("parseMigrationName", func(t *testing.T) {
		tests := []struct {
			file      string
			version   int
			name      string
			direction string
			ok        bool
		}{
			{file: "0000_create_credentials_up.sql", version: 0, name: "create_credentials", direction: "up", ok: true},
			{file: "0001_create_checkout_contexts_down.sql", version: 1, name: "create_checkout_contexts", direction: "down", ok: true},
			{file: "0002_up.sql"},
			{file: "abcd_create_up.sql"},
			{file: "0003_create_sideways.sql"},
			{file: "0004_create_up.txt"},
		}

		for _, tt := range tests {
			t.Run(tt.file, func(t *testing.T) {
				version, name, direction, ok := parseMigrationName(tt.file)
				if ok != tt.ok {
					t.Fatalf("ok = %v, want %v", ok, tt.ok)
				}
				if version != tt.version || name != tt.name || direction != tt.direction {
					t.Errorf("got (%d, %q, %q), want (%d, %q, %q)", version, name, direction, tt.version, tt.name, tt.direction)
				}
			})
		}
	})

	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}
		if len(migrations) != 2 {
			t.Fatalf("expected 2 migrations, got %d", len(migrations))
		}
		if migrations[0].Name != "create_credentials" || migrations[1].Name != "create_checkout_contexts" {
			t.Errorf("unexpected order: %s, %s", migrations[0].Name, migrations[1].Name)
		}
		for _, m := range migrations {
			if m.Up == "" || m.Down == "" {
				t.Errorf("migration %d is missing a script", m.Version)
			}
		}
	})

	t.Run("statements", func(t *testing.T) {
		got := statements("-- header\nCREATE TABLE a (x INT); -- trailing\n\nCREATE INDEX i ON a (x);\n")
		if len(got) != 2 {
			t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
		}
		if got[0] != "CREATE TABLE a (x INT)" || got[1] != "CREATE INDEX i ON a (x)" {
			t.Errorf("unexpected statements %q", got)
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db := mustMemoryDB(t)

		if v, err := SchemaVersion(db); err != nil || v != -1 {
			t.Fatalf("expected empty schema, got %d (%v)", v, err)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		if v, _ := SchemaVersion(db); v != 1 {
			t.Errorf("expected schema version 1, got %d", v)
		}
		if !tableExists(t, db, "credentials") || !tableExists(t, db, "checkout_contexts") {
			t.Fatal("expected both tables after migrating")
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}
		if v, _ := SchemaVersion(db); v != 0 {
			t.Errorf("expected schema version 0 after rollback, got %d", v)
		}
		if tableExists(t, db, "checkout_contexts") {
			t.Error("expected checkout_contexts to be dropped")
		}
		if !tableExists(t, db, "credentials") {
			t.Error("expected credentials to survive a single rollback")
		}
	})

	t.Run("Rollback On Empty Schema", func(t *testing.T) {
		if err := RollbackMigration(mustMemoryDB(t)); err == nil {
			t.Error("expected an error with nothing applied")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db := mustMemoryDB(t)

		for i := range 2 {
			if err := RunMigrations(db); err != nil {
				t.Fatalf("run %d failed: %v", i+1, err)
			}
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})
}
