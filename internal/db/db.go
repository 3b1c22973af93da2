// Package db is the SQLite device store.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/FAIRmat-NFDI/nomad-perovskite-solar-cells-database-sub001/internal/config"
)

// FileName is the database file inside the base directory.
const FileName = "pscdb.db"

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// Init initializes the SQLite database at baseDir/pscdb.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.pscdb.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	exportsDir := filepath.Join(baseDir, "exports")
	if err := os.MkdirAll(exportsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}
	_ = os.Chmod(exportsDir, 0700)

	// Pragmas in the DSN apply to every pooled connection.
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// 0 -> 1: devices table
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS devices (
		  id              TEXT PRIMARY KEY,
		  workspace_raw   TEXT NOT NULL,
		  workspace_norm  TEXT NOT NULL,
		  name_raw        TEXT NOT NULL,
		  name_norm       TEXT NOT NULL,
		  reference       TEXT,
		  architecture    TEXT,
		  stack           TEXT NOT NULL,
		  short_form      TEXT NOT NULL,
		  pce             REAL,
		  layer_count     INTEGER NOT NULL,
		  warning_count   INTEGER NOT NULL,
		  source          TEXT,
		  search_text     TEXT NOT NULL,
		  device_json     TEXT NOT NULL,
		  created_at      INTEGER NOT NULL,
		  updated_at      INTEGER NOT NULL,
		  deleted_at      INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_devices_workspace_updated
		ON devices(workspace_norm, updated_at DESC)
		WHERE deleted_at IS NULL;

		CREATE UNIQUE INDEX IF NOT EXISTS idx_devices_workspace_name_norm
		ON devices(workspace_norm, name_norm)
		WHERE deleted_at IS NULL;

		CREATE INDEX IF NOT EXISTS idx_devices_architecture
		ON devices(architecture)
		WHERE architecture IS NOT NULL AND deleted_at IS NULL;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// 1 -> 2: full-text index over name, stack and search text
	if version < 2 {
		schema := `
		CREATE VIRTUAL TABLE IF NOT EXISTS devices_fts USING fts5(
		  name_raw, stack, search_text,
		  content='devices', content_rowid='rowid'
		);

		CREATE TRIGGER IF NOT EXISTS devices_fts_ai AFTER INSERT ON devices BEGIN
		  INSERT INTO devices_fts(rowid, name_raw, stack, search_text)
		  VALUES (new.rowid, new.name_raw, new.stack, new.search_text);
		END;

		CREATE TRIGGER IF NOT EXISTS devices_fts_ad AFTER DELETE ON devices BEGIN
		  INSERT INTO devices_fts(devices_fts, rowid, name_raw, stack, search_text)
		  VALUES ('delete', old.rowid, old.name_raw, old.stack, old.search_text);
		END;

		CREATE TRIGGER IF NOT EXISTS devices_fts_au AFTER UPDATE ON devices BEGIN
		  INSERT INTO devices_fts(devices_fts, rowid, name_raw, stack, search_text)
		  VALUES ('delete', old.rowid, old.name_raw, old.stack, old.search_text);
		  INSERT INTO devices_fts(rowid, name_raw, stack, search_text)
		  VALUES (new.rowid, new.name_raw, new.stack, new.search_text);
		END;

		INSERT INTO devices_fts(devices_fts) VALUES ('rebuild');
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
