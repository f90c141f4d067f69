package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS labware_wsid (
    labware_text_id TEXT NOT NULL,
    water_sample_id INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS absorbance_spectras (
    water_sample_id INTEGER NOT NULL,
    method_id INTEGER NOT NULL,
    wavelength INTEGER NOT NULL,
    value REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS upload_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    labware_text_id TEXT NOT NULL,
    water_sample_id INTEGER NOT NULL,
    year INTEGER NOT NULL,
    serial_no TEXT NOT NULL,
    blank_file TEXT NOT NULL,
    dilution REAL NOT NULL,
    cuvette_len_cm REAL NOT NULL,
    original_path TEXT NOT NULL,
    archive_path TEXT NOT NULL,
    uploaded_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_labware_text ON labware_wsid(labware_text_id);
CREATE INDEX IF NOT EXISTS idx_spectra_ws ON absorbance_spectras(water_sample_id);
CREATE INDEX IF NOT EXISTS idx_upload_log_ws ON upload_log(water_sample_id);
`,
	},
	{
		Version:     2,
		Description: "Record acting user in upload log",
		SQL: `
ALTER TABLE upload_log ADD COLUMN actor TEXT;
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
