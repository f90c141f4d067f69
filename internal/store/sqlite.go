// Package store persists corrected absorbance spectra and the upload audit
// log in SQLite, and backs the Labware identity lookup.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"uvabs/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the SQLite database at path with the pragmas this service runs
// with and applies pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	s := New(db)
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// LookupWaterSampleIDs returns every water sample ID mapped to a Labware text
// ID. Zero results means the lab has not finalized the sample yet; more than
// one is an ambiguity the caller must refuse to guess through.
func (s *Store) LookupWaterSampleIDs(ctx context.Context, labwareTextID string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT water_sample_id FROM labware_wsid WHERE labware_text_id = ? ORDER BY water_sample_id`,
		labwareTextID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertLabwareMapping registers a Labware text ID to water sample ID pair.
func (s *Store) InsertLabwareMapping(ctx context.Context, labwareTextID string, waterSampleID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO labware_wsid (labware_text_id, water_sample_id) VALUES (?, ?)`,
		labwareTextID, waterSampleID)
	return err
}

// SpectrumRowCount returns how many spectral rows exist for a water sample.
// A fully uploaded spectrum holds exactly models.SpectrumPoints rows.
func (s *Store) SpectrumRowCount(ctx context.Context, waterSampleID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM absorbance_spectras WHERE water_sample_id = ?`,
		waterSampleID).Scan(&count)
	return count, err
}

// InsertCorrectedSpectrum writes all rows of a corrected spectrum in one
// transaction.
func (s *Store) InsertCorrectedSpectrum(ctx context.Context, cs *models.CorrectedSpectrum) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	if err := insertSpectrumRows(ctx, tx, cs); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ReplaceSpectrum deletes any existing rows for the water sample and inserts
// the new spectrum as a single logical step. A failure after the delete rolls
// the whole transaction back; no partial record can remain.
func (s *Store) ReplaceSpectrum(ctx context.Context, cs *models.CorrectedSpectrum) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM absorbance_spectras WHERE water_sample_id = ?`, cs.WaterSampleID); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete existing spectrum: %w", err)
	}
	if err := insertSpectrumRows(ctx, tx, cs); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func insertSpectrumRows(ctx context.Context, tx *sql.Tx, cs *models.CorrectedSpectrum) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO absorbance_spectras (water_sample_id, method_id, wavelength, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare spectrum insert: %w", err)
	}
	defer stmt.Close()

	for _, pt := range cs.Points {
		if _, err := stmt.ExecContext(ctx, cs.WaterSampleID, cs.MethodID, pt.WavelengthNM, pt.Absorbance); err != nil {
			return fmt.Errorf("insert wavelength %d: %w", pt.WavelengthNM, err)
		}
	}
	return nil
}

// AppendUploadLog adds one row to the append-only upload log.
func (s *Store) AppendUploadLog(ctx context.Context, rec models.UploadRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO upload_log
			(labware_text_id, water_sample_id, year, serial_no, blank_file, dilution, cuvette_len_cm, original_path, archive_path, actor, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.LabwareTextID, rec.WaterSampleID, rec.Year, rec.SerialNo, rec.BlankFile,
		rec.Dilution, rec.CuvetteLenCM, rec.OriginalPath, rec.ArchivePath, rec.Actor, rec.UploadedAt)
	return err
}

// CountUploadLogEntries reports how many upload attempts are logged for a
// water sample.
func (s *Store) CountUploadLogEntries(ctx context.Context, waterSampleID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM upload_log WHERE water_sample_id = ?`, waterSampleID).Scan(&count)
	return count, err
}

// RecentUploads returns the newest upload-log rows for the status endpoint.
func (s *Store) RecentUploads(ctx context.Context, limit int) ([]models.UploadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, labware_text_id, water_sample_id, year, serial_no, blank_file,
		       dilution, cuvette_len_cm, original_path, archive_path, actor, uploaded_at
		FROM upload_log
		ORDER BY uploaded_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.UploadRecord
	for rows.Next() {
		var rec models.UploadRecord
		var actor sql.NullString
		if err := rows.Scan(&rec.ID, &rec.LabwareTextID, &rec.WaterSampleID, &rec.Year,
			&rec.SerialNo, &rec.BlankFile, &rec.Dilution, &rec.CuvetteLenCM,
			&rec.OriginalPath, &rec.ArchivePath, &actor, &rec.UploadedAt); err != nil {
			return nil, err
		}
		rec.Actor = actor.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
