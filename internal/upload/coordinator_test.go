package upload

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"uvabs/internal/models"
	"uvabs/internal/store"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func corrected(wsID int64) *models.CorrectedSpectrum {
	points := make([]models.Point, models.SpectrumPoints)
	for i := range points {
		points[i] = models.Point{WavelengthNM: models.WavelengthMinNM + i, Absorbance: float64(i)}
	}
	return &models.CorrectedSpectrum{
		WaterSampleID: wsID,
		MethodID:      10666,
		SerialNo:      "00123",
		BlankFile:     "BLANK.SP",
		Dilution:      1,
		CuvetteLenCM:  5,
		Points:        points,
	}
}

func sourceFile(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "00123.SP")
	if err := os.WriteFile(path, []byte("raw"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, path
}

func meta(path string) Meta {
	return Meta{
		LabwareTextID: "NR-2019-00123",
		Year:          2019,
		SerialNo:      "00123",
		BlankFile:     "BLANK.SP",
		SourcePath:    path,
	}
}

func TestUpload_NewSample(t *testing.T) {
	st := setupStore(t)
	dir, path := sourceFile(t)
	coord := NewCoordinator(st, DirArchiver{}, false, "tester")
	ctx := context.Background()

	outcome := coord.Upload(ctx, corrected(4711), meta(path))
	if outcome.Status != models.StatusUploaded {
		t.Fatalf("Status = %v (%s), want Uploaded", outcome.Status, outcome.Reason)
	}

	count, err := st.SpectrumRowCount(ctx, 4711)
	if err != nil {
		t.Fatal(err)
	}
	if count != models.SpectrumPoints {
		t.Errorf("row count = %d, want %d", count, models.SpectrumPoints)
	}

	// Source file moved to the uploaded/ subfolder, name preserved.
	archived := filepath.Join(dir, ArchiveDirName, "00123.SP")
	if _, err := os.Stat(archived); err != nil {
		t.Errorf("archived file missing: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("source file still present after archive")
	}

	logs, err := st.CountUploadLogEntries(ctx, 4711)
	if err != nil {
		t.Fatal(err)
	}
	if logs != 1 {
		t.Errorf("upload log entries = %d, want 1", logs)
	}
}

func TestUpload_RerunWithoutOverride(t *testing.T) {
	st := setupStore(t)
	_, path := sourceFile(t)
	coord := NewCoordinator(st, DirArchiver{}, false, "tester")
	ctx := context.Background()

	if out := coord.Upload(ctx, corrected(4711), meta(path)); out.Status != models.StatusUploaded {
		t.Fatalf("first upload: %v (%s)", out.Status, out.Reason)
	}

	_, path2 := sourceFile(t)
	out := coord.Upload(ctx, corrected(4711), meta(path2))
	if out.Status != models.StatusSkippedExisting {
		t.Fatalf("Status = %v, want SkippedExisting", out.Status)
	}

	// No mutation: row count unchanged, no new log entry, file untouched.
	count, _ := st.SpectrumRowCount(ctx, 4711)
	if count != models.SpectrumPoints {
		t.Errorf("row count = %d, want %d", count, models.SpectrumPoints)
	}
	logs, _ := st.CountUploadLogEntries(ctx, 4711)
	if logs != 1 {
		t.Errorf("log entries = %d, want 1", logs)
	}
	if _, err := os.Stat(path2); err != nil {
		t.Errorf("skipped file should remain in place: %v", err)
	}
}

func TestUpload_RerunWithOverride(t *testing.T) {
	st := setupStore(t)
	_, path := sourceFile(t)
	ctx := context.Background()

	first := NewCoordinator(st, DirArchiver{}, false, "tester")
	if out := first.Upload(ctx, corrected(4711), meta(path)); out.Status != models.StatusUploaded {
		t.Fatalf("first upload: %v (%s)", out.Status, out.Reason)
	}

	_, path2 := sourceFile(t)
	override := NewCoordinator(st, DirArchiver{}, true, "tester")
	out := override.Upload(ctx, corrected(4711), meta(path2))
	if out.Status != models.StatusUploaded {
		t.Fatalf("override upload: %v (%s)", out.Status, out.Reason)
	}

	// Replaced exactly once: row set stays at one spectrum, log grows.
	count, _ := st.SpectrumRowCount(ctx, 4711)
	if count != models.SpectrumPoints {
		t.Errorf("row count = %d, want %d", count, models.SpectrumPoints)
	}
	logs, _ := st.CountUploadLogEntries(ctx, 4711)
	if logs != 2 {
		t.Errorf("log entries = %d, want 2", logs)
	}
}

type failingArchiver struct{}

func (failingArchiver) Archive(string) (string, error) {
	return "", errors.New("disk full")
}

func TestUpload_ArchiveFailureSurfaced(t *testing.T) {
	st := setupStore(t)
	_, path := sourceFile(t)
	coord := NewCoordinator(st, failingArchiver{}, false, "tester")

	out := coord.Upload(context.Background(), corrected(4711), meta(path))
	if out.Status != models.StatusFailed {
		t.Fatalf("Status = %v, want Failed", out.Status)
	}
	if !strings.Contains(out.Reason, "spectrum stored") {
		t.Errorf("Reason = %q, should flag the stored-but-unarchived inconsistency", out.Reason)
	}
}
