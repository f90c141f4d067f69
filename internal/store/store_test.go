package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"uvabs/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func testCorrected(wsID int64) *models.CorrectedSpectrum {
	points := make([]models.Point, models.SpectrumPoints)
	for i := range points {
		points[i] = models.Point{WavelengthNM: models.WavelengthMinNM + i, Absorbance: 0.01 * float64(i)}
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

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}
}

func TestLookupWaterSampleIDs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ids, err := store.LookupWaterSampleIDs(ctx, "NR-2019-00123")
	if err != nil {
		t.Fatalf("LookupWaterSampleIDs: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("len(ids) = %d, want 0 for unseeded mapping", len(ids))
	}

	if err := store.InsertLabwareMapping(ctx, "NR-2019-00123", 4711); err != nil {
		t.Fatalf("InsertLabwareMapping: %v", err)
	}
	ids, err = store.LookupWaterSampleIDs(ctx, "NR-2019-00123")
	if err != nil {
		t.Fatalf("LookupWaterSampleIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != 4711 {
		t.Errorf("ids = %v, want [4711]", ids)
	}

	// Duplicate mapping rows surface as multiple candidates.
	if err := store.InsertLabwareMapping(ctx, "NR-2019-00123", 4712); err != nil {
		t.Fatalf("InsertLabwareMapping: %v", err)
	}
	ids, err = store.LookupWaterSampleIDs(ctx, "NR-2019-00123")
	if err != nil {
		t.Fatalf("LookupWaterSampleIDs: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("len(ids) = %d, want 2", len(ids))
	}
}

func TestInsertCorrectedSpectrum(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.InsertCorrectedSpectrum(ctx, testCorrected(4711)); err != nil {
		t.Fatalf("InsertCorrectedSpectrum: %v", err)
	}

	count, err := store.SpectrumRowCount(ctx, 4711)
	if err != nil {
		t.Fatalf("SpectrumRowCount: %v", err)
	}
	if count != models.SpectrumPoints {
		t.Errorf("row count = %d, want %d", count, models.SpectrumPoints)
	}

	count, err = store.SpectrumRowCount(ctx, 9999)
	if err != nil {
		t.Fatalf("SpectrumRowCount: %v", err)
	}
	if count != 0 {
		t.Errorf("row count for other sample = %d, want 0", count)
	}
}

func TestReplaceSpectrum_KeepsSingleRowSet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.InsertCorrectedSpectrum(ctx, testCorrected(4711)); err != nil {
		t.Fatalf("InsertCorrectedSpectrum: %v", err)
	}
	if err := store.ReplaceSpectrum(ctx, testCorrected(4711)); err != nil {
		t.Fatalf("ReplaceSpectrum: %v", err)
	}

	count, err := store.SpectrumRowCount(ctx, 4711)
	if err != nil {
		t.Fatalf("SpectrumRowCount: %v", err)
	}
	if count != models.SpectrumPoints {
		t.Errorf("row count after replace = %d, want %d", count, models.SpectrumPoints)
	}
}

func TestUploadLog_AppendOnly(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := models.UploadRecord{
		LabwareTextID: "NR-2019-00123",
		WaterSampleID: 4711,
		Year:          2019,
		SerialNo:      "00123",
		BlankFile:     "BLANK.SP",
		Dilution:      1,
		CuvetteLenCM:  5,
		OriginalPath:  "/data/AB190312/00123.SP",
		ArchivePath:   "/data/AB190312/uploaded/00123.SP",
		Actor:         "uvabs",
		UploadedAt:    time.Date(2019, 3, 12, 10, 0, 0, 0, time.UTC),
	}

	for i := 0; i < 2; i++ {
		if err := store.AppendUploadLog(ctx, rec); err != nil {
			t.Fatalf("AppendUploadLog: %v", err)
		}
	}

	count, err := store.CountUploadLogEntries(ctx, 4711)
	if err != nil {
		t.Fatalf("CountUploadLogEntries: %v", err)
	}
	if count != 2 {
		t.Errorf("log entries = %d, want 2 (one per attempt)", count)
	}

	recent, err := store.RecentUploads(ctx, 10)
	if err != nil {
		t.Fatalf("RecentUploads: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(recent) = %d, want 2", len(recent))
	}
	if recent[0].LabwareTextID != "NR-2019-00123" {
		t.Errorf("LabwareTextID = %q", recent[0].LabwareTextID)
	}
	if recent[0].Actor != "uvabs" {
		t.Errorf("Actor = %q, want uvabs", recent[0].Actor)
	}
}
