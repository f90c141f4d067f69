// Package upload applies the at-most-one-record-per-sample upload policy.
package upload

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"uvabs/internal/models"
	"uvabs/internal/store"
)

// ArchiveDirName is the processed-files subfolder inside each batch folder.
const ArchiveDirName = "uploaded"

// Archiver relocates a successfully uploaded source file.
type Archiver interface {
	Archive(sourcePath string) (archivePath string, err error)
}

// DirArchiver moves files into an "uploaded" subfolder beside the source,
// preserving the file name.
type DirArchiver struct{}

func (DirArchiver) Archive(sourcePath string) (string, error) {
	dir := filepath.Join(filepath.Dir(sourcePath), ArchiveDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}
	dest := filepath.Join(dir, filepath.Base(sourcePath))
	if err := os.Rename(sourcePath, dest); err != nil {
		return "", fmt.Errorf("move to archive: %w", err)
	}
	return dest, nil
}

// Meta carries the identity and provenance fields the upload log records.
type Meta struct {
	LabwareTextID string
	Year          int
	SerialNo      string
	BlankFile     string
	SourcePath    string
}

// Coordinator drives one sample file from Identified to a terminal outcome.
// The force-update flag is process-wide configuration, fixed at construction
// and never re-evaluated per file.
type Coordinator struct {
	store       *store.Store
	archiver    Archiver
	forceUpdate bool
	actor       string
	now         func() time.Time
}

func NewCoordinator(st *store.Store, archiver Archiver, forceUpdate bool, actor string) *Coordinator {
	return &Coordinator{
		store:       st,
		archiver:    archiver,
		forceUpdate: forceUpdate,
		actor:       actor,
		now:         time.Now,
	}
}

// Upload persists a corrected spectrum. Every path returns an outcome; none
// are silent. The delete-then-insert of a forced replace runs inside one
// store transaction, so a failure there cannot leave a partial record.
func (c *Coordinator) Upload(ctx context.Context, cs *models.CorrectedSpectrum, meta Meta) models.UploadOutcome {
	outcome := models.UploadOutcome{
		LabwareTextID: meta.LabwareTextID,
		WaterSampleID: sql.NullInt64{Int64: cs.WaterSampleID, Valid: true},
		SourcePath:    meta.SourcePath,
	}

	count, err := c.store.SpectrumRowCount(ctx, cs.WaterSampleID)
	if err != nil {
		outcome.Status = models.StatusFailed
		outcome.Reason = fmt.Sprintf("query existing record: %v", err)
		return outcome
	}

	if count > 0 && !c.forceUpdate {
		outcome.Status = models.StatusSkippedExisting
		return outcome
	}

	if count > 0 {
		err = c.store.ReplaceSpectrum(ctx, cs)
	} else {
		err = c.store.InsertCorrectedSpectrum(ctx, cs)
	}
	if err != nil {
		outcome.Status = models.StatusFailed
		outcome.Reason = fmt.Sprintf("persist spectrum: %v", err)
		return outcome
	}

	// From here the spectrum is stored; failures below are reported as
	// inconsistencies rather than swallowed.
	archivePath, err := c.archiver.Archive(meta.SourcePath)
	if err != nil {
		outcome.Status = models.StatusFailed
		outcome.Reason = fmt.Sprintf("spectrum stored but archiving source file failed: %v", err)
		return outcome
	}

	rec := models.UploadRecord{
		LabwareTextID: meta.LabwareTextID,
		WaterSampleID: cs.WaterSampleID,
		Year:          meta.Year,
		SerialNo:      meta.SerialNo,
		BlankFile:     meta.BlankFile,
		Dilution:      cs.Dilution,
		CuvetteLenCM:  cs.CuvetteLenCM,
		OriginalPath:  meta.SourcePath,
		ArchivePath:   archivePath,
		Actor:         c.actor,
		UploadedAt:    c.now().UTC(),
	}
	if err := c.store.AppendUploadLog(ctx, rec); err != nil {
		outcome.Status = models.StatusFailed
		outcome.Reason = fmt.Sprintf("spectrum stored but upload log append failed: %v", err)
		return outcome
	}

	outcome.Status = models.StatusUploaded
	return outcome
}
