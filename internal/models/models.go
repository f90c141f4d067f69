package models

import (
	"database/sql"
	"fmt"
	"time"
)

// Expected shape of every raw spectrum: one absorbance value per whole
// nanometre from 200 to 900 inclusive.
const (
	SpectrumPoints  = 701
	WavelengthMinNM = 200
	WavelengthMaxNM = 900
)

// SpectrumKind is assigned once at classification time; downstream logic
// branches on the tag and never re-inspects the filename.
type SpectrumKind int

const (
	KindSample SpectrumKind = iota
	KindBlank
)

func (k SpectrumKind) String() string {
	switch k {
	case KindSample:
		return "sample"
	case KindBlank:
		return "blank"
	default:
		return "unknown"
	}
}

type Point struct {
	WavelengthNM int
	Absorbance   float64
}

// Spectrum is one parsed instrument file. Points are ordered by wavelength.
type Spectrum struct {
	SourcePath string
	Timestamp  time.Time
	SerialNo   string // zero-padded 5-digit Labware serial, empty for blanks
	Kind       SpectrumKind
	Points     []Point
}

// CorrectedSpectrum is the blank-subtracted, dilution- and path-length-adjusted
// result for a single water sample, ready for upload.
type CorrectedSpectrum struct {
	WaterSampleID int64
	MethodID      int
	SerialNo      string
	BlankFile     string
	Dilution      float64
	CuvetteLenCM  float64
	Points        []Point
}

type UploadStatus int

const (
	StatusUploaded UploadStatus = iota
	StatusSkippedExisting
	StatusSkippedUnidentified
	StatusFailed
)

func (s UploadStatus) String() string {
	switch s {
	case StatusUploaded:
		return "uploaded"
	case StatusSkippedExisting:
		return "skipped-existing"
	case StatusSkippedUnidentified:
		return "skipped-unidentified"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// UploadOutcome records what happened to one sample file. Every sample in a
// run produces exactly one outcome; nothing is silent.
type UploadOutcome struct {
	Status        UploadStatus
	LabwareTextID string
	WaterSampleID sql.NullInt64
	SourcePath    string
	Reason        string
}

// LogLine renders the outcome the way the run report prints it.
func (o UploadOutcome) LogLine() string {
	switch o.Status {
	case StatusUploaded:
		return fmt.Sprintf("Successfully uploaded new data for %s (water sample ID %d).", o.LabwareTextID, o.WaterSampleID.Int64)
	case StatusSkippedExisting:
		return fmt.Sprintf("Skipping upload for %s (water sample ID %d). Values already exist (enable force-update to reload).", o.LabwareTextID, o.WaterSampleID.Int64)
	case StatusSkippedUnidentified:
		return fmt.Sprintf("Skipping upload for %s. Could not identify water sample.", o.LabwareTextID)
	case StatusFailed:
		return fmt.Sprintf("ERROR: upload failed for %s: %s", o.LabwareTextID, o.Reason)
	default:
		return fmt.Sprintf("ERROR: unknown outcome for %s", o.LabwareTextID)
	}
}

// UploadRecord is one row of the append-only upload log.
type UploadRecord struct {
	ID            int64
	LabwareTextID string
	WaterSampleID int64
	Year          int
	SerialNo      string
	BlankFile     string
	Dilution      float64
	CuvetteLenCM  float64
	OriginalPath  string
	ArchivePath   string
	Actor         string
	UploadedAt    time.Time
}
