package batch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"time"

	"uvabs/internal/blank"
	"uvabs/internal/correct"
	"uvabs/internal/labware"
	"uvabs/internal/metrics"
	"uvabs/internal/models"
	"uvabs/internal/spectrum"
	"uvabs/internal/upload"
)

// FileError is a per-file data-quality error; the rest of the batch
// continues.
type FileError struct {
	Path string
	Err  error
}

// BatchResult records everything that happened in one batch folder.
type BatchResult struct {
	Dir        string
	Outcomes   []models.UploadOutcome
	Uploaded   []*models.CorrectedSpectrum // spectra persisted this run, for report plots
	FileErrors []FileError
	BatchErr   error // blank assignment failure: the whole batch aborted
}

// RunReport is the only artifact that survives a run; the reporting layer
// renders it into the e-mailed log.
type RunReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Batches    []BatchResult
}

// Counts tallies outcomes across all batches.
func (r RunReport) Counts() (uploaded, skipped, failed int) {
	for _, b := range r.Batches {
		for _, o := range b.Outcomes {
			switch o.Status {
			case models.StatusUploaded:
				uploaded++
			case models.StatusSkippedExisting, models.StatusSkippedUnidentified:
				skipped++
			case models.StatusFailed:
				failed++
			}
		}
	}
	return
}

type Orchestrator struct {
	resolver     labware.Resolver
	dilution     correct.DilutionSource
	coordinator  *upload.Coordinator
	methodID     int
	cuvetteLenCM float64
}

func NewOrchestrator(resolver labware.Resolver, dilution correct.DilutionSource, coordinator *upload.Coordinator, methodID int, cuvetteLenCM float64) *Orchestrator {
	return &Orchestrator{
		resolver:     resolver,
		dilution:     dilution,
		coordinator:  coordinator,
		methodID:     methodID,
		cuvetteLenCM: cuvetteLenCM,
	}
}

// Run processes every batch folder under root sequentially.
func (o *Orchestrator) Run(ctx context.Context, root string) (RunReport, error) {
	report := RunReport{StartedAt: time.Now().UTC()}
	defer func() {
		metrics.RunDuration.Observe(time.Since(report.StartedAt).Seconds())
	}()

	batches, err := Scan(root)
	if err != nil {
		return report, err
	}

	for _, b := range batches {
		report.Batches = append(report.Batches, o.ProcessBatch(ctx, b))
	}
	report.FinishedAt = time.Now().UTC()
	return report, nil
}

// ProcessBatch runs one folder end to end. Per-file data-quality errors and
// per-sample failures never stop the batch; a blank assignment failure does.
func (o *Orchestrator) ProcessBatch(ctx context.Context, b Batch) BatchResult {
	log.Printf("batch: processing %s", b.Dir)
	res := BatchResult{Dir: b.Dir}

	var blanks []*models.Spectrum
	for _, path := range b.BlankPaths {
		sp, err := spectrum.Read(path)
		if err != nil {
			res.FileErrors = append(res.FileErrors, FileError{Path: path, Err: err})
			metrics.FileErrors.WithLabelValues("read").Inc()
			log.Printf("batch: %v", err)
			continue
		}
		sp.Kind = models.KindBlank
		blanks = append(blanks, sp)
	}

	var samples []*models.Spectrum
	for _, path := range b.SamplePaths {
		sp, err := spectrum.Read(path)
		if err != nil {
			res.FileErrors = append(res.FileErrors, FileError{Path: path, Err: err})
			metrics.FileErrors.WithLabelValues("read").Inc()
			log.Printf("batch: %v", err)
			continue
		}
		sp.Kind = models.KindSample
		sp.SerialNo = SerialNo(path)
		samples = append(samples, sp)
	}

	assignment, err := blank.Assign(samples, blanks)
	if err != nil {
		res.BatchErr = err
		metrics.BatchFailures.Inc()
		log.Printf("batch: %s: %v", b.Dir, err)
		return res
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	for _, sp := range samples {
		outcome, cs := o.processSample(ctx, b, sp, assignment[sp.SourcePath])
		res.Outcomes = append(res.Outcomes, outcome)
		metrics.FilesProcessed.WithLabelValues(outcome.Status.String()).Inc()
		if outcome.Status == models.StatusUploaded {
			metrics.SpectraUploaded.Inc()
			res.Uploaded = append(res.Uploaded, cs)
		}
		log.Printf("batch: %s", outcome.LogLine())
	}
	return res
}

func (o *Orchestrator) processSample(ctx context.Context, b Batch, sp, bl *models.Spectrum) (models.UploadOutcome, *models.CorrectedSpectrum) {
	failed := func(textID, reason string) models.UploadOutcome {
		return models.UploadOutcome{
			Status:        models.StatusFailed,
			LabwareTextID: textID,
			SourcePath:    sp.SourcePath,
			Reason:        reason,
		}
	}

	year, err := labware.BatchYear(b.Name, sp.Timestamp)
	if err != nil {
		return failed(labware.TextID(sp.Timestamp.Year(), sp.SerialNo), err.Error()), nil
	}
	textID := labware.TextID(year, sp.SerialNo)

	resolution, err := o.resolver.Resolve(ctx, textID)
	if err != nil {
		return failed(textID, fmt.Sprintf("resolve identity: %v", err)), nil
	}
	switch resolution.Status {
	case labware.NotFound:
		return models.UploadOutcome{
			Status:        models.StatusSkippedUnidentified,
			LabwareTextID: textID,
			SourcePath:    sp.SourcePath,
		}, nil
	case labware.Ambiguous:
		return failed(textID, fmt.Sprintf("ambiguous identity: candidate water sample IDs %v", resolution.Candidates)), nil
	}

	dilution, err := o.dilution.Dilution(ctx, sp.SerialNo, year)
	if err != nil {
		return failed(textID, fmt.Sprintf("dilution lookup: %v", err)), nil
	}

	cs, err := correct.Correct(sp, bl, dilution, o.cuvetteLenCM)
	if err != nil {
		return failed(textID, err.Error()), nil
	}
	cs.WaterSampleID = resolution.WaterSampleID
	cs.MethodID = o.methodID
	cs.BlankFile = filepath.Base(bl.SourcePath)

	return o.coordinator.Upload(ctx, cs, upload.Meta{
		LabwareTextID: textID,
		Year:          year,
		SerialNo:      sp.SerialNo,
		BlankFile:     cs.BlankFile,
		SourcePath:    sp.SourcePath,
	}), cs
}
