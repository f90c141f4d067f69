package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FilesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uvabs_files_processed_total",
			Help: "Sample files processed, by outcome",
		},
		[]string{"status"},
	)

	FileErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uvabs_file_errors_total",
			Help: "Per-file data-quality errors",
		},
		[]string{"kind"},
	)

	BatchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uvabs_batch_failures_total",
			Help: "Batches aborted by blank assignment failure",
		},
	)

	SpectraUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uvabs_spectra_uploaded_total",
			Help: "Corrected spectra written to the store",
		},
	)

	FilesSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "uvabs_files_synced_total",
			Help: "Instrument export files fetched from the FTP share",
		},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "uvabs_run_duration_seconds",
			Help:    "Duration of one full processing run",
			Buckets: prometheus.DefBuckets,
		},
	)
)
