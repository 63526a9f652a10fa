package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// FilesScanned tracks the number of files seen per scan
	FilesScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datamon_files_scanned_total",
			Help: "Total number of files scanned",
		},
		[]string{"mode"}, // mode: raw, checked
	)

	// OutcomeRecords counts validation outcome records by type
	OutcomeRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datamon_outcome_records_total",
			Help: "Total validation outcome records emitted",
		},
		[]string{"mode", "result"}, // result: pass or the error type
	)

	// Promotions counts identifiers promoted from QA staging into checked
	Promotions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datamon_promotions_total",
			Help: "Total identifiers promoted to the checked tree",
		},
	)

	// TrackerCells counts central-tracker cells written
	TrackerCells = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datamon_tracker_cells_total",
			Help: "Total central-tracker cells written",
		},
		[]string{"mechanism"}, // mechanism: file, spreadsheet, derived
	)

	// RunDuration measures full pipeline invocation duration in seconds
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datamon_run_duration_seconds",
			Help:    "Pipeline invocation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"command"},
	)
)
