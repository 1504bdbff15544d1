// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// PipelineAnswers counts answers by outcome: answered,
	// clarification_needed, storage_unavailable or invalid_input.
	PipelineAnswers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolq_answers_total",
			Help: "Questions answered, by outcome",
		},
		[]string{"outcome"},
	)

	// ExtractionResults counts extractor calls by result: ok, failed,
	// timeout or disabled.
	ExtractionResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolq_extraction_results_total",
			Help: "Language model extraction results",
		},
		[]string{"result"},
	)

	// FieldProvenance counts which source supplied each merged field.
	FieldProvenance = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolq_field_provenance_total",
			Help: "Merged intent fields by source",
		},
		[]string{"field", "source"},
	)

	StorageQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schoolq_storage_query_duration_seconds",
			Help:    "Storage query latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "status"},
	)
)
