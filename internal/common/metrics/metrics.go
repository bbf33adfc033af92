// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_runs_completed_total",
			Help: "Total number of generation runs by workflow and final status",
		},
		[]string{"workflow", "status"},
	)

	GenerationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_runs_failed_total",
			Help: "Total number of failed generation runs",
		},
		[]string{"workflow", "error_code"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_run_duration_seconds",
			Help:    "Duration of generation runs in seconds",
			Buckets: []float64{0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"workflow"},
	)

	GenerationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "generation_runs_active",
			Help: "Number of generation runs currently holding a concurrency slot",
		},
	)

	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_calls_total",
			Help: "Model invocations by model class and outcome",
		},
		[]string{"model_class", "outcome"},
	)

	ModelTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_tokens_total",
			Help: "Estimated tokens consumed by model class",
		},
		[]string{"model_class"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_cache_lookups_total",
			Help: "Generation cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	GateStageResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quality_gate_stage_results_total",
			Help: "Quality gate stage outcomes",
		},
		[]string{"stage", "status"},
	)

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
)
