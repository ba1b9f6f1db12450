package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariffmanager_requests_total",
			Help: "Total number of API requests per industry and path",
		},
		[]string{"industry", "path"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tariffmanager_request_duration_seconds",
			Help:    "Request duration in seconds per industry and path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"industry", "path"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariffmanager_request_errors_total",
			Help: "Total number of error responses per industry, path and status code",
		},
		[]string{"industry", "path", "code"},
	)
)

var (
	LLMAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariffmanager_llm_attempts_total",
			Help: "Total number of LLM call attempts per operation",
		},
		[]string{"op"},
	)

	LLMFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariffmanager_llm_failures_total",
			Help: "Total number of failed LLM call attempts per operation",
		},
		[]string{"op"},
	)

	LLMExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariffmanager_llm_exhausted_total",
			Help: "Total number of LLM calls that failed after all retries",
		},
		[]string{"op"},
	)

	LLMCallDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tariffmanager_llm_call_duration_seconds",
			Help:    "Duration of a single LLM provider call",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "kind"},
	)

	DocumentWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariffmanager_document_writes_total",
			Help: "Total number of documents written per storage backend",
		},
		[]string{"backend"},
	)
)

func ObserveLLMCall(provider, kind string, startedAt time.Time) {
	LLMCallDurationSeconds.WithLabelValues(provider, kind).Observe(time.Since(startedAt).Seconds())
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tariffmanager_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tariffmanager_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariffmanager_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
