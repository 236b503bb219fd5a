// Package metrics holds the prometheus collectors shared by the publishing
// adapters, the job queue and the worker.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialpilot_network_request_duration_seconds",
		Help:    "Duration of outbound vendor API requests.",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"component", "operation", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialpilot_network_request_total",
		Help: "Outbound vendor API requests by status class.",
	}, []string{"component", "operation", "status"})

	PublishTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialpilot_publish_total",
		Help: "Publish attempts by platform and outcome.",
	}, []string{"platform", "outcome"})

	EnqueueTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialpilot_queue_enqueue_total",
		Help: "Jobs accepted by the broker, including deduplicated submissions.",
	}, []string{"queue", "result"})

	// EnqueueSkipped counts enqueues that degraded to a no-op. A sustained
	// non-zero rate means jobs are being lost silently.
	EnqueueSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialpilot_queue_enqueue_skipped_total",
		Help: "Enqueue calls dropped because the broker was unavailable.",
	}, []string{"queue", "reason"})

	JobsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialpilot_queue_jobs_processed_total",
		Help: "Jobs processed by the worker by outcome.",
	}, []string{"queue", "outcome"})

	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialpilot_queue_job_duration_seconds",
		Help:    "Handler execution time per queue.",
		Buckets: prometheus.DefBuckets,
	}, []string{"queue"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "socialpilot_llm_generation_duration_seconds",
		Help:    "Duration of AI content generation calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "socialpilot_llm_tokens_total",
		Help: "Tokens consumed by AI content generation.",
	}, []string{"model", "type"})
)

// MustRegister registers every collector with the given registerer.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NetworkRequestDuration,
		NetworkRequestTotal,
		PublishTotal,
		EnqueueTotal,
		EnqueueSkipped,
		JobsProcessed,
		JobDuration,
		LLMGenerationDuration,
		LLMTokensTotal,
	)
}

// ObserveNetworkRequest records the duration and status of one vendor call.
// statusCode is zero when the request never produced a response.
func ObserveNetworkRequest(component, operation string, start time.Time, statusCode int, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	status := statusClass(statusCode)
	if err != nil {
		status = "error"
	}
	NetworkRequestDuration.WithLabelValues(component, operation, status).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.WithLabelValues(component, operation, status).Inc()
}

// ObserveLLMGeneration records the duration and token usage of one generation.
func ObserveLLMGeneration(model string, duration time.Duration, inputTokens, outputTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if inputTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

func statusClass(code int) string {
	if code <= 0 {
		return "none"
	}
	return strconv.Itoa(code/100) + "xx"
}
