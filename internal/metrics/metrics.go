// Package metrics exposes Prometheus instrumentation for the HTTP server,
// the status workflow, and the task worker on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "experimenter"

// Outcome labels recorded for tasks.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
)

// Registry owns every collector. A nil *Registry records nothing.
type Registry struct {
	registry      *prometheus.Registry
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
	tasks         *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	tasksByStatus *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method, and status code.",
			},
			[]string{"route", "method", "code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route and method.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_transitions_total",
				Help:      "Experiment status changes by source and target status.",
			},
			[]string{"from", "to"},
		),
		tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Background task attempts by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Background task run time by kind.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"kind"},
		),
		tasksByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tasks",
				Help:      "Stored background tasks by status.",
			},
			[]string{"status"},
		),
	}
	r.registry.MustRegister(
		r.httpRequests,
		r.httpDuration,
		r.transitions,
		r.tasks,
		r.taskDuration,
		r.tasksByStatus,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request.
func (r *Registry) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveTransition records an experiment status change.
func (r *Registry) ObserveTransition(from, to string) {
	if r == nil {
		return
	}
	r.transitions.WithLabelValues(from, to).Inc()
}

// ObserveTask records one task attempt.
func (r *Registry) ObserveTask(kind, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.tasks.WithLabelValues(kind, outcome).Inc()
	r.taskDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// SetTaskCounts replaces the per-status task gauge.
func (r *Registry) SetTaskCounts(counts map[string]int) {
	if r == nil {
		return
	}
	r.tasksByStatus.Reset()
	for status, count := range counts {
		r.tasksByStatus.WithLabelValues(status).Set(float64(count))
	}
}
