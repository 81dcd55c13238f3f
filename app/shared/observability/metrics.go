package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics records the lifecycle of service operations.
type OperationMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
}

// PrometheusOperationMetrics implements OperationMetrics with counters and a histogram.
type PrometheusOperationMetrics struct {
	attempts  *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewOperationMetrics registers operation metrics under parkour_<subsystem>_*.
func NewOperationMetrics(reg prometheus.Registerer, subsystem string) *PrometheusOperationMetrics {
	labels := []string{"operation", "service"}
	m := &PrometheusOperationMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkour",
			Subsystem: subsystem,
			Name:      "operation_attempts_total",
			Help:      "Service operations started.",
		}, labels),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkour",
			Subsystem: subsystem,
			Name:      "operation_success_total",
			Help:      "Service operations that completed without an infrastructure error.",
		}, labels),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkour",
			Subsystem: subsystem,
			Name:      "operation_failures_total",
			Help:      "Service operations that failed.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parkour",
			Subsystem: subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, labels),
	}
	reg.MustRegister(m.attempts, m.successes, m.failures, m.duration)
	return m
}

func (m *PrometheusOperationMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.attempts.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusOperationMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.successes.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusOperationMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.failures.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusOperationMetrics) RecordOperationDuration(_ context.Context, operation, service string, duration time.Duration) {
	m.duration.WithLabelValues(operation, service).Observe(duration.Seconds())
}

// NoOpOperationMetrics discards everything.
type NoOpOperationMetrics struct{}

func (NoOpOperationMetrics) RecordOperationAttempt(context.Context, string, string)                 {}
func (NoOpOperationMetrics) RecordOperationSuccess(context.Context, string, string)                 {}
func (NoOpOperationMetrics) RecordOperationFailure(context.Context, string, string)                 {}
func (NoOpOperationMetrics) RecordOperationDuration(context.Context, string, string, time.Duration) {}

// HandlerMetrics counts message handler outcomes per handler name.
type HandlerMetrics struct {
	attempts *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHandlerMetrics registers parkour_handler_* metrics.
func NewHandlerMetrics(reg prometheus.Registerer) *HandlerMetrics {
	m := &HandlerMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkour",
			Subsystem: "handler",
			Name:      "attempts_total",
			Help:      "Messages handed to a handler.",
		}, []string{"handler"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parkour",
			Subsystem: "handler",
			Name:      "outcomes_total",
			Help:      "Handler results by outcome.",
		}, []string{"handler", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parkour",
			Subsystem: "handler",
			Name:      "duration_seconds",
			Help:      "Handler latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"handler"}),
	}
	reg.MustRegister(m.attempts, m.outcomes, m.duration)
	return m
}

func (m *HandlerMetrics) RecordHandlerAttempt(_ context.Context, handlerName string) {
	m.attempts.WithLabelValues(handlerName).Inc()
}

func (m *HandlerMetrics) RecordHandlerSuccess(_ context.Context, handlerName string) {
	m.outcomes.WithLabelValues(handlerName, "success").Inc()
}

func (m *HandlerMetrics) RecordHandlerFailure(_ context.Context, handlerName string) {
	m.outcomes.WithLabelValues(handlerName, "failure").Inc()
}

func (m *HandlerMetrics) RecordHandlerDuration(_ context.Context, handlerName string, duration time.Duration) {
	m.duration.WithLabelValues(handlerName).Observe(duration.Seconds())
}
