// Package observability builds the logger, tracer and metrics registry
// handed to every module.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config selects log level and exporters.
type Config struct {
	ServiceName  string
	Environment  string
	Version      string
	LogLevel     string
	OTLPEndpoint string
}

// Observability bundles the shared telemetry handles.
type Observability struct {
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Registry *prometheus.Registry

	shutdown func(context.Context) error
}

// Init creates a JSON slog logger on stdout, a Prometheus registry with the
// Go and process collectors, and a tracer exporting to OTLP when configured.
func Init(ctx context.Context, cfg Config) (*Observability, error) {
	logger := NewLogger(os.Stdout, cfg.LogLevel).With(
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("version", cfg.Version),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tp, shutdown, err := SetupTracing(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Observability{
		Logger:   logger,
		Tracer:   tp.Tracer(cfg.ServiceName),
		Registry: registry,
		shutdown: shutdown,
	}, nil
}

// NewNoop returns handles that discard everything. Used by tests.
func NewNoop() *Observability {
	return &Observability{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Tracer:   noop.NewTracerProvider().Tracer("noop"),
		Registry: prometheus.NewRegistry(),
		shutdown: func(context.Context) error { return nil },
	}
}

// Shutdown flushes pending spans.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o.shutdown == nil {
		return nil
	}
	return o.shutdown(ctx)
}

// NewLogger builds a JSON logger at the named level. Unknown levels mean info.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
