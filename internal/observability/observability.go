package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	rafflemetrics "github.com/Black-And-White-Club/frolf-raffle/internal/observability/metrics/raffle"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config configures logging, tracing and metrics for one binary.
type Config struct {
	ServiceName    string
	Environment    string
	Version        string
	LogLevel       string
	MetricsAddress string
	OTLPEndpoint   string
	OTLPInsecure   bool
	SampleRate     float64
}

// Provider owns the logger and tracer provider.
type Provider struct {
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider

	shutdown []func(context.Context) error
}

// Registry holds the instruments handed to modules.
type Registry struct {
	Prometheus    *prometheus.Registry
	Tracer        trace.Tracer
	RaffleMetrics rafflemetrics.RaffleMetrics
}

type Observability struct {
	Provider Provider
	Registry Registry
	config   Config
}

// Init builds the observability stack. Tracing falls back to a no-op provider
// when no OTLP endpoint is configured.
func Init(ctx context.Context, cfg Config) (Observability, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "frolf-raffle"
	}

	logger := newLogger(os.Stdout, cfg).With(
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
	)

	obs := Observability{config: cfg}
	obs.Provider.Logger = logger

	tp, shutdown, err := newTracerProvider(ctx, cfg)
	if err != nil {
		return Observability{}, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if shutdown != nil {
		obs.Provider.shutdown = append(obs.Provider.shutdown, shutdown)
	}
	obs.Provider.TracerProvider = tp
	otel.SetTracerProvider(tp)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	raffleMetrics, err := rafflemetrics.NewPrometheus(reg, "raffle")
	if err != nil {
		return Observability{}, fmt.Errorf("failed to register raffle metrics: %w", err)
	}

	obs.Registry = Registry{
		Prometheus:    reg,
		Tracer:        tp.Tracer(cfg.ServiceName),
		RaffleMetrics: raffleMetrics,
	}

	logger.InfoContext(ctx, "Observability initialized",
		slog.Bool("tracing_enabled", cfg.OTLPEndpoint != ""),
		slog.String("metrics_address", cfg.MetricsAddress),
	)
	return obs, nil
}

// NewNoop returns an Observability that discards logs, spans and metrics.
func NewNoop() Observability {
	tp := noop.NewTracerProvider()
	return Observability{
		Provider: Provider{
			Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
			TracerProvider: tp,
		},
		Registry: Registry{
			Prometheus:    prometheus.NewRegistry(),
			Tracer:        tp.Tracer("noop"),
			RaffleMetrics: rafflemetrics.NewNoop(),
		},
	}
}

// ServeMetrics exposes the Prometheus registry on the configured address until ctx is done.
// It returns immediately when no address is configured.
func (o Observability) ServeMetrics(ctx context.Context) error {
	if o.config.MetricsAddress == "" || o.Registry.Prometheus == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(o.Registry.Prometheus, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              o.config.MetricsAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Shutdown flushes exporters.
func (o Observability) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range o.Provider.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newLogger(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	if cfg.Environment == "development" || cfg.Environment == "local" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func newTracerProvider(ctx context.Context, cfg Config) (trace.TracerProvider, func(context.Context) error, error) {
	if cfg.OTLPEndpoint == "" {
		return noop.NewTracerProvider(), nil, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.Version),
		attribute.String("deployment.environment", cfg.Environment),
	)

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 0.1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate))),
	)
	return tp, tp.Shutdown, nil
}
