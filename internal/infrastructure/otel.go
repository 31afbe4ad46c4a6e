package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kosonkh7/SOPO-Dashboard/internal/config"
)

// MeterName is the instrumentation scope shared by tracer and meter.
const MeterName = "github.com/kosonkh7/SOPO-Dashboard"

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "none"
	MetricExporter string // "prometheus", "none"
	SampleRatio    float64
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// OTelConfigFrom maps the telemetry section of the application config
func OTelConfigFrom(cfg config.TelemetryConfig) *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: config.AppVersion,
		Environment:    env,
		TraceExporter:  cfg.TraceExporter,
		MetricExporter: cfg.MetricExporter,
		SampleRatio:    cfg.SampleRatio,
	}
}

// InitializeOTel initializes tracing and metrics and installs them globally.
// Exporters set to "none" leave the no-op global providers in place.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = OTelConfigFrom(config.Default().Telemetry)
	}
	if logger == nil {
		logger = GetLogger()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("trace_exporter", cfg.TraceExporter),
		slog.String("metric_exporter", cfg.MetricExporter))

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	)

	providers := &OTelProviders{
		Logger: logger,
		Tracer: otel.Tracer(MeterName),
		Meter:  noop.NewMeterProvider().Meter(MeterName),
	}

	if err := initializeTracing(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return providers, nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
		)
	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		exporter, err := prometheus.New()
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		providers.PrometheusHTTP = promhttp.Handler()

		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetMeterProvider(mp)

	case "none", "":
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// AnalyticsMetrics holds the instruments recorded by the analytics pipeline
type AnalyticsMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	SeriesEvaluated metric.Int64Counter
	SeriesSkipped   metric.Int64Counter
	SeriesFailed    metric.Int64Counter
	FitDuration     metric.Float64Histogram
	SweepDuration   metric.Float64Histogram

	DatasetCacheHits   metric.Int64Counter
	DatasetCacheMisses metric.Int64Counter
	OutliersFlagged    metric.Int64Counter
}

// CreateAnalyticsMetrics creates the application-specific instruments on meter
func CreateAnalyticsMetrics(meter metric.Meter) (*AnalyticsMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(MeterName)
	}

	m := &AnalyticsMetrics{}
	var err error

	if m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.SeriesEvaluated, err = meter.Int64Counter(
		"series_evaluated_total",
		metric.WithDescription("Series that produced a performance record"),
	); err != nil {
		return nil, err
	}

	if m.SeriesSkipped, err = meter.Int64Counter(
		"series_skipped_total",
		metric.WithDescription("Series skipped for insufficient history"),
	); err != nil {
		return nil, err
	}

	if m.SeriesFailed, err = meter.Int64Counter(
		"series_failed_total",
		metric.WithDescription("Series whose fit or predict step failed"),
	); err != nil {
		return nil, err
	}

	if m.FitDuration, err = meter.Float64Histogram(
		"model_fit_duration_seconds",
		metric.WithDescription("Fit and predict duration per series"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.SweepDuration, err = meter.Float64Histogram(
		"ranking_sweep_duration_seconds",
		metric.WithDescription("Duration of a full ranking sweep"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.DatasetCacheHits, err = meter.Int64Counter(
		"dataset_cache_hits_total",
		metric.WithDescription("Dataset loads served from the cache"),
	); err != nil {
		return nil, err
	}

	if m.DatasetCacheMisses, err = meter.Int64Counter(
		"dataset_cache_misses_total",
		metric.WithDescription("Dataset loads that read the CSV file"),
	); err != nil {
		return nil, err
	}

	if m.OutliersFlagged, err = meter.Int64Counter(
		"outliers_flagged_total",
		metric.WithDescription("Observations flagged by the anomaly detector"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordSeriesOutcome records the result of one series in a sweep.
// outcome is one of "evaluated", "skipped" or "failed".
func (m *AnalyticsMetrics) RecordSeriesOutcome(ctx context.Context, strategy, outcome string, duration time.Duration) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("strategy", strategy))

	switch outcome {
	case "evaluated":
		m.SeriesEvaluated.Add(ctx, 1, attrs)
		m.FitDuration.Record(ctx, duration.Seconds(), attrs)
	case "skipped":
		m.SeriesSkipped.Add(ctx, 1, attrs)
	case "failed":
		m.SeriesFailed.Add(ctx, 1, attrs)
	}
}

// RecordSweep records the total duration of a ranking sweep
func (m *AnalyticsMetrics) RecordSweep(ctx context.Context, strategy string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("strategy", strategy)))
}

// RecordCacheLookup records a dataset cache hit or miss
func (m *AnalyticsMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.DatasetCacheHits.Add(ctx, 1)
		return
	}
	m.DatasetCacheMisses.Add(ctx, 1)
}

// RecordOutliers adds n flagged observations
func (m *AnalyticsMetrics) RecordOutliers(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.OutliersFlagged.Add(ctx, int64(n))
}

// RecordHTTPRequest records one served request
func (m *AnalyticsMetrics) RecordHTTPRequest(ctx context.Context, route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("http.method", method),
		attribute.Int("http.status_code", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, duration.Seconds(), attrs)
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}
