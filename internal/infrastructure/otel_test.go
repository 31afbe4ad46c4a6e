package infrastructure

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeOTel_Disabled(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    "test",
		TraceExporter:  "none",
		MetricExporter: "none",
	}, slog.Default())
	require.NoError(t, err)

	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	assert.NotNil(t, providers.Meter, "a no-op meter is always available")
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestInitializeOTel_UnsupportedExporter(t *testing.T) {
	_, err := InitializeOTel(&OTelConfig{TraceExporter: "jaeger", MetricExporter: "none"}, slog.Default())
	assert.Error(t, err)

	_, err = InitializeOTel(&OTelConfig{TraceExporter: "none", MetricExporter: "statsd"}, slog.Default())
	assert.Error(t, err)
}

func TestInitializeOTel_Prometheus(t *testing.T) {
	providers, err := InitializeOTel(&OTelConfig{
		ServiceName:    "test",
		ServiceVersion: "0.0.1",
		TraceExporter:  "none",
		MetricExporter: "prometheus",
		SampleRatio:    1,
	}, slog.Default())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	require.NotNil(t, providers.PrometheusHTTP)

	metrics, err := CreateAnalyticsMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordSeriesOutcome(ctx, "gradient_boosting", "evaluated", 20*time.Millisecond)
	metrics.RecordSeriesOutcome(ctx, "gradient_boosting", "skipped", 0)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "series_evaluated_total")
}

func TestAnalyticsMetrics_NilSafe(t *testing.T) {
	var m *AnalyticsMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		m.RecordSeriesOutcome(ctx, "x", "failed", time.Second)
		m.RecordSweep(ctx, "x", time.Second)
		m.RecordCacheLookup(ctx, true)
		m.RecordOutliers(ctx, 3)
		m.RecordHTTPRequest(ctx, "/api", "GET", 200, time.Millisecond)
	})
}

func TestCreateAnalyticsMetrics_NoopMeter(t *testing.T) {
	m, err := CreateAnalyticsMetrics(nil)
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		m.RecordCacheLookup(context.Background(), false)
		m.RecordOutliers(context.Background(), 2)
	})
}
