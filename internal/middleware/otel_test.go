package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestOTelMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		status     int
		wantName   string
		wantRoute  string
		wantError  bool
		wantCenter string
	}{
		{
			name:       "matched route",
			target:     "/forecast?center=mapo&item=food",
			status:     http.StatusOK,
			wantName:   "GET /forecast",
			wantRoute:  "/forecast",
			wantCenter: "mapo",
		},
		{
			name:      "server error",
			target:    "/broken",
			status:    http.StatusInternalServerError,
			wantName:  "GET /broken",
			wantRoute: "/broken",
			wantError: true,
		},
		{
			name:      "unmatched",
			target:    "/nowhere",
			status:    http.StatusNotFound,
			wantName:  "GET unmatched",
			wantRoute: "unmatched",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

			r := chi.NewRouter()
			r.Use(NewOTelMiddleware(tp.Tracer("test"), nil, quietLogger()).Handler)
			r.Get("/forecast", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			r.Get("/broken", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			})

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.status, rec.Code)

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			span := spans[0]
			assert.Equal(t, tt.wantName, span.Name())

			attrs := spanAttrs(span)
			assert.Equal(t, tt.wantRoute, attrs["http.route"].AsString())
			assert.Equal(t, int64(tt.status), attrs["http.response.status_code"].AsInt64())
			assert.Equal(t, tt.wantCenter, attrs["sopo.center"].AsString())
			if tt.wantError {
				assert.Equal(t, codes.Error, span.Status().Code)
			} else {
				assert.NotEqual(t, codes.Error, span.Status().Code)
			}
		})
	}
}
