package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kosonkh7/SOPO-Dashboard/internal/infrastructure"
)

// analyticsQueryAttrs are the query parameters copied onto request spans so
// slow queries can be grouped by series and window.
var analyticsQueryAttrs = []string{"center", "item", "strategy", "period_days", "sort_by", "date", "format"}

// OTelMiddleware traces each request and records the HTTP metrics
type OTelMiddleware struct {
	tracer  trace.Tracer
	metrics *infrastructure.AnalyticsMetrics
	logger  *slog.Logger
}

// NewOTelMiddleware creates the middleware. metrics may be nil.
func NewOTelMiddleware(tracer trace.Tracer, metrics *infrastructure.AnalyticsMetrics, logger *slog.Logger) *OTelMiddleware {
	if tracer == nil {
		tracer = otel.Tracer(infrastructure.MeterName)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OTelMiddleware{tracer: tracer, metrics: metrics, logger: logger}
}

// Handler opens a server span named after the chi route pattern
func (m *OTelMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		attrs := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(r.Method),
			semconv.URLPathKey.String(r.URL.Path),
			semconv.ClientAddressKey.String(r.RemoteAddr),
			semconv.UserAgentOriginalKey.String(r.UserAgent()),
		}
		if reqID := middleware.GetReqID(ctx); reqID != "" {
			attrs = append(attrs, attribute.String("request.id", reqID))
		}
		query := r.URL.Query()
		for _, key := range analyticsQueryAttrs {
			if v := query.Get(key); v != "" {
				attrs = append(attrs, attribute.String("sopo."+key, v))
			}
		}

		ctx, span := m.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		r = r.WithContext(ctx)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		m.metrics.RecordHTTPRequest(ctx, route, r.Method, status, time.Since(start))

		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			semconv.HTTPRouteKey.String(route),
			semconv.HTTPResponseStatusCodeKey.Int(status),
			attribute.Int("http.response.bytes", ww.BytesWritten()),
		)
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, strconv.Itoa(status)+" "+http.StatusText(status))
		}
	})
}

// routePattern returns the matched chi pattern, or "unmatched"
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// WebSocketTraceMiddleware wraps the dashboard upgrade in a span carrying the
// request trace id the hub later stamps on every message.
func WebSocketTraceMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := otel.Tracer(infrastructure.MeterName).Start(r.Context(), "websocket.upgrade",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRouteKey.String("/ws"),
					attribute.String("origin", r.Header.Get("Origin")),
					attribute.String("trace_id", infrastructure.GetTraceID(r.Context())),
				),
			)
			defer span.End()

			logger.DebugContext(ctx, "WebSocket upgrade requested",
				slog.String("origin", r.Header.Get("Origin")))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
