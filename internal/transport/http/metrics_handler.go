package http

import (
	"net/http"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
)

// MetricsHandler exposes the Prometheus scrape endpoint
type MetricsHandler struct {
	exporter     http.Handler
	errorHandler *apperrors.ErrorHandler
}

// NewMetricsHandler creates a metrics handler. A nil exporter answers 404,
// which is what a scrape sees when telemetry is disabled.
func NewMetricsHandler(exporter http.Handler, errorHandler *apperrors.ErrorHandler) *MetricsHandler {
	return &MetricsHandler{exporter: exporter, errorHandler: errorHandler}
}

// ServeHTTP handles GET /metrics
func (h *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		h.errorHandler.NotFound(w, r)
		return
	}
	h.exporter.ServeHTTP(w, r)
}
