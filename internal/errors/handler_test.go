package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"no data", NewNoDataError("mapo / food on 2020-01-01"), http.StatusNotFound, TypeNoData},
		{"insufficient history", fmt.Errorf("forecast: %w", NewInsufficientHistoryError(5, 14)), http.StatusUnprocessableEntity, TypeInsufficientHistory},
		{"model fit", NewModelFitError("seasonal_regression", fmt.Errorf("singular")), http.StatusUnprocessableEntity, TypeModelFit},
		{"validation app error", NewAppValidationError("period_days must be one of 7, 14, 30"), http.StatusBadRequest, TypeValidation},
		{"api validation error", ErrValidation("item", "unknown item"), http.StatusBadRequest, TypeValidation},
		{"job not found", fmt.Errorf("job x: %w", ErrJobNotFound), http.StatusNotFound, TypeJobNotFound},
		{"job finished", ErrJobFinished("x", fmt.Errorf("completed")), http.StatusConflict, TypeJobFinished},
		{"queue unavailable", ErrQueueUnavailable(fmt.Errorf("queue is full")), http.StatusServiceUnavailable, TypeServiceDown},
		{"payload too large", ErrPayloadTooLarge(2048, 1024), http.StatusRequestEntityTooLarge, TypeValidation},
		{"invalid json", ErrInvalidJSON(), http.StatusBadRequest, TypeValidation},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, TypeInternal},
		{"storage", NewStorageError("open failed", nil), http.StatusInternalServerError, TypeInternal},
	}

	h := NewErrorHandler(slog.Default(), false)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/forecast", nil)
			rec := httptest.NewRecorder()

			h.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, float64(tt.wantStatus), body["status"])
			assert.Equal(t, "/api/forecast", body["instance"])
		})
	}
}

func TestErrorHandler_AppErrorContextBecomesExtensions(t *testing.T) {
	h := NewErrorHandler(nil, false)
	req := httptest.NewRequest(http.MethodGet, "/api/forecast", nil)

	problem := h.ErrorToProblem(NewInsufficientHistoryError(3, 7), req)

	assert.Equal(t, 3, problem.Extensions["rows"])
	assert.Equal(t, 7, problem.Extensions["period_days"])
	assert.Equal(t, "INSUFFICIENT_HISTORY", problem.Extensions["error_code"])
}

func TestErrorHandler_NilErrorWritesNothing(t *testing.T) {
	h := NewErrorHandler(slog.Default(), false)
	rec := httptest.NewRecorder()

	h.HandleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), nil)

	assert.Equal(t, 0, rec.Body.Len())
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	h := NewErrorHandler(slog.Default(), true)
	rec := httptest.NewRecorder()

	h.HandlePanic(rec, httptest.NewRequest(http.MethodGet, "/api/ranking", nil), "index out of range")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "index out of range", body["panic"])
	assert.NotEmpty(t, body["stack"])
}

func TestProblemDetails_MarshalJSON(t *testing.T) {
	problem := NewProblemDetails(http.StatusNotFound, TypeNoData, "No Data", "", "").
		WithExtension("center", "mapo")

	data, err := json.Marshal(problem)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "mapo", body["center"])
	assert.NotContains(t, body, "detail")
	assert.NotContains(t, body, "instance")
}
