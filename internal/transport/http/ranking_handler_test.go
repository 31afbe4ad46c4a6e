package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/evaluation"
	"github.com/kosonkh7/SOPO-Dashboard/internal/operations"
)

type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Enqueue(ctx context.Context, req operations.RankingRequest) (*operations.Job, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*operations.Job), args.Error(1)
}

func (m *MockJobQueue) GetJob(id string) (*operations.Job, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*operations.Job), args.Error(1)
}

func (m *MockJobQueue) ListJobs(filter operations.JobFilter) ([]*operations.Job, error) {
	args := m.Called(filter)
	return args.Get(0).([]*operations.Job), args.Error(1)
}

func (m *MockJobQueue) CancelJob(id string) error {
	return m.Called(id).Error(0)
}

func newTestJobsHandler(q *MockJobQueue) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRankingJobsHandler(q, 14, logger, apperrors.NewErrorHandler(logger, false)).Routes()
}

func doRequest(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRankingJobsHandler_CreateJob(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		want       *operations.RankingRequest
		enqueueErr error
		wantStatus int
	}{
		{
			name:       "empty body uses default period",
			want:       &operations.RankingRequest{PeriodDays: 14},
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "explicit request",
			body:       `{"strategy":"seasonal_regression","period_days":7,"sort_by":"mae","descending":true,"items":["food"]}`,
			want:       &operations.RankingRequest{Strategy: "seasonal_regression", PeriodDays: 7, SortBy: "mae", Descending: true, Items: []string{"food"}},
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "period not allowed",
			body:       `{"period_days":10}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown sort key",
			body:       `{"sort_by":"mape"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"period_days":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "queue full",
			body:       `{}`,
			want:       &operations.RankingRequest{PeriodDays: 14},
			enqueueErr: errors.New("job queue is full"),
			wantStatus: http.StatusServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := new(MockJobQueue)
			if tt.want != nil {
				if tt.enqueueErr != nil {
					q.On("Enqueue", mock.Anything, *tt.want).Return(nil, tt.enqueueErr)
				} else {
					q.On("Enqueue", mock.Anything, *tt.want).Return(&operations.Job{ID: "job-1", Status: operations.JobStatusPending}, nil)
				}
			}

			rec := doRequest(newTestJobsHandler(q), http.MethodPost, "/", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusAccepted {
				assert.Equal(t, "/job-1", rec.Header().Get("Location"))
				assert.Contains(t, rec.Body.String(), `"job-1"`)
			}
			q.AssertExpectations(t)
		})
	}
}

func TestRankingJobsHandler_ListJobs(t *testing.T) {
	q := new(MockJobQueue)
	q.On("ListJobs", operations.JobFilter{Status: operations.JobStatusCompleted, Limit: 5}).Return([]*operations.Job{
		{ID: "a", Status: operations.JobStatusCompleted, Result: &evaluation.Ranking{Total: 3}},
	}, nil)
	h := newTestJobsHandler(q)

	rec := doRequest(h, http.MethodGet, "/?status=completed&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"result"`)

	rec = doRequest(h, http.MethodGet, "/?status=done", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(h, http.MethodGet, "/?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	q.AssertExpectations(t)
}

func TestRankingJobsHandler_GetAndCancel(t *testing.T) {
	notFound := fmt.Errorf("job missing: %w", apperrors.ErrJobNotFound)

	tests := []struct {
		name       string
		method     string
		id         string
		setup      func(q *MockJobQueue)
		wantStatus int
	}{
		{
			name:   "get existing",
			method: http.MethodGet,
			id:     "a",
			setup: func(q *MockJobQueue) {
				q.On("GetJob", "a").Return(&operations.Job{ID: "a", Status: operations.JobStatusRunning}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "get missing",
			method: http.MethodGet,
			id:     "nope",
			setup: func(q *MockJobQueue) {
				q.On("GetJob", "nope").Return(nil, notFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "cancel running",
			method: http.MethodDelete,
			id:     "a",
			setup: func(q *MockJobQueue) {
				q.On("GetJob", "a").Return(&operations.Job{ID: "a", Status: operations.JobStatusRunning}, nil)
				q.On("CancelJob", "a").Return(nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "cancel finished",
			method: http.MethodDelete,
			id:     "a",
			setup: func(q *MockJobQueue) {
				q.On("GetJob", "a").Return(&operations.Job{ID: "a", Status: operations.JobStatusCompleted}, nil)
				q.On("CancelJob", "a").Return(errors.New("job a cannot be cancelled"))
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:   "cancel missing",
			method: http.MethodDelete,
			id:     "nope",
			setup: func(q *MockJobQueue) {
				q.On("GetJob", "nope").Return(nil, notFound)
			},
			wantStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := new(MockJobQueue)
			tt.setup(q)

			rec := doRequest(newTestJobsHandler(q), tt.method, "/"+tt.id, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			q.AssertExpectations(t)
		})
	}
}
