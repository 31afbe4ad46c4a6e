package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosonkh7/SOPO-Dashboard/internal/config"
	"github.com/kosonkh7/SOPO-Dashboard/internal/operations"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shared/testutil"
	ws "github.com/kosonkh7/SOPO-Dashboard/internal/websocket"
)

var testCenters = []string{"강남센터", "마포센터"}

func newTestApplication(t *testing.T) *Application {
	t.Helper()
	return newTestApplicationFrom(t, time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestApplicationFrom(t *testing.T, start time.Time, logger *slog.Logger) *Application {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.RootDir = dir
	cfg.Data.CSVPath = testutil.WriteShipments(t, dir, start, 120, testCenters)
	cfg.Data.Encoding = config.EncodingUTF8
	cfg.Telemetry.TraceExporter = "none"
	cfg.Telemetry.MetricExporter = "none"
	cfg.Security.RateLimit.Enabled = false
	cfg.Analytics.Workers = 2
	cfg.Analytics.JobWorkers = 1

	a, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Stop(context.Background())
	})
	return a
}

func serve(a *Application, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)
	return rec
}

func TestApplication_Routes(t *testing.T) {
	a := newTestApplication(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"healthz", "/healthz", http.StatusOK},
		{"health", "/api/health", http.StatusOK},
		{"ready", "/api/health/ready", http.StatusOK},
		{"live", "/api/health/live", http.StatusOK},
		{"version", "/api/version", http.StatusOK},
		{"stats", "/api/stats", http.StatusOK},
		{"centers", "/api/centers", http.StatusOK},
		{"items", "/api/items", http.StatusOK},
		{"strategies", "/api/strategies", http.StatusOK},
		{"summary", "/api/summary?item=food", http.StatusOK},
		{"summary csv", "/api/summary/download?format=csv", http.StatusOK},
		{"comparison", "/api/comparison?date=2023-01-03", http.StatusOK},
		{"trend", "/api/trend?item=food&year=2023&month=2", http.StatusOK},
		{"insights", "/api/insights", http.StatusOK},
		{"anomalies", "/api/anomalies?item=food&only_flagged=true", http.StatusOK},
		{"forecast", "/api/forecast?center=%EA%B0%95%EB%82%A8%EC%84%BC%ED%84%B0&item=food", http.StatusOK},
		{"forecast missing item", "/api/forecast?center=%EA%B0%95%EB%82%A8%EC%84%BC%ED%84%B0", http.StatusBadRequest},
		{"forecast unknown center", "/api/forecast?center=nowhere&item=food", http.StatusNotFound},
		{"ranking", "/api/ranking?item=food&period_days=7", http.StatusOK},
		{"jobs", "/api/ranking/jobs", http.StatusOK},
		{"unknown route", "/api/nope", http.StatusNotFound},
		{"metrics disabled", "/metrics", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(a, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestApplication_RequestID(t *testing.T) {
	a := newTestApplication(t)

	req := httptest.NewRequest(http.MethodGet, "/api/forecast?center=nowhere&item=food", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	var problem map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "req-42", problem["trace_id"])
}

func TestApplication_RankingJobLifecycle(t *testing.T) {
	a := newTestApplication(t)

	rec := serve(a, http.MethodPost, "/api/ranking/jobs", `{"items":["food"],"period_days":7,"sort_by":"mae"}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var created struct {
		Data operations.Job `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)
	assert.Equal(t, "/api/ranking/jobs/"+created.Data.ID, rec.Header().Get("Location"))

	var job operations.Job
	require.Eventually(t, func() bool {
		rec := serve(a, http.MethodGet, "/api/ranking/jobs/"+created.Data.ID, "")
		if rec.Code != http.StatusOK {
			return false
		}
		var body struct {
			Data operations.Job `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			return false
		}
		job = body.Data
		return job.Status.Finished()
	}, 30*time.Second, 50*time.Millisecond)

	require.Equal(t, operations.JobStatusCompleted, job.Status, job.Error)
	require.NotNil(t, job.Result)
	assert.Len(t, job.Result.Records, len(testCenters))
	assert.Equal(t, 100, job.Progress)

	rec = serve(a, http.MethodDelete, "/api/ranking/jobs/"+job.ID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestApplication_WebSocketReceivesJobStatus(t *testing.T) {
	a := newTestApplication(t)
	srv := httptest.NewServer(a.Router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return a.WebSocketHub.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/ranking/jobs", "application/json", strings.NewReader(`{"items":["food"],"period_days":7}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(30*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Type string         `json:"type"`
			Data operations.Job `json:"data"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type != ws.TypeJobStatus || !msg.Data.Status.Finished() {
			continue
		}
		assert.Equal(t, operations.JobStatusCompleted, msg.Data.Status)
		assert.Nil(t, msg.Data.Result)
		return
	}
}

func TestApplication_StartupHealthCheck_HolidayCoverage(t *testing.T) {
	tests := []struct {
		name    string
		start   time.Time
		missing []int
	}{
		{name: "covered years", start: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)},
		{name: "year before table", start: time.Date(2014, 11, 1, 0, 0, 0, 0, time.UTC), missing: []int{2014}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, capture := testutil.NewTestLogger(t)
			a := newTestApplicationFrom(t, tt.start, logger)

			err := a.performStartupHealthCheck(context.Background())
			if tt.missing == nil {
				require.NoError(t, err)
				assert.False(t, capture.HasMessage("Holiday table does not cover"))
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), "holiday table does not cover years [2014]")
			var coverage []testutil.LogRecord
			for _, r := range capture.RecordsAt(slog.LevelWarn) {
				if strings.HasPrefix(r.Message, "Holiday table does not cover") {
					coverage = append(coverage, r)
				}
			}
			require.Len(t, coverage, 1)
			assert.Equal(t, tt.missing, coverage[0].Attrs["years"])
		})
	}
}
