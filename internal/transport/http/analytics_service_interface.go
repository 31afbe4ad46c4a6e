package http

import (
	"context"
	"time"

	"github.com/kosonkh7/SOPO-Dashboard/internal/anomaly"
	"github.com/kosonkh7/SOPO-Dashboard/internal/dataprocessing"
	"github.com/kosonkh7/SOPO-Dashboard/internal/evaluation"
	"github.com/kosonkh7/SOPO-Dashboard/internal/operations"
	"github.com/kosonkh7/SOPO-Dashboard/internal/services"
)

// AnalyticsServiceInterface defines the analytics operations served over HTTP
type AnalyticsServiceInterface interface {
	Centers(ctx context.Context) ([]string, error)
	Items(ctx context.Context) ([]string, error)
	Strategies() []string
	Summary(ctx context.Context, centers, items []string) ([]dataprocessing.ItemSummary, error)
	CompareCenters(ctx context.Context, date time.Time, centers, items []string) ([]dataprocessing.CenterVolume, error)
	Trend(ctx context.Context, item string, centers []string, year, month int) (*dataprocessing.Trend, error)
	Insights(ctx context.Context) (*dataprocessing.Insights, error)
	Anomalies(ctx context.Context, centers, items []string) ([]anomaly.SeriesReport, error)
	Forecast(ctx context.Context, req services.ForecastRequest) (*services.ForecastResult, error)
	CompareModels(ctx context.Context, center, item string, periodDays int) (*evaluation.Comparison, error)
	Rank(ctx context.Context, req operations.RankingRequest, progress func(done, total int)) (*evaluation.Ranking, error)
	Diagnose(ctx context.Context, req operations.RankingRequest, n int) ([]evaluation.PerformanceRecord, error)
}

// JobQueueInterface defines the ranking job operations served over HTTP
type JobQueueInterface interface {
	Enqueue(ctx context.Context, req operations.RankingRequest) (*operations.Job, error)
	GetJob(id string) (*operations.Job, error)
	ListJobs(filter operations.JobFilter) ([]*operations.Job, error)
	CancelJob(id string) error
}
