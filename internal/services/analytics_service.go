package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kosonkh7/SOPO-Dashboard/internal/anomaly"
	"github.com/kosonkh7/SOPO-Dashboard/internal/config"
	"github.com/kosonkh7/SOPO-Dashboard/internal/dataprocessing"
	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/evaluation"
	"github.com/kosonkh7/SOPO-Dashboard/internal/features"
	"github.com/kosonkh7/SOPO-Dashboard/internal/forecast"
	"github.com/kosonkh7/SOPO-Dashboard/internal/holiday"
	"github.com/kosonkh7/SOPO-Dashboard/internal/infrastructure"
	"github.com/kosonkh7/SOPO-Dashboard/internal/operations"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

// Default strategies per use
const (
	DefaultForecastStrategy = forecast.SeasonalRegressionName
	DefaultRankingStrategy  = forecast.GradientBoostingName
)

// ForecastRequest selects one series to evaluate and optionally project.
type ForecastRequest struct {
	Center     string
	Item       string
	Strategy   string
	PeriodDays int
	Horizon    int // days past the data; 0 disables the projection
}

// ForecastResult is a held-out evaluation plus an optional projection.
type ForecastResult struct {
	Center     string               `json:"center"`
	Item       string               `json:"item"`
	Strategy   string               `json:"strategy"`
	PeriodDays int                  `json:"period_days"`
	Evaluation *forecast.Evaluation `json:"evaluation"`
	Metrics    evaluation.Metrics   `json:"metrics"`
	Future     []forecast.Result    `json:"future,omitempty"`
}

// AnalyticsService owns the dataset cache and every analytics component.
type AnalyticsService struct {
	dataPath   string
	cfg        config.AnalyticsConfig
	cache      *shipment.Cache
	calendar   *holiday.Calendar
	detector   *anomaly.Detector
	registry   *forecast.Registry
	rankers    map[string]*evaluation.Ranker
	summarizer *dataprocessing.Summarizer
	insights   *dataprocessing.InsightsGenerator
	metrics    *infrastructure.AnalyticsMetrics
	logger     *slog.Logger
}

// NewAnalyticsService wires the analytics pipeline. metrics may be nil.
func NewAnalyticsService(cfg *config.Config, calendar *holiday.Calendar, metrics *infrastructure.AnalyticsMetrics, logger *slog.Logger) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	base := logger
	logger = base.With(slog.String("component", "analytics_service"))

	boosting := forecast.DefaultBoostingOptions()
	boosting.Seed = cfg.Analytics.Seed
	registry := forecast.NewRegistry(
		forecast.NewSeasonalRegression(forecast.DefaultSeasonalOptions()),
		forecast.NewGradientBoosting(boosting),
	)

	rankers := make(map[string]*evaluation.Ranker)
	for _, s := range registry.All() {
		rankers[s.Name()] = evaluation.NewRanker(s, calendar, base, metrics)
	}

	detectorOpts := anomaly.DefaultOptions()
	detectorOpts.Threshold = cfg.Analytics.ZScoreThreshold
	detectorOpts.WindowRadius = cfg.Analytics.HolidayWindowDays

	logger.Info("AnalyticsService initialized",
		slog.String("csv_path", cfg.Data.CSVPath),
		slog.String("encoding", cfg.Data.Encoding),
		slog.Any("strategies", registry.Names()))

	return &AnalyticsService{
		dataPath:   cfg.Data.CSVPath,
		cfg:        cfg.Analytics,
		cache:      shipment.NewCache(shipment.LoadOptions{Encoding: cfg.Data.Encoding}, base),
		calendar:   calendar,
		detector:   anomaly.NewDetector(calendar, detectorOpts, base),
		registry:   registry,
		rankers:    rankers,
		summarizer: dataprocessing.NewSummarizer(base),
		insights:   dataprocessing.NewInsightsGenerator(calendar, base),
		metrics:    metrics,
		logger:     logger,
	}
}

// Dataset returns the cached dataset, reloading it when the file changed.
func (s *AnalyticsService) Dataset(ctx context.Context) (*shipment.Dataset, error) {
	ds, hit, err := s.cache.Get(ctx, s.dataPath)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load dataset",
			slog.String("path", s.dataPath),
			slog.String("error", err.Error()))
		return nil, err
	}
	s.metrics.RecordCacheLookup(ctx, hit)
	return ds, nil
}

// Calendar returns the holiday calendar shared by the pipeline.
func (s *AnalyticsService) Calendar() *holiday.Calendar {
	return s.calendar
}

// Strategies returns the registered strategy names.
func (s *AnalyticsService) Strategies() []string {
	return s.registry.Names()
}

// Centers lists every center in the dataset.
func (s *AnalyticsService) Centers(ctx context.Context) ([]string, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Centers(), nil
}

// Items lists the item categories in source column order.
func (s *AnalyticsService) Items(ctx context.Context) ([]string, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Items(), nil
}

// Summary returns per-center item statistics.
func (s *AnalyticsService) Summary(ctx context.Context, centers, items []string) ([]dataprocessing.ItemSummary, error) {
	ds, err := s.selection(ctx, centers, items)
	if err != nil {
		return nil, err
	}
	return s.summarizer.Summarize(ctx, ds, centers, items)
}

// CompareCenters returns the volumes of the selected centers on one date.
func (s *AnalyticsService) CompareCenters(ctx context.Context, date time.Time, centers, items []string) ([]dataprocessing.CenterVolume, error) {
	ds, err := s.selection(ctx, centers, items)
	if err != nil {
		return nil, err
	}
	return s.summarizer.CompareCenters(ctx, ds, date, centers, items)
}

// Trend pivots one item over dates and centers for a year or year-month.
func (s *AnalyticsService) Trend(ctx context.Context, item string, centers []string, year, month int) (*dataprocessing.Trend, error) {
	ds, err := s.selection(ctx, centers, []string{item})
	if err != nil {
		return nil, err
	}
	return s.summarizer.ItemTrend(ctx, ds, item, centers, year, month)
}

// Insights returns the dataset-wide dashboard aggregates.
func (s *AnalyticsService) Insights(ctx context.Context) (*dataprocessing.Insights, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	return s.insights.Generate(ctx, ds)
}

// Anomalies scores every selected series against its weekday baseline.
func (s *AnalyticsService) Anomalies(ctx context.Context, centers, items []string) ([]anomaly.SeriesReport, error) {
	ds, err := s.selection(ctx, centers, items)
	if err != nil {
		return nil, err
	}

	reports, err := s.detector.DetectAll(ctx, ds, centers, items)
	if err != nil {
		return nil, err
	}

	outliers := 0
	for _, r := range reports {
		outliers += r.Outliers
	}
	s.metrics.RecordOutliers(ctx, outliers)

	s.logger.InfoContext(ctx, "anomaly detection completed",
		slog.Int("series", len(reports)),
		slog.Int("outliers", outliers))
	return reports, nil
}

// Forecast evaluates one strategy on the held-out tail of a series and, when
// a horizon is requested, projects past the last observation with a model
// fitted on the full history.
func (s *AnalyticsService) Forecast(ctx context.Context, req ForecastRequest) (*ForecastResult, error) {
	if req.Strategy == "" {
		req.Strategy = DefaultForecastStrategy
	}
	if err := s.checkPeriod(req.PeriodDays); err != nil {
		return nil, err
	}
	if req.Horizon < 0 || req.Horizon > forecast.MaxHorizon {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("horizon must be within 0..%d, got %d", forecast.MaxHorizon, req.Horizon))
	}
	if req.Horizon > 0 && req.Strategy != forecast.SeasonalRegressionName {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("strategy %q does not support projection past the data", req.Strategy))
	}

	strategy, err := s.registry.Get(req.Strategy)
	if err != nil {
		return nil, err
	}

	series, rows, err := s.seriesRows(ctx, req.Center, req.Item)
	if err != nil {
		return nil, err
	}

	eval, err := forecast.Run(ctx, strategy, rows, req.PeriodDays)
	if err != nil {
		s.logger.WarnContext(ctx, "forecast evaluation failed",
			slog.String("center", req.Center),
			slog.String("item", req.Item),
			slog.String("strategy", req.Strategy),
			slog.String("error", err.Error()))
		return nil, err
	}

	m, err := evaluation.Compute(eval.Actual, eval.PredictedValues())
	if err != nil {
		return nil, err
	}

	result := &ForecastResult{
		Center:     req.Center,
		Item:       req.Item,
		Strategy:   strategy.Name(),
		PeriodDays: req.PeriodDays,
		Evaluation: eval,
		Metrics:    m,
	}

	if req.Horizon > 0 {
		future, err := forecast.FutureRows(series, req.Horizon, s.calendar)
		if err != nil {
			return nil, err
		}
		model, err := forecast.Fit(ctx, strategy, rows)
		if err != nil {
			return nil, err
		}
		result.Future, err = forecast.Predict(strategy.Name(), model, future)
		if err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "forecast completed",
		slog.String("center", req.Center),
		slog.String("item", req.Item),
		slog.String("strategy", strategy.Name()),
		slog.Float64("rmse", m.RMSE),
		slog.Int("horizon", req.Horizon))
	return result, nil
}

// CompareModels runs every registered strategy on the same split of a series.
func (s *AnalyticsService) CompareModels(ctx context.Context, center, item string, periodDays int) (*evaluation.Comparison, error) {
	if err := s.checkPeriod(periodDays); err != nil {
		return nil, err
	}

	_, rows, err := s.seriesRows(ctx, center, item)
	if err != nil {
		return nil, err
	}
	return evaluation.Compare(ctx, rows, periodDays, s.registry.All()...)
}

// Rank runs a ranking sweep. It satisfies operations.Runner so the same path
// serves synchronous requests and queued jobs.
func (s *AnalyticsService) Rank(ctx context.Context, req operations.RankingRequest, progress func(done, total int)) (*evaluation.Ranking, error) {
	if req.Strategy == "" {
		req.Strategy = DefaultRankingStrategy
	}
	if err := s.checkPeriod(req.PeriodDays); err != nil {
		return nil, err
	}

	ranker, ok := s.rankers[req.Strategy]
	if !ok {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown strategy %q", req.Strategy))
	}

	ds, err := s.selection(ctx, req.Centers, req.Items)
	if err != nil {
		return nil, err
	}

	return ranker.Rank(ctx, ds, evaluation.RankOptions{
		PeriodDays: req.PeriodDays,
		SortBy:     req.SortBy,
		Descending: req.Descending,
		Workers:    s.cfg.Workers,
		Centers:    req.Centers,
		Items:      req.Items,
		Progress:   progress,
	})
}

// Diagnose ranks the selection and attaches likely error causes to the worst
// n series by RMSE. n <= 0 uses the configured default.
func (s *AnalyticsService) Diagnose(ctx context.Context, req operations.RankingRequest, n int) ([]evaluation.PerformanceRecord, error) {
	if n <= 0 {
		n = s.cfg.WorstN
	}

	ranking, err := s.Rank(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	return evaluation.Diagnose(ranking.Records, s.calendar, n), nil
}

// seriesRows builds the feature rows of one series.
func (s *AnalyticsService) seriesRows(ctx context.Context, center, item string) ([]shipment.Point, []features.Row, error) {
	if center == "" || item == "" {
		return nil, nil, apperrors.NewAppValidationError("center and item are required")
	}

	ds, err := s.selection(ctx, []string{center}, []string{item})
	if err != nil {
		return nil, nil, err
	}

	series, err := ds.Series(center, item)
	if err != nil {
		return nil, nil, err
	}

	rows, err := features.Build(series, s.calendar)
	if err != nil {
		return nil, nil, err
	}
	if missing := features.Gaps(series); missing > 0 {
		s.logger.WarnContext(ctx, "series has missing days, lag features are positional",
			slog.String("center", center),
			slog.String("item", item),
			slog.Int("missing_days", missing))
	}
	return series, rows, nil
}

// selection loads the dataset and rejects unknown centers or items.
func (s *AnalyticsService) selection(ctx context.Context, centers, items []string) (*shipment.Dataset, error) {
	ds, err := s.Dataset(ctx)
	if err != nil {
		return nil, err
	}

	for _, c := range centers {
		if !ds.HasCenter(c) {
			return nil, apperrors.NewNoDataError(fmt.Sprintf("center %q", c))
		}
	}
	for _, it := range items {
		if _, ok := ds.ItemIndex(it); !ok {
			return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown item %q", it))
		}
	}
	return ds, nil
}

func (s *AnalyticsService) checkPeriod(periodDays int) error {
	if !config.IsAllowedPeriod(periodDays) {
		return apperrors.NewAppValidationError(fmt.Sprintf("period days must be one of %v, got %d", config.AllowedPeriodDays, periodDays))
	}
	return nil
}
