package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/features"
	"github.com/kosonkh7/SOPO-Dashboard/internal/forecast"
	"github.com/kosonkh7/SOPO-Dashboard/internal/holiday"
	"github.com/kosonkh7/SOPO-Dashboard/internal/infrastructure"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

// Sort keys accepted by RankOptions.SortBy
const (
	SortByMAE  = "mae"
	SortByRMSE = "rmse"
	SortByR2   = "r2"
)

// DefaultWorkers bounds concurrent fits when RankOptions.Workers is unset.
const DefaultWorkers = 4

// PerformanceRecord is the accuracy of one (center, item) series.
type PerformanceRecord struct {
	Center string `json:"center"`
	Item   string `json:"item"`
	Metrics
	Causes []string `json:"causes,omitempty"`

	Evaluation *forecast.Evaluation `json:"-"`
}

// RankOptions configures a ranking sweep.
type RankOptions struct {
	PeriodDays int
	SortBy     string
	Descending bool
	Workers    int
	Centers    []string // empty selects every center
	Items      []string // empty selects every item

	// Progress, when set, is called after each series completes.
	Progress func(done, total int)
}

// Ranking is the result of a sweep.
type Ranking struct {
	Strategy   string              `json:"strategy"`
	PeriodDays int                 `json:"period_days"`
	SortBy     string              `json:"sort_by"`
	Descending bool                `json:"descending"`
	Total      int                 `json:"total"`
	Evaluated  int                 `json:"evaluated"`
	Skipped    int                 `json:"skipped"`
	Failures   int                 `json:"failures"`
	Records    []PerformanceRecord `json:"records"`
}

type seriesOutcome int

const (
	outcomeEvaluated seriesOutcome = iota
	outcomeSkipped
	outcomeFailed
)

func (o seriesOutcome) String() string {
	switch o {
	case outcomeEvaluated:
		return "evaluated"
	case outcomeSkipped:
		return "skipped"
	default:
		return "failed"
	}
}

// Ranker runs one strategy over every (center, item) series.
type Ranker struct {
	strategy forecast.Strategy
	calendar *holiday.Calendar
	logger   *slog.Logger
	metrics  *infrastructure.AnalyticsMetrics
	tracer   trace.Tracer
}

// NewRanker creates a ranker. metrics may be nil.
func NewRanker(strategy forecast.Strategy, calendar *holiday.Calendar, logger *slog.Logger, metrics *infrastructure.AnalyticsMetrics) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{
		strategy: strategy,
		calendar: calendar,
		logger:   logger.With(slog.String("component", "ranker")),
		metrics:  metrics,
		tracer:   otel.Tracer(infrastructure.MeterName),
	}
}

// Strategy returns the name of the ranked strategy.
func (r *Ranker) Strategy() string {
	return r.strategy.Name()
}

// Rank evaluates every selected series in a bounded worker pool. Series are
// independent: each goroutine owns its slot of the result slice. A series with
// insufficient history is counted as skipped and any other per-series error as
// a failure; neither aborts the sweep. Only cancellation of ctx does.
func (r *Ranker) Rank(ctx context.Context, ds *shipment.Dataset, opts RankOptions) (*Ranking, error) {
	if err := validateRankOptions(&opts); err != nil {
		return nil, err
	}

	centers := opts.Centers
	if len(centers) == 0 {
		centers = ds.Centers()
	}
	items := opts.Items
	if len(items) == 0 {
		items = ds.Items()
	}

	type job struct{ center, item string }
	jobs := make([]job, 0, len(centers)*len(items))
	for _, c := range centers {
		for _, it := range items {
			jobs = append(jobs, job{c, it})
		}
	}

	ctx, span := r.tracer.Start(ctx, "ranking.sweep", trace.WithAttributes(
		attribute.String("strategy", r.strategy.Name()),
		attribute.Int("period_days", opts.PeriodDays),
		attribute.Int("series", len(jobs)),
	))
	defer span.End()

	start := time.Now()
	r.logger.InfoContext(ctx, "starting ranking sweep",
		slog.String("strategy", r.strategy.Name()),
		slog.Int("series", len(jobs)),
		slog.Int("period_days", opts.PeriodDays),
		slog.Int("workers", opts.Workers))

	records := make([]*PerformanceRecord, len(jobs))
	outcomes := make([]seriesOutcome, len(jobs))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			rec, outcome := r.evaluateSeries(gctx, ds, j.center, j.item, opts.PeriodDays)
			records[i], outcomes[i] = rec, outcome

			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), len(jobs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, fmt.Errorf("ranking sweep: %w", err)
	}

	ranking := &Ranking{
		Strategy:   r.strategy.Name(),
		PeriodDays: opts.PeriodDays,
		SortBy:     opts.SortBy,
		Descending: opts.Descending,
		Total:      len(jobs),
		Records:    make([]PerformanceRecord, 0, len(jobs)),
	}
	for i, outcome := range outcomes {
		switch outcome {
		case outcomeEvaluated:
			ranking.Evaluated++
			ranking.Records = append(ranking.Records, *records[i])
		case outcomeSkipped:
			ranking.Skipped++
		default:
			ranking.Failures++
		}
	}
	SortRecords(ranking.Records, opts.SortBy, opts.Descending)

	duration := time.Since(start)
	r.metrics.RecordSweep(ctx, r.strategy.Name(), duration)
	span.SetAttributes(
		attribute.Int("evaluated", ranking.Evaluated),
		attribute.Int("skipped", ranking.Skipped),
		attribute.Int("failures", ranking.Failures),
	)
	r.logger.InfoContext(ctx, "ranking sweep completed",
		slog.Int("evaluated", ranking.Evaluated),
		slog.Int("skipped", ranking.Skipped),
		slog.Int("failures", ranking.Failures),
		slog.Duration("duration", duration))

	return ranking, nil
}

func (r *Ranker) evaluateSeries(ctx context.Context, ds *shipment.Dataset, center, item string, periodDays int) (*PerformanceRecord, seriesOutcome) {
	start := time.Now()
	ctx = infrastructure.WithSeries(ctx, center, item)
	ctx, span := r.tracer.Start(ctx, "ranking.series", trace.WithAttributes(
		attribute.String("center", center),
		attribute.String("item", item),
	))
	defer span.End()

	rec, err := r.Evaluate(ctx, ds, center, item, periodDays)

	outcome := outcomeEvaluated
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrInsufficientHistory):
		outcome = outcomeSkipped
		r.logger.DebugContext(ctx, "series skipped",
			slog.String("reason", err.Error()))
	default:
		outcome = outcomeFailed
		infrastructure.RecordError(ctx, err)
		r.logger.WarnContext(ctx, "series evaluation failed",
			slog.String("error", err.Error()))
	}

	r.metrics.RecordSeriesOutcome(ctx, r.strategy.Name(), outcome.String(), time.Since(start))
	return rec, outcome
}

// Evaluate runs the feature, forecast and metric pipeline for one series.
func (r *Ranker) Evaluate(ctx context.Context, ds *shipment.Dataset, center, item string, periodDays int) (*PerformanceRecord, error) {
	series, err := ds.Series(center, item)
	if err != nil {
		return nil, err
	}

	rows, err := features.Build(series, r.calendar)
	if err != nil {
		return nil, err
	}
	if missing := features.Gaps(series); missing > 0 {
		r.logger.WarnContext(ctx, "series has missing days, lag features are positional",
			slog.Int("missing_days", missing))
	}

	eval, err := forecast.Run(ctx, r.strategy, rows, periodDays)
	if err != nil {
		return nil, err
	}

	m, err := Compute(eval.Actual, eval.PredictedValues())
	if err != nil {
		return nil, err
	}

	return &PerformanceRecord{Center: center, Item: item, Metrics: m, Evaluation: eval}, nil
}

// SortRecords orders records by key, breaking ties by center then item so the
// order is total.
func SortRecords(records []PerformanceRecord, key string, descending bool) {
	value := func(r PerformanceRecord) float64 {
		switch key {
		case SortByMAE:
			return r.MAE
		case SortByR2:
			return r.R2
		default:
			return r.RMSE
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := value(records[i]), value(records[j])
		if a != b {
			if descending {
				return a > b
			}
			return a < b
		}
		if records[i].Center != records[j].Center {
			return records[i].Center < records[j].Center
		}
		return records[i].Item < records[j].Item
	})
}

func validateRankOptions(opts *RankOptions) error {
	if opts.PeriodDays <= 0 {
		return apperrors.NewAppValidationError(fmt.Sprintf("period days must be positive, got %d", opts.PeriodDays))
	}
	opts.SortBy = strings.ToLower(opts.SortBy)
	switch opts.SortBy {
	case "":
		opts.SortBy = SortByRMSE
	case SortByMAE, SortByRMSE, SortByR2:
	default:
		return apperrors.NewAppValidationError(fmt.Sprintf("unknown sort key %q", opts.SortBy))
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return nil
}
