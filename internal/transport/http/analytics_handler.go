package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/kosonkh7/SOPO-Dashboard/internal/anomaly"
	"github.com/kosonkh7/SOPO-Dashboard/internal/config"
	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/evaluation"
	"github.com/kosonkh7/SOPO-Dashboard/internal/exporter"
	"github.com/kosonkh7/SOPO-Dashboard/internal/forecast"
	"github.com/kosonkh7/SOPO-Dashboard/internal/middleware"
	"github.com/kosonkh7/SOPO-Dashboard/internal/operations"
	"github.com/kosonkh7/SOPO-Dashboard/internal/services"
)

// Download formats of /summary/download
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var sortKeys = []string{evaluation.SortByMAE, evaluation.SortByRMSE, evaluation.SortByR2}

// AnalyticsHandler serves the read-only analytics API
type AnalyticsHandler struct {
	service       AnalyticsServiceInterface
	query         *middleware.QueryParamValidator
	errorHandler  *apperrors.ErrorHandler
	defaultPeriod int
	logger        *slog.Logger
}

// NewAnalyticsHandler creates an analytics handler. defaultPeriod applies when
// a request carries no period_days.
func NewAnalyticsHandler(service AnalyticsServiceInterface, defaultPeriod int, logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *AnalyticsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if !config.IsAllowedPeriod(defaultPeriod) {
		defaultPeriod = config.DefaultPeriodDays
	}
	return &AnalyticsHandler{
		service:       service,
		query:         middleware.NewQueryParamValidator(logger, errorHandler),
		errorHandler:  errorHandler,
		defaultPeriod: defaultPeriod,
		logger:        logger.With(slog.String("component", "analytics_handler")),
	}
}

// Routes returns the analytics routes on a fresh router
func (h *AnalyticsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the analytics routes on r
func (h *AnalyticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/centers", h.GetCenters)
	r.Get("/items", h.GetItems)
	r.Get("/strategies", h.GetStrategies)
	r.Get("/summary", h.GetSummary)
	r.Get("/summary/download", h.DownloadSummary)
	r.Get("/comparison", h.GetComparison)
	r.Get("/trend", h.GetTrend)
	r.Get("/insights", h.GetInsights)
	r.Get("/anomalies", h.GetAnomalies)
	r.Get("/forecast", h.GetForecast)
	r.Get("/models/compare", h.CompareModels)
	r.Get("/ranking", h.GetRanking)
	r.Get("/errors/diagnosis", h.GetDiagnosis)
}

// GetCenters handles GET /api/centers
func (h *AnalyticsHandler) GetCenters(w http.ResponseWriter, r *http.Request) {
	centers, err := h.service.Centers(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, centers, len(centers))
}

// GetItems handles GET /api/items
func (h *AnalyticsHandler) GetItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Items(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, items, len(items))
}

// GetStrategies handles GET /api/strategies
func (h *AnalyticsHandler) GetStrategies(w http.ResponseWriter, r *http.Request) {
	names := h.service.Strategies()
	respond(w, r, names, len(names))
}

// GetSummary handles GET /api/summary?center=..&item=..
func (h *AnalyticsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.Summary(r.Context(), middleware.List(r, "center"), middleware.List(r, "item"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, summaries, len(summaries))
}

// DownloadSummary handles GET /api/summary/download?format=csv|xlsx
func (h *AnalyticsHandler) DownloadSummary(w http.ResponseWriter, r *http.Request) {
	format, ok := h.query.ValidateEnum(w, r, "format", []string{FormatCSV, FormatXLSX}, FormatCSV)
	if !ok {
		return
	}

	summaries, err := h.service.Summary(r.Context(), middleware.List(r, "center"), middleware.List(r, "item"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	table := exporter.SummaryTable(summaries)

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	if format == FormatXLSX {
		contentType = xlsxContentType
		err = exporter.WriteXLSX(&buf, table)
	} else {
		err = exporter.WriteTableTo(&buf, table)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode summary download",
			slog.String("format", format),
			slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="summary.%s"`, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// GetComparison handles GET /api/comparison?date=YYYY-MM-DD&center=..&item=..
func (h *AnalyticsHandler) GetComparison(w http.ResponseWriter, r *http.Request) {
	date, ok := h.query.ValidateDate(w, r, "date")
	if !ok {
		return
	}

	volumes, err := h.service.CompareCenters(r.Context(), date, middleware.List(r, "center"), middleware.List(r, "item"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, volumes, len(volumes))
}

// GetTrend handles GET /api/trend?item=..&year=..&month=..&center=..
func (h *AnalyticsHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	item, ok := h.query.ValidateRequired(w, r, "item")
	if !ok {
		return
	}
	if _, ok = h.query.ValidateRequired(w, r, "year"); !ok {
		return
	}
	year, ok := h.query.ValidateInt(w, r, "year", 1900, 2999, 0)
	if !ok {
		return
	}
	month, ok := h.query.ValidateInt(w, r, "month", 0, 12, 0)
	if !ok {
		return
	}

	trend, err := h.service.Trend(r.Context(), item, middleware.List(r, "center"), year, month)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, trend, len(trend.Rows))
}

// GetInsights handles GET /api/insights
func (h *AnalyticsHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	insights, err := h.service.Insights(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, insights, 1)
}

// GetAnomalies handles GET /api/anomalies?center=..&item=..&only_flagged=true
func (h *AnalyticsHandler) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	onlyFlagged, ok := h.query.ValidateBool(w, r, "only_flagged", false)
	if !ok {
		return
	}

	reports, err := h.service.Anomalies(r.Context(), middleware.List(r, "center"), middleware.List(r, "item"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if onlyFlagged {
		flagged := make([]anomaly.SeriesReport, len(reports))
		for i, rep := range reports {
			flagged[i] = rep
			flagged[i].Records = rep.Flagged()
		}
		reports = flagged
	}
	respond(w, r, reports, len(reports))
}

// GetForecast handles GET /api/forecast?center=..&item=..&strategy=..&period_days=..&horizon=..
func (h *AnalyticsHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	center, ok := h.query.ValidateRequired(w, r, "center")
	if !ok {
		return
	}
	item, ok := h.query.ValidateRequired(w, r, "item")
	if !ok {
		return
	}
	strategy, ok := h.query.ValidateEnum(w, r, "strategy", h.service.Strategies(), "")
	if !ok {
		return
	}
	period, ok := h.query.ValidatePeriod(w, r, "period_days", h.defaultPeriod)
	if !ok {
		return
	}
	horizon, ok := h.query.ValidateInt(w, r, "horizon", 0, forecast.MaxHorizon, 0)
	if !ok {
		return
	}

	result, err := h.service.Forecast(r.Context(), services.ForecastRequest{
		Center:     center,
		Item:       item,
		Strategy:   strategy,
		PeriodDays: period,
		Horizon:    horizon,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, result, 1)
}

// CompareModels handles GET /api/models/compare?center=..&item=..&period_days=..
func (h *AnalyticsHandler) CompareModels(w http.ResponseWriter, r *http.Request) {
	center, ok := h.query.ValidateRequired(w, r, "center")
	if !ok {
		return
	}
	item, ok := h.query.ValidateRequired(w, r, "item")
	if !ok {
		return
	}
	period, ok := h.query.ValidatePeriod(w, r, "period_days", h.defaultPeriod)
	if !ok {
		return
	}

	cmp, err := h.service.CompareModels(r.Context(), center, item, period)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	best, _ := cmp.Best()
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   cmp,
		"best":   best,
		"count":  len(cmp.Scores),
	})
}

// GetRanking handles GET /api/ranking and runs the sweep synchronously
func (h *AnalyticsHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	req, ok := h.rankingRequest(w, r)
	if !ok {
		return
	}
	limit, ok := h.query.ValidateInt(w, r, "limit", 0, 100000, 0)
	if !ok {
		return
	}

	ranking, err := h.service.Rank(r.Context(), req, nil)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if limit > 0 && len(ranking.Records) > limit {
		trimmed := *ranking
		trimmed.Records = ranking.Records[:limit]
		ranking = &trimmed
	}
	respond(w, r, ranking, len(ranking.Records))
}

// GetDiagnosis handles GET /api/errors/diagnosis?n=..
func (h *AnalyticsHandler) GetDiagnosis(w http.ResponseWriter, r *http.Request) {
	req, ok := h.rankingRequest(w, r)
	if !ok {
		return
	}
	n, ok := h.query.ValidateInt(w, r, "n", 0, 1000, 0)
	if !ok {
		return
	}

	records, err := h.service.Diagnose(r.Context(), req, n)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, records, len(records))
}

// rankingRequest parses the query shared by the ranking and diagnosis routes
func (h *AnalyticsHandler) rankingRequest(w http.ResponseWriter, r *http.Request) (operations.RankingRequest, bool) {
	strategy, ok := h.query.ValidateEnum(w, r, "strategy", h.service.Strategies(), "")
	if !ok {
		return operations.RankingRequest{}, false
	}
	period, ok := h.query.ValidatePeriod(w, r, "period_days", h.defaultPeriod)
	if !ok {
		return operations.RankingRequest{}, false
	}
	sortBy, ok := h.query.ValidateEnum(w, r, "sort_by", sortKeys, evaluation.SortByRMSE)
	if !ok {
		return operations.RankingRequest{}, false
	}
	order, ok := h.query.ValidateEnum(w, r, "order", []string{"asc", "desc"}, "asc")
	if !ok {
		return operations.RankingRequest{}, false
	}

	return operations.RankingRequest{
		Strategy:   strategy,
		PeriodDays: period,
		SortBy:     sortBy,
		Descending: order == "desc",
		Centers:    middleware.List(r, "center"),
		Items:      middleware.List(r, "item"),
	}, true
}

// respond writes the standard success envelope
func respond(w http.ResponseWriter, r *http.Request, data interface{}, count int) {
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
		"count":  count,
	})
}
