package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/kosonkh7/SOPO-Dashboard/internal/config"
	apperrors "github.com/kosonkh7/SOPO-Dashboard/internal/errors"
	"github.com/kosonkh7/SOPO-Dashboard/internal/holiday"
	"github.com/kosonkh7/SOPO-Dashboard/internal/infrastructure"
	customMiddleware "github.com/kosonkh7/SOPO-Dashboard/internal/middleware"
	"github.com/kosonkh7/SOPO-Dashboard/internal/operations"
	"github.com/kosonkh7/SOPO-Dashboard/internal/services"
	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
	"github.com/kosonkh7/SOPO-Dashboard/internal/validation"
	handlers "github.com/kosonkh7/SOPO-Dashboard/internal/transport/http"
	ws "github.com/kosonkh7/SOPO-Dashboard/internal/websocket"
)

const (
	Version = "1.0.0"
	AppName = "SOPO Dashboard"
)

// BuildTime is set at compile time
var BuildTime = "unknown"

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Paths         *config.Paths
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.AnalyticsMetrics
	WebSocketHub  *ws.Hub
	Analytics     *services.AnalyticsService
	Health        *services.HealthService
	JobQueue      *operations.JobQueue
	ErrorHandler  *apperrors.ErrorHandler

	stopJobs context.CancelFunc
}

// NewApplication loads configuration and builds the application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(cfg, logger)
}

// New builds the application from an already loaded configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", Version))

	paths, err := cfg.ResolvedPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)

	if !filepath.IsAbs(cfg.Data.CSVPath) {
		cfg.Data.CSVPath = paths.Resolve(cfg.Data.CSVPath)
	}

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	metrics, err := infrastructure.CreateAnalyticsMetrics(otelProviders.Meter)
	if err != nil {
		logger.Warn("analytics metrics disabled", slog.String("error", err.Error()))
		metrics = nil
	}

	a := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
		Metrics:       metrics,
		ErrorHandler:  apperrors.NewErrorHandler(logger, false),
	}

	if err := a.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()

	return a, nil
}

// initializeServices wires the analytics pipeline, the hub and the job queue
func (a *Application) initializeServices() error {
	calendar, err := holiday.New()
	if err != nil {
		return fmt.Errorf("failed to load holiday calendar: %w", err)
	}

	a.Analytics = services.NewAnalyticsService(a.Config, calendar, a.Metrics, a.Logger)

	hub := ws.NewHub(a.Logger)
	hub.Start()
	a.WebSocketHub = hub

	a.JobQueue = operations.NewJobQueue(
		a.Config.Analytics.JobWorkers,
		operations.NewMemoryJobStore(),
		a.Analytics.Rank,
		hub,
		a.Logger,
	)
	ctx, cancel := context.WithCancel(context.Background())
	a.stopJobs = cancel
	a.JobQueue.Start(ctx)

	a.Health = services.NewHealthService(Version, BuildTime, a.Analytics, hub, a.JobQueue, a.Logger)
	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// These do not wrap the ResponseWriter, so the websocket upgrade survives them
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	wsHandler := handlers.NewWebSocketHandler(a.WebSocketHub, a.Config.WebSocket, a.Config.Security.AllowedOrigins, a.Logger)
	r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).Handle("/ws", wsHandler)

	// Scrapes stay outside the logging and rate limiting group
	r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, a.ErrorHandler))

	healthHandler := handlers.NewHealthHandler(a.Health, a.Logger)
	r.Get("/healthz", healthHandler.HealthCheck)

	r.Group(func(r chi.Router) {
		// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
		r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics, a.Logger).Handler)
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.CORS(a.getCORSConfig()))

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		a.setupAPIRoutes(r, healthHandler)
	})

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router, healthHandler *handlers.HealthHandler) {
	validation := customMiddleware.NewValidationMiddleware(a.Logger, a.ErrorHandler)
	period := a.Config.Analytics.PeriodDays

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(customMiddleware.StripSlashes)
		r.Use(customMiddleware.ContentTypeValidator("application/json"))
		r.Use(validation.ValidateRequest)

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

			r.Mount("/health", healthHandler.Routes())
			r.Get("/version", healthHandler.Version)
			r.Get("/stats", healthHandler.Stats)

			jobsHandler := handlers.NewRankingJobsHandler(a.JobQueue, period, a.Logger, a.ErrorHandler)
			r.Mount("/ranking/jobs", jobsHandler.Routes())
		})

		// Ranking sweeps and model fits run inline, so they get the long timeout
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.OperationTimeout, a.Logger))
			r.Use(customMiddleware.Compress(5, "application/json", "text/csv"))

			analyticsHandler := handlers.NewAnalyticsHandler(a.Analytics, period, a.Logger, a.ErrorHandler)
			analyticsHandler.RegisterRoutes(r)
		})
	})
}

// getCORSConfig allows the configured dashboard origins
func (a *Application) getCORSConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"Content-Disposition",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts serving in the background. cancel is called if the listener
// fails so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.JobQueue != nil {
		a.Logger.InfoContext(ctx, "Stopping job queue")
		if err := a.JobQueue.Stop(a.Config.Server.ShutdownTimeout); err != nil {
			a.Logger.ErrorContext(ctx, "Failed to stop job queue gracefully", slog.String("error", err.Error()))
		}
	}
	if a.stopJobs != nil {
		a.stopJobs()
	}

	a.WebSocketHub.Stop()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}

// performStartupHealthCheck warms the dataset cache and checks the reports
// directory is writable. Problems are reported, not fatal.
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string
	files := validation.NewFileValidator(a.Logger)

	start := time.Now()
	if err := files.ValidateDatasetFile(a.Config.Data.CSVPath); err != nil {
		warnings = append(warnings, err.Error())
	} else if ds, err := a.Analytics.Dataset(ctx); err != nil {
		warnings = append(warnings, fmt.Sprintf("dataset %s not loaded: %v", a.Config.Data.CSVPath, err))
	} else {
		first, last := ds.DateRange()
		a.Logger.InfoContext(ctx, "Dataset loaded",
			slog.Int("records", ds.Len()),
			slog.Int("centers", len(ds.Centers())),
			slog.String("first_date", first.Format(shipment.DayLayout)),
			slog.String("last_date", last.Format(shipment.DayLayout)),
			slog.Duration("took", time.Since(start)))

		if cal := a.Analytics.Calendar(); cal != nil {
			if missing := cal.MissingYears(first.Year(), last.Year()); len(missing) > 0 {
				a.Logger.WarnContext(ctx, "Holiday table does not cover dataset years, lunar and substitute holidays are unknown",
					slog.Any("years", missing))
				warnings = append(warnings, fmt.Sprintf("holiday table does not cover years %v", missing))
			}
		}
	}

	if err := files.ValidateReportsDirectory(a.Paths.ReportsDir); err != nil {
		warnings = append(warnings, err.Error())
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
