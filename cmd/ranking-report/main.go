package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/kosonkh7/SOPO-Dashboard/internal/config"
	"github.com/kosonkh7/SOPO-Dashboard/internal/evaluation"
	"github.com/kosonkh7/SOPO-Dashboard/internal/exporter"
	"github.com/kosonkh7/SOPO-Dashboard/internal/holiday"
	"github.com/kosonkh7/SOPO-Dashboard/internal/infrastructure"
	"github.com/kosonkh7/SOPO-Dashboard/internal/operations"
	"github.com/kosonkh7/SOPO-Dashboard/internal/services"
	"github.com/kosonkh7/SOPO-Dashboard/internal/validation"
)

type options struct {
	csvPath    string
	encoding   string
	outDir     string
	strategy   string
	periodDays int
	sortBy     string
	descending bool
	worstN     int
	top        int
	anomalies  bool
	workbook   bool
}

func main() {
	opts := options{}
	flag.StringVar(&opts.csvPath, "csv", "", "shipment CSV (defaults to the configured data.csv_path)")
	flag.StringVar(&opts.encoding, "encoding", "", "CSV encoding: euc-kr or utf-8 (defaults to configuration)")
	flag.StringVar(&opts.outDir, "out", "", "output directory (defaults to the reports directory)")
	flag.StringVar(&opts.strategy, "strategy", services.DefaultRankingStrategy, "forecast strategy to rank")
	flag.IntVar(&opts.periodDays, "period", 0, "evaluation window in days: 7, 14 or 30 (defaults to configuration)")
	flag.StringVar(&opts.sortBy, "sort", evaluation.SortByRMSE, "sort key: mae, rmse or r2")
	flag.BoolVar(&opts.descending, "desc", false, "sort descending")
	flag.IntVar(&opts.worstN, "worst", 0, "series to diagnose (defaults to configuration)")
	flag.IntVar(&opts.top, "top", 10, "ranked rows to print")
	flag.BoolVar(&opts.anomalies, "anomalies", false, "also write the anomaly table")
	flag.BoolVar(&opts.workbook, "xlsx", false, "also write every table into one workbook")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdout, logger); err != nil {
		logger.Error("Ranking report failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, stdout io.Writer, logger *slog.Logger) error {
	if opts.csvPath != "" {
		cfg.Data.CSVPath = opts.csvPath
	}
	if opts.encoding != "" {
		cfg.Data.Encoding = opts.encoding
	}
	if opts.periodDays == 0 {
		opts.periodDays = cfg.Analytics.PeriodDays
	}
	if opts.worstN <= 0 {
		opts.worstN = cfg.Analytics.WorstN
	}

	paths, err := cfg.ResolvedPaths()
	if err != nil {
		return fmt.Errorf("failed to resolve paths: %w", err)
	}
	if opts.outDir != "" {
		abs, err := filepath.Abs(opts.outDir)
		if err != nil {
			return fmt.Errorf("failed to resolve output directory: %w", err)
		}
		paths.ReportsDir = abs
	}
	if !filepath.IsAbs(cfg.Data.CSVPath) {
		cfg.Data.CSVPath = paths.Resolve(cfg.Data.CSVPath)
	}

	files := validation.NewFileValidator(logger)
	if err := files.ValidateDatasetFile(cfg.Data.CSVPath); err != nil {
		return err
	}
	if err := files.ValidateReportsDirectory(paths.ReportsDir); err != nil {
		return err
	}

	calendar, err := holiday.New()
	if err != nil {
		return fmt.Errorf("failed to load holiday calendar: %w", err)
	}
	svc := services.NewAnalyticsService(cfg, calendar, nil, logger)

	start := time.Now()
	var mu sync.Mutex
	lastLogged := -1
	ranking, err := svc.Rank(ctx, operations.RankingRequest{
		Strategy:   opts.strategy,
		PeriodDays: opts.periodDays,
		SortBy:     opts.sortBy,
		Descending: opts.descending,
	}, func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		pct := done * 100 / total
		if pct/10 != lastLogged/10 || done == total {
			lastLogged = pct
			logger.Info("Ranking progress", "done", done, "total", total, "percent", pct)
		}
	})
	if err != nil {
		return fmt.Errorf("ranking sweep failed: %w", err)
	}
	logger.Info("Ranking complete",
		"evaluated", ranking.Evaluated,
		"skipped", ranking.Skipped,
		"failures", ranking.Failures,
		"took", time.Since(start).String())

	diagnosis := evaluation.Diagnose(ranking.Records, calendar, opts.worstN)

	summaries, err := svc.Summary(ctx, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to summarize dataset: %w", err)
	}

	tables := []exporter.Table{
		exporter.RankingTable(ranking.Records),
		exporter.DiagnosisTable(diagnosis),
		exporter.SummaryTable(summaries),
	}
	if opts.anomalies {
		reports, err := svc.Anomalies(ctx, nil, nil)
		if err != nil {
			return fmt.Errorf("failed to detect anomalies: %w", err)
		}
		tables = append(tables, exporter.AnomalyTable(reports))
	}

	stamp := time.Now().Format("20060102")
	writer := exporter.NewCSVWriter(paths, logger)
	for _, t := range tables {
		name := fmt.Sprintf("%s_%s_%dd_%s.csv", t.Name, ranking.Strategy, ranking.PeriodDays, stamp)
		path, err := writer.WriteTable(name, t)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", t.Name, err)
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}

	if opts.workbook {
		path := paths.GetReportPath(fmt.Sprintf("report_%s_%dd_%s.xlsx", ranking.Strategy, ranking.PeriodDays, stamp))
		if err := writeWorkbook(path, tables); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}

	printTop(stdout, ranking, opts.top)
	return nil
}

func writeWorkbook(path string, tables []exporter.Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	defer f.Close()

	if err := exporter.WriteXLSX(f, tables...); err != nil {
		return err
	}
	return f.Close()
}

func printTop(out io.Writer, ranking *evaluation.Ranking, n int) {
	if n <= 0 || len(ranking.Records) == 0 {
		return
	}
	if n > len(ranking.Records) {
		n = len(ranking.Records)
	}

	fmt.Fprintf(out, "\n%s, %d-day window, sorted by %s (%d of %d series evaluated)\n",
		ranking.Strategy, ranking.PeriodDays, ranking.SortBy, ranking.Evaluated, ranking.Total)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tCENTER\tITEM\tMAE\tRMSE\tR2")
	for i, r := range ranking.Records[:n] {
		r2 := "n/a"
		if r.R2Defined {
			r2 = fmt.Sprintf("%.3f", r.R2)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.2f\t%s\n", i+1, r.Center, r.Item, r.MAE, r.RMSE, r2)
	}
	tw.Flush()
}
