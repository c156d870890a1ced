// Command adjustcsv runs a market analysis over sale export files and writes
// the index series, adjustment rows and full result to the reports directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"marketadjust/internal/config"
	"marketadjust/internal/history"
	"marketadjust/internal/infrastructure"
	"marketadjust/internal/ingest"
	"marketadjust/internal/marketindex"
	"marketadjust/internal/services"
)

// idBlockSize is the ID space reserved per input file so concurrent parsing
// yields stable, collision-free record IDs regardless of completion order
const idBlockSize = 1_000_000

const dateLayout = "2006-01-02"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	engineDefaults := cfg.Engine.ToEngine()

	input := flag.String("input", "", "comma-separated sale export files (csv/xlsx)")
	dir := flag.String("dir", "", "directory of sale export files, scanned non-recursively")
	effectiveStr := flag.String("effective", "", "effective date (YYYY-MM-DD, required)")
	subject := flag.String("subject", "", "subject property address; saves a history entry when set")
	comparablesStr := flag.String("comparables", "", "comma-separated comparable record IDs")
	outDir := flag.String("out", "", "output directory (defaults to the configured reports directory)")

	column := flag.String("column", engineDefaults.IndexColumn.String(), "index column: raw | smoothed | regression")
	minSales := flag.Int("min-sales", engineDefaults.MinSalesPerMonth, "minimum sales per month before a bucket is thin")
	smoothWindow := flag.Int("smooth-window", engineDefaults.SmoothWindow, "centered rolling window size")
	iqrK := flag.Float64("iqr", engineDefaults.IQRMultiplier, "IQR multiplier for outlier bounds")
	useIQR := flag.Bool("use-iqr", engineDefaults.UseIQR, "enable the IQR outlier rule")
	useRegression := flag.Bool("use-regression", engineDefaults.UseRegressionOutliers, "enable the regression-residual outlier rule")
	noAdjDays := flag.Int("no-adjustment-days", engineDefaults.NoAdjustmentDays, "gate adjustments within this many days of the effective date")
	trendMonths := flag.Int("trend-months", engineDefaults.TrendLookbackMonths, "trend lookback window in months")
	flag.Parse()

	paths, err := cfg.ResolvePaths()
	if err != nil {
		slog.Error("Failed to resolve paths", "error", err)
		os.Exit(1)
	}
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// CLI runs log next to the server logs in the resolved logs directory
	cfg.Logging.FilePath = paths.GetLogPath("adjustcsv.log")
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	if *effectiveStr == "" {
		logger.Error("Missing required -effective flag")
		flag.Usage()
		os.Exit(2)
	}
	effective, err := time.Parse(dateLayout, *effectiveStr)
	if err != nil {
		logger.Error("Invalid -effective date", slog.String("value", *effectiveStr))
		os.Exit(2)
	}

	files, err := collectInputFiles(*input, *dir)
	if err != nil {
		logger.Error("Failed to collect input files", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if len(files) == 0 {
		logger.Error("No input files; pass -input or -dir")
		os.Exit(2)
	}

	comparableIDs, err := parseComparables(*comparablesStr)
	if err != nil {
		logger.Error("Invalid -comparables list", slog.String("error", err.Error()))
		os.Exit(2)
	}

	engineCfg := marketindex.Config{
		MinSalesPerMonth:      *minSales,
		SmoothWindow:          *smoothWindow,
		IQRMultiplier:         *iqrK,
		UseIQR:                *useIQR,
		UseRegressionOutliers: *useRegression,
		NoAdjustmentDays:      *noAdjDays,
		IndexColumn:           marketindex.ParseIndexColumn(*column),
		TrendLookbackMonths:   *trendMonths,
	}
	engineCfg.Normalize()

	logger.Info("Starting analysis",
		slog.Int("files", len(files)),
		slog.String("effective_date", effective.Format(dateLayout)),
		slog.String("column", engineCfg.IndexColumn.String()),
		slog.Int("comparables", len(comparableIDs)))

	ctx := context.Background()
	records, dropped, err := parseFiles(ctx, ingest.NewParser(logger), files)
	if err != nil {
		logger.Error("Failed to parse input files", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Parsed sale records",
		slog.Int("records", len(records)),
		slog.Int("dropped", dropped))

	store := history.NewStore(paths.HistoryFile, logger)
	svc := services.NewAnalysisService(
		marketindex.NewEngine(logger), ingest.NewParser(logger), store, engineCfg, nil, logger)

	report, err := svc.Analyze(ctx, services.AnalysisRequest{
		SubjectAddress: *subject,
		EffectiveDate:  effective,
		Records:        records,
		ComparableIDs:  comparableIDs,
	})
	if err != nil {
		logger.Error("Analysis failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	output := *outDir
	if output == "" {
		output = paths.ReportsDir
	}
	if err := writeOutputs(report, output); err != nil {
		logger.Error("Failed to write outputs", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Analysis complete",
		slog.Int("buckets", len(report.Series)),
		slog.Int("adjustments", len(report.Adjustments)),
		slog.String("trend", report.Trend.Label),
		slog.String("resolution", report.EffectiveIndex.Resolution.String()),
		slog.String("output_dir", output))

	fmt.Printf("Analyzed %d records across %d monthly buckets\n", report.RecordCount, len(report.Series))
	fmt.Printf("Trend over %d months: %s (%.2f%%)\n",
		report.Trend.LookbackMonths, report.Trend.Label, report.Trend.ChangePercent)
	fmt.Printf("Outputs written to %s\n", output)
}

// collectInputFiles merges the explicit file list with a directory scan,
// keeping only supported extensions, sorted for deterministic ID assignment
func collectInputFiles(input, dir string) ([]string, error) {
	var files []string

	for _, f := range strings.Split(input, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			files = append(files, f)
		}
	}

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".csv", ".xlsx", ".xlsm", ".xls":
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// parseComparables parses a comma-separated record ID list
func parseComparables(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid record ID %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseFiles parses all input files concurrently. Each file owns a disjoint
// ID block, so record IDs do not depend on goroutine scheduling.
func parseFiles(ctx context.Context, parser *ingest.Parser, files []string) ([]marketindex.SaleRecord, int, error) {
	results := make([]*ingest.Result, len(files))

	g, _ := errgroup.WithContext(ctx)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			result, err := parser.ParseFile(path, int64(i*idBlockSize)+1)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var records []marketindex.SaleRecord
	dropped := 0
	for _, result := range results {
		records = append(records, result.Records...)
		dropped += result.RowsDropped
	}
	return records, dropped, nil
}

// writeOutputs persists the index series, adjustment rows and full result.
// A run without comparables has no adjustment rows; the adjustments CSV is
// skipped rather than treated as a failure.
func writeOutputs(report *services.AnalysisReport, outDir string) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	if err := marketindex.SaveSeriesToCSV(report.Series, filepath.Join(outDir, "index.csv")); err != nil {
		return err
	}
	if len(report.Adjustments) > 0 {
		if err := marketindex.SaveAdjustmentsToCSV(report.Adjustments, filepath.Join(outDir, "adjustments.csv")); err != nil {
			return err
		}
	}
	return marketindex.SaveResultToJSON(report.AnalysisResult, filepath.Join(outDir, "result.json"))
}
