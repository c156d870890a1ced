package services

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apierrors "marketadjust/internal/errors"
	"marketadjust/internal/history"
	"marketadjust/internal/infrastructure"
	"marketadjust/internal/ingest"
	"marketadjust/internal/marketindex"
)

// AnalysisService orchestrates a full market analysis: ingest sale files,
// run the index engine, and persist a report snapshot to the history store.
type AnalysisService struct {
	engine   *marketindex.Engine
	parser   *ingest.Parser
	store    *history.Store
	defaults marketindex.Config
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger
}

// NewAnalysisService creates an analysis service. metrics may be nil when
// observability is not initialized (CLI runs, tests).
func NewAnalysisService(engine *marketindex.Engine, parser *ingest.Parser, store *history.Store, defaults marketindex.Config, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		engine:   engine,
		parser:   parser,
		store:    store,
		defaults: defaults,
		metrics:  metrics,
		logger:   logger.With(slog.String("component", "analysis_service")),
	}
}

// EngineOptions are per-request overrides of the configured engine defaults.
// Nil fields keep the default; out-of-range values are clamped by the engine.
type EngineOptions struct {
	MinSalesPerMonth      *int     `json:"min_sales_per_month,omitempty"`
	SmoothWindow          *int     `json:"smooth_window,omitempty"`
	IQRMultiplier         *float64 `json:"iqr_multiplier,omitempty"`
	UseIQR                *bool    `json:"use_iqr,omitempty"`
	UseRegressionOutliers *bool    `json:"use_regression_outliers,omitempty"`
	NoAdjustmentDays      *int     `json:"no_adjustment_days,omitempty"`
	IndexColumn           string   `json:"index_column,omitempty"`
	TrendLookbackMonths   *int     `json:"trend_lookback_months,omitempty"`
}

// Apply overlays the options onto a base configuration.
func (o *EngineOptions) Apply(base marketindex.Config) marketindex.Config {
	if o == nil {
		base.Normalize()
		return base
	}
	if o.MinSalesPerMonth != nil {
		base.MinSalesPerMonth = *o.MinSalesPerMonth
	}
	if o.SmoothWindow != nil {
		base.SmoothWindow = *o.SmoothWindow
	}
	if o.IQRMultiplier != nil {
		base.IQRMultiplier = *o.IQRMultiplier
	}
	if o.UseIQR != nil {
		base.UseIQR = *o.UseIQR
	}
	if o.UseRegressionOutliers != nil {
		base.UseRegressionOutliers = *o.UseRegressionOutliers
	}
	if o.NoAdjustmentDays != nil {
		base.NoAdjustmentDays = *o.NoAdjustmentDays
	}
	if o.IndexColumn != "" {
		base.IndexColumn = marketindex.ParseIndexColumn(o.IndexColumn)
	}
	if o.TrendLookbackMonths != nil {
		base.TrendLookbackMonths = *o.TrendLookbackMonths
	}
	base.Normalize()
	return base
}

// AnalysisRequest describes one analysis run. Records may be supplied inline,
// through file paths, or both; file records are appended after inline records
// with IDs continuing the same sequence.
type AnalysisRequest struct {
	SubjectAddress string
	EffectiveDate  time.Time
	Records        []marketindex.SaleRecord
	Files          []string
	ComparableIDs  []int64
	Options        *EngineOptions

	// SkipHistory suppresses the history snapshot (CLI dry runs)
	SkipHistory bool
}

// AnalysisReport is the service-level result: the engine output plus
// ingestion counters and the saved history entry ID.
type AnalysisReport struct {
	*marketindex.AnalysisResult

	SubjectAddress string    `json:"subject_address,omitempty"`
	EffectiveDate  time.Time `json:"effective_date"`
	RecordCount    int       `json:"record_count"`
	RowsDropped    int       `json:"rows_dropped"`
	Sources        []string  `json:"sources,omitempty"`
	HistoryID      string    `json:"history_id,omitempty"`
}

// Analyze runs the full pipeline for one request.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisReport, error) {
	start := time.Now()

	records, sources, dropped, err := s.collectRecords(ctx, req)
	if err != nil {
		infrastructure.RecordAnalysisMetrics(ctx, s.metrics, 0, 0, time.Since(start), err)
		return nil, err
	}
	if len(records) == 0 {
		err := apierrors.ErrNoUsableRecords
		infrastructure.RecordAnalysisMetrics(ctx, s.metrics, 0, 0, time.Since(start), err)
		return nil, err
	}

	cfg := req.Options.Apply(s.defaults)

	result, err := s.engine.Analyze(ctx, records, req.ComparableIDs, req.EffectiveDate, cfg)
	if err != nil {
		infrastructure.RecordAnalysisMetrics(ctx, s.metrics, len(records), 0, time.Since(start), err)
		return nil, apierrors.ErrAnalysisExecution(err)
	}

	report := &AnalysisReport{
		AnalysisResult: result,
		SubjectAddress: req.SubjectAddress,
		EffectiveDate:  req.EffectiveDate,
		RecordCount:    len(records),
		RowsDropped:    dropped,
		Sources:        sources,
	}

	if !req.SkipHistory && req.SubjectAddress != "" {
		entry, err := s.saveHistory(ctx, req, report)
		if err != nil {
			// The analysis itself succeeded; a history write failure is
			// logged and surfaced through metrics but does not fail the run.
			s.logger.ErrorContext(ctx, "failed to save history entry",
				slog.String("subject", req.SubjectAddress),
				slog.String("error", err.Error()))
		} else {
			report.HistoryID = entry.ID
		}
	}

	infrastructure.RecordAnalysisMetrics(ctx, s.metrics, len(records), flaggedCount(result.Flags), time.Since(start), nil)
	return report, nil
}

// collectRecords merges inline records with records parsed from the
// requested files, keeping one contiguous ID space.
func (s *AnalysisService) collectRecords(ctx context.Context, req AnalysisRequest) ([]marketindex.SaleRecord, []string, int, error) {
	records := make([]marketindex.SaleRecord, 0, len(req.Records))
	records = append(records, req.Records...)

	nextID := int64(1)
	for _, r := range records {
		if r.ID >= nextID {
			nextID = r.ID + 1
		}
	}

	var sources []string
	dropped := 0
	for _, path := range req.Files {
		result, err := s.parser.ParseFile(path, nextID)
		if err != nil {
			return nil, nil, 0, apierrors.ErrIngest(path, err)
		}

		infrastructure.RecordIngestMetrics(ctx, s.metrics, result.Source, len(result.Records), result.RowsDropped)
		s.logger.InfoContext(ctx, "ingested sale file",
			slog.String("source", result.Source),
			slog.Int("records", len(result.Records)),
			slog.Int("dropped", result.RowsDropped))

		records = append(records, result.Records...)
		sources = append(sources, result.Source)
		dropped += result.RowsDropped
		nextID += int64(len(result.Records))
	}

	return records, sources, dropped, nil
}

func (s *AnalysisService) saveHistory(ctx context.Context, req AnalysisRequest, report *AnalysisReport) (history.Entry, error) {
	cfg := req.Options.Apply(s.defaults)

	entry, err := s.store.Save(history.Entry{
		SubjectAddress:  req.SubjectAddress,
		EffectiveDate:   req.EffectiveDate,
		IndexColumn:     cfg.IndexColumn.String(),
		EffectiveIndex:  report.EffectiveIndex.Value,
		Resolution:      report.EffectiveIndex.Resolution.String(),
		TrendLabel:      report.Trend.Label,
		TrendChange:     report.Trend.ChangePercent,
		RecordCount:     report.RecordCount,
		ComparableCount: len(report.Adjustments),
		FlaggedCount:    flaggedCount(report.Flags),
		Adjustments:     report.Adjustments,
	})
	if err != nil {
		return history.Entry{}, err
	}

	if s.metrics != nil && s.metrics.HistoryEntriesSaved != nil {
		s.metrics.HistoryEntriesSaved.Add(ctx, 1,
			metric.WithAttributes(attribute.String("resolution", entry.Resolution)))
	}

	return entry, nil
}

// History returns all saved report snapshots, newest first.
func (s *AnalysisService) History(ctx context.Context) []history.Entry {
	return s.store.Load()
}

// HistoryEntry returns one saved snapshot by ID.
func (s *AnalysisService) HistoryEntry(ctx context.Context, id string) (history.Entry, error) {
	entry, ok := s.store.Get(id)
	if !ok {
		return history.Entry{}, apierrors.ErrHistoryNotFound
	}
	return entry, nil
}

// DeleteHistoryEntry removes one saved snapshot by ID.
func (s *AnalysisService) DeleteHistoryEntry(ctx context.Context, id string) error {
	deleted, err := s.store.Delete(id)
	if err != nil {
		return apierrors.FileSystemError("delete history entry", err)
	}
	if !deleted {
		return apierrors.ErrHistoryNotFound
	}
	s.logger.InfoContext(ctx, "history entry deleted", slog.String("id", id))
	return nil
}

func flaggedCount(flags []marketindex.DiagnosticFlag) int {
	n := 0
	for _, f := range flags {
		if f.Flagged {
			n++
		}
	}
	return n
}
