package marketindex

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sync"
	"time"
)

// AnalysisResult bundles everything the engine derives from one record set:
// the index series, per-record diagnostic flags, per-comparable adjustment
// rows, the resolved effective-date index and the lookback trend summary.
type AnalysisResult struct {
	Series         IndexSeries            `json:"series"`
	Flags          []DiagnosticFlag       `json:"flags"`
	Adjustments    []ComparableAdjustment `json:"adjustments"`
	EffectiveIndex LookupResult           `json:"effective_index"`
	Trend          TrendSummary           `json:"trend"`
}

// Engine orchestrates index construction, diagnostics and adjustment
// calculation. Every operation is a deterministic function of its inputs;
// the engine holds no state beyond a memoization cache for index
// construction, keyed on the record set and numeric configuration.
type Engine struct {
	logger *slog.Logger

	mu    sync.Mutex
	cache map[uint64]IndexSeries
}

// NewEngine creates an engine with the given logger
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger: logger,
		cache:  make(map[uint64]IndexSeries),
	}
}

// BuildIndex builds the post-processed index series for the record set,
// memoized on (record set, configuration). The returned series must be
// treated as immutable.
func (e *Engine) BuildIndex(ctx context.Context, records []SaleRecord, cfg Config) IndexSeries {
	cfg.Normalize()

	key := indexFingerprint(records, cfg)
	e.mu.Lock()
	if cached, ok := e.cache[key]; ok {
		e.mu.Unlock()
		e.logger.DebugContext(ctx, "index cache hit", "fingerprint", key)
		return cached
	}
	e.mu.Unlock()

	start := time.Now()
	series := BuildMonthlyIndex(records, cfg.MinSalesPerMonth)
	series = AddSmoothedAndRegression(series, cfg.SmoothWindow)

	e.logger.InfoContext(ctx, "built monthly index",
		"records", len(records),
		"buckets", len(series),
		"smooth_window", cfg.SmoothWindow,
		"duration", time.Since(start),
	)

	e.mu.Lock()
	e.cache[key] = series
	e.mu.Unlock()
	return series
}

// Analyze runs the full pipeline: index construction, outlier diagnostics,
// trend summary and adjustment rows for the selected comparables.
//
// comparableIDs selects records by their stable IDs; unknown IDs are skipped
// with a warning. An empty record set yields an empty series ("index
// unavailable"), never an error.
func (e *Engine) Analyze(ctx context.Context, records []SaleRecord, comparableIDs []int64, effectiveDate time.Time, cfg Config) (*AnalysisResult, error) {
	cfg.Normalize()

	if err := validateRecords(records); err != nil {
		return nil, err
	}

	series := e.BuildIndex(ctx, records, cfg)
	flags := ComputeDiagnostics(records, cfg)

	byID := make(map[int64]SaleRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	comparables := make([]SaleRecord, 0, len(comparableIDs))
	for _, id := range comparableIDs {
		r, ok := byID[id]
		if !ok {
			e.logger.WarnContext(ctx, "comparable id not in record set", "record_id", id)
			continue
		}
		comparables = append(comparables, r)
	}

	adjustments, effective := ComputeAdjustments(series, comparables, effectiveDate, cfg)
	trend := ComputeTrend(series, effectiveDate, cfg)

	e.logger.InfoContext(ctx, "analysis completed",
		"records", len(records),
		"buckets", len(series),
		"comparables", len(adjustments),
		"effective_resolution", effective.Resolution.String(),
		"trend", trend.Label,
	)

	return &AnalysisResult{
		Series:         series,
		Flags:          flags,
		Adjustments:    adjustments,
		EffectiveIndex: effective,
		Trend:          trend,
	}, nil
}

// validateRecords rejects records the upstream filter should never let
// through: zero dates or non-positive prices
func validateRecords(records []SaleRecord) error {
	for _, r := range records {
		if !r.IsValid() {
			return fmt.Errorf("invalid sale record %d: date and positive price required", r.ID)
		}
	}
	return nil
}

// indexFingerprint hashes record identity, dates, prices and the numeric
// configuration tuple that affects index construction
func indexFingerprint(records []SaleRecord, cfg Config) uint64 {
	h := fnv.New64a()
	buf := make([]byte, 8)

	writeInt := func(v int64) {
		binary.LittleEndian.PutUint64(buf, uint64(v))
		h.Write(buf)
	}
	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		h.Write(buf)
	}

	for _, r := range records {
		writeInt(r.ID)
		writeInt(r.ContractDate.Unix())
		writeFloat(r.SoldPrice)
	}
	writeInt(int64(cfg.MinSalesPerMonth))
	writeInt(int64(cfg.SmoothWindow))

	return h.Sum64()
}
