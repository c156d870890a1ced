// Package marketindex implements the market-condition index and adjustment
// engine for property sale records.
//
// The engine builds a monthly chain-linked price index from raw sales,
// post-processes it with rolling smoothing and a linear trend fit, flags
// outliers with distribution-based and regression-residual rules, resolves
// arbitrary dates against the index with a prior-month fallback, and
// translates index gaps into percentage and dollar adjustments for selected
// comparable sales.
//
// # Core Components
//
//   - types.go: records, index points, configuration and result structures
//   - builder.go: monthly bucketing and chain-linked raw index
//   - postprocess.go: centered rolling mean/stddev and regression trend
//   - lookup.go: point-in-time index resolution with fallback modes
//   - diagnostics.go: IQR and regression-residual outlier rules
//   - adjustment.go: per-comparable adjustments and trend classification
//   - engine.go: orchestrator with memoized index construction
//   - persist.go: CSV and JSON output formatting
//
// # Usage Example
//
//	engine := marketindex.NewEngine(slog.Default())
//	result, err := engine.Analyze(ctx, records, comparableIDs, effectiveDate, marketindex.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = marketindex.SaveAdjustmentsToCSV(result.Adjustments, "output/adjustments.csv")
//
// # Design Notes
//
// Every operation is a pure, synchronous function of its inputs: derived
// structures (buckets, series, flags, adjustments) are recomputed wholesale
// from the record set and configuration, never patched incrementally. No
// condition is fatal; insufficient data degrades to sentinel resolutions,
// carried-forward index values or skipped flagging rules, and configuration
// defects are clamped rather than rejected.
//
// Two behaviors are deliberate domain policy, not defects: the raw index
// carries forward unchanged when a month-over-month ratio cannot be
// computed, and adjustment classification uses two different thresholds
// (0.5 for trend category, 0.1 for adjustment-worth-reporting).
package marketindex
