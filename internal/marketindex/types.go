package marketindex

import (
	"time"
)

// IndexColumn selects which index series column a lookup or adjustment reads.
type IndexColumn string

const (
	// ColumnRaw is the chain-linked index built directly from monthly medians.
	ColumnRaw IndexColumn = "raw"
	// ColumnSmoothed is the centered rolling mean of the raw index.
	ColumnSmoothed IndexColumn = "smoothed"
	// ColumnRegression is the linear trend fit of the raw index.
	ColumnRegression IndexColumn = "regression"
)

// String returns the string representation of the index column
func (c IndexColumn) String() string {
	return string(c)
}

// IsValid checks if the column is one of the known index columns
func (c IndexColumn) IsValid() bool {
	switch c {
	case ColumnRaw, ColumnSmoothed, ColumnRegression:
		return true
	default:
		return false
	}
}

// ParseIndexColumn maps caller input to an IndexColumn, defaulting to smoothed
func ParseIndexColumn(s string) IndexColumn {
	switch IndexColumn(s) {
	case ColumnRaw:
		return ColumnRaw
	case ColumnRegression:
		return ColumnRegression
	default:
		return ColumnSmoothed
	}
}

// Resolution describes how a date was resolved against the index series.
type Resolution string

const (
	// ResolutionExact means a bucket exists for the target month.
	ResolutionExact Resolution = "exact"
	// ResolutionPrior means the most recent bucket before the target month was used.
	ResolutionPrior Resolution = "prior"
	// ResolutionNoPrior means the target predates all index data.
	ResolutionNoPrior Resolution = "no_prior"
	// ResolutionNoIndex means the index series is empty.
	ResolutionNoIndex Resolution = "no_index"
)

// String returns the string representation of the resolution mode
func (r Resolution) String() string {
	return string(r)
}

// Available reports whether the resolution produced a usable index value
func (r Resolution) Available() bool {
	return r == ResolutionExact || r == ResolutionPrior
}

// SaleRecord is a single validated property sale observation.
// ID is assigned once when the record enters the store and is the only
// stable handle other components may reference.
type SaleRecord struct {
	ID           int64     `json:"id"`
	Address      string    `json:"address"`
	ContractDate time.Time `json:"contract_date"`
	SoldPrice    float64   `json:"sold_price"`
}

// IsValid checks if the sale record data is valid
func (sr SaleRecord) IsValid() bool {
	return !sr.ContractDate.IsZero() && sr.SoldPrice > 0
}

// Month returns the first day of the record's contract month
func (sr SaleRecord) Month() time.Time {
	return monthStart(sr.ContractDate)
}

// IndexPoint is one monthly bucket of the index series with its raw and
// post-processed values.
type IndexPoint struct {
	Month           time.Time `json:"month"`
	SalesCount      int       `json:"sales_count"`
	MedianPrice     float64   `json:"median_price"`
	Thin            bool      `json:"thin"`
	RawIndex        float64   `json:"raw_index"`
	SmoothedIndex   float64   `json:"smoothed_index"`
	StdDev          float64   `json:"std_dev"`
	RegressionIndex float64   `json:"regression_index"`
}

// Value returns the index value for the requested column
func (p IndexPoint) Value(col IndexColumn) float64 {
	switch col {
	case ColumnRaw:
		return p.RawIndex
	case ColumnRegression:
		return p.RegressionIndex
	default:
		return p.SmoothedIndex
	}
}

// IndexSeries is an ordered monthly index, strictly increasing in month.
// It is built once per (record set, configuration) pair and never mutated.
type IndexSeries []IndexPoint

// IsEmpty reports whether the series has no buckets
func (s IndexSeries) IsEmpty() bool {
	return len(s) == 0
}

// DiagnosticFlag carries the per-record outlier verdict of both rules.
// Leverage and Cook's distance are retained for display; leverage alone is
// never a flag criterion.
type DiagnosticFlag struct {
	RecordID       int64   `json:"record_id"`
	IQROutlier     bool    `json:"iqr_outlier"`
	PriceDeviation bool    `json:"price_deviation"`
	HighInfluence  bool    `json:"high_influence"`
	Leverage       float64 `json:"leverage"`
	CooksDistance  float64 `json:"cooks_distance"`
	Flagged        bool    `json:"flagged"`
	Reason         string  `json:"reason"`
}

// RegressionOutlier reports whether either regression-based rule fired
func (df DiagnosticFlag) RegressionOutlier() bool {
	return df.PriceDeviation || df.HighInfluence
}

// LookupResult is the outcome of resolving a calendar date against the series.
type LookupResult struct {
	Value      float64    `json:"value"`
	Month      time.Time  `json:"month"`
	Resolution Resolution `json:"resolution"`
}

// Available reports whether the lookup produced a usable index value
func (lr LookupResult) Available() bool {
	return lr.Resolution.Available()
}

// ComparableAdjustment is the adjustment row computed for one selected
// comparable sale against a fixed effective date.
type ComparableAdjustment struct {
	RecordID          int64     `json:"record_id"`
	Address           string    `json:"address"`
	ContractDate      time.Time `json:"contract_date"`
	SalePrice         float64   `json:"sale_price"`
	ContractIndex     float64   `json:"contract_index"`
	ContractResolution Resolution `json:"contract_resolution"`
	EffectiveIndex    float64   `json:"effective_index"`
	DaysFromEffective int       `json:"days_from_effective"`
	AdjustmentApplied bool      `json:"adjustment_applied"`
	// Defined is false when the percent adjustment could not be computed
	// (index unavailable or zero contract index). Callers must distinguish
	// this from a gated-off adjustment of exactly 0.
	Defined           bool    `json:"defined"`
	PercentAdjustment float64 `json:"percent_adjustment"`
	DollarAdjustment  float64 `json:"dollar_adjustment"`
	Category          string  `json:"category"`
	Direction         string  `json:"direction"`
}

// TrendSummary classifies the overall market movement over a lookback window
// ending at the effective date.
type TrendSummary struct {
	LookbackMonths int     `json:"lookback_months"`
	ChangePercent  float64 `json:"change_percent"`
	Label          string  `json:"label"`
}

// Config holds the engine configuration. Invalid values are clamped by
// Normalize rather than rejected.
type Config struct {
	MinSalesPerMonth      int         `json:"min_sales_per_month"`
	SmoothWindow          int         `json:"smooth_window"`
	IQRMultiplier         float64     `json:"iqr_multiplier"`
	UseIQR                bool        `json:"use_iqr"`
	UseRegressionOutliers bool        `json:"use_regression_outliers"`
	NoAdjustmentDays      int         `json:"no_adjustment_days"`
	IndexColumn           IndexColumn `json:"index_column"`
	TrendLookbackMonths   int         `json:"trend_lookback_months"`
}

// DefaultConfig returns the recommended engine configuration
func DefaultConfig() Config {
	return Config{
		MinSalesPerMonth:      5,
		SmoothWindow:          6,
		IQRMultiplier:         1.0,
		UseIQR:                true,
		UseRegressionOutliers: false,
		NoAdjustmentDays:      90,
		IndexColumn:           ColumnSmoothed,
		TrendLookbackMonths:   12,
	}
}

// Normalize clamps configuration values into their valid ranges
func (c *Config) Normalize() {
	if c.MinSalesPerMonth < 1 {
		c.MinSalesPerMonth = 1
	}
	if c.SmoothWindow < 2 {
		c.SmoothWindow = 2
	}
	if c.IQRMultiplier <= 0 {
		c.IQRMultiplier = 1.0
	}
	if c.NoAdjustmentDays < 0 {
		c.NoAdjustmentDays = 0
	}
	if !c.IndexColumn.IsValid() {
		c.IndexColumn = ColumnSmoothed
	}
	if c.TrendLookbackMonths < 1 {
		c.TrendLookbackMonths = 12
	}
}

// IsValid checks if the configuration is valid without clamping
func (c Config) IsValid() bool {
	return c.MinSalesPerMonth >= 1 && c.SmoothWindow >= 2 &&
		c.IQRMultiplier > 0 && c.NoAdjustmentDays >= 0 &&
		c.IndexColumn.IsValid() && c.TrendLookbackMonths >= 1
}

// Constants for diagnostic and classification thresholds
const (
	// MinRecordsForRegression is the minimum record count for the
	// regression-residual outlier rule
	MinRecordsForRegression = 6

	// StudentizedResidualThreshold flags price-deviation outliers
	StudentizedResidualThreshold = 2.0

	// CategoryThreshold classifies Increasing/Declining/Stable (percent)
	CategoryThreshold = 0.5

	// DirectionThreshold decides whether an adjustment is worth reporting
	// (percent). Intentionally smaller than CategoryThreshold.
	DirectionThreshold = 0.1

	// TrendThreshold classifies the overall lookback trend (percent)
	TrendThreshold = 2.0
)

// Adjustment category labels
const (
	CategoryIncreasing = "Increasing"
	CategoryDeclining  = "Declining"
	CategoryStable     = "Stable"
	CategoryNA         = "N/A"
)

// Adjustment direction labels
const (
	DirectionUpward       = "UPWARD"
	DirectionDownward     = "DOWNWARD"
	DirectionNoAdjustment = "NO ADJUSTMENT"
)

// Outlier reason labels
const (
	ReasonIQR            = "IQR"
	ReasonPriceDeviation = "Price Dev"
	ReasonCooksDistance  = "Cook's D"
)

// monthStart truncates a date to the first day of its month in UTC
func monthStart(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// dayStart truncates a timestamp to midnight UTC
func dayStart(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the absolute whole-day distance between two dates
func daysBetween(a, b time.Time) int {
	diff := dayStart(a).Sub(dayStart(b))
	days := int(diff.Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
