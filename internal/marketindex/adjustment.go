package marketindex

import (
	"math"
	"sort"
	"time"
)

// ComputeAdjustments resolves each comparable's contract-date index against
// the series and translates the index gap into percentage and dollar
// adjustments relative to the effective date.
//
// The effective-date index is resolved once with the same lookup rule used
// for every comparable. Comparables closer to the effective date than
// noAdjustmentDays have both outputs forced to exactly 0: time too close to
// matter, make no adjustment. When an index value is unavailable or the
// contract index is zero, the adjustment is undefined rather than zero and
// the row's Defined field is false.
//
// Rows are returned sorted ascending by contract date.
func ComputeAdjustments(series IndexSeries, comparables []SaleRecord, effectiveDate time.Time, cfg Config) ([]ComparableAdjustment, LookupResult) {
	effective := Lookup(series, effectiveDate, cfg.IndexColumn)

	rows := make([]ComparableAdjustment, 0, len(comparables))
	for _, comp := range comparables {
		contract := Lookup(series, comp.ContractDate, cfg.IndexColumn)
		days := daysBetween(comp.ContractDate, effectiveDate)
		applied := days >= cfg.NoAdjustmentDays

		row := ComparableAdjustment{
			RecordID:           comp.ID,
			Address:            comp.Address,
			ContractDate:       comp.ContractDate,
			SalePrice:          comp.SoldPrice,
			ContractIndex:      contract.Value,
			ContractResolution: contract.Resolution,
			EffectiveIndex:     effective.Value,
			DaysFromEffective:  days,
			AdjustmentApplied:  applied,
			Defined:            true,
		}

		switch {
		case !applied:
			// Deliberate policy: force both outputs to exactly zero
			row.PercentAdjustment = 0
			row.DollarAdjustment = 0
		case !effective.Available() || !contract.Available() || contract.Value == 0:
			row.Defined = false
		default:
			row.PercentAdjustment = (effective.Value/contract.Value - 1) * 100
			row.DollarAdjustment = comp.SoldPrice * row.PercentAdjustment / 100
		}

		row.Category = categorizeAdjustment(row)
		row.Direction = adjustmentDirection(row)
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ContractDate.Before(rows[j].ContractDate)
	})

	return rows, effective
}

// categorizeAdjustment classifies the trend implied by the percent adjustment
func categorizeAdjustment(row ComparableAdjustment) string {
	if !row.Defined {
		return CategoryNA
	}
	switch {
	case row.PercentAdjustment > CategoryThreshold:
		return CategoryIncreasing
	case row.PercentAdjustment < -CategoryThreshold:
		return CategoryDeclining
	default:
		return CategoryStable
	}
}

// adjustmentDirection reports whether the adjustment is worth applying at
// all, using a deliberately finer threshold than the category labels
func adjustmentDirection(row ComparableAdjustment) string {
	if !row.Defined || math.Abs(row.PercentAdjustment) < DirectionThreshold {
		return DirectionNoAdjustment
	}
	if row.PercentAdjustment > 0 {
		return DirectionUpward
	}
	return DirectionDownward
}

// ComputeTrend summarizes the overall index movement over a lookback window
// ending at the effective date. With fewer than two in-window buckets the
// full series endpoints are used; with fewer than two buckets overall the
// trend is Stable at 0%.
func ComputeTrend(series IndexSeries, effectiveDate time.Time, cfg Config) TrendSummary {
	summary := TrendSummary{
		LookbackMonths: cfg.TrendLookbackMonths,
		Label:          CategoryStable,
	}
	if len(series) < 2 {
		return summary
	}

	start := monthStart(effectiveDate).AddDate(0, -cfg.TrendLookbackMonths, 0)

	first, last := series[0], series[len(series)-1]
	var inWindow []IndexPoint
	for _, p := range series {
		if !p.Month.Before(start) {
			inWindow = append(inWindow, p)
		}
	}
	if len(inWindow) >= 2 {
		first, last = inWindow[0], inWindow[len(inWindow)-1]
	}

	firstVal := first.Value(cfg.IndexColumn)
	lastVal := last.Value(cfg.IndexColumn)
	if firstVal == 0 {
		return summary
	}

	summary.ChangePercent = (lastVal/firstVal - 1) * 100
	switch {
	case summary.ChangePercent > TrendThreshold:
		summary.Label = CategoryIncreasing
	case summary.ChangePercent < -TrendThreshold:
		summary.Label = CategoryDeclining
	}
	return summary
}
