package marketindex

import (
	"time"
)

// Lookup resolves a calendar date to an index value.
//
// The target date is truncated to its month. An exact bucket match wins;
// otherwise the most recent bucket at or before the target month is used
// (resolution "prior"). A target predating all data resolves to "no_prior"
// and an empty series to "no_index"; neither carries a usable value.
//
// The same rule must be applied to the appraisal's effective date and to
// every comparable's contract date, so that fallback behavior never biases
// adjustments asymmetrically.
func Lookup(series IndexSeries, target time.Time, col IndexColumn) LookupResult {
	if series.IsEmpty() || target.IsZero() {
		return LookupResult{Resolution: ResolutionNoIndex}
	}

	m := monthStart(target)

	// Series is sorted ascending by month; scan from the end for the most
	// recent bucket at or before the target month
	for i := len(series) - 1; i >= 0; i-- {
		p := series[i]
		if p.Month.After(m) {
			continue
		}
		res := ResolutionPrior
		if p.Month.Equal(m) {
			res = ResolutionExact
		}
		return LookupResult{
			Value:      p.Value(col),
			Month:      p.Month,
			Resolution: res,
		}
	}

	return LookupResult{Resolution: ResolutionNoPrior}
}
