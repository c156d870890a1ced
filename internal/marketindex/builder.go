package marketindex

import (
	"sort"
	"time"
)

// BuildMonthlyIndex aggregates sale records into monthly buckets and
// chain-links a relative price index.
//
// Records are grouped by the first day of their contract month; months with
// no sales produce no bucket, so the series may contain gaps. The first
// bucket's raw index is exactly 1.00 and each later value is the chain
// product of month-over-month median-price ratios. When a ratio cannot be
// computed (missing or zero median) the previous index value is carried
// forward unchanged, keeping the series continuous without NaN propagation.
//
// minSalesPerMonth controls only the Thin flag; it never excludes a month.
func BuildMonthlyIndex(records []SaleRecord, minSalesPerMonth int) IndexSeries {
	if minSalesPerMonth < 1 {
		minSalesPerMonth = 1
	}

	byMonth := make(map[time.Time][]float64)
	for _, r := range records {
		if !r.IsValid() {
			continue
		}
		m := r.Month()
		byMonth[m] = append(byMonth[m], r.SoldPrice)
	}

	if len(byMonth) == 0 {
		return nil
	}

	series := make(IndexSeries, 0, len(byMonth))
	for month, prices := range byMonth {
		series = append(series, IndexPoint{
			Month:       month,
			SalesCount:  len(prices),
			MedianPrice: calculateMedian(prices),
			Thin:        len(prices) < minSalesPerMonth,
		})
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Month.Before(series[j].Month)
	})

	// Base period
	series[0].RawIndex = 1.00

	for i := 1; i < len(series); i++ {
		prev := series[i-1].MedianPrice
		cur := series[i].MedianPrice
		if prev <= 0 || cur <= 0 {
			// Carry forward: no ratio applied
			series[i].RawIndex = series[i-1].RawIndex
			continue
		}
		series[i].RawIndex = series[i-1].RawIndex * (cur / prev)
	}

	return series
}
