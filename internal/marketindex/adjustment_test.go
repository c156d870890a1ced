package marketindex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatSeries builds a series whose requested column is constant at value for
// every month between start and start+months-1
func flatSeries(start time.Time, months int, value float64) IndexSeries {
	series := make(IndexSeries, months)
	for i := range series {
		series[i] = IndexPoint{
			Month:           monthStart(start).AddDate(0, i, 0),
			RawIndex:        value,
			SmoothedIndex:   value,
			RegressionIndex: value,
		}
	}
	return series
}

func TestComputeAdjustments(t *testing.T) {
	effective := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	t.Run("applied adjustment computes percent and dollars", func(t *testing.T) {
		// Contract index 1.02 in February, effective index 1.05 in June
		series := IndexSeries{
			{Month: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.02},
			{Month: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.05},
		}
		comp := SaleRecord{
			ID:           1,
			Address:      "55 Comp Ave",
			ContractDate: time.Date(2024, time.February, 16, 0, 0, 0, 0, time.UTC), // 120 days out
			SoldPrice:    400000,
		}

		cfg := DefaultConfig()
		cfg.NoAdjustmentDays = 90

		rows, eff := ComputeAdjustments(series, []SaleRecord{comp}, effective, cfg)
		require.Len(t, rows, 1)
		require.Equal(t, ResolutionExact, eff.Resolution)

		row := rows[0]
		assert.True(t, row.AdjustmentApplied)
		assert.True(t, row.Defined)
		assert.Equal(t, 120, row.DaysFromEffective)
		assert.InDelta(t, 2.9412, row.PercentAdjustment, 0.0001)
		assert.InDelta(t, 11764.7, row.DollarAdjustment, 0.1)
		assert.Equal(t, CategoryIncreasing, row.Category)
		assert.Equal(t, DirectionUpward, row.Direction)
	})

	t.Run("gated adjustment forced to exactly zero", func(t *testing.T) {
		series := IndexSeries{
			{Month: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.02},
			{Month: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.05},
		}
		comp := SaleRecord{
			ID:           1,
			ContractDate: time.Date(2024, time.May, 16, 0, 0, 0, 0, time.UTC), // 30 days out
			SoldPrice:    400000,
		}

		cfg := DefaultConfig()
		cfg.NoAdjustmentDays = 90

		rows, _ := ComputeAdjustments(series, []SaleRecord{comp}, effective, cfg)
		require.Len(t, rows, 1)

		row := rows[0]
		assert.False(t, row.AdjustmentApplied)
		assert.True(t, row.Defined)
		assert.Equal(t, 0.0, row.PercentAdjustment)
		assert.Equal(t, 0.0, row.DollarAdjustment)
		assert.Equal(t, CategoryStable, row.Category)
		assert.Equal(t, DirectionNoAdjustment, row.Direction)
	})

	t.Run("unavailable contract index is undefined not zero", func(t *testing.T) {
		series := flatSeries(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), 3, 1.05)
		comp := SaleRecord{
			ID:           1,
			ContractDate: time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC), // predates series
			SoldPrice:    400000,
		}

		cfg := DefaultConfig()
		rows, _ := ComputeAdjustments(series, []SaleRecord{comp}, effective, cfg)
		require.Len(t, rows, 1)

		row := rows[0]
		assert.True(t, row.AdjustmentApplied)
		assert.False(t, row.Defined)
		assert.Equal(t, ResolutionNoPrior, row.ContractResolution)
		assert.Equal(t, CategoryNA, row.Category)
		assert.Equal(t, DirectionNoAdjustment, row.Direction)
	})

	t.Run("empty series resolves nothing", func(t *testing.T) {
		comp := SaleRecord{ID: 1, ContractDate: effective.AddDate(0, -6, 0), SoldPrice: 100000}
		rows, eff := ComputeAdjustments(nil, []SaleRecord{comp}, effective, DefaultConfig())
		require.Len(t, rows, 1)
		assert.Equal(t, ResolutionNoIndex, eff.Resolution)
		assert.False(t, rows[0].Defined)
	})

	t.Run("small gap below direction threshold reports no adjustment", func(t *testing.T) {
		series := IndexSeries{
			{Month: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.0000},
			{Month: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.0005},
		}
		comp := SaleRecord{
			ID:           1,
			ContractDate: time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
			SoldPrice:    250000,
		}

		cfg := DefaultConfig()
		rows, _ := ComputeAdjustments(series, []SaleRecord{comp}, effective, cfg)
		require.Len(t, rows, 1)

		// +0.05% is below the 0.1 direction threshold but also below the 0.5
		// category threshold: Stable, NO ADJUSTMENT
		assert.Equal(t, CategoryStable, rows[0].Category)
		assert.Equal(t, DirectionNoAdjustment, rows[0].Direction)
	})

	t.Run("thresholds diverge between category and direction", func(t *testing.T) {
		// +0.3%: below the 0.5 category threshold (Stable) yet above the 0.1
		// direction threshold (UPWARD)
		series := IndexSeries{
			{Month: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.000},
			{Month: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.003},
		}
		comp := SaleRecord{
			ID:           1,
			ContractDate: time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
			SoldPrice:    250000,
		}

		rows, _ := ComputeAdjustments(series, []SaleRecord{comp}, effective, DefaultConfig())
		require.Len(t, rows, 1)
		assert.Equal(t, CategoryStable, rows[0].Category)
		assert.Equal(t, DirectionUpward, rows[0].Direction)
	})

	t.Run("declining market", func(t *testing.T) {
		series := IndexSeries{
			{Month: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.05},
			{Month: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.00},
		}
		comp := SaleRecord{
			ID:           1,
			ContractDate: time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC),
			SoldPrice:    500000,
		}

		rows, _ := ComputeAdjustments(series, []SaleRecord{comp}, effective, DefaultConfig())
		require.Len(t, rows, 1)
		assert.Equal(t, CategoryDeclining, rows[0].Category)
		assert.Equal(t, DirectionDownward, rows[0].Direction)
		assert.Less(t, rows[0].DollarAdjustment, 0.0)
	})

	t.Run("rows sorted by contract date", func(t *testing.T) {
		series := flatSeries(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), 6, 1.0)
		comps := []SaleRecord{
			{ID: 2, ContractDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), SoldPrice: 1},
			{ID: 1, ContractDate: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), SoldPrice: 1},
			{ID: 3, ContractDate: time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC), SoldPrice: 1},
		}

		rows, _ := ComputeAdjustments(series, comps, effective, DefaultConfig())
		require.Len(t, rows, 3)
		assert.Equal(t, int64(1), rows[0].RecordID)
		assert.Equal(t, int64(2), rows[1].RecordID)
		assert.Equal(t, int64(3), rows[2].RecordID)
	})
}

func TestComputeTrend(t *testing.T) {
	effective := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)

	t.Run("short series is stable", func(t *testing.T) {
		trend := ComputeTrend(flatSeries(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), 1, 1.0), effective, DefaultConfig())
		assert.Equal(t, CategoryStable, trend.Label)
		assert.Zero(t, trend.ChangePercent)
	})

	t.Run("rising market classified increasing", func(t *testing.T) {
		series := IndexSeries{
			{Month: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.00},
			{Month: time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.08},
		}
		trend := ComputeTrend(series, effective, DefaultConfig())
		assert.Equal(t, CategoryIncreasing, trend.Label)
		assert.InDelta(t, 8.0, trend.ChangePercent, 1e-9)
	})

	t.Run("lookback excludes older buckets", func(t *testing.T) {
		series := IndexSeries{
			{Month: time.Date(2022, time.January, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 0.50},
			{Month: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.00},
			{Month: time.Date(2024, time.September, 1, 0, 0, 0, 0, time.UTC), SmoothedIndex: 1.01},
		}
		cfg := DefaultConfig()
		cfg.TrendLookbackMonths = 12

		trend := ComputeTrend(series, effective, cfg)
		// The 2022 bucket is outside the window; +1% within it is stable
		assert.Equal(t, CategoryStable, trend.Label)
		assert.InDelta(t, 1.0, trend.ChangePercent, 1e-9)
	})
}
