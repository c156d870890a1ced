package marketindex

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saleOn(id int64, year int, month time.Month, day int, price float64) SaleRecord {
	return SaleRecord{
		ID:           id,
		Address:      "123 Test St",
		ContractDate: time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		SoldPrice:    price,
	}
}

func TestBuildMonthlyIndex(t *testing.T) {
	t.Run("empty input yields empty series", func(t *testing.T) {
		series := BuildMonthlyIndex(nil, 5)
		assert.True(t, series.IsEmpty())
	})

	t.Run("two months chain-link", func(t *testing.T) {
		records := []SaleRecord{
			saleOn(1, 2024, time.January, 1, 300000),
			saleOn(2, 2024, time.February, 1, 310000),
		}

		series := BuildMonthlyIndex(records, 1)
		require.Len(t, series, 2)

		assert.Equal(t, 1.00, series[0].RawIndex)
		assert.InDelta(t, 310000.0/300000.0, series[1].RawIndex, 1e-12)
		assert.False(t, series[0].Thin)
		assert.False(t, series[1].Thin)
	})

	t.Run("first bucket index is exactly one", func(t *testing.T) {
		records := []SaleRecord{
			saleOn(1, 2023, time.June, 15, 450000),
			saleOn(2, 2023, time.July, 2, 470000),
			saleOn(3, 2023, time.August, 20, 430000),
		}

		series := BuildMonthlyIndex(records, 5)
		require.NotEmpty(t, series)
		assert.Equal(t, 1.00, series[0].RawIndex)
	})

	t.Run("chain property holds for every consecutive pair", func(t *testing.T) {
		records := []SaleRecord{
			saleOn(1, 2024, time.January, 5, 300000),
			saleOn(2, 2024, time.February, 8, 320000),
			saleOn(3, 2024, time.March, 11, 290000),
			saleOn(4, 2024, time.April, 14, 335000),
		}

		series := BuildMonthlyIndex(records, 1)
		require.Len(t, series, 4)

		for i := 1; i < len(series); i++ {
			expected := series[i-1].RawIndex * series[i].MedianPrice / series[i-1].MedianPrice
			assert.InDelta(t, expected, series[i].RawIndex, 1e-12, "bucket %d", i)
		}
	})

	t.Run("even count averages the two central prices", func(t *testing.T) {
		records := []SaleRecord{
			saleOn(1, 2024, time.March, 1, 100000),
			saleOn(2, 2024, time.March, 10, 200000),
			saleOn(3, 2024, time.March, 20, 300000),
			saleOn(4, 2024, time.March, 28, 400000),
		}

		series := BuildMonthlyIndex(records, 1)
		require.Len(t, series, 1)
		assert.Equal(t, 250000.0, series[0].MedianPrice)
		assert.Equal(t, 4, series[0].SalesCount)
	})

	t.Run("thin month flagged but never excluded", func(t *testing.T) {
		records := []SaleRecord{
			saleOn(1, 2024, time.January, 1, 300000),
			saleOn(2, 2024, time.January, 2, 305000),
			saleOn(3, 2024, time.February, 1, 310000),
		}

		series := BuildMonthlyIndex(records, 2)
		require.Len(t, series, 2)
		assert.False(t, series[0].Thin)
		assert.True(t, series[1].Thin)
	})

	t.Run("gap months are simply absent", func(t *testing.T) {
		records := []SaleRecord{
			saleOn(1, 2024, time.January, 1, 300000),
			saleOn(2, 2024, time.April, 1, 330000),
		}

		series := BuildMonthlyIndex(records, 1)
		require.Len(t, series, 2)
		assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), series[0].Month)
		assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), series[1].Month)
	})

	t.Run("invalid records dropped", func(t *testing.T) {
		records := []SaleRecord{
			saleOn(1, 2024, time.January, 1, 300000),
			{ID: 2, SoldPrice: 310000},                   // zero date
			saleOn(3, 2024, time.February, 1, 0),         // zero price
			saleOn(4, 2024, time.February, 1, 310000),
		}

		series := BuildMonthlyIndex(records, 1)
		require.Len(t, series, 2)
		assert.Equal(t, 1, series[0].SalesCount)
		assert.Equal(t, 1, series[1].SalesCount)
	})

	t.Run("deterministic rebuild is bit-identical", func(t *testing.T) {
		records := []SaleRecord{
			saleOn(1, 2024, time.January, 3, 312500),
			saleOn(2, 2024, time.January, 9, 287000),
			saleOn(3, 2024, time.February, 4, 301000),
			saleOn(4, 2024, time.March, 17, 296500),
			saleOn(5, 2024, time.March, 29, 355000),
		}

		first := AddSmoothedAndRegression(BuildMonthlyIndex(records, 2), 3)
		second := AddSmoothedAndRegression(BuildMonthlyIndex(records, 2), 3)
		require.Equal(t, first, second)
	})
}
