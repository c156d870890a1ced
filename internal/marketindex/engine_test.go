package marketindex

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func marketRecords() []SaleRecord {
	records := make([]SaleRecord, 0, 12)
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	prices := []float64{300000, 305000, 298000, 312000, 308000, 315000, 320000, 318000, 325000, 322000, 330000, 328000}
	for i, p := range prices {
		records = append(records, SaleRecord{
			ID:           int64(i + 1),
			Address:      "10 Market Rd",
			ContractDate: start.AddDate(0, i/2, (i%2)*14),
			SoldPrice:    p,
		})
	}
	return records
}

func TestEngineAnalyze(t *testing.T) {
	engine := NewEngine(testLogger())
	ctx := context.Background()
	effective := time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)

	t.Run("full pipeline", func(t *testing.T) {
		records := marketRecords()
		result, err := engine.Analyze(ctx, records, []int64{1, 5, 9}, effective, DefaultConfig())
		require.NoError(t, err)

		assert.Len(t, result.Series, 6)
		assert.Len(t, result.Flags, len(records))
		assert.Len(t, result.Adjustments, 3)
		assert.Equal(t, 1.00, result.Series[0].RawIndex)
		assert.True(t, result.EffectiveIndex.Available())
	})

	t.Run("deterministic across invocations", func(t *testing.T) {
		records := marketRecords()
		cfg := DefaultConfig()

		first, err := engine.Analyze(ctx, records, []int64{2, 4}, effective, cfg)
		require.NoError(t, err)
		second, err := engine.Analyze(ctx, records, []int64{2, 4}, effective, cfg)
		require.NoError(t, err)

		require.Equal(t, first, second)
	})

	t.Run("unknown comparable ids skipped", func(t *testing.T) {
		result, err := engine.Analyze(ctx, marketRecords(), []int64{1, 999}, effective, DefaultConfig())
		require.NoError(t, err)
		assert.Len(t, result.Adjustments, 1)
	})

	t.Run("invalid record rejected", func(t *testing.T) {
		records := append(marketRecords(), SaleRecord{ID: 99})
		_, err := engine.Analyze(ctx, records, nil, effective, DefaultConfig())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid sale record")
	})

	t.Run("empty record set yields empty series", func(t *testing.T) {
		result, err := engine.Analyze(ctx, nil, nil, effective, DefaultConfig())
		require.NoError(t, err)
		assert.True(t, result.Series.IsEmpty())
		assert.Equal(t, ResolutionNoIndex, result.EffectiveIndex.Resolution)
	})

	t.Run("config defects clamped not rejected", func(t *testing.T) {
		cfg := Config{SmoothWindow: -3, MinSalesPerMonth: 0, IQRMultiplier: -1, NoAdjustmentDays: -5, IndexColumn: "bogus"}
		result, err := engine.Analyze(ctx, marketRecords(), nil, effective, cfg)
		require.NoError(t, err)
		assert.NotEmpty(t, result.Series)
	})
}

func TestEngineBuildIndexCache(t *testing.T) {
	engine := NewEngine(testLogger())
	ctx := context.Background()
	records := marketRecords()
	cfg := DefaultConfig()

	first := engine.BuildIndex(ctx, records, cfg)
	second := engine.BuildIndex(ctx, records, cfg)
	require.Equal(t, first, second)

	// A configuration change that affects construction invalidates the key
	cfg.SmoothWindow = 4
	third := engine.BuildIndex(ctx, records, cfg)
	assert.NotEqual(t, first[1].SmoothedIndex, third[1].SmoothedIndex)
}

func TestIndexFingerprint(t *testing.T) {
	records := marketRecords()
	cfg := DefaultConfig()

	base := indexFingerprint(records, cfg)
	assert.Equal(t, base, indexFingerprint(marketRecords(), cfg))

	changed := marketRecords()
	changed[0].SoldPrice += 1
	assert.NotEqual(t, base, indexFingerprint(changed, cfg))

	cfg.SmoothWindow++
	assert.NotEqual(t, base, indexFingerprint(records, cfg))
}
