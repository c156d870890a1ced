package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketadjust/internal/history"
	"marketadjust/internal/ingest"
	"marketadjust/internal/marketindex"
	"marketadjust/internal/services"
)

func writeSalesCSV(t *testing.T, dir, name string, rows int) string {
	t.Helper()
	content := "Address,Zip,Pending Date,Sold Price\n"
	for i := 0; i < rows; i++ {
		content += fmt.Sprintf("%d Elm St,1,2024-01-%02d,%d\n", i+1, i%27+1, 300000+i*1000)
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCollectInputFiles(t *testing.T) {
	dir := t.TempDir()
	writeSalesCSV(t, dir, "b.csv", 1)
	writeSalesCSV(t, dir, "a.csv", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	t.Run("directory scan sorted", func(t *testing.T) {
		files, err := collectInputFiles("", dir)
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, filepath.Join(dir, "a.csv"), files[0])
		assert.Equal(t, filepath.Join(dir, "b.csv"), files[1])
	})

	t.Run("explicit list merged", func(t *testing.T) {
		files, err := collectInputFiles("extra.csv, other.xlsx", dir)
		require.NoError(t, err)
		assert.Len(t, files, 4)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := collectInputFiles("", filepath.Join(dir, "absent"))
		assert.Error(t, err)
	})
}

func TestParseComparables(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		ids, err := parseComparables("1, 2,3")
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, ids)
	})

	t.Run("empty", func(t *testing.T) {
		ids, err := parseComparables("")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := parseComparables("1,abc")
		assert.Error(t, err)
	})
}

func TestParseFiles(t *testing.T) {
	dir := t.TempDir()
	writeSalesCSV(t, dir, "a.csv", 3)
	writeSalesCSV(t, dir, "b.csv", 2)

	parser := ingest.NewParser(slog.New(slog.NewTextHandler(io.Discard, nil)))
	files, err := collectInputFiles("", dir)
	require.NoError(t, err)

	records, dropped, err := parseFiles(context.Background(), parser, files)
	require.NoError(t, err)
	assert.Len(t, records, 5)
	assert.Zero(t, dropped)

	// Each file owns its own ID block regardless of parse order
	ids := make(map[int64]bool)
	for _, r := range records {
		ids[r.ID] = true
	}
	assert.True(t, ids[1])
	assert.True(t, ids[3])
	assert.True(t, ids[idBlockSize+1])
	assert.True(t, ids[idBlockSize+2])
	assert.Len(t, ids, 5)

	t.Run("unreadable file fails the group", func(t *testing.T) {
		_, _, err := parseFiles(context.Background(), parser, []string{filepath.Join(dir, "missing.csv")})
		assert.Error(t, err)
	})
}

func TestWriteOutputsNoComparables(t *testing.T) {
	dir := t.TempDir()
	writeSalesCSV(t, dir, "sales.csv", 6)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	parser := ingest.NewParser(logger)
	records, _, err := parseFiles(context.Background(), parser, []string{filepath.Join(dir, "sales.csv")})
	require.NoError(t, err)

	store := history.NewStore(filepath.Join(dir, "history.json"), logger)
	svc := services.NewAnalysisService(
		marketindex.NewEngine(logger), parser, store, marketindex.DefaultConfig(), nil, logger)

	report, err := svc.Analyze(context.Background(), services.AnalysisRequest{
		EffectiveDate: time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		Records:       records,
	})
	require.NoError(t, err)
	require.Empty(t, report.Adjustments)

	out := filepath.Join(dir, "out")
	require.NoError(t, writeOutputs(report, out))

	// No comparables: the adjustments CSV is skipped, everything else written
	assert.FileExists(t, filepath.Join(out, "index.csv"))
	assert.FileExists(t, filepath.Join(out, "result.json"))
	assert.NoFileExists(t, filepath.Join(out, "adjustments.csv"))
}
