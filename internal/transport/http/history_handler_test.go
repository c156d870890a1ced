package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "marketadjust/internal/errors"
	"marketadjust/internal/history"
)

func newHistoryHandler(t *testing.T, svc *fakeAnalysisService) *HistoryHandler {
	t.Helper()
	logger := testLogger()
	return NewHistoryHandler(svc, logger, apierrors.NewErrorHandler(logger, false))
}

func historyEntries(n int) []history.Entry {
	entries := make([]history.Entry, n)
	for i := range entries {
		entries[i] = history.Entry{
			ID:             string(rune('a' + i)),
			SubjectAddress: "100 Subject Ln",
			EffectiveDate:  time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC),
			CreatedAt:      time.Now().UTC(),
		}
	}
	return entries
}

func TestListHistory(t *testing.T) {
	t.Run("all entries", func(t *testing.T) {
		h := newHistoryHandler(t, &fakeAnalysisService{entries: historyEntries(3)})
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var got struct {
			Entries []history.Entry `json:"entries"`
			Count   int             `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 3, got.Count)
		assert.Len(t, got.Entries, 3)
	})

	t.Run("limit applied", func(t *testing.T) {
		h := newHistoryHandler(t, &fakeAnalysisService{entries: historyEntries(5)})
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?limit=2", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var got struct {
			Count int `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 2, got.Count)
	})

	t.Run("limit out of range", func(t *testing.T) {
		h := newHistoryHandler(t, &fakeAnalysisService{})
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?limit=500", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetEntry(t *testing.T) {
	h := newHistoryHandler(t, &fakeAnalysisService{entries: historyEntries(1)})

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/a", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var entry history.Entry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
		assert.Equal(t, "a", entry.ID)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/zzz", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
	})
}

func TestDeleteEntry(t *testing.T) {
	h := newHistoryHandler(t, &fakeAnalysisService{entries: historyEntries(1)})

	t.Run("deleted", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/a", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/zzz", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
