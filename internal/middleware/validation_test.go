package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "marketadjust/internal/errors"
)

func newValidation() *ValidationMiddleware {
	logger := discardLogger()
	return NewValidationMiddleware(logger, apierrors.NewErrorHandler(logger, false))
}

func TestValidateRequest(t *testing.T) {
	m := newValidation()
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("get passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		m.ValidateRequest(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("valid json body accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/analysis", strings.NewReader(`{"effective_date":"2024-06-15"}`))
		rec := httptest.NewRecorder()
		m.ValidateRequest(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid json rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/analysis", strings.NewReader(`{"broken`))
		rec := httptest.NewRecorder()
		m.ValidateRequest(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestValidateStruct(t *testing.T) {
	m := newValidation()

	type request struct {
		EffectiveDate string `json:"effective_date" validate:"required,iso8601"`
		Column        string `json:"column" validate:"omitempty,oneof=raw smoothed regression"`
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, m.ValidateStruct(request{EffectiveDate: "2024-06-15", Column: "smoothed"}))
	})

	t.Run("missing required field", func(t *testing.T) {
		err := m.ValidateStruct(request{})
		require.Error(t, err)

		apiErr, ok := err.(*apierrors.APIError)
		require.True(t, ok)
		assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)
	})

	t.Run("bad date format", func(t *testing.T) {
		assert.Error(t, m.ValidateStruct(request{EffectiveDate: "June 15, 2024"}))
	})

	t.Run("bad column enum", func(t *testing.T) {
		assert.Error(t, m.ValidateStruct(request{EffectiveDate: "2024-06-15", Column: "median"}))
	})
}

func TestContentTypeValidator(t *testing.T) {
	handler := ContentTypeValidator("application/json")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	t.Run("json accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing content type rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong content type rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("<xml/>"))
		req.Header.Set("Content-Type", "text/xml")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})
}

func TestQueryParamValidator(t *testing.T) {
	logger := discardLogger()
	v := NewQueryParamValidator(logger, apierrors.NewErrorHandler(logger, false))

	t.Run("default when absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
		got, ok := v.ValidateInt(httptest.NewRecorder(), req, "limit", 1, 100, 25)
		assert.True(t, ok)
		assert.Equal(t, 25, got)
	})

	t.Run("out of range rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/history?limit=500", nil)
		rec := httptest.NewRecorder()
		_, ok := v.ValidateInt(rec, req, "limit", 1, 100, 25)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("enum", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/history?column=regression", nil)
		got, ok := v.ValidateEnum(httptest.NewRecorder(), req, "column", []string{"raw", "smoothed", "regression"}, "smoothed")
		assert.True(t, ok)
		assert.Equal(t, "regression", got)

		req = httptest.NewRequest(http.MethodGet, "/api/history?column=median", nil)
		rec := httptest.NewRecorder()
		_, ok = v.ValidateEnum(rec, req, "column", []string{"raw", "smoothed", "regression"}, "smoothed")
		assert.False(t, ok)
	})
}
