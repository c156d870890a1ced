package errors

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
}

func TestErrorToProblem(t *testing.T) {
	h := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/analysis", nil)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"context deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"api validation error", ErrValidationFailed, http.StatusBadRequest, TypeValidation},
		{"api history not found", ErrHistoryNotFound, http.StatusNotFound, TypeHistoryNotFound},
		{"api analysis failed", ErrAnalysisFailed, http.StatusInternalServerError, TypeAnalysisFailed},
		{"api no usable records", ErrNoUsableRecords, http.StatusUnprocessableEntity, TypeIngestFailed},
		{"app parsing error", NewParsingError("bad row", nil), http.StatusUnprocessableEntity, TypeIngestFailed},
		{"app not found", NewNotFoundError("report"), http.StatusNotFound, TypeNotFound},
		{"plain not found text", errors.New("series not found"), http.StatusNotFound, TypeNotFound},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problem := h.ErrorToProblem(tt.err, req)
			assert.Equal(t, tt.wantStatus, problem.Status)
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "/api/analysis", problem.Instance)
		})
	}
}

func TestHandleError(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/analysis", nil)
	rec := httptest.NewRecorder()

	h.HandleError(rec, req, ErrAnalysisExecution(errors.New("singular matrix")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, TypeAnalysisFailed, decoded["type"])
	assert.Equal(t, "ANALYSIS_FAILED", decoded["error_code"])
	assert.Equal(t, "singular matrix", decoded["details"])
}

func TestHandlePanic(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	rec := httptest.NewRecorder()

	h.HandlePanic(rec, req, "unexpected state")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	assert.Equal(t, TypeInternal, decoded["type"])
	// Stack is suppressed outside development mode
	assert.NotContains(t, decoded, "stack")
}

func TestRecoveryMiddleware(t *testing.T) {
	h := newTestHandler()

	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/analysis", nil)

	RecoveryMiddleware(h)(panicky).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	h := newTestHandler()

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPut, "/api/analysis", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSanitizeRequestBody(t *testing.T) {
	body := `{"api_key":"secret-value","address":"10 Market Rd"}`
	sanitized := sanitizeRequestBody(body)

	assert.Contains(t, sanitized, "[REDACTED]")
	assert.Contains(t, sanitized, "10 Market Rd")
	assert.NotContains(t, sanitized, "secret-value")

	// Non-JSON passes through untouched
	assert.Equal(t, "plain text", sanitizeRequestBody("plain text"))
}
