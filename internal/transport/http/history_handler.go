package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "marketadjust/internal/errors"
	mw "marketadjust/internal/middleware"
)

// HistoryHandler handles report history HTTP requests
type HistoryHandler struct {
	service      AnalysisServiceInterface
	queryParams  *mw.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(service AnalysisServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *HistoryHandler {
	return &HistoryHandler{
		service:      service,
		queryParams:  mw.NewQueryParamValidator(logger, errorHandler),
		logger:       logger.With(slog.String("component", "history_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the history routes
func (h *HistoryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.ListHistory)
	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.EntryCtx)
		r.Get("/", h.GetEntry)
		r.Delete("/", h.DeleteEntry)
	})

	return r
}

// EntryCtx validates the entry ID parameter
func (h *HistoryHandler) EntryCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "" {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("id", "History entry ID is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListHistory handles GET /api/history
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.queryParams.ValidateInt(w, r, "limit", 1, 50, 50)
	if !ok {
		return
	}

	entries := h.service.History(r.Context())
	if len(entries) > limit {
		entries = entries[:limit]
	}

	render.JSON(w, r, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// GetEntry handles GET /api/history/{id}
func (h *HistoryHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	entry, err := h.service.HistoryEntry(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, entry)
}

// DeleteEntry handles DELETE /api/history/{id}
func (h *HistoryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteHistoryEntry(r.Context(), id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "history entry deleted", slog.String("id", id))
	w.WriteHeader(http.StatusNoContent)
}
