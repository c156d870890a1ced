package http

import (
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "marketadjust/internal/errors"
	"marketadjust/internal/marketindex"
	mw "marketadjust/internal/middleware"
	"marketadjust/internal/services"
)

// dateLayout is the wire format for calendar dates
const dateLayout = "2006-01-02"

// AnalysisHandler handles analysis run requests with RFC 7807 compliance
type AnalysisHandler struct {
	service      AnalysisServiceInterface
	validation   *mw.ValidationMiddleware
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler

	// dataDir anchors requested file names; clients never supply paths
	dataDir string
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(service AnalysisServiceInterface, validation *mw.ValidationMiddleware, dataDir string, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalysisHandler {
	return &AnalysisHandler{
		service:      service,
		validation:   validation,
		logger:       logger.With(slog.String("component", "analysis_handler")),
		errorHandler: errorHandler,
		dataDir:      dataDir,
	}
}

// Routes returns the analysis routes
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/", h.RunAnalysis)
	return r
}

// SaleRecordBody is one inline sale record on the wire
type SaleRecordBody struct {
	ID           int64   `json:"id" validate:"required,gt=0"`
	Address      string  `json:"address" validate:"required,max=300"`
	ContractDate string  `json:"contract_date" validate:"required,iso8601"`
	SoldPrice    float64 `json:"sold_price" validate:"required,gt=0"`
}

// AnalysisRequestBody is the POST /api/analysis request payload. Records may
// be supplied inline, by file name under the data directory, or both.
type AnalysisRequestBody struct {
	SubjectAddress string                  `json:"subject_address" validate:"omitempty,max=300"`
	EffectiveDate  string                  `json:"effective_date" validate:"required,iso8601"`
	Records        []SaleRecordBody        `json:"records" validate:"omitempty,dive"`
	Files          []string                `json:"files" validate:"omitempty,dive,filename"`
	ComparableIDs  []int64                 `json:"comparable_ids"`
	Options        *services.EngineOptions `json:"options"`
	SaveHistory    *bool                   `json:"save_history"`
}

// RunAnalysis handles POST /api/analysis
func (h *AnalysisHandler) RunAnalysis(w http.ResponseWriter, r *http.Request) {
	reqID := chimiddleware.GetReqID(r.Context())

	var body AnalysisRequestBody
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	if err := h.validation.ValidateStruct(body); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	if len(body.Records) == 0 && len(body.Files) == 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("records", "At least one record or input file is required"))
		return
	}

	effective, err := time.Parse(dateLayout, body.EffectiveDate)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("effective_date", "Invalid calendar date"))
		return
	}

	req := services.AnalysisRequest{
		SubjectAddress: body.SubjectAddress,
		EffectiveDate:  effective,
		ComparableIDs:  body.ComparableIDs,
		Options:        body.Options,
	}
	if body.SaveHistory != nil && !*body.SaveHistory {
		req.SkipHistory = true
	}

	for _, rec := range body.Records {
		contractDate, err := time.Parse(dateLayout, rec.ContractDate)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("contract_date", "Invalid calendar date"))
			return
		}
		req.Records = append(req.Records, marketindex.SaleRecord{
			ID:           rec.ID,
			Address:      rec.Address,
			ContractDate: contractDate,
			SoldPrice:    rec.SoldPrice,
		})
	}

	// The filename validator already rejects separators and traversal, so
	// joining under the data directory cannot escape it
	for _, name := range body.Files {
		req.Files = append(req.Files, filepath.Join(h.dataDir, name))
	}

	h.logger.InfoContext(r.Context(), "running analysis",
		slog.String("request_id", reqID),
		slog.String("subject", body.SubjectAddress),
		slog.String("effective_date", body.EffectiveDate),
		slog.Int("inline_records", len(body.Records)),
		slog.Int("files", len(body.Files)),
		slog.Int("comparables", len(body.ComparableIDs)),
	)

	report, err := h.service.Analyze(r.Context(), req)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "analysis failed",
			slog.String("request_id", reqID),
			slog.String("error", err.Error()),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, report)
}
