package http

import (
	"context"

	"marketadjust/internal/history"
	"marketadjust/internal/services"
)

// AnalysisServiceInterface is the service surface the handlers consume
type AnalysisServiceInterface interface {
	Analyze(ctx context.Context, req services.AnalysisRequest) (*services.AnalysisReport, error)
	History(ctx context.Context) []history.Entry
	HistoryEntry(ctx context.Context, id string) (history.Entry, error)
	DeleteHistoryEntry(ctx context.Context, id string) error
}
