// Package services contains the business service layer between the HTTP
// transport and the domain packages. AnalysisService orchestrates ingestion,
// the market index engine and the report history store; HealthService exposes
// operational status for the health endpoints.
//
// Services take their collaborators by injection and log through *slog.Logger.
// Domain failures surface as APIError/AppError values from internal/errors so
// the transport layer can render RFC 7807 responses without inspecting
// service internals.
package services
