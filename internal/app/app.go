package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"marketadjust/internal/config"
	apierrors "marketadjust/internal/errors"
	"marketadjust/internal/history"
	"marketadjust/internal/infrastructure"
	"marketadjust/internal/ingest"
	"marketadjust/internal/marketindex"
	customMiddleware "marketadjust/internal/middleware"
	"marketadjust/internal/services"
	handlers "marketadjust/internal/transport/http"
)

const (
	// Version is the application version
	Version = "v1.0.0"
	// AppName is the human-readable application name
	AppName = "Market Adjustment Engine"
)

// Application is the main application container wiring configuration,
// services and the HTTP server together.
type Application struct {
	Config *config.Config
	Paths  *config.Paths
	Router *chi.Mux
	Server *http.Server
	Logger *slog.Logger

	OTelProviders *infrastructure.OTelProviders

	Engine          *marketindex.Engine
	HistoryStore    *history.Store
	AnalysisService *services.AnalysisService
	HealthService   *services.HealthService
	Metrics         *infrastructure.BusinessMetrics
}

// NewApplication creates a fully initialized application: configuration,
// logging, OpenTelemetry, services, router and server.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", Version))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	return New(cfg, logger, otelProviders)
}

// New assembles an application from already-initialized dependencies.
// otelProviders may be nil; tracing middleware and /metrics are then
// disabled. Used directly by tests and the CLI.
func New(cfg *config.Config, logger *slog.Logger, otelProviders *infrastructure.OTelProviders) (*Application, error) {
	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	logger.Info("Application paths",
		slog.String("data_dir", paths.DataDir),
		slog.String("reports_dir", paths.ReportsDir),
		slog.String("history_file", paths.HistoryFile),
		slog.String("logs_dir", paths.LogsDir))

	app := &Application{
		Config:        cfg,
		Paths:         paths,
		Logger:        logger,
		OTelProviders: otelProviders,
	}

	app.initializeServices()
	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices wires the engine, stores and service layer
func (a *Application) initializeServices() {
	a.Engine = marketindex.NewEngine(a.Logger)
	a.HistoryStore = history.NewStore(a.Paths.HistoryFile, a.Logger)

	if a.OTelProviders != nil {
		m, err := infrastructure.CreateBusinessMetrics(a.OTelProviders.Meter)
		if err != nil {
			a.Logger.Error("Failed to create business metrics", slog.String("error", err.Error()))
		} else {
			a.Metrics = m
		}
	}

	a.AnalysisService = services.NewAnalysisService(
		a.Engine,
		ingest.NewParser(a.Logger),
		a.HistoryStore,
		a.Config.Engine.ToEngine(),
		a.Metrics,
		a.Logger,
	)

	a.HealthService = services.NewHealthService(Version, a.Config.Paths, a.HistoryStore, a.Logger)
}

// setupRouter configures the HTTP router with middleware and routes.
// Ordering: RequestID, RealIP and StripSlashes run on every route; the API
// group adds OTel, business metrics, compression, logging, recovery, security
// headers and rate limiting.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.StripSlashes)

	r.Group(func(r chi.Router) {
		if a.OTelProviders != nil {
			otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders)
			if err != nil {
				a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
			} else {
				r.Use(otelMiddleware.Handler)
			}
		}
		if a.Metrics != nil {
			r.Use(customMiddleware.BusinessMetricsMiddleware(a.Metrics))
		}

		r.Use(customMiddleware.Compress(5))
		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)
		r.Use(customMiddleware.NewRateLimiter(
			a.Config.Server.RateLimitRPS,
			a.Config.Server.RateLimitBurst,
			a.Logger,
		).Handler)

		a.setupAPIRoutes(r)
	})

	// Prometheus scrape endpoint outside the middleware group
	if a.OTelProviders != nil && a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP))
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	errorHandler := apierrors.NewErrorHandler(a.Logger, false)
	errorMiddleware := apierrors.NewErrorMiddleware(errorHandler, a.Logger)
	validation := customMiddleware.NewValidationMiddleware(a.Logger, errorHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(customMiddleware.Timeout(a.Config.Server.ReadTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		analysisHandler := handlers.NewAnalysisHandler(
			a.AnalysisService, validation, a.Paths.DataDir, a.Logger, errorHandler)
		// Analysis requests get body-aware error logging and JSON validation
		r.With(errorMiddleware.Handler, validation.ValidateRequest).Mount("/analysis", analysisHandler.Routes())

		historyHandler := handlers.NewHistoryHandler(a.AnalysisService, a.Logger, errorHandler)
		r.Mount("/history", historyHandler.Routes())
	})

	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)
}

// createServer builds the HTTP server from the configured timeouts
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Start starts the HTTP server. Server failures cancel the passed context.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "Application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))

	return nil
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
	}

	return a.Stop(context.Background())
}
