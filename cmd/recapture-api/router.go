// Package main provides the API router setup.
package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/recapturedocs/recapturedocs/cmd/recapture-api/handlers"
	"github.com/recapturedocs/recapturedocs/cmd/recapture-api/middleware"
	"github.com/recapturedocs/recapturedocs/internal/observability"
	"github.com/recapturedocs/recapturedocs/internal/orchestrator"
)

// AppConfig holds the router settings.
type AppConfig struct {
	RequestTimeout time.Duration
	MaxUploadBytes int64
	AllowedOrigins []string
	Invitation     middleware.InvitationConfig
	Devel          bool
	PublicURL      func(path string) string
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *AppConfig, service *orchestrator.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(middleware.TraceID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"recapturedocs"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ready"}`))
	})

	jobsHandler := handlers.NewJobsHandler(logger, service, cfg.PublicURL, cfg.MaxUploadBytes)
	workerHandler := handlers.NewWorkerHandler(logger)

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.With(middleware.Invitation(cfg.Invitation, cfg.MaxUploadBytes)).Post("/", jobsHandler.Upload)

		r.Route("/{jobId}", func(r chi.Router) {
			r.Get("/", jobsHandler.Status)
			r.Post("/register", jobsHandler.Register)
			r.Post("/payment", jobsHandler.InitiatePayment)
			r.Get("/results", jobsHandler.Results)
		})
	})

	// Paths below are handed to external parties and keep their historical shape.
	r.Get("/complete_payment/{jobId}", jobsHandler.CompletePayment)
	r.Get("/image/{taskId}", jobsHandler.Image)
	r.Get("/process", workerHandler.Process)

	if cfg.Devel {
		develHandler := handlers.NewDevelHandler(logger, service)
		r.Route("/devel", func(r chi.Router) {
			r.Get("/jobs", develHandler.ListJobs)
			r.Post("/jobs/{jobId}/pay", develHandler.SimulatePayment)
			r.Post("/disable-all", develHandler.DisableAll)
			r.Get("/export.xlsx", develHandler.Export)
			r.Post("/sandbox/mturk/externalSubmit", develHandler.SandboxSubmit)
		})
	}

	return r
}

// DefaultAppConfig returns default configuration values.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		RequestTimeout: 60 * time.Second,
		MaxUploadBytes: handlers.DefaultMaxUploadBytes,
		AllowedOrigins: []string{"*"},
		PublicURL: func(path string) string {
			return "http://localhost:8082" + path
		},
	}
}
