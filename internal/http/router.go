// Package http is the thin transport layer. Handlers decode requests, call
// services, and translate result variants to status codes; no business rules
// live here.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"casework/internal/applications"
	"casework/internal/assessments"
	"casework/internal/reports"
)

// Handler bundles the services the routes delegate to.
type Handler struct {
	applications *applications.Service
	assessments  *assessments.Service
	reports      *reports.Service
	logger       *slog.Logger
}

func NewHandler(apps *applications.Service, assess *assessments.Service, reps *reports.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		applications: apps,
		assessments:  assess,
		reports:      reps,
		logger:       logger,
	}
}

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestContext)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/applications/{applicationID}", func(r chi.Router) {
		r.Put("/", h.updateApplication)
		r.Delete("/", h.deleteApplication)
		r.Post("/submission", h.submitApplication)
	})

	r.Route("/assessments", func(r chi.Router) {
		r.Get("/", h.listAssessmentSummaries)
		r.Route("/{assessmentID}", func(r chi.Router) {
			r.Get("/", h.getAssessment)
			r.Put("/", h.updateAssessment)
			r.Post("/rejection", h.rejectAssessment)
			r.Post("/deallocation", h.deallocateAssessment)
			r.Post("/allocations", h.reallocateAssessment)
		})
	})

	r.Get("/reports/assessments", h.assessmentsReport)

	return r
}
