package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the router for the operator API
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.log))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", h.CreateJob)
			r.Get("/", h.ListJobs)
			r.Get("/{id}", h.GetJob)
		})

		r.Route("/tools", func(r chi.Router) {
			r.Post("/", h.CreateTool)
			r.Get("/", h.ListTools)
			r.Post("/{id}/pause", h.PauseTool)
			r.Post("/{id}/resume", h.ResumeTool)
			r.Post("/{id}/analyze", h.AnalyzeTool)
		})

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", h.ListAlerts)
			r.Post("/{id}/ack", h.AcknowledgeAlert)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Post("/", h.CreateRule)
		})

		r.Get("/stats", h.GetStats)
	})

	return r
}
