package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all API routes. Workspace scoping rides in the URL:
// every data route lives under /api/workspaces/{workspaceID}.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api/workspaces/{workspaceID}/mercado-ads", func(r chi.Router) {
		// Curve configuration (idempotent bootstrap on read)
		r.Get("/curves", h.ListCurves)
		r.Get("/curves/history", h.CurveHistory)

		// Classification and the two automation entry points
		r.Get("/classification", h.ClassifyProducts)
		r.Get("/plan", h.PlanAutomation)
		r.Post("/apply", h.ApplyAutomation)

		// Campaign views and manual controls
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Patch("/{campaignID}/status", h.UpdateCampaignStatus)
			r.Patch("/{campaignID}/budget", h.UpdateCampaignBudget)
		})
	})

	return r
}
