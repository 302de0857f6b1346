/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard

ROUTE GROUPS:
  /api/seed                   Reseed demo data
  /api/scores*                Scoring endpoints (JSON + CSV)
  /api/state                  Loaded KAMs and months
  /api/dataset*, /api/inputs* Dataset browsing (JSON + CSV)
  /api/input_month            Manual monthly entry
  /                           Service banner

SECURITY NOTE:
  No authentication middleware. All endpoints are public; the service is
  meant to sit behind the dashboard's reverse proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
			"http://reward.athenalabo.com",
			"https://reward.athenalabo.com",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/seed", h.Seed)

		r.Get("/scores", h.Scores)
		r.Get("/scores_csv", h.ScoresCSV)
		r.Get("/scores_cumulative_csv", h.CumulativeScoresCSV)

		r.Get("/state", h.State)

		r.Get("/dataset", h.Dataset)
		r.Get("/dataset_csv", h.DatasetCSV)
		r.Get("/inputs", h.Inputs)
		r.Get("/inputs_csv", h.InputsCSV)
		r.Post("/input_month", h.InputMonth)
	})

	// Service banner
	r.Get("/", h.Root)

	return r
}
