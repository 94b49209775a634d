package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solfege-app/glossary/internal/api/middleware"
	"github.com/solfege-app/glossary/internal/api/shared"
)

// NewRouter assembles the trigger surface: authenticated internal
// endpoints for the scheduler, plus health and metrics.
func NewRouter(
	seedHandler *SeedHandler,
	recoveryHandler *RecoveryHandler,
	authMiddleware *middleware.AuthMiddleware,
	db *sql.DB,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Trace)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", healthHandler(db))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/internal", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/seed/run", seedHandler.RunBatch)
		r.Post("/recovery/run", recoveryHandler.Run)
		r.Post("/deadletter/retry", recoveryHandler.RetryDeadLetters)
		r.Get("/recovery/stats", recoveryHandler.Stats)
	})

	return r
}

// healthHandler reports liveness and database reachability.
func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable,
					"Database unavailable", err)
				return
			}
		}
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
