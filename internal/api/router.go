/**
 * @description
 * This file sets up the HTTP router using the go-chi/chi router. It defines
 * the public intake and confirmation routes, the API-key-protected admin
 * routes, and applies middleware for logging, panic recovery and CORS.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers all routes.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Post("/requests", h.CreateRequest)

	r.Route("/confirm", func(r chi.Router) {
		r.Get("/", h.ShowConfirmation)
		r.Post("/", h.SubmitConfirmation)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.RequireAdminKey)
		r.Post("/rows/{rowID}/provision", h.ProvisionRow)
		r.Post("/group/sync", h.SyncGroup)
	})

	return r
}
