// Package http assembles the feature routers behind one middleware chain.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"habitat/internal/platform/middleware"
)

// Registrar is implemented by every feature handler.
type Registrar interface {
	Register(r chi.Router)
}

// NewRouter builds the full route tree. Health and metrics stay outside the
// auth boundary; every feature route requires a valid bearer token.
func NewRouter(logger *slog.Logger, auth middleware.Authenticator, health http.HandlerFunc, registrars ...Registrar) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth(auth, logger))
		for _, registrar := range registrars {
			registrar.Register(authed)
		}
	})

	return r
}
