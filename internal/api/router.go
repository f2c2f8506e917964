// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tessella-maps/tessella/internal/config"
	"github.com/tessella-maps/tessella/internal/middleware"
)

// Router wires handlers into the chi routing tree.
type Router struct {
	handler *Handler
	cfg     *config.Config
}

// NewRouter creates the API router.
func NewRouter(handler *Handler, cfg *config.Config) *Router {
	return &Router{handler: handler, cfg: cfg}
}

// Setup builds the complete routing tree with the middleware stack.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.Security.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", UserHeader, middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/api/v1/health", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/map", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		r.Post("/", router.handler.RegisterMap)
		r.Get("/{token}/dataview/{name}", router.handler.Dataview)
		r.Get("/{token}/{layer}/widget/{name}", router.handler.LegacyWidget)
	})

	return r
}
