// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

// Package main is the entry point for the Tessella server.
//
// Tessella is a map-configuration and dataview analytics backend in the
// Windshaft/CARTO family: clients register a declarative map configuration
// (layers, analysis sources, dataviews) and receive a deterministic
// layergroup token, then request per-widget statistical results with
// cross-widget filtering, own-filter exclusion, and bounding-box scoping.
//
// The server initializes components in order:
//
//  1. Configuration: layered load via Koanf v2 (defaults, config.yaml, env)
//  2. Logging: zerolog global logger
//  3. Query engine: embedded DuckDB with a circuit breaker
//  4. Layergroup store: BadgerDB-backed token store with TTL
//  5. HTTP server: chi router with graceful shutdown on SIGINT/SIGTERM
//
// Configuration is read from config.yaml (or TESSELLA_CONFIG) and TESSELLA_*
// environment variables, e.g. TESSELLA_SERVER_PORT=8181,
// TESSELLA_DATABASE_PATH=/data/tessella.duckdb.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tessella-maps/tessella/internal/api"
	"github.com/tessella-maps/tessella/internal/config"
	"github.com/tessella-maps/tessella/internal/dataview"
	"github.com/tessella-maps/tessella/internal/layergroup"
	"github.com/tessella-maps/tessella/internal/logging"
	"github.com/tessella-maps/tessella/internal/queryengine"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("store_path", cfg.Layergroup.StorePath).
		Int("port", cfg.Server.Port).
		Msg("Configuration loaded")

	engine, err := queryengine.NewDuckDB(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize query engine")
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing query engine")
		}
	}()
	logging.Info().Msg("Query engine initialized")

	var store layergroup.Store
	if cfg.Layergroup.StorePath != "" {
		store, err = layergroup.NewBadgerStore(cfg.Layergroup.StorePath)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to open layergroup store")
		}
	} else {
		logging.Warn().Msg("No layergroup store path configured, tokens will not survive restarts")
		store = layergroup.NewMemoryStore()
	}

	layergroups := layergroup.New(store, cfg.Layergroup)
	defer func() {
		if err := layergroups.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing layergroup cache")
		}
	}()

	executor := dataview.NewExecutor(engine, cfg.Dataview)
	handler := api.NewHandler(layergroups, executor)
	router := api.NewRouter(handler, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logging.Error().Err(err).Msg("Server failed")
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}

	logging.Info().Msg("Server stopped")
}
