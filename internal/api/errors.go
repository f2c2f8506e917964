// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package api

import (
	"errors"
	"net/http"

	"github.com/tessella-maps/tessella/internal/dataview"
	"github.com/tessella-maps/tessella/internal/filters"
	"github.com/tessella-maps/tessella/internal/layergroup"
	"github.com/tessella-maps/tessella/internal/mapconfig"
	"github.com/tessella-maps/tessella/internal/queryengine"
)

// respondDomainError maps domain error kinds onto HTTP status codes and the
// structured error shape. Unknown errors become a generic 500 so internals
// never leak to clients.
func respondDomainError(w http.ResponseWriter, err error) {
	var (
		configErr      *mapconfig.ConfigurationError
		filterErr      *filters.ValidationError
		widgetNotFound *dataview.NotFoundError
		computeErr     *dataview.ComputationError
		cacheErr       *layergroup.CacheUnavailableError
	)

	switch {
	case errors.As(err, &configErr):
		respondError(w, http.StatusBadRequest, "CONFIGURATION_ERROR", configErr.Error(), nil)
	case errors.As(err, &filterErr):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", filterErr.Error(), nil)
	case errors.Is(err, mapconfig.ErrWidgetNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.As(err, &widgetNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", widgetNotFound.Error(), nil)
	case errors.Is(err, layergroup.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "layergroup not found", nil)
	case errors.Is(err, queryengine.ErrEngineBusy):
		respondError(w, http.StatusServiceUnavailable, "ENGINE_BUSY", "query engine temporarily unavailable", err)
	case errors.As(err, &cacheErr):
		respondError(w, http.StatusServiceUnavailable, "CACHE_UNAVAILABLE", "layergroup store unavailable", err)
	case errors.As(err, &computeErr):
		respondError(w, http.StatusInternalServerError, "COMPUTATION_ERROR", "widget computation failed", err)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error", err)
	}
}
