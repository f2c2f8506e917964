// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

// Package api provides the HTTP surface: layergroup registration and widget
// result endpoints, routed with chi.
package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tessella-maps/tessella/internal/dataview"
	"github.com/tessella-maps/tessella/internal/filters"
	"github.com/tessella-maps/tessella/internal/layergroup"
	"github.com/tessella-maps/tessella/internal/logging"
	"github.com/tessella-maps/tessella/internal/models"
	"github.com/tessella-maps/tessella/internal/validation"
)

// UserHeader names the registering user. Multi-tenant deployments put their
// authenticating proxy's subject here; absent, all requests share one scope.
const UserHeader = "X-Tessella-User"

const defaultUser = "default"

// maxConfigBytes caps the accepted configuration document size.
const maxConfigBytes = 1 << 20

// Handler serves the map and dataview endpoints.
type Handler struct {
	layergroups *layergroup.Cache
	executor    *dataview.Executor
}

// NewHandler creates the API handler.
func NewHandler(layergroups *layergroup.Cache, executor *dataview.Executor) *Handler {
	return &Handler{
		layergroups: layergroups,
		executor:    executor,
	}
}

func requestUser(r *http.Request) string {
	if user := r.Header.Get(UserHeader); user != "" {
		return user
	}
	return defaultUser
}

// RegisterMap handles POST /api/v1/map: it validates and compiles the posted
// configuration and returns the layergroup token with per-widget metadata.
func (h *Handler) RegisterMap(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxConfigBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "unreadable request body", err)
		return
	}

	user := requestUser(r)
	reg, err := h.layergroups.Register(r.Context(), user, body)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	dataviews := make(map[string]models.DataviewRef, len(reg.Config.Dataviews))
	for id, widget := range reg.Config.Dataviews {
		dataviews[id] = models.DataviewRef{
			Type: string(widget.Type),
			URL: models.DataviewURL{
				HTTP: fmt.Sprintf("/api/v1/map/%s/dataview/%s", reg.Token, id),
			},
		}
	}

	logging.Ctx(r.Context()).Info().
		Str("token", reg.Token).
		Int("dataviews", len(dataviews)).
		Msg("Map registered")

	respondRaw(w, http.StatusOK, &models.Layergroup{
		LayergroupID: reg.Token,
		Metadata: models.LayergroupMetadata{
			Dataviews: dataviews,
		},
	})
}

// Dataview handles GET /api/v1/map/{token}/dataview/{name}: it resolves the
// layergroup and computes the named widget's result under the submitted
// filter state.
func (h *Handler) Dataview(w http.ResponseWriter, r *http.Request) {
	h.serveDataview(w, r, chi.URLParam(r, "name"))
}

// LegacyWidget handles GET /api/v1/map/{token}/{layer}/widget/{name}, the
// per-layer route older clients use. Widget ids are unique across the
// configuration, so the layer index carries no information.
func (h *Handler) LegacyWidget(w http.ResponseWriter, r *http.Request) {
	h.serveDataview(w, r, chi.URLParam(r, "name"))
}

// dataviewParams is the validated query-parameter shape of a widget request.
type dataviewParams struct {
	BBox  string `validate:"omitempty,bbox"`
	Bins  int    `validate:"omitempty,min=1,max=1024"`
	Limit int    `validate:"omitempty,min=1"`
}

func (h *Handler) serveDataview(w http.ResponseWriter, r *http.Request, widgetID string) {
	token := chi.URLParam(r, "token")
	user := requestUser(r)

	req, err := dataviewRequest(r, widgetID)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	params := dataviewParams{
		BBox:  r.URL.Query().Get("bbox"),
		Bins:  req.Bins,
		Limit: req.Limit,
	}
	if verr := validation.ValidateStruct(&params); verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}

	cfg, err := h.layergroups.Resolve(r.Context(), user, token)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	result, err := h.executor.Compute(r.Context(), cfg, req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondRaw(w, http.StatusOK, result)
}

// dataviewRequest decodes the query parameters of a widget request. Malformed
// values are rejected, never silently dropped.
func dataviewRequest(r *http.Request, widgetID string) (dataview.Request, error) {
	req := dataview.Request{WidgetID: widgetID}

	var err error
	if req.IncludeOwnFilter, err = getBoolParam(r, "own_filter"); err != nil {
		return dataview.Request{}, err
	}
	if req.Bins, err = getIntParam(r, "bins", 0); err != nil {
		return dataview.Request{}, err
	}
	if req.Start, err = getFloatParam(r, "start"); err != nil {
		return dataview.Request{}, err
	}
	if req.End, err = getFloatParam(r, "end"); err != nil {
		return dataview.Request{}, err
	}
	if req.Limit, err = getIntParam(r, "limit", 0); err != nil {
		return dataview.Request{}, err
	}

	fs, err := filters.ParseFilters([]byte(r.URL.Query().Get("filters")))
	if err != nil {
		return dataview.Request{}, err
	}

	bbox, err := filters.ParseBoundingBox(r.URL.Query().Get("bbox"))
	if err != nil {
		return dataview.Request{}, err
	}
	fs.BBox = bbox

	req.Filters = fs
	return req, nil
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   map[string]string{"status": "healthy"},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
