// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

// Package models holds the shared API wire types.
package models

import (
	"time"
)

// APIResponse is the standard envelope for registration and error responses.
// Widget results are NOT enveloped: their shape (categories, bins, scalar,
// rows) is the wire contract clients consume directly.
//
// Status is "success" or "error"; Error is populated only for "error".
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response timing for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError is the structured error shape shared by all endpoints.
//
// Codes in use: VALIDATION_ERROR, CONFIGURATION_ERROR, NOT_FOUND,
// COMPUTATION_ERROR, CACHE_UNAVAILABLE, ENGINE_BUSY, INTERNAL_ERROR.
type APIError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Layergroup is the successful registration payload. Metadata.Dataviews maps
// each widget id to the path its results are served from.
type Layergroup struct {
	LayergroupID string             `json:"layergroupid"`
	Metadata     LayergroupMetadata `json:"metadata"`
}

// LayergroupMetadata describes the registered configuration.
type LayergroupMetadata struct {
	Dataviews map[string]DataviewRef `json:"dataviews"`
}

// DataviewRef points a client at a widget's result endpoint.
type DataviewRef struct {
	Type string      `json:"type"`
	URL  DataviewURL `json:"url"`
}

// DataviewURL carries the per-protocol endpoint paths.
type DataviewURL struct {
	HTTP string `json:"http"`
}
