// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

// Package middleware provides the HTTP middleware stack: request correlation
// and prometheus instrumentation.
package middleware

import (
	"net/http"

	"github.com/tessella-maps/tessella/internal/logging"
)

// RequestIDHeader is the correlation header, honored inbound and always set
// on the response.
const RequestIDHeader = "X-Request-ID"

// RequestID attaches a request id to the context and response. An inbound
// X-Request-ID is reused so callers can correlate across services; otherwise
// a fresh id is generated.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = logging.GenerateRequestID()
		}

		ctx := logging.ContextWithRequestID(r.Context(), id)
		w.Header().Set(RequestIDHeader, id)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
