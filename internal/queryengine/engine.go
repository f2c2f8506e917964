// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

// Package queryengine provides the relational query engine contract consumed
// by the dataview computation engine, and its DuckDB implementation.
package queryengine

import (
	"context"
	"errors"
)

// Row is a single result row keyed by column name.
type Row map[string]interface{}

// Engine executes generated SQL against the backing dataset and returns rows.
// Implementations must honor context cancellation.
type Engine interface {
	Query(ctx context.Context, sqlText string, args ...interface{}) ([]Row, error)
}

// ErrEngineBusy indicates the engine rejected the request due to overload or
// an open circuit. Callers surface it as a computation failure; the engine
// never queues internally.
var ErrEngineBusy = errors.New("query engine busy")
