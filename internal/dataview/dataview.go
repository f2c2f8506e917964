// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

// Package dataview implements the widget computation engine: it combines
// per-widget filter state into a single restriction, issues one query per
// request against the query engine, and shapes the raw rows into the widget's
// response contract (categories, bins, scalar, or rows).
package dataview

import (
	"context"
	"fmt"
	"time"

	"github.com/tessella-maps/tessella/internal/config"
	"github.com/tessella-maps/tessella/internal/filters"
	"github.com/tessella-maps/tessella/internal/logging"
	"github.com/tessella-maps/tessella/internal/mapconfig"
	"github.com/tessella-maps/tessella/internal/metrics"
	"github.com/tessella-maps/tessella/internal/queryengine"
)

// NotFoundError reports a widget id not defined on the configuration.
type NotFoundError struct {
	Widget string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("widget %q not found", e.Widget)
}

// ComputationError reports a query engine failure while computing a widget
// result. It is surfaced as-is and never retried by this layer.
type ComputationError struct {
	Widget string
	Err    error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation failed for widget %q: %v", e.Widget, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}

// Request identifies a widget computation: the target widget, the submitted
// filter state, the own-filter flag, and per-request overrides.
type Request struct {
	WidgetID string

	// Filters is the per-request filter state. Nil means no restriction.
	Filters *filters.FilterSet

	// IncludeOwnFilter controls whether the target widget's own filter is
	// applied to its result. When false the widget's full distribution is
	// returned while every other widget's filter and the bounding box still
	// apply (selector refresh mode).
	IncludeOwnFilter bool

	// Bins overrides the histogram bin count for this request.
	Bins int

	// Start and End override histogram bin edges. When both are set, bins
	// span [Start, End] instead of the filtered column extent.
	Start *float64
	End   *float64

	// Limit overrides the list row cap for this request. Always clamped to
	// the configured maximum.
	Limit int
}

// Executor computes widget results. It is safe for concurrent use: the only
// shared state is the query engine, and every computation is a pure function
// of its inputs.
type Executor struct {
	engine queryengine.Engine
	cfg    config.DataviewConfig
}

// NewExecutor creates a widget computation engine.
func NewExecutor(engine queryengine.Engine, cfg config.DataviewConfig) *Executor {
	return &Executor{engine: engine, cfg: cfg}
}

// Compute resolves the widget, combines the restriction, issues exactly one
// query, and shapes the result. It never mutates the configuration, the
// filter set, or any cache state.
func (e *Executor) Compute(ctx context.Context, mc *mapconfig.MapConfig, req Request) (interface{}, error) {
	widget, ok := mc.Widget(req.WidgetID)
	if !ok {
		return nil, &NotFoundError{Widget: req.WidgetID}
	}

	src, err := mc.ResolveSource(req.WidgetID)
	if err != nil {
		return nil, err
	}

	fs := req.Filters
	if fs == nil {
		fs = &filters.FilterSet{}
	}

	where, args, err := BuildPredicate(mc, fs, widget, req.IncludeOwnFilter)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var result interface{}
	switch widget.Type {
	case mapconfig.WidgetTypeAggregation:
		result, err = e.computeCategory(ctx, widget, src, where, args)
	case mapconfig.WidgetTypeHistogram:
		result, err = e.computeHistogram(ctx, widget, src, where, args, req)
	case mapconfig.WidgetTypeFormula:
		result, err = e.computeFormula(ctx, widget, src, where, args)
	case mapconfig.WidgetTypeList:
		result, err = e.computeList(ctx, widget, src, where, args, req.Limit)
	default:
		return nil, &mapconfig.ConfigurationError{WidgetID: widget.ID, Reason: fmt.Sprintf("unhandled widget type %q", widget.Type)}
	}
	metrics.RecordQuery(string(widget.Type), start, err)

	if err != nil {
		logging.Ctx(ctx).Error().
			Err(err).
			Str("widget", widget.ID).
			Str("widget_type", string(widget.Type)).
			Msg("Widget computation failed")
		return nil, err
	}

	return result, nil
}

// queryOne wraps the single engine round trip, translating engine failures
// into ComputationError.
func (e *Executor) queryOne(ctx context.Context, widget *mapconfig.Widget, sqlText string, args []interface{}) ([]queryengine.Row, error) {
	rows, err := e.engine.Query(ctx, sqlText, args...)
	if err != nil {
		return nil, &ComputationError{Widget: widget.ID, Err: err}
	}
	return rows, nil
}
