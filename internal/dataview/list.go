// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package dataview

import (
	"context"
	"fmt"
	"strings"

	"github.com/tessella-maps/tessella/internal/mapconfig"
	"github.com/tessella-maps/tessella/internal/query"
	"github.com/tessella-maps/tessella/internal/queryengine"
)

// computeList projects the widget's configured columns from the restricted
// rows. The row count is always clamped to the configured maximum regardless
// of the per-request limit.
func (e *Executor) computeList(ctx context.Context, widget *mapconfig.Widget, src mapconfig.Source, where string, args []interface{}, limit int) (*ListResult, error) {
	if len(widget.Columns) == 0 {
		return nil, &mapconfig.ConfigurationError{WidgetID: widget.ID, Reason: "list widget has no columns"}
	}

	quoted := make([]string, 0, len(widget.Columns))
	for _, c := range widget.Columns {
		q, err := query.QuoteIdent(c)
		if err != nil {
			return nil, &mapconfig.ConfigurationError{WidgetID: widget.ID, Reason: err.Error()}
		}
		quoted = append(quoted, q)
	}

	if limit <= 0 || limit > e.cfg.ListLimit {
		limit = e.cfg.ListLimit
	}

	sqlText := fmt.Sprintf(
		"SELECT %s FROM (%s) AS _source WHERE %s LIMIT %d",
		strings.Join(quoted, ", "), src.SQL, where, limit,
	)

	rows, err := e.queryOne(ctx, widget, sqlText, args)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Rows: rows}
	if result.Rows == nil {
		result.Rows = []queryengine.Row{}
	}
	return result, nil
}
