// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package dataview

import (
	"context"
	"fmt"

	"github.com/tessella-maps/tessella/internal/mapconfig"
	"github.com/tessella-maps/tessella/internal/query"
	"github.com/tessella-maps/tessella/internal/queryengine"
)

// computeCategory runs a grouped aggregation over the widget's category
// column and caps the result at the configured category limit. Groups beyond
// the cap collapse into a single "Other" row flagged agg=true, except under
// avg where no meaningful tail value exists.
func (e *Executor) computeCategory(ctx context.Context, widget *mapconfig.Widget, src mapconfig.Source, where string, args []interface{}) (*CategoryResult, error) {
	col, err := query.QuoteIdent(widget.Column)
	if err != nil {
		return nil, &mapconfig.ConfigurationError{WidgetID: widget.ID, Reason: err.Error()}
	}

	aggExpr, err := aggregationExpr(widget.Aggregation, widget.AggregationColumn)
	if err != nil {
		return nil, &mapconfig.ConfigurationError{WidgetID: widget.ID, Reason: err.Error()}
	}

	sqlText := fmt.Sprintf(
		"SELECT %s AS category, %s AS value FROM (%s) AS _source WHERE (%s) AND %s IS NOT NULL GROUP BY category ORDER BY value DESC, category ASC",
		col, aggExpr, src.SQL, where, col,
	)

	rows, err := e.queryOne(ctx, widget, sqlText, args)
	if err != nil {
		return nil, err
	}

	limit := e.cfg.CategoryLimit
	result := &CategoryResult{Categories: []CategoryRow{}}

	for i, row := range rows {
		if i < limit {
			result.Categories = append(result.Categories, CategoryRow{
				Category: toString(row["category"]),
				Value:    toFloat64(row["value"]),
			})
			continue
		}
		other, ok := collapseTail(widget.Aggregation, rows[limit:])
		if ok {
			result.Categories = append(result.Categories, other)
		}
		break
	}

	return result, nil
}

// collapseTail folds the rows past the category cap into the "Other" bucket.
// For count and sum the tail values add; for min and max the tail extremum
// carries; avg has no recoverable tail value, so the bucket is dropped.
func collapseTail(agg string, tail []queryengine.Row) (CategoryRow, bool) {
	other := CategoryRow{Category: "Other", Agg: true}
	switch agg {
	case "count", "sum":
		for _, row := range tail {
			other.Value += toFloat64(row["value"])
		}
	case "min":
		other.Value = toFloat64(tail[0]["value"])
		for _, row := range tail[1:] {
			if v := toFloat64(row["value"]); v < other.Value {
				other.Value = v
			}
		}
	case "max":
		// Rows are ordered by value descending, so the first tail row holds
		// the tail maximum already.
		other.Value = toFloat64(tail[0]["value"])
	default:
		return CategoryRow{}, false
	}
	return other, true
}

// aggregationExpr renders the SQL aggregate for a widget. count ignores the
// operand column; every other operation requires one.
func aggregationExpr(agg, column string) (string, error) {
	if !mapconfig.Aggregations[agg] {
		return "", fmt.Errorf("unsupported aggregation %q", agg)
	}
	if agg == "count" {
		return "COUNT(*)", nil
	}
	if column == "" {
		return "", fmt.Errorf("aggregation %q requires an operand column", agg)
	}
	quoted, err := query.QuoteIdent(column)
	if err != nil {
		return "", err
	}
	switch agg {
	case "sum":
		return "SUM(" + quoted + ")", nil
	case "avg":
		return "AVG(" + quoted + ")", nil
	case "min":
		return "MIN(" + quoted + ")", nil
	case "max":
		return "MAX(" + quoted + ")", nil
	}
	return "", fmt.Errorf("unsupported aggregation %q", agg)
}
