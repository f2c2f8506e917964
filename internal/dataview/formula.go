// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package dataview

import (
	"context"
	"fmt"

	"github.com/tessella-maps/tessella/internal/mapconfig"
)

// computeFormula reduces the restricted rows to a single scalar. An empty
// restricted set yields 0 rather than null.
func (e *Executor) computeFormula(ctx context.Context, widget *mapconfig.Widget, src mapconfig.Source, where string, args []interface{}) (*FormulaResult, error) {
	expr, err := aggregationExpr(widget.Operation, widget.Column)
	if err != nil {
		return nil, &mapconfig.ConfigurationError{WidgetID: widget.ID, Reason: err.Error()}
	}

	sqlText := fmt.Sprintf(
		"SELECT %s AS result FROM (%s) AS _source WHERE %s",
		expr, src.SQL, where,
	)

	rows, err := e.queryOne(ctx, widget, sqlText, args)
	if err != nil {
		return nil, err
	}

	result := &FormulaResult{Operation: widget.Operation, Column: widget.Column}
	if len(rows) > 0 && rows[0]["result"] != nil {
		result.Result = toFloat64(rows[0]["result"])
	}
	return result, nil
}
