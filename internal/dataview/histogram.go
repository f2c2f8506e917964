// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package dataview

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tessella-maps/tessella/internal/mapconfig"
	"github.com/tessella-maps/tessella/internal/query"
)

// computeHistogram buckets the widget's numeric column into equal-width bins
// over the filtered extent. Bin edges are recomputed from the restricted rows
// on every request unless the caller pins them with explicit start and end,
// in which case out-of-range values are excluded. Everything happens in a
// single query; bins that receive no rows are absent from the result.
func (e *Executor) computeHistogram(ctx context.Context, widget *mapconfig.Widget, src mapconfig.Source, where string, args []interface{}, req Request) (*HistogramResult, error) {
	col, err := query.QuoteIdent(widget.Column)
	if err != nil {
		return nil, &mapconfig.ConfigurationError{WidgetID: widget.ID, Reason: err.Error()}
	}

	bins := req.Bins
	if bins <= 0 {
		bins = widget.Bins
	}
	if bins <= 0 {
		bins = e.cfg.HistogramBins
	}

	rowsFilter := fmt.Sprintf("(%s) AND %s IS NOT NULL", where, col)
	boundsCTE := "SELECT MIN(val) AS lo, MAX(val) AS hi FROM source_rows"
	if req.Start != nil && req.End != nil {
		lo := strconv.FormatFloat(*req.Start, 'g', -1, 64)
		hi := strconv.FormatFloat(*req.End, 'g', -1, 64)
		rowsFilter += fmt.Sprintf(" AND %s BETWEEN %s AND %s", col, lo, hi)
		boundsCTE = fmt.Sprintf("SELECT %s AS lo, %s AS hi", lo, hi)
	}

	sqlText := fmt.Sprintf(
		"WITH source_rows AS (SELECT %s AS val FROM (%s) AS _source WHERE %s), "+
			"bounds AS (%s) "+
			"SELECT CAST(LEAST(%d, COALESCE(FLOOR((s.val - b.lo) / NULLIF(b.hi - b.lo, 0) * %d), 0)) AS INTEGER) AS bin, "+
			"COUNT(*) AS freq, MIN(s.val) AS min, MAX(s.val) AS max, AVG(s.val) AS avg "+
			"FROM source_rows AS s, bounds AS b GROUP BY bin ORDER BY bin",
		col, src.SQL, rowsFilter, boundsCTE, bins-1, bins,
	)

	rows, err := e.queryOne(ctx, widget, sqlText, args)
	if err != nil {
		return nil, err
	}

	result := &HistogramResult{Bins: make([]HistogramBin, 0, len(rows))}
	for _, row := range rows {
		result.Bins = append(result.Bins, HistogramBin{
			Bin:  int(toInt64(row["bin"])),
			Freq: toInt64(row["freq"]),
			Min:  toFloat64(row["min"]),
			Max:  toFloat64(row["max"]),
			Avg:  toFloat64(row["avg"]),
		})
	}
	return result, nil
}
