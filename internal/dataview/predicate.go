// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package dataview

import (
	"github.com/tessella-maps/tessella/internal/filters"
	"github.com/tessella-maps/tessella/internal/mapconfig"
	"github.com/tessella-maps/tessella/internal/query"
)

// BuildPredicate computes the combined restriction applied to the dataset
// before computing the target widget's result: the bounding box plus every
// sibling widget's filter translated onto that widget's own column.
//
// The target widget's own filter is skipped when includeOwnFilter is false,
// so a widget's selector can show its full distribution while still
// respecting every other active filter. Filter entries naming widgets not
// defined on the configuration (or on a different data source) contribute
// nothing; they are never an error.
//
// Clause order follows widget-id order, so the generated SQL is a
// deterministic function of the inputs.
func BuildPredicate(mc *mapconfig.MapConfig, fs *filters.FilterSet, target *mapconfig.Widget, includeOwnFilter bool) (string, []interface{}, error) {
	wb := query.NewWhereBuilder()

	if fs.BBox != nil {
		src, err := mc.ResolveSource(target.ID)
		if err != nil {
			return "", nil, err
		}
		wb.AddBoundingBox(src.LonColumn, src.LatColumn, fs.BBox.West, fs.BBox.South, fs.BBox.East, fs.BBox.North)
	}

	for _, w := range mc.WidgetsBySource(target.SourceID) {
		if w.ID == target.ID && !includeOwnFilter {
			continue
		}

		f, ok := fs.Filters[w.ID]
		if !ok {
			// A widget with no filter entry contributes no restriction.
			continue
		}
		if w.Column == "" {
			// List widgets have no single filterable column.
			continue
		}

		switch fv := f.(type) {
		case filters.CategoryFilter:
			if fv.HasAccept {
				wb.AddCategoryAccept(w.Column, fv.Accept)
			}
			wb.AddCategoryReject(w.Column, fv.Reject)
		case filters.RangeFilter:
			wb.AddRange(w.Column, fv.Min, fv.Max)
		}
	}

	if err := wb.Err(); err != nil {
		return "", nil, &mapconfig.ConfigurationError{WidgetID: target.ID, Reason: err.Error()}
	}

	where, args := wb.Build()
	return where, args, nil
}
