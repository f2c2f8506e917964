// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

// Package filters provides the typed representation of client-submitted widget
// filter state: one category or range filter per widget id, plus an optional
// bounding box. A FilterSet is constructed per request and discarded after the
// response.
package filters

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Filter is a per-widget restriction: either a CategoryFilter or a RangeFilter.
type Filter interface {
	filter()
}

// CategoryFilter restricts a category column by accept and reject value sets.
// Accept and Reject may both be present; accept narrows the universe first, so
// values outside an explicit accept set are excluded regardless of reject.
// An explicit empty accept set means "accept nothing", which is distinct from
// an absent filter.
type CategoryFilter struct {
	Accept    []string
	HasAccept bool
	Reject    []string
}

func (CategoryFilter) filter() {}

// RangeFilter restricts a numeric column by optional bounds.
type RangeFilter struct {
	Min *float64
	Max *float64
}

func (RangeFilter) filter() {}

// BoundingBox scopes results spatially, in WGS84 longitude/latitude.
type BoundingBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

// FilterSet maps widget ids to their submitted filters plus an optional
// bounding box. Widget ids not defined on the resolved configuration are kept
// and simply never match; cross-widget filter requests routinely name widgets
// defined on sibling layers.
type FilterSet struct {
	Filters map[string]Filter
	BBox    *BoundingBox
}

// ValidationError reports a malformed filter submission.
type ValidationError struct {
	Widget string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Widget == "" {
		return fmt.Sprintf("invalid filters: %s", e.Reason)
	}
	return fmt.Sprintf("invalid filter for widget %q: %s", e.Widget, e.Reason)
}

// rawFilters mirrors the request form {"layers":[{"<widgetId>": {...}}]}.
type rawFilters struct {
	Layers []map[string]rawFilter `json:"layers"`
}

// rawFilter is the union of category and range filter fields. Pointer fields
// distinguish "absent" from "present and empty".
type rawFilter struct {
	Accept *[]string `json:"accept"`
	Reject *[]string `json:"reject"`
	Min    *float64  `json:"min"`
	Max    *float64  `json:"max"`
}

// ParseFilters decodes the filters request parameter. A nil or empty input
// yields an empty FilterSet.
func ParseFilters(raw []byte) (*FilterSet, error) {
	fs := &FilterSet{Filters: make(map[string]Filter)}
	if len(raw) == 0 {
		return fs, nil
	}

	var rf rawFilters
	if err := json.Unmarshal(raw, &rf); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	for _, layer := range rf.Layers {
		for widgetID, f := range layer {
			parsed, err := classify(widgetID, f)
			if err != nil {
				return nil, err
			}
			fs.Filters[widgetID] = parsed
		}
	}

	return fs, nil
}

// classify turns a raw filter into the tagged representation.
func classify(widgetID string, f rawFilter) (Filter, error) {
	isCategory := f.Accept != nil || f.Reject != nil
	isRange := f.Min != nil || f.Max != nil

	switch {
	case isCategory && isRange:
		return nil, &ValidationError{Widget: widgetID, Reason: "mixes category and range fields"}
	case isRange:
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return nil, &ValidationError{Widget: widgetID, Reason: fmt.Sprintf("min %v greater than max %v", *f.Min, *f.Max)}
		}
		return RangeFilter{Min: f.Min, Max: f.Max}, nil
	case isCategory:
		cf := CategoryFilter{}
		if f.Accept != nil {
			cf.Accept = *f.Accept
			cf.HasAccept = true
		}
		if f.Reject != nil {
			cf.Reject = *f.Reject
		}
		return cf, nil
	default:
		return nil, &ValidationError{Widget: widgetID, Reason: "empty filter"}
	}
}

// ParseBoundingBox parses the "west,south,east,north" request parameter.
func ParseBoundingBox(s string) (*BoundingBox, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, &ValidationError{Reason: fmt.Sprintf("bounding box needs 4 coordinates, got %d", len(parts))}
	}

	coords := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, &ValidationError{Reason: fmt.Sprintf("bounding box coordinate %q is not a number", p)}
		}
		coords[i] = f
	}

	bbox := &BoundingBox{West: coords[0], South: coords[1], East: coords[2], North: coords[3]}
	if bbox.South > bbox.North {
		return nil, &ValidationError{Reason: "bounding box south is greater than north"}
	}
	return bbox, nil
}
