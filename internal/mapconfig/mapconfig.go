// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

// Package mapconfig provides the typed representation of a map configuration:
// layers, analysis nodes (source query definitions), and the dataview (widget)
// map keyed by widget id.
//
// Two input forms normalize to the same internal model: the current form with
// top-level "analyses" and "dataviews", and the legacy form where each layer
// carries inline "widgets" backed by the layer's own SQL.
package mapconfig

import (
	"errors"
	"fmt"
	"sort"
)

// WidgetType identifies the computation a widget performs.
type WidgetType string

const (
	// WidgetTypeAggregation groups rows by a category column and aggregates.
	WidgetTypeAggregation WidgetType = "aggregation"

	// WidgetTypeHistogram partitions a numeric column into equal-width bins.
	WidgetTypeHistogram WidgetType = "histogram"

	// WidgetTypeFormula computes a single scalar over the restricted rows.
	WidgetTypeFormula WidgetType = "formula"

	// WidgetTypeList projects raw rows.
	WidgetTypeList WidgetType = "list"
)

// typeAliases maps legacy widget type names onto the canonical types.
var typeAliases = map[string]WidgetType{
	"aggregation": WidgetTypeAggregation,
	"category":    WidgetTypeAggregation,
	"histogram":   WidgetTypeHistogram,
	"range":       WidgetTypeHistogram,
	"formula":     WidgetTypeFormula,
	"list":        WidgetTypeList,
}

// Aggregations enumerates the supported aggregate operations.
var Aggregations = map[string]bool{
	"count": true,
	"sum":   true,
	"avg":   true,
	"min":   true,
	"max":   true,
}

// Widget is the normalized definition of a dataview.
type Widget struct {
	ID                string
	Type              WidgetType
	Column            string
	Aggregation       string
	AggregationColumn string
	Operation         string
	Bins              int
	Columns           []string
	SourceID          string
}

// AnalysisNode defines a named data source query.
type AnalysisNode struct {
	ID        string `json:"id"`
	Query     string `json:"query"`
	LonColumn string `json:"lon_column"`
	LatColumn string `json:"lat_column"`
}

// Layer is a single rendering layer of a map configuration.
type Layer struct {
	Type    string       `json:"type"`
	Options LayerOptions `json:"options"`
}

// LayerOptions carries the subset of layer options Tessella interprets.
// CartoCSS fields pass through untouched for the rendering tier.
type LayerOptions struct {
	SQL             string               `json:"sql"`
	CartoCSS        string               `json:"cartocss"`
	CartoCSSVersion string               `json:"cartocss_version"`
	LonColumn       string               `json:"lon_column"`
	LatColumn       string               `json:"lat_column"`
	Source          *SourceRef           `json:"source"`
	Widgets         map[string]rawWidget `json:"widgets"`
}

// SourceRef references an analysis node by id.
type SourceRef struct {
	ID string `json:"id"`
}

// Source is the resolved data source of a widget: the query text plus the
// coordinate columns used for bounding-box scoping.
type Source struct {
	SQL       string
	LonColumn string
	LatColumn string
}

// MapConfig is the immutable, normalized map configuration.
type MapConfig struct {
	Version   string
	Layers    []Layer
	Analyses  []AnalysisNode
	Dataviews map[string]*Widget

	sources map[string]Source
}

// ConfigurationError reports a malformed or incomplete configuration.
// WidgetID is empty when the defect is not tied to a single widget.
type ConfigurationError struct {
	WidgetID string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.WidgetID == "" {
		return fmt.Sprintf("invalid map configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid map configuration: widget %q: %s", e.WidgetID, e.Reason)
}

// ErrWidgetNotFound is returned when a widget id is not defined on the
// configuration.
var ErrWidgetNotFound = errors.New("widget not found")

// Widget returns the widget with the given id.
func (c *MapConfig) Widget(id string) (*Widget, bool) {
	w, ok := c.Dataviews[id]
	return w, ok
}

// ResolveSource returns the data source of the given widget.
func (c *MapConfig) ResolveSource(widgetID string) (Source, error) {
	w, ok := c.Dataviews[widgetID]
	if !ok {
		return Source{}, fmt.Errorf("%w: %s", ErrWidgetNotFound, widgetID)
	}
	src, ok := c.sources[w.SourceID]
	if !ok {
		// Parse guarantees source resolution; reaching this means the value
		// was constructed outside Parse.
		return Source{}, &ConfigurationError{WidgetID: widgetID, Reason: "unresolved source " + w.SourceID}
	}
	return src, nil
}

// WidgetsBySource returns the widgets sharing the given source id, ordered by
// widget id for deterministic iteration.
func (c *MapConfig) WidgetsBySource(sourceID string) []*Widget {
	var widgets []*Widget
	for _, w := range c.Dataviews {
		if w.SourceID == sourceID {
			widgets = append(widgets, w)
		}
	}
	sort.Slice(widgets, func(i, j int) bool { return widgets[i].ID < widgets[j].ID })
	return widgets
}
