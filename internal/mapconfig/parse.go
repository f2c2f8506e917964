// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package mapconfig

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Default coordinate columns used for bounding-box scoping when a source does
// not name its own.
const (
	DefaultLonColumn = "longitude"
	DefaultLatColumn = "latitude"
)

// rawConfig mirrors the wire shape of a map configuration.
type rawConfig struct {
	Version   string                 `json:"version"`
	Layers    []Layer                `json:"layers"`
	Analyses  []AnalysisNode         `json:"analyses"`
	Dataviews map[string]rawDataview `json:"dataviews"`
}

// rawDataview is a top-level dataview definition (current form).
type rawDataview struct {
	Type    string     `json:"type"`
	Source  *SourceRef `json:"source"`
	Options rawOptions `json:"options"`
}

// rawWidget is an inline layer widget definition (legacy form).
type rawWidget struct {
	Type    string     `json:"type"`
	Options rawOptions `json:"options"`
}

// rawOptions is the union of per-type widget options.
type rawOptions struct {
	Column            string   `json:"column"`
	Aggregation       string   `json:"aggregation"`
	AggregationColumn string   `json:"aggregationColumn"`
	Operation         string   `json:"operation"`
	Bins              int      `json:"bins"`
	Columns           []string `json:"columns"`
}

// Parse decodes and validates a raw map configuration, normalizing both the
// current (analyses + dataviews) and legacy (inline layer widgets) forms onto
// one widget map. Parse is pure and deterministic for identical input.
func Parse(raw []byte) (*MapConfig, error) {
	var rc rawConfig
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}

	if len(rc.Layers) == 0 {
		return nil, &ConfigurationError{Reason: "at least one layer is required"}
	}

	cfg := &MapConfig{
		Version:   rc.Version,
		Layers:    rc.Layers,
		Analyses:  rc.Analyses,
		Dataviews: make(map[string]*Widget),
		sources:   make(map[string]Source),
	}

	for _, node := range rc.Analyses {
		if node.ID == "" {
			return nil, &ConfigurationError{Reason: "analysis node without id"}
		}
		if node.Query == "" {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("analysis node %q without query", node.ID)}
		}
		if _, exists := cfg.sources[node.ID]; exists {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("duplicate analysis node id %q", node.ID)}
		}
		cfg.sources[node.ID] = sourceFor(node.Query, node.LonColumn, node.LatColumn)
	}

	// Legacy form: per-layer inline widgets backed by the layer's own SQL.
	for i, layer := range rc.Layers {
		if len(layer.Options.Widgets) == 0 {
			continue
		}
		sourceID := fmt.Sprintf("layer%d", i)
		if layer.Options.SQL == "" {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("layer %d declares widgets but has no sql", i)}
		}
		cfg.sources[sourceID] = sourceFor(layer.Options.SQL, layer.Options.LonColumn, layer.Options.LatColumn)

		for id, rw := range layer.Options.Widgets {
			w, err := normalizeWidget(id, rw.Type, rw.Options, sourceID)
			if err != nil {
				return nil, err
			}
			if _, dup := cfg.Dataviews[id]; dup {
				return nil, &ConfigurationError{WidgetID: id, Reason: "duplicate widget id"}
			}
			cfg.Dataviews[id] = w
		}
	}

	// Current form: top-level dataviews referencing analysis nodes.
	for id, rd := range rc.Dataviews {
		if rd.Source == nil || rd.Source.ID == "" {
			return nil, &ConfigurationError{WidgetID: id, Reason: "dataview without source id"}
		}
		if _, ok := cfg.sources[rd.Source.ID]; !ok {
			return nil, &ConfigurationError{WidgetID: id, Reason: fmt.Sprintf("unknown source %q", rd.Source.ID)}
		}
		w, err := normalizeWidget(id, rd.Type, rd.Options, rd.Source.ID)
		if err != nil {
			return nil, err
		}
		if _, dup := cfg.Dataviews[id]; dup {
			return nil, &ConfigurationError{WidgetID: id, Reason: "duplicate widget id"}
		}
		cfg.Dataviews[id] = w
	}

	return cfg, nil
}

func sourceFor(sql, lonColumn, latColumn string) Source {
	if lonColumn == "" {
		lonColumn = DefaultLonColumn
	}
	if latColumn == "" {
		latColumn = DefaultLatColumn
	}
	return Source{SQL: sql, LonColumn: lonColumn, LatColumn: latColumn}
}

// normalizeWidget validates per-type required options and produces the
// normalized widget.
func normalizeWidget(id, typ string, opts rawOptions, sourceID string) (*Widget, error) {
	wt, ok := typeAliases[typ]
	if !ok {
		return nil, &ConfigurationError{WidgetID: id, Reason: fmt.Sprintf("unknown widget type %q", typ)}
	}

	w := &Widget{
		ID:                id,
		Type:              wt,
		Column:            opts.Column,
		Aggregation:       opts.Aggregation,
		AggregationColumn: opts.AggregationColumn,
		Operation:         opts.Operation,
		Bins:              opts.Bins,
		Columns:           opts.Columns,
		SourceID:          sourceID,
	}

	switch wt {
	case WidgetTypeAggregation:
		if w.Column == "" {
			return nil, &ConfigurationError{WidgetID: id, Reason: "aggregation widget requires a column"}
		}
		if w.Aggregation == "" {
			return nil, &ConfigurationError{WidgetID: id, Reason: "aggregation widget requires an aggregation"}
		}
		if !Aggregations[w.Aggregation] {
			return nil, &ConfigurationError{WidgetID: id, Reason: fmt.Sprintf("unsupported aggregation %q", w.Aggregation)}
		}
		if w.Aggregation != "count" && w.AggregationColumn == "" {
			return nil, &ConfigurationError{WidgetID: id, Reason: fmt.Sprintf("aggregation %q requires an aggregationColumn", w.Aggregation)}
		}
	case WidgetTypeHistogram:
		if w.Column == "" {
			return nil, &ConfigurationError{WidgetID: id, Reason: "histogram widget requires a numeric column"}
		}
		if w.Bins < 0 {
			return nil, &ConfigurationError{WidgetID: id, Reason: "histogram bins must not be negative"}
		}
	case WidgetTypeFormula:
		if w.Operation == "" {
			return nil, &ConfigurationError{WidgetID: id, Reason: "formula widget requires an operation"}
		}
		if !Aggregations[w.Operation] {
			return nil, &ConfigurationError{WidgetID: id, Reason: fmt.Sprintf("unsupported operation %q", w.Operation)}
		}
		if w.Operation != "count" && w.Column == "" {
			return nil, &ConfigurationError{WidgetID: id, Reason: fmt.Sprintf("formula operation %q requires a column", w.Operation)}
		}
	case WidgetTypeList:
		if len(w.Columns) == 0 {
			return nil, &ConfigurationError{WidgetID: id, Reason: "list widget requires a non-empty columns set"}
		}
	}

	return w, nil
}
