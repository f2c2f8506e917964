// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

// Package metrics provides Prometheus instrumentation for Tessella:
// query-engine performance, layergroup cache efficiency, and API throughput.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Query engine metrics
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tessella_query_duration_seconds",
			Help:    "Duration of query engine round trips in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"widget_type"},
	)

	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tessella_query_errors_total",
			Help: "Total number of query engine errors",
		},
		[]string{"widget_type", "error_type"},
	)

	// Layergroup cache metrics
	LayergroupRegistrations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tessella_layergroup_registrations_total",
			Help: "Total number of layergroup register calls",
		},
	)

	LayergroupCompilations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tessella_layergroup_compilations_total",
			Help: "Total number of map configuration compilations (single-flight winners)",
		},
	)

	LayergroupCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tessella_layergroup_cache_hits_total",
			Help: "Total number of in-process layergroup cache hits",
		},
	)

	LayergroupCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tessella_layergroup_cache_misses_total",
			Help: "Total number of in-process layergroup cache misses",
		},
	)

	LayergroupUsage = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tessella_layergroup_usage_total",
			Help: "Usage signal recorded on each successful token resolution",
		},
	)

	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tessella_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tessella_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordQuery observes a query engine round trip.
func RecordQuery(widgetType string, start time.Time, err error) {
	QueryDuration.WithLabelValues(widgetType).Observe(time.Since(start).Seconds())
	if err != nil {
		QueryErrors.WithLabelValues(widgetType, "query").Inc()
	}
}

// RecordAPIRequest observes a completed HTTP request.
func RecordAPIRequest(method, endpoint string, status int, start time.Time) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
}
