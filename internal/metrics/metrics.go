// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes the agent's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agent.
type Metrics struct {
	// ResolutionsTotal counts resolution decisions by resolved service and
	// outcome (routed, deferred, override).
	ResolutionsTotal *prometheus.CounterVec

	// ResolutionDuration observes end-to-end resolve latency per service.
	ResolutionDuration *prometheus.HistogramVec

	// ClassifierFallbacksTotal counts classifier invocations by result
	// (classified, failed).
	ClassifierFallbacksTotal *prometheus.CounterVec

	// RequestsTotal counts HTTP requests by path and status.
	RequestsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the metric set on its own registry, so tests can create
// multiple instances without collisions.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		ResolutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_resolutions_total",
				Help: "Total number of resolution decisions",
			},
			[]string{"service", "outcome"},
		),
		ResolutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_resolution_duration_seconds",
				Help:    "Resolution latency in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 3, 5},
			},
			[]string{"service"},
		),
		ClassifierFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_classifier_fallbacks_total",
				Help: "Total number of classifier fallback invocations",
			},
			[]string{"result"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "status"},
		),
		registry: registry,
	}
}

// Handler returns the scrape endpoint for this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordResolution notes one resolution decision.
func (m *Metrics) RecordResolution(service, outcome string, seconds float64) {
	m.ResolutionsTotal.WithLabelValues(service, outcome).Inc()
	m.ResolutionDuration.WithLabelValues(service).Observe(seconds)
}
