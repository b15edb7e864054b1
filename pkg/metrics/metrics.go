// Package metrics defines the Prometheus instruments exported by the
// routing server. promauto registers everything with the default
// registry; /metrics is wired up in pkg/api.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by method, path and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures server response time.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "router_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// RouteQueriesTotal counts route computations by outcome
	// (ok, no_route, error).
	RouteQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_route_queries_total",
			Help: "Total number of route queries by outcome",
		},
		[]string{"outcome"},
	)

	// GraphNodes reports the size of the loaded graph.
	GraphNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "router_graph_nodes",
			Help: "Number of nodes in the loaded graph",
		},
	)

	// GraphEdges reports the directed edge count of the loaded graph.
	GraphEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "router_graph_edges",
			Help: "Number of directed edges in the loaded graph",
		},
	)
)
