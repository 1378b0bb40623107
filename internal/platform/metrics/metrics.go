// Package metrics holds the daemon's Prometheus collectors. Counters
// live on a dedicated registry so the /metrics endpoint only exposes
// handoff telemetry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Set struct {
	registry *prometheus.Registry

	Exports      *prometheus.CounterVec
	Imports      *prometheus.CounterVec
	ScanRejected prometheus.Counter
	RPCRequests  *prometheus.CounterVec
}

func NewSet() *Set {
	registry := prometheus.NewRegistry()
	s := &Set{
		registry: registry,
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handoff_exports_total",
			Help: "Credential export encodings produced, by format.",
		}, []string{"format"}),
		Imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handoff_imports_total",
			Help: "Terminal import outcomes, by outcome kind.",
		}, []string{"outcome"}),
		ScanRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "handoff_scan_rejected_total",
			Help: "Scanned payloads rejected before any authentication handshake.",
		}),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "handoff_rpc_requests_total",
			Help: "JSON-RPC requests served, by method and result code.",
		}, []string{"method", "code"}),
	}
	registry.MustRegister(s.Exports, s.Imports, s.ScanRejected, s.RPCRequests)
	return s
}

// Handler serves the registry in the Prometheus text format.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
