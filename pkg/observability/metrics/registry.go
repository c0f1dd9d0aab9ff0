// Package metrics provides Prometheus metrics for document store operations.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var registerDefaultOnce sync.Once

// Registry manages Prometheus metrics registration and exposure.
// Store operation metrics and Go runtime metrics are included by default.
type Registry struct {
	registry *prometheus.Registry
}

// NewRegistry creates a new metrics registry with the store collectors and
// the Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	reg.MustRegister(storeCollectors()...)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Registry{
		registry: reg,
	}
}

// RegisterDefault registers the store collectors with the global Prometheus
// registry. Repeated calls are no-ops.
func RegisterDefault() {
	registerDefaultOnce.Do(func() {
		prometheus.MustRegister(storeCollectors()...)
	})
}

func storeCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		storeOperationDuration,
		storeOperationsTotal,
		storeOperationsInFlight,
		batchItemsTotal,
	}
}

// Register registers a custom Prometheus collector.
func (r *Registry) Register(collector prometheus.Collector) error {
	return r.registry.Register(collector)
}

// MustRegister registers custom collectors and panics on error.
func (r *Registry) MustRegister(collectors ...prometheus.Collector) {
	r.registry.MustRegister(collectors...)
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
// Example:
//
//	http.Handle("/metrics", registry.Handler())
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Gatherer returns the underlying prometheus.Gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
