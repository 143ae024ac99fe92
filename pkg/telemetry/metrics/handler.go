package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler exposing the registry's metrics in the
// Prometheus exposition format. A nil registry exposes the default registry.
//
// Mount it at the path configured for scraping (typically "/metrics"):
//
//	mux.Handle("/metrics", metrics.Handler(registry))
func Handler(registry *prometheus.Registry) http.Handler {
	if registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
