// Package metrics holds the process-wide Prometheus registry used by
// pkg/metrics/prometheus. Callers ask IsEnabled before constructing metrics
// so that a disabled node pays zero instrumentation overhead.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var registry *prometheus.Registry

// InitRegistry creates the process's metrics registry. It must be called
// before pkg/metrics/prometheus.New if metrics are wanted.
func InitRegistry() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	return registry
}

// GetRegistry returns the current registry, or nil if InitRegistry was
// never called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return registry != nil
}
