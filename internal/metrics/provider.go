package metrics

import (
	metron "github.com/metron-labs/metron/pkg/metron/v1/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRegistryProvider implements the RegistryProvider interface using
// a standard Prometheus registry. The runtime keeps its own operational
// metrics here so they outlive whichever provider occupies the active slot.
type PrometheusRegistryProvider struct {
	registry *prometheus.Registry
}

// NewPrometheusRegistryProvider creates a new native registry provider.
func NewPrometheusRegistryProvider() *PrometheusRegistryProvider {
	return &PrometheusRegistryProvider{
		registry: prometheus.NewRegistry(),
	}
}

// Registry returns the underlying Prometheus registry.
func (p *PrometheusRegistryProvider) Registry() *prometheus.Registry {
	return p.registry
}

// Ensure implementation satisfies the interface.
var _ metron.RegistryProvider = (*PrometheusRegistryProvider)(nil)
