package metrics

import "github.com/prometheus/client_golang/prometheus"

// RegistryProvider defines the interface for accessing the runtime's native
// metrics registry. The runtime records its own operational metrics (install
// counts, snapshot durations, event counters) here, independent of whichever
// metrics provider currently occupies the process-wide slot, so self-metrics
// survive provider swaps.
type RegistryProvider interface {
	// Registry returns the Prometheus registry containing Metron runtime metrics.
	Registry() *prometheus.Registry
}
