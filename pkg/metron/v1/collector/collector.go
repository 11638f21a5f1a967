package collector

import "context"

// MetricType identifies how a snapshot metric should be interpreted by the
// scraping side.
type MetricType string

const (
	// TypeCounter marks a monotonically increasing value.
	TypeCounter MetricType = "counter"
	// TypeGauge marks a value that can go up and down.
	TypeGauge MetricType = "gauge"
)

// Metric is a single sample produced by a Collector for a textfile snapshot.
type Metric struct {
	// Name is the Prometheus metric name. Collectors are responsible for
	// producing names that satisfy the Prometheus data model.
	Name string
	// Help is the one-line description emitted as the # HELP comment.
	Help string
	// Type selects the # TYPE comment value.
	Type MetricType
	// Value is the sample value.
	Value float64
	// Labels holds additional label pairs. The snapshot stage, when set, is
	// added by the exporter and must not appear here.
	Labels map[string]string
}

// Collector produces metrics for textfile snapshots. Implementations must be
// safe for concurrent Collect calls; the exporter may snapshot from multiple
// goroutines.
type Collector interface {
	// Name returns the collector's unique registry name.
	Name() string

	// Collect gathers the collector's current metrics. The stage is the
	// snapshot variant being written; most collectors ignore it. Collect
	// MUST respect context cancellation on blocking work (subprocesses,
	// file reads on slow media).
	Collect(ctx context.Context, stage string) ([]Metric, error)
}

// Factory is a function type that creates a configured Collector instance.
// Params carries collector-specific settings from the snapshot configuration;
// collectors without settings ignore it.
type Factory func(params map[string]string) (Collector, error)

// Registry defines the public interface for the collector registry.
// It provides a mechanism for registering and retrieving collector
// factories by name.
type Registry interface {
	// Get retrieves the factory function for a given collector name.
	// It returns a metronerrors.CollectorNotFoundError if the name is not
	// registered.
	Get(name string) (Factory, error)

	// Register associates a collector name with its factory function.
	// This should be concurrency-safe. It returns an error if the name is
	// empty, the factory is nil, or the name is already registered.
	Register(name string, factory Factory) error

	// List returns a slice containing the names of all registered collectors.
	// The order of names in the returned slice is not guaranteed.
	List() []string
}
