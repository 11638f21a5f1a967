package v1

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/metron-labs/metron/pkg/metron/v1/collector"
	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
	"github.com/metron-labs/metron/pkg/metron/v1/events"
	"github.com/metron-labs/metron/pkg/metron/v1/metrics"
	"github.com/metron-labs/metron/pkg/metron/v1/properties"
	"github.com/metron-labs/metron/pkg/metron/v1/secrets"
)

// RuntimeV1 defines the public interface for the Metron metrics runtime.
// A runtime owns the process-wide provider slot: at most one metrics provider
// is active at a time, and installing a new one displaces and shuts down the
// previous one.
type RuntimeV1 interface {
	// ApplyConfig loads a telemetry configuration from its raw YAML content,
	// validates it, expands secret references, and installs whatever the
	// config declares (exporter, snapshot schedule, collectors).
	ApplyConfig(ctx context.Context, configYAML []byte) error

	// InstallPrometheus builds a Prometheus pull provider from the given
	// properties and moves it into the active slot. The properties are
	// consumed read-only; the caller retains ownership of the map. A nil
	// map installs a provider with all defaults.
	InstallPrometheus(ctx context.Context, props properties.Map) error
	// InstallOTLP builds an OTLP push provider from the given properties
	// and moves it into the active slot. Ownership semantics match
	// InstallPrometheus.
	InstallOTLP(ctx context.Context, props properties.Map) error
	// Shutdown removes the active provider, restores the no-op global meter
	// provider, and flushes pending telemetry. With no provider active it
	// still resets the global state and returns nil.
	Shutdown(ctx context.Context) error
	// Disable is Shutdown with errors suppressed. Intended for hosts that
	// are turning telemetry off and do not care whether the final flush
	// succeeded.
	Disable(ctx context.Context)
	// Active returns the kind of the provider occupying the slot
	// ("prometheus", "otlp"), or an empty string when the slot is empty.
	Active() string
	// Handler serves the merged scrape view: the runtime's own registry
	// plus the active Prometheus provider's metrics. Always non-nil and
	// safe to serve, even with an empty slot.
	Handler() http.Handler

	// ConfigureSnapshots prepares the textfile snapshot exporter from
	// textfile.* properties.
	ConfigureSnapshots(props properties.Map) error
	// RegisterCollector adds a collector to the snapshot exporter.
	RegisterCollector(c collector.Collector) error
	// WriteSnapshot gathers all registered collectors and atomically writes
	// one textfile snapshot, returning the file path written.
	WriteSnapshot(ctx context.Context, stage string) (string, error)

	// RecordHistogram records a sample on the named histogram through the
	// globally installed meter provider.
	RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) error
	// AddCounter adds a non-negative delta to the named counter through the
	// globally installed meter provider.
	AddCounter(ctx context.Context, name string, delta int64, attrs ...attribute.KeyValue) error

	// MetricsRegistryProvider returns the runtime's native metrics registry provider.
	MetricsRegistryProvider() metrics.RegistryProvider
	// PropertyRegistry returns the registry that issues property map handles.
	PropertyRegistry() properties.Registry

	// Setter methods for configuring runtime components programmatically.
	SetPropertyRegistry(registry properties.Registry) error
	SetSecretsProvider(provider secrets.Provider) error
	SetEventBus(bus events.Bus) error
	SetCollectorRegistry(registry collector.Registry) error
	SetMetricsRegistryProvider(provider metrics.RegistryProvider) error
	SetInstallRetryPolicy(policy RetryPolicy) error
	SetDefaultTimeout(timeout time.Duration) error
	SetRedactedKeywords(keywords []string) error
}

// RuntimeOption is a function type used to configure the runtime at creation.
type RuntimeOption func(RuntimeV1) error

// RetryPolicy defines the public configuration for provider install retries.
// Zero values fall back to a single attempt with no delay.
type RetryPolicy struct {
	Attempts      int           `yaml:"attempts,omitempty" json:"attempts,omitempty"`
	Delay         time.Duration `yaml:"delay,omitempty" json:"delay,omitempty"`
	MaxDelay      time.Duration `yaml:"max_delay,omitempty" json:"max_delay,omitempty"`
	BackoffFactor float64       `yaml:"backoff_factor,omitempty" json:"backoff_factor,omitempty"`
	// Jitter is the randomization factor applied to each delay, clamped to
	// [0.0, 1.0].
	Jitter float64 `yaml:"jitter,omitempty" json:"jitter,omitempty"`
}

// WithPropertyRegistry is a runtime option to provide a custom property map registry.
func WithPropertyRegistry(registry properties.Registry) RuntimeOption {
	return func(r RuntimeV1) error {
		if registry == nil {
			return metronerrors.NewConfigError("property registry cannot be nil", nil)
		}
		return r.SetPropertyRegistry(registry)
	}
}

// WithSecretsProvider is a runtime option to provide a custom secrets provider.
func WithSecretsProvider(provider secrets.Provider) RuntimeOption {
	return func(r RuntimeV1) error {
		if provider == nil {
			return metronerrors.NewConfigError("secrets provider cannot be nil", nil)
		}
		return r.SetSecretsProvider(provider)
	}
}

// WithEventBus is a runtime option to provide a custom event bus.
func WithEventBus(bus events.Bus) RuntimeOption {
	return func(r RuntimeV1) error {
		if bus == nil {
			return metronerrors.NewConfigError("event bus cannot be nil", nil)
		}
		return r.SetEventBus(bus)
	}
}

// WithCollectorRegistry is a runtime option to provide a custom collector registry.
func WithCollectorRegistry(registry collector.Registry) RuntimeOption {
	return func(r RuntimeV1) error {
		if registry == nil {
			return metronerrors.NewConfigError("collector registry cannot be nil", nil)
		}
		return r.SetCollectorRegistry(registry)
	}
}

// WithMetricsRegistryProvider is a runtime option to provide a custom native metrics registry.
func WithMetricsRegistryProvider(provider metrics.RegistryProvider) RuntimeOption {
	return func(r RuntimeV1) error {
		if provider == nil {
			return metronerrors.NewConfigError("metrics registry provider cannot be nil", nil)
		}
		return r.SetMetricsRegistryProvider(provider)
	}
}

// WithInstallRetryPolicy is a runtime option to configure provider install retries.
func WithInstallRetryPolicy(policy RetryPolicy) RuntimeOption {
	return func(r RuntimeV1) error {
		if policy.Attempts < 1 {
			return metronerrors.NewConfigError("retry attempts must be at least 1", nil)
		}
		if policy.Delay < 0 || policy.MaxDelay < 0 {
			return metronerrors.NewConfigError("retry delays cannot be negative", nil)
		}
		if policy.Jitter < 0 || policy.Jitter > 1 {
			return metronerrors.NewConfigError("retry jitter must be between 0.0 and 1.0", nil)
		}
		return r.SetInstallRetryPolicy(policy)
	}
}

// WithDefaultTimeout is a runtime option to set the default timeout for
// install and shutdown operations invoked without a deadline.
func WithDefaultTimeout(timeout time.Duration) RuntimeOption {
	return func(r RuntimeV1) error {
		if timeout < 0 {
			return metronerrors.NewConfigError("default timeout cannot be negative", nil)
		}
		return r.SetDefaultTimeout(timeout)
	}
}

// WithRedactedKeywords is a runtime option to configure the list of keywords for secret redaction.
func WithRedactedKeywords(keywords []string) RuntimeOption {
	return func(r RuntimeV1) error {
		return r.SetRedactedKeywords(keywords)
	}
}
