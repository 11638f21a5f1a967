// Package runtime implements the Metron metrics runtime: the process-wide
// provider slot, the textfile snapshot exporter, and the native self-metrics
// registry that survives provider swaps.
package runtime

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	metron "github.com/metron-labs/metron/pkg/metron/v1"
	"github.com/metron-labs/metron/pkg/metron/v1/collector"
	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
	"github.com/metron-labs/metron/pkg/metron/v1/events"
	metronlog "github.com/metron-labs/metron/pkg/metron/v1/log"
	"github.com/metron-labs/metron/pkg/metron/v1/metrics"
	"github.com/metron-labs/metron/pkg/metron/v1/properties"
	"github.com/metron-labs/metron/pkg/metron/v1/secrets"

	"github.com/metron-labs/metron/internal/config"
	intEvents "github.com/metron-labs/metron/internal/events"
	intMetrics "github.com/metron-labs/metron/internal/metrics"
	"github.com/metron-labs/metron/internal/provider"
	"github.com/metron-labs/metron/internal/registry"
	"github.com/metron-labs/metron/internal/retry"
	intSecrets "github.com/metron-labs/metron/internal/secrets"
	"github.com/metron-labs/metron/internal/textfile"
)

// Runtime is the core component of Metron. It owns the process-wide provider
// slot, manages the textfile snapshot exporter, and records its own
// operational metrics on a registry independent of whichever provider
// occupies the slot.
type Runtime struct {
	// Core services and providers
	propertyRegistry  properties.Registry
	secretsProvider   secrets.Provider
	eventBus          events.Bus
	collectorRegistry collector.Registry
	metricsProvider   metrics.RegistryProvider
	log               metronlog.Logger
	retryHelper       *retry.Helper
	secretTracker     *intSecrets.SecretTracker

	// Configuration and policies
	installRetry          metron.RetryPolicy
	defaultTimeout        time.Duration
	redactedKeywords      map[string]struct{}
	redactedKeywordsSlice []string

	// The provider slot. slotMu serializes install, shutdown, and disable;
	// provider construction happens before the lock is taken so a slow
	// exporter dial never stalls readers of the slot.
	slotMu        sync.Mutex
	active        provider.Provider
	handlerPath   string
	scrapeHandler http.Handler

	// Snapshot exporter, guarded separately: snapshot writes never touch the
	// global meter provider.
	exporterMu sync.Mutex
	exporter   *textfile.Exporter

	// Lifecycle counters registered on the native registry.
	counters *intEvents.LifecycleCounters
}

var _ metron.RuntimeV1 = (*Runtime)(nil)

// NewRuntime creates a runtime with the given logger and options. Every
// dependency left unset falls back to a default implementation.
func NewRuntime(log metronlog.Logger, opts ...metron.RuntimeOption) (*Runtime, error) {
	if log == nil {
		return nil, metronerrors.NewConfigError("logger cannot be nil", nil)
	}

	r := &Runtime{
		log:              log,
		installRetry:     metron.RetryPolicy{Attempts: 1},
		redactedKeywords: make(map[string]struct{}),
		secretTracker:    intSecrets.NewSecretTracker(),
		handlerPath:      config.DefaultHandlerPath,
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, metronerrors.NewConfigError(fmt.Sprintf("failed to apply runtime option: %v", err), err)
		}
	}

	if r.propertyRegistry == nil {
		r.log.Warnf("No property registry provided, using default in-memory registry.")
		r.propertyRegistry = properties.NewRegistry()
	}
	if r.secretsProvider == nil {
		r.log.Warnf("No secrets provider provided, using default environment provider.")
		r.secretsProvider = intSecrets.NewEnvProvider()
	}
	if r.eventBus == nil {
		r.log.Warnf("No event bus provided, using default NoOp bus.")
		r.eventBus = intEvents.NewNoOpEventBus()
	}
	if r.collectorRegistry == nil {
		r.log.Warnf("No collector registry provided, using default static registry.")
		r.collectorRegistry = registry.DefaultStaticRegistryGetter
	}
	if r.metricsProvider == nil {
		r.log.Warnf("No metrics provider provided, using default Prometheus provider.")
		r.metricsProvider = intMetrics.NewPrometheusRegistryProvider()
	}

	if len(r.redactedKeywords) == 0 && len(r.redactedKeywordsSlice) > 0 {
		_ = r.SetRedactedKeywords(r.redactedKeywordsSlice)
	}

	r.retryHelper = retry.NewHelper(r.log)
	r.retryHelper.SetRedactedKeywords(r.redactedKeywords)

	r.initMetrics()

	r.slotMu.Lock()
	r.rebuildHandlerLocked()
	r.slotMu.Unlock()

	return r, nil
}

// LifecycleCounters returns the counters the metrics event listener
// maintains. Nil until initMetrics has run against a usable registry.
func (r *Runtime) LifecycleCounters() *intEvents.LifecycleCounters {
	return r.counters
}

func (r *Runtime) initMetrics() {
	if r.metricsProvider == nil {
		r.log.Warnf("Metrics provider is nil, skipping metrics initialization.")
		return
	}
	reg := r.metricsProvider.Registry()
	if reg == nil {
		r.log.Errorf("Metrics provider returned a nil registry, cannot initialize metrics.")
		return
	}

	counters := &intEvents.LifecycleCounters{
		ProviderInstalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "metron_provider_installs_total", Help: "Total number of successful provider installs by kind."},
			[]string{"provider"},
		),
		ProviderInstallFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "metron_provider_install_failures_total", Help: "Total number of provider installs that failed before taking the slot."},
			[]string{"provider"},
		),
		ProviderShutdowns: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "metron_provider_shutdowns_total", Help: "Total number of shutdowns that released an active provider."},
		),
		SnapshotsWritten: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "metron_snapshots_written_total", Help: "Total number of textfile snapshots written."},
		),
		SnapshotFailures: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "metron_snapshot_failures_total", Help: "Total number of textfile snapshots that failed."},
		),
		SecretsAccessed: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "metron_secrets_accessed_total", Help: "Total number of secret references expanded during configuration loading."},
		),
	}

	for _, c := range []prometheus.Collector{
		counters.ProviderInstalls,
		counters.ProviderInstallFailures,
		counters.ProviderShutdowns,
		counters.SnapshotsWritten,
		counters.SnapshotFailures,
		counters.SecretsAccessed,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				r.log.Warnf("Failed to register runtime metric collector: %v", err)
			} else {
				r.log.Debugf("Runtime metric collector already registered.")
			}
		}
	}

	r.counters = counters
	r.log.Debugf("Runtime self-metrics initialized and registered.")
}

// MetricsRegistryProvider returns the runtime's native metrics registry provider.
func (r *Runtime) MetricsRegistryProvider() metrics.RegistryProvider { return r.metricsProvider }

// PropertyRegistry returns the registry that issues property map handles.
func (r *Runtime) PropertyRegistry() properties.Registry { return r.propertyRegistry }

// SetPropertyRegistry replaces the property map registry.
func (r *Runtime) SetPropertyRegistry(reg properties.Registry) error {
	if reg == nil {
		return metronerrors.NewConfigError("property registry cannot be nil", nil)
	}
	r.propertyRegistry = reg
	return nil
}

// SetSecretsProvider replaces the secrets provider used for ${env:NAME}
// expansion in configuration values.
func (r *Runtime) SetSecretsProvider(provider secrets.Provider) error {
	if provider == nil {
		return metronerrors.NewConfigError("secrets provider cannot be nil", nil)
	}
	r.secretsProvider = provider
	return nil
}

// SetEventBus replaces the event bus. Components already built (such as a
// configured snapshot exporter) keep the bus they were created with.
func (r *Runtime) SetEventBus(bus events.Bus) error {
	if bus == nil {
		return metronerrors.NewConfigError("event bus cannot be nil", nil)
	}
	r.eventBus = bus
	return nil
}

// SetCollectorRegistry replaces the registry snapshot collectors are seeded from.
func (r *Runtime) SetCollectorRegistry(reg collector.Registry) error {
	if reg == nil {
		return metronerrors.NewConfigError("collector registry cannot be nil", nil)
	}
	r.collectorRegistry = reg
	return nil
}

// SetMetricsRegistryProvider replaces the native self-metrics registry and
// re-registers the runtime's collectors on it.
func (r *Runtime) SetMetricsRegistryProvider(provider metrics.RegistryProvider) error {
	if provider == nil {
		return metronerrors.NewConfigError("metrics registry provider cannot be nil", nil)
	}
	r.metricsProvider = provider
	r.initMetrics()
	r.slotMu.Lock()
	r.rebuildHandlerLocked()
	r.slotMu.Unlock()
	return nil
}

// SetInstallRetryPolicy configures how provider construction is retried.
func (r *Runtime) SetInstallRetryPolicy(policy metron.RetryPolicy) error {
	if policy.Attempts < 1 {
		return metronerrors.NewConfigError("retry attempts must be at least 1", nil)
	}
	if policy.Delay < 0 || policy.MaxDelay < 0 {
		return metronerrors.NewConfigError("retry delays cannot be negative", nil)
	}
	if policy.Jitter < 0 || policy.Jitter > 1 {
		return metronerrors.NewConfigError("retry jitter must be between 0.0 and 1.0", nil)
	}
	r.installRetry = policy
	return nil
}

// SetDefaultTimeout sets the timeout applied to install, shutdown, and
// snapshot operations invoked without a deadline. Zero disables it.
func (r *Runtime) SetDefaultTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return metronerrors.NewConfigError("default timeout cannot be negative", nil)
	}
	r.defaultTimeout = timeout
	return nil
}

// SetRedactedKeywords configures the keywords used to scrub values from log
// and error output in addition to tracked secret values.
func (r *Runtime) SetRedactedKeywords(keywords []string) error {
	r.redactedKeywordsSlice = keywords
	newMap := make(map[string]struct{})
	for _, k := range keywords {
		keyLower := strings.ToLower(strings.TrimSpace(k))
		if keyLower != "" {
			newMap[keyLower] = struct{}{}
		}
	}
	r.redactedKeywords = newMap
	if r.retryHelper != nil {
		r.retryHelper.SetRedactedKeywords(r.redactedKeywords)
	}
	return nil
}

// rebuildHandlerLocked refreshes the merged scrape handler from the native
// registry and the active provider's gatherer. Requires slotMu.
func (r *Runtime) rebuildHandlerLocked() {
	var gatherers prometheus.Gatherers
	if r.metricsProvider != nil {
		if reg := r.metricsProvider.Registry(); reg != nil {
			gatherers = append(gatherers, reg)
		}
	}
	if p, ok := r.active.(*provider.PrometheusProvider); ok {
		gatherers = append(gatherers, p.Gatherer())
	}
	r.scrapeHandler = promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}
