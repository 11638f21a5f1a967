package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/metron-labs/metron/pkg/metron/v1/events"
	metronlog "github.com/metron-labs/metron/pkg/metron/v1/log"
)

// LifecycleCounters groups the Prometheus counters the listener maintains.
// The runtime registers these on its native self-metrics registry so the
// counts survive provider swaps and remain scrapeable while the active
// provider slot is empty.
type LifecycleCounters struct {
	// ProviderInstalls counts successful installs, labeled by provider kind.
	ProviderInstalls *prometheus.CounterVec
	// ProviderInstallFailures counts failed installs, labeled by provider kind.
	ProviderInstallFailures *prometheus.CounterVec
	// ProviderShutdowns counts shutdowns that displaced an active provider.
	ProviderShutdowns prometheus.Counter
	// SnapshotsWritten counts textfile snapshots successfully written.
	SnapshotsWritten prometheus.Counter
	// SnapshotFailures counts textfile snapshots that failed to write.
	SnapshotFailures prometheus.Counter
	// SecretsAccessed counts secret resolutions during configuration expansion.
	SecretsAccessed prometheus.Counter
}

// MetricsEventListener subscribes to a Metron event bus and updates Prometheus
// metrics based on the lifecycle events it receives.
type MetricsEventListener struct {
	bus      *ChannelEventBus
	log      metronlog.Logger
	counters *LifecycleCounters
}

// NewMetricsEventListener creates a new listener. It requires a
// ChannelEventBus to subscribe to and the counters it maintains.
// Panics if any dependency is nil.
func NewMetricsEventListener(bus *ChannelEventBus, counters *LifecycleCounters, log metronlog.Logger) *MetricsEventListener {
	if bus == nil || counters == nil || log == nil {
		panic("MetricsEventListener requires a non-nil ChannelEventBus, LifecycleCounters, and Logger")
	}
	return &MetricsEventListener{
		bus:      bus,
		log:      log.With("component", "MetricsEventListener"),
		counters: counters,
	}
}

// Start begins listening for events on the bus. It blocks until the bus
// channel is closed or the provided context is cancelled, so callers
// typically run it in its own goroutine.
func (l *MetricsEventListener) Start(ctx context.Context) {
	l.log.Debugf("Starting metrics event listener...")
	for {
		select {
		case event, ok := <-l.bus.GetChannel():
			if !ok {
				l.log.Debugf("Event bus channel closed, stopping listener.")
				return
			}
			l.handleEvent(event)
		case <-ctx.Done():
			l.log.Debugf("Context cancelled, stopping metrics event listener.")
			return
		}
	}
}

// handleEvent processes a single event, incrementing counters as needed.
// Individual counters may be nil when the runtime was built without its
// native registry; those events are simply skipped.
func (l *MetricsEventListener) handleEvent(event events.Event) {
	switch event.Type {
	case events.ProviderInstalled:
		if l.counters.ProviderInstalls != nil {
			l.counters.ProviderInstalls.WithLabelValues(event.Provider).Inc()
		}
	case events.ProviderInstallFailed:
		if l.counters.ProviderInstallFailures != nil {
			l.counters.ProviderInstallFailures.WithLabelValues(event.Provider).Inc()
		}
	case events.ProviderShutdown:
		if l.counters.ProviderShutdowns != nil {
			l.counters.ProviderShutdowns.Inc()
		}
	case events.SnapshotWritten:
		if l.counters.SnapshotsWritten != nil {
			l.counters.SnapshotsWritten.Inc()
		}
	case events.SnapshotFailed:
		if l.counters.SnapshotFailures != nil {
			l.counters.SnapshotFailures.Inc()
		}
	case events.SecretAccessed:
		if l.counters.SecretsAccessed != nil {
			l.counters.SecretsAccessed.Inc()
			l.log.Debugf("Incremented secrets access counter.")
		}
	}
}
