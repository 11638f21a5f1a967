package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/metron-labs/metron/internal/logger"
	"github.com/metron-labs/metron/pkg/metron/v1/events"
)

func newTestCounters() *LifecycleCounters {
	return &LifecycleCounters{
		ProviderInstalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "metron_provider_installs_total"},
			[]string{"provider"},
		),
		ProviderInstallFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "metron_provider_install_failures_total"},
			[]string{"provider"},
		),
		ProviderShutdowns: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "metron_provider_shutdowns_total"},
		),
		SnapshotsWritten: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "metron_snapshots_written_total"},
		),
		SnapshotFailures: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "metron_snapshot_failures_total"},
		),
		SecretsAccessed: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "metron_secrets_accessed_total"},
		),
	}
}

func TestChannelEventBusDeliversInOrder(t *testing.T) {
	log := logger.NewLogger("error", "text", os.Stderr)
	bus := NewChannelEventBus(4, log)

	bus.Emit(events.Event{Type: events.ProviderInstalled, Provider: "prometheus", Timestamp: time.Now()})
	bus.Emit(events.Event{Type: events.ProviderShutdown, Timestamp: time.Now()})
	bus.Close()

	var got []events.EventType
	for ev := range bus.GetChannel() {
		got = append(got, ev.Type)
	}
	assert.Equal(t, []events.EventType{events.ProviderInstalled, events.ProviderShutdown}, got)
}

func TestChannelEventBusDropsWhenFull(t *testing.T) {
	log := logger.NewLogger("error", "text", os.Stderr)
	bus := NewChannelEventBus(2, log)

	for i := 0; i < 5; i++ {
		bus.Emit(events.Event{Type: events.SnapshotWritten})
	}
	bus.Close()

	count := 0
	for range bus.GetChannel() {
		count++
	}
	assert.Equal(t, 2, count, "emits beyond the buffer size should be dropped, not queued")
}

func TestNewChannelEventBusNilLoggerPanics(t *testing.T) {
	assert.Panics(t, func() { NewChannelEventBus(4, nil) })
}

func TestNoOpEventBusEmit(t *testing.T) {
	bus := NewNoOpEventBus()
	assert.NotPanics(t, func() {
		bus.Emit(events.Event{Type: events.MetricsDisabled})
	})
}

func TestMetricsEventListenerCounts(t *testing.T) {
	log := logger.NewLogger("error", "text", os.Stderr)
	bus := NewChannelEventBus(16, log)
	counters := newTestCounters()
	listener := NewMetricsEventListener(bus, counters, log)

	done := make(chan struct{})
	go func() {
		defer close(done)
		listener.Start(context.Background())
	}()

	bus.Emit(events.Event{Type: events.ProviderInstalled, Provider: "prometheus"})
	bus.Emit(events.Event{Type: events.ProviderInstalled, Provider: "otlp"})
	bus.Emit(events.Event{Type: events.ProviderInstallFailed, Provider: "otlp"})
	bus.Emit(events.Event{Type: events.ProviderShutdown})
	bus.Emit(events.Event{Type: events.SnapshotWritten, Stage: "pre_job"})
	bus.Emit(events.Event{Type: events.SnapshotFailed, Stage: "post_job"})
	bus.Emit(events.Event{Type: events.SecretAccessed})
	bus.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after the bus was closed")
	}

	assert.Equal(t, float64(1), promtestutil.ToFloat64(counters.ProviderInstalls.WithLabelValues("prometheus")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(counters.ProviderInstalls.WithLabelValues("otlp")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(counters.ProviderInstallFailures.WithLabelValues("otlp")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(counters.ProviderShutdowns))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(counters.SnapshotsWritten))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(counters.SnapshotFailures))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(counters.SecretsAccessed))
}

func TestMetricsEventListenerStopsOnContextCancel(t *testing.T) {
	log := logger.NewLogger("error", "text", os.Stderr)
	bus := NewChannelEventBus(1, log)
	listener := NewMetricsEventListener(bus, newTestCounters(), log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		listener.Start(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop after context cancellation")
	}
}

func TestNewMetricsEventListenerNilDependenciesPanic(t *testing.T) {
	log := logger.NewLogger("error", "text", os.Stderr)
	bus := NewChannelEventBus(1, log)

	assert.Panics(t, func() { NewMetricsEventListener(nil, newTestCounters(), log) })
	assert.Panics(t, func() { NewMetricsEventListener(bus, nil, log) })
	assert.Panics(t, func() { NewMetricsEventListener(bus, newTestCounters(), nil) })
}
