package runtime_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metron-labs/metron/internal/logger"
	"github.com/metron-labs/metron/internal/registry"
	"github.com/metron-labs/metron/internal/runtime"
	"github.com/metron-labs/metron/internal/textfile"
	metron "github.com/metron-labs/metron/pkg/metron/v1"
	"github.com/metron-labs/metron/pkg/metron/v1/collector"
	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
	"github.com/metron-labs/metron/pkg/metron/v1/events"
	metronlog "github.com/metron-labs/metron/pkg/metron/v1/log"
	"github.com/metron-labs/metron/pkg/metron/v1/properties"
)

func newTestLogger() metronlog.Logger {
	return logger.NewLogger("error", "text", os.Stderr)
}

// recordingBus captures emitted events for assertions.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Emit(e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) count(eventType events.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (b *recordingBus) last(eventType events.EventType) (events.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.events) - 1; i >= 0; i-- {
		if b.events[i].Type == eventType {
			return b.events[i], true
		}
	}
	return events.Event{}, false
}

type stubCollector struct {
	name    string
	metrics []collector.Metric
}

func (c *stubCollector) Name() string { return c.name }

func (c *stubCollector) Collect(context.Context, string) ([]collector.Metric, error) {
	return c.metrics, nil
}

func stubFactory(name string) collector.Factory {
	return func(map[string]string) (collector.Collector, error) {
		return &stubCollector{
			name: name,
			metrics: []collector.Metric{
				{Name: "metron_stub_total", Help: "Stub counter.", Type: collector.TypeCounter, Value: 1},
			},
		}, nil
	}
}

// newTestRuntime builds a runtime wired to a recording bus. Disable runs on
// cleanup so the global meter provider is reset between tests.
func newTestRuntime(t *testing.T, opts ...metron.RuntimeOption) (*runtime.Runtime, *recordingBus) {
	t.Helper()
	bus := &recordingBus{}
	all := append([]metron.RuntimeOption{metron.WithEventBus(bus)}, opts...)
	rt, err := runtime.NewRuntime(newTestLogger(), all...)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Disable(context.Background()) })
	return rt, bus
}

func scrape(t *testing.T, rt *runtime.Runtime) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	rt.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestNewRuntimeRequiresLogger(t *testing.T) {
	_, err := runtime.NewRuntime(nil)
	require.Error(t, err)
	var cfgErr *metronerrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

// TestNewRuntimeDefaults verifies that a bare runtime is usable: every
// accessor returns a working default and the scrape handler serves the native
// self-metrics even though the provider slot is empty.
func TestNewRuntimeDefaults(t *testing.T) {
	rt, _ := newTestRuntime(t)

	assert.NotNil(t, rt.PropertyRegistry())
	assert.NotNil(t, rt.MetricsRegistryProvider())
	assert.NotNil(t, rt.LifecycleCounters())
	assert.Empty(t, rt.Active())
	assert.Equal(t, "/metrics", rt.HandlerPath())

	body := scrape(t, rt)
	assert.Contains(t, body, "metron_provider_shutdowns_total 0")

	_, err := rt.WriteSnapshot(context.Background(), "start")
	assert.ErrorIs(t, err, textfile.ErrNotConfigured)
	err = rt.RegisterCollector(&stubCollector{name: "late"})
	assert.ErrorIs(t, err, textfile.ErrNotConfigured)
}

func TestInstallPrometheusWithDefaults(t *testing.T) {
	rt, bus := newTestRuntime(t)

	require.NoError(t, rt.InstallPrometheus(context.Background(), nil))
	assert.Equal(t, "prometheus", rt.Active())

	body := scrape(t, rt)
	assert.Contains(t, body, `service_name="metron"`)

	installed, ok := bus.last(events.ProviderInstalled)
	require.True(t, ok)
	assert.Equal(t, "prometheus", installed.Provider)
}

// TestInstallPrometheusFromProperties verifies the property keys drive the
// provider resource and the handler path.
func TestInstallPrometheusFromProperties(t *testing.T) {
	rt, _ := newTestRuntime(t)

	props := properties.Map{
		properties.KeyServiceName:           "checkout",
		properties.KeyServiceVersion:        "2.4.1",
		properties.KeyAttrPrefix + "region": "eu-west-1",
		properties.KeyPrometheusHandlerPath: "/internal/metrics",
	}
	require.NoError(t, rt.InstallPrometheus(context.Background(), props))

	assert.Equal(t, "/internal/metrics", rt.HandlerPath())
	body := scrape(t, rt)
	assert.Contains(t, body, "checkout")
	assert.Contains(t, body, "eu-west-1")
}

func TestInstallPrometheusInvalidProperty(t *testing.T) {
	rt, bus := newTestRuntime(t)

	err := rt.InstallPrometheus(context.Background(), properties.Map{
		properties.KeyPrometheusOpenMetrics: "maybe",
	})
	require.Error(t, err)

	var provErr *metronerrors.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "prometheus", provErr.Kind)
	assert.Equal(t, "install", provErr.Op)

	assert.Empty(t, rt.Active())
	assert.Equal(t, 1, bus.count(events.ProviderInstallFailed))
	assert.Equal(t, 0, bus.count(events.ProviderInstalled))
}

// TestInstallReplacesActiveProvider verifies the single-slot semantics: a
// second install displaces the first without surfacing its shutdown.
func TestInstallReplacesActiveProvider(t *testing.T) {
	rt, bus := newTestRuntime(t)

	require.NoError(t, rt.InstallPrometheus(context.Background(), nil))
	require.NoError(t, rt.InstallPrometheus(context.Background(), properties.Map{
		properties.KeyServiceName: "second",
	}))

	assert.Equal(t, "prometheus", rt.Active())
	assert.Equal(t, 2, bus.count(events.ProviderInstalled))
	assert.Contains(t, scrape(t, rt), "second")
}

func TestShutdown(t *testing.T) {
	rt, bus := newTestRuntime(t)

	require.NoError(t, rt.InstallPrometheus(context.Background(), nil))
	require.NoError(t, rt.Shutdown(context.Background()))
	assert.Empty(t, rt.Active())
	assert.Equal(t, 1, bus.count(events.ProviderShutdown))

	// Self-metrics stay scrapeable with an empty slot.
	assert.Contains(t, scrape(t, rt), "metron_provider_shutdowns_total")

	// A second shutdown has nothing to release and succeeds.
	require.NoError(t, rt.Shutdown(context.Background()))
	assert.Equal(t, 1, bus.count(events.ProviderShutdown))
}

func TestDisable(t *testing.T) {
	rt, bus := newTestRuntime(t)

	require.NoError(t, rt.InstallPrometheus(context.Background(), nil))
	rt.Disable(context.Background())

	assert.Empty(t, rt.Active())
	assert.Equal(t, 1, bus.count(events.MetricsDisabled))
}

// TestRecordThroughInstalledProvider verifies samples recorded through the
// runtime surface on the installed provider's scrape output.
func TestRecordThroughInstalledProvider(t *testing.T) {
	rt, _ := newTestRuntime(t)
	require.NoError(t, rt.InstallPrometheus(context.Background(), nil))

	ctx := context.Background()
	require.NoError(t, rt.AddCounter(ctx, "test_ops", 5))
	require.NoError(t, rt.RecordHistogram(ctx, "test_latency", 0.25))

	body := scrape(t, rt)
	assert.Contains(t, body, "test_ops_total")
	assert.Contains(t, body, "test_latency")

	assert.Error(t, rt.AddCounter(ctx, "test_ops", -1))
	assert.Error(t, rt.AddCounter(ctx, "", 1))
	assert.Error(t, rt.RecordHistogram(ctx, "", 1))
}

// TestRecordWithoutProvider verifies recording against the empty slot is a
// silent no-op rather than an error.
func TestRecordWithoutProvider(t *testing.T) {
	rt, _ := newTestRuntime(t)

	assert.NoError(t, rt.AddCounter(context.Background(), "idle_ops", 1))
	assert.NoError(t, rt.RecordHistogram(context.Background(), "idle_latency", 1.5))
}

func TestConfigureSnapshotsAndWrite(t *testing.T) {
	reg := registry.NewStaticRegistry()
	require.NoError(t, reg.Register("stub", stubFactory("stub")))

	rt, bus := newTestRuntime(t, metron.WithCollectorRegistry(reg))
	dir := t.TempDir()

	props := properties.Map{
		properties.KeyTextfileDirectory:  dir,
		properties.KeyTextfileFilePrefix: "testsnap",
		properties.KeyTextfileCollectors: "stub",
	}
	require.NoError(t, rt.ConfigureSnapshots(props))
	assert.Equal(t, []string{"stub"}, rt.SnapshotCollectors())

	path, err := rt.WriteSnapshot(context.Background(), "start")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "testsnap_start.prom"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `metron_stub_total{stage="start"} 1`)
	assert.Equal(t, 1, bus.count(events.SnapshotWritten))

	// Late registration feeds subsequent snapshots.
	extra := &stubCollector{
		name: "extra",
		metrics: []collector.Metric{
			{Name: "metron_extra", Help: "Extra gauge.", Type: collector.TypeGauge, Value: 7},
		},
	}
	require.NoError(t, rt.RegisterCollector(extra))
	assert.Equal(t, 1, bus.count(events.CollectorRegistered))

	path, err = rt.WriteSnapshot(context.Background(), "start")
	require.NoError(t, err)
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "metron_stub_total")
	assert.Contains(t, string(content), "metron_extra")
}

func TestConfigureSnapshotsRequiresDirectory(t *testing.T) {
	rt, _ := newTestRuntime(t)

	err := rt.ConfigureSnapshots(properties.Map{})
	require.Error(t, err)
	var valErr *metronerrors.ValidationError
	assert.ErrorAs(t, err, &valErr)
}

func TestConfigureSnapshotsUnknownCollector(t *testing.T) {
	rt, _ := newTestRuntime(t, metron.WithCollectorRegistry(registry.NewStaticRegistry()))

	err := rt.ConfigureSnapshots(properties.Map{
		properties.KeyTextfileDirectory:  t.TempDir(),
		properties.KeyTextfileCollectors: "missing",
	})
	require.Error(t, err)
	var notFound *metronerrors.CollectorNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

// TestApplyConfig drives the full path: YAML in, provider installed, secret
// expanded, snapshot exporter seeded and writing.
func TestApplyConfig(t *testing.T) {
	t.Setenv("METRON_TEST_REGION", "staging-eu")

	reg := registry.NewStaticRegistry()
	require.NoError(t, reg.Register("stub", stubFactory("stub")))
	rt, bus := newTestRuntime(t, metron.WithCollectorRegistry(reg))

	dir := t.TempDir()
	configYAML := `
schemaVersion: "1.0.0"
exporter: prometheus
service:
  name: checkout
attributes:
  region: "${env:METRON_TEST_REGION}"
prometheus:
  handler_path: /internal/metrics
textfile:
  directory: ` + dir + `
  collectors:
    - name: stub
install_retry:
  attempts: 2
  delay: 10ms
`
	require.NoError(t, rt.ApplyConfig(context.Background(), []byte(configYAML)))

	assert.Equal(t, "prometheus", rt.Active())
	assert.Equal(t, "/internal/metrics", rt.HandlerPath())
	assert.Equal(t, 1, bus.count(events.SecretAccessed))

	body := scrape(t, rt)
	assert.Contains(t, body, "checkout")
	assert.Contains(t, body, "staging-eu")

	path, err := rt.WriteSnapshot(context.Background(), "")
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "metron_stub_total 1")
}

func TestApplyConfigExporterNone(t *testing.T) {
	rt, bus := newTestRuntime(t)

	require.NoError(t, rt.ApplyConfig(context.Background(), []byte("schemaVersion: \"1.0.0\"\nexporter: none\n")))
	assert.Empty(t, rt.Active())
	assert.Equal(t, 0, bus.count(events.ProviderInstalled))
}

func TestApplyConfigRejectsInvalidYAML(t *testing.T) {
	rt, _ := newTestRuntime(t)

	err := rt.ApplyConfig(context.Background(), []byte("exporter: statsd\nschemaVersion: \"1.0.0\"\n"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed schema validation")
}

func TestSetterValidation(t *testing.T) {
	rt, _ := newTestRuntime(t)

	assert.Error(t, rt.SetPropertyRegistry(nil))
	assert.Error(t, rt.SetSecretsProvider(nil))
	assert.Error(t, rt.SetEventBus(nil))
	assert.Error(t, rt.SetCollectorRegistry(nil))
	assert.Error(t, rt.SetMetricsRegistryProvider(nil))
	assert.Error(t, rt.SetDefaultTimeout(-1*time.Second))

	assert.Error(t, rt.SetInstallRetryPolicy(metron.RetryPolicy{Attempts: 0}))
	assert.Error(t, rt.SetInstallRetryPolicy(metron.RetryPolicy{Attempts: 1, Delay: -1}))
	assert.Error(t, rt.SetInstallRetryPolicy(metron.RetryPolicy{Attempts: 1, Jitter: 1.5}))
	assert.NoError(t, rt.SetInstallRetryPolicy(metron.RetryPolicy{Attempts: 3, Delay: 5 * time.Millisecond}))
}

func TestNewRuntimeRejectsInvalidOption(t *testing.T) {
	_, err := runtime.NewRuntime(newTestLogger(), metron.WithInstallRetryPolicy(metron.RetryPolicy{Attempts: 0}))
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to apply runtime option")
}
