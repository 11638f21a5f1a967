package provider_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metron-labs/metron/internal/instruments"
	"github.com/metron-labs/metron/internal/provider"
	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
	"github.com/metron-labs/metron/pkg/metron/v1/properties"
)

func TestNewPrometheusProviderDefaults(t *testing.T) {
	p, err := provider.NewPrometheusProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	assert.Equal(t, provider.KindPrometheus, p.Kind())
	assert.NotNil(t, p.MeterProvider())
	assert.NotNil(t, p.Registerer())
	assert.NotNil(t, p.Gatherer())
	assert.NotNil(t, p.Handler())
}

// TestScrapeRoundTrip installs the provider, records a counter through the
// runtime sample API, and verifies the sample appears on a scrape.
func TestScrapeRoundTrip(t *testing.T) {
	p, err := provider.NewPrometheusProvider(provider.WithServiceName("scrape-test"))
	require.NoError(t, err)
	p.InstallGlobal()
	t.Cleanup(func() {
		instruments.InstallMeterProvider(nil)
		_ = p.Shutdown(context.Background())
	})

	require.NoError(t, instruments.AddCounter(context.Background(), "jobs_processed", 7))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	assert.True(t, strings.Contains(text, "jobs_processed_total"),
		"scrape should contain the recorded counter, got:\n%s", text)
	assert.True(t, strings.Contains(text, "target_info"),
		"scrape should contain the resource target_info series")
	assert.True(t, strings.Contains(text, `service_name="scrape-test"`),
		"target_info should carry the configured service name")
}

func TestWithRegistererAutoGatherer(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := provider.NewPrometheusProvider(provider.WithRegisterer(reg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	// *prometheus.Registry gathers as well as registers.
	assert.Equal(t, prometheus.Gatherer(reg), p.Gatherer())
}

func TestRegistererWithoutGatherer(t *testing.T) {
	// A wrapped registerer loses the Gatherer side of *Registry.
	wrapped := prometheus.WrapRegistererWithPrefix("metron_", prometheus.NewRegistry())

	_, err := provider.NewPrometheusProvider(provider.WithRegisterer(wrapped))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WithGatherer")

	// Supplying the gatherer explicitly resolves it.
	p, err := provider.NewPrometheusProvider(
		provider.WithRegisterer(wrapped),
		provider.WithGatherer(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	_ = p.Shutdown(context.Background())
}

func TestWithGoCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := provider.NewPrometheusProvider(
		provider.WithRegisterer(reg),
		provider.WithGoCollectors(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	families, err := reg.Gather()
	require.NoError(t, err)

	var foundGoroutines bool
	for _, mf := range families {
		if mf.GetName() == "go_goroutines" {
			foundGoroutines = true
		}
	}
	assert.True(t, foundGoroutines, "go runtime collector metrics should be registered")
}

func TestPrometheusOptionsFromProperties(t *testing.T) {
	props := properties.Map{
		properties.KeyServiceName:           " svc-a ",
		properties.KeyServiceVersion:        "1.2.3",
		properties.KeyAttrPrefix + "region": "us-east-1",
		properties.KeyPrometheusGoCollector: "true",
	}
	opts, err := provider.PrometheusOptionsFromProperties(props)
	require.NoError(t, err)
	assert.NotEmpty(t, opts)

	p, err := provider.NewPrometheusProvider(opts...)
	require.NoError(t, err)
	_ = p.Shutdown(context.Background())
}

func TestPrometheusOptionsFromPropertiesBadBool(t *testing.T) {
	props := properties.Map{properties.KeyPrometheusOpenMetrics: "definitely"}
	_, err := provider.PrometheusOptionsFromProperties(props)
	require.Error(t, err)
	var valErr *metronerrors.ValidationError
	assert.ErrorAs(t, err, &valErr)
}
