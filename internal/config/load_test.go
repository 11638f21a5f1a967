package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/metron-labs/metron/internal/config"
	"github.com/metron-labs/metron/internal/secrets"
	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadValidConfig verifies that a fully populated configuration parses
// and that every section lands in the right struct field.
func TestLoadValidConfig(t *testing.T) {
	configYAML := `
schemaVersion: "1.0.0"
name: checkout-service
exporter: otlp
service:
  name: checkout
  version: "2.4.1"
attributes:
  deployment.environment: staging
otlp:
  endpoint: collector:4317
  protocol: grpc
  insecure: true
  interval: 30s
  timeout: 10s
  compression: gzip
  headers:
    authorization: Bearer static-token
textfile:
  directory: /var/lib/metron
  file_prefix: checkout
  stage: startup
  collectors:
    - name: cpu
      params:
        path: /proc/stat
    - name: runtimestats
install_retry:
  attempts: 3
  delay: 500ms
  max_delay: 5s
  backoff_factor: 2.0
  jitter: 0.1
`
	cfg, err := config.Load(context.Background(), []byte(configYAML), "metron.yml", nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "checkout-service", cfg.GetName())
	assert.Equal(t, config.ExporterOTLP, cfg.GetExporter())
	assert.Equal(t, "checkout", cfg.GetServiceName())
	assert.Equal(t, "2.4.1", cfg.GetServiceVersion())
	assert.Equal(t, "staging", cfg.Attributes["deployment.environment"])
	assert.Equal(t, "metron.yml", cfg.FilePath)

	require.NotNil(t, cfg.OTLP)
	assert.Equal(t, "collector:4317", cfg.OTLP.Endpoint)
	assert.Equal(t, "grpc", cfg.OTLP.Protocol)
	require.NotNil(t, cfg.OTLP.Insecure)
	assert.True(t, *cfg.OTLP.Insecure)
	assert.Equal(t, "Bearer static-token", cfg.OTLP.Headers["authorization"])

	require.NotNil(t, cfg.Textfile)
	assert.Equal(t, "/var/lib/metron", cfg.Textfile.Directory)
	require.Len(t, cfg.Textfile.Collectors, 2)
	assert.Equal(t, "cpu", cfg.Textfile.Collectors[0].Name)
	assert.Equal(t, "/proc/stat", cfg.Textfile.Collectors[0].Params["path"])

	assert.Equal(t, 3, cfg.GetInstallRetryAttempts())
	assert.Equal(t, 500*time.Millisecond, cfg.GetInstallRetryDelay())
	assert.Equal(t, 5*time.Second, cfg.GetInstallRetryMaxDelay())
	assert.Equal(t, 2.0, cfg.GetInstallRetryBackoffFactor())
	assert.Equal(t, 0.1, cfg.GetInstallRetryJitter())
}

// TestLoadDefaults verifies that a minimal configuration yields the
// documented defaults through the getter helpers.
func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(context.Background(), []byte(`schemaVersion: "1.0.0"`), "minimal.yml", nil)
	require.NoError(t, err)

	assert.Equal(t, "metron", cfg.GetName())
	assert.Equal(t, config.ExporterPrometheus, cfg.GetExporter())
	assert.Equal(t, config.DefaultHandlerPath, cfg.GetHandlerPath())
	assert.Equal(t, config.DefaultListenAddress, cfg.GetListenAddress())
	assert.Empty(t, cfg.GetServiceName())
	assert.False(t, cfg.GetOpenMetrics())
	assert.False(t, cfg.GetGoCollector())
	assert.Equal(t, time.Duration(0), cfg.GetSnapshotInterval())
	assert.Equal(t, 1, cfg.GetInstallRetryAttempts())
	assert.Equal(t, 1*time.Second, cfg.GetInstallRetryDelay())
}

func TestLoadEmptyContent(t *testing.T) {
	_, err := config.Load(context.Background(), nil, "empty.yml", nil)
	require.Error(t, err)
	var cfgErr *metronerrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.ErrorContains(t, err, "configuration content cannot be empty")
}

// TestLoadRejectsUnknownField verifies the schema catches typos before the
// strict decoder ever sees them.
func TestLoadRejectsUnknownField(t *testing.T) {
	configYAML := `
schemaVersion: "1.0.0"
exproter: prometheus
`
	_, err := config.Load(context.Background(), []byte(configYAML), "typo.yml", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed schema validation")
	assert.ErrorContains(t, err, "exproter")
}

func TestLoadRejectsBadExporter(t *testing.T) {
	configYAML := `
schemaVersion: "1.0.0"
exporter: statsd
`
	_, err := config.Load(context.Background(), []byte(configYAML), "bad_exporter.yml", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed schema validation")
	assert.ErrorContains(t, err, "exporter")
}

func TestLoadMissingSchemaVersion(t *testing.T) {
	_, err := config.Load(context.Background(), []byte(`name: metron`), "no_version.yml", nil)
	require.Error(t, err)
	var valErr *metronerrors.ValidationError
	assert.ErrorAs(t, err, &valErr)
	assert.ErrorContains(t, err, "missing required 'schemaVersion' field")
}

func TestLoadInvalidSchemaVersionFormat(t *testing.T) {
	_, err := config.Load(context.Background(), []byte(`schemaVersion: "one"`), "bad_version.yml", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid 'schemaVersion' format")
}

// TestLoadIncompatibleSchemaVersion verifies the major-version gate: a v2
// configuration must be rejected by a v1 runtime.
func TestLoadIncompatibleSchemaVersion(t *testing.T) {
	_, err := config.Load(context.Background(), []byte(`schemaVersion: "2.0.0"`), "v2.yml", nil)
	require.Error(t, err)
	var valErr *metronerrors.ValidationError
	assert.ErrorAs(t, err, &valErr)
	assert.ErrorContains(t, err, "not compatible with runtime requirement 'v1'")
}

// TestLoadAccumulatesValidationErrors verifies that logical validation
// reports every problem at once instead of stopping at the first.
func TestLoadAccumulatesValidationErrors(t *testing.T) {
	configYAML := `
schemaVersion: "1.0.0"
otlp:
  interval: soon
install_retry:
  attempts: 0
`
	_, err := config.Load(context.Background(), []byte(configYAML), "broken.yml", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "has 2 validation error(s)")
	assert.ErrorContains(t, err, "invalid format for 'otlp.interval'")
	assert.ErrorContains(t, err, "'install_retry.attempts' must be at least 1")
}

// TestLoadExpandsSecrets verifies ${env:NAME} references resolve through the
// expander and that resolved values are tracked for redaction.
func TestLoadExpandsSecrets(t *testing.T) {
	t.Setenv("METRON_TEST_OTLP_TOKEN", "s3cr3t-token")

	tracker := secrets.NewSecretTracker()
	expander := secrets.NewExpander(secrets.NewEnvProvider(), tracker)

	configYAML := `
schemaVersion: "1.0.0"
otlp:
  endpoint: collector:4317
  headers:
    authorization: "Bearer ${env:METRON_TEST_OTLP_TOKEN}"
`
	cfg, err := config.Load(context.Background(), []byte(configYAML), "secret.yml", expander)
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cr3t-token", cfg.OTLP.Headers["authorization"])
	assert.True(t, tracker.IsTracked("s3cr3t-token"))
}

func TestLoadUnknownSecretFails(t *testing.T) {
	expander := secrets.NewExpander(secrets.NewEnvProvider(), secrets.NewSecretTracker())

	configYAML := `
schemaVersion: "1.0.0"
otlp:
  headers:
    authorization: "${env:METRON_TEST_UNSET_VARIABLE}"
`
	_, err := config.Load(context.Background(), []byte(configYAML), "secret.yml", expander)
	require.Error(t, err)
	var cfgErr *metronerrors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.ErrorContains(t, err, "METRON_TEST_UNSET_VARIABLE")
}

// TestLoadNilExpanderLeavesReferences verifies that Load without an expander
// passes secret references through untouched.
func TestLoadNilExpanderLeavesReferences(t *testing.T) {
	configYAML := `
schemaVersion: "1.0.0"
otlp:
  headers:
    authorization: "${env:METRON_TEST_UNSET_VARIABLE}"
`
	cfg, err := config.Load(context.Background(), []byte(configYAML), "secret.yml", nil)
	require.NoError(t, err)
	assert.Equal(t, "${env:METRON_TEST_UNSET_VARIABLE}", cfg.OTLP.Headers["authorization"])
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "metron.yml")
	content := "schemaVersion: \"1.0.0\"\nname: from-disk\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.LoadFromFile(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-disk", cfg.GetName())
	assert.Equal(t, path, cfg.FilePath)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := config.LoadFromFile(context.Background(), filepath.Join(t.TempDir(), "absent.yml"), nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed to read configuration file")

	_, err = config.LoadFromFile(context.Background(), "", nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "configuration file path cannot be empty")
}
