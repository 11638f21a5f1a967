package runtime

import (
	"context"
	"time"

	"github.com/metron-labs/metron/internal/config"
	intSecrets "github.com/metron-labs/metron/internal/secrets"
	metron "github.com/metron-labs/metron/pkg/metron/v1"
	"github.com/metron-labs/metron/pkg/metron/v1/events"
)

// ApplyConfig loads a telemetry configuration from its raw YAML content,
// validates it, expands secret references, and installs whatever the config
// declares: the exporter occupying the slot, the install retry policy, and
// the snapshot exporter with its collectors.
func (r *Runtime) ApplyConfig(ctx context.Context, configYAML []byte) error {
	cfg, err := config.Load(ctx, configYAML, "metron.yaml", r.configExpander())
	if err != nil {
		return err
	}
	return r.ApplyLoadedConfig(ctx, cfg)
}

// LoadConfigFile reads and validates a configuration file using the runtime's
// secrets provider, so expanded values are tracked for redaction. The agent
// loads the file itself to read server settings before applying.
func (r *Runtime) LoadConfigFile(ctx context.Context, path string) (*config.Config, error) {
	return config.LoadFromFile(ctx, path, r.configExpander())
}

// configExpander builds the secret expander used during configuration loads.
// Every resolved reference feeds the redaction tracker and emits an audit
// event carrying the secret's key, never its value.
func (r *Runtime) configExpander() *intSecrets.Expander {
	expander := intSecrets.NewExpander(r.secretsProvider, r.secretTracker)
	expander.OnAccess = func(key string) {
		r.eventBus.Emit(events.Event{
			Type:      events.SecretAccessed,
			Timestamp: time.Now(),
			Payload:   map[string]interface{}{"key": key},
		})
	}
	return expander
}

// ApplyLoadedConfig installs everything an already-validated configuration
// declares. The agent uses this after loading the config file itself.
func (r *Runtime) ApplyLoadedConfig(ctx context.Context, cfg *config.Config) error {
	if cfg.InstallRetry != nil {
		if err := r.SetInstallRetryPolicy(metron.RetryPolicy{
			Attempts:      cfg.GetInstallRetryAttempts(),
			Delay:         cfg.GetInstallRetryDelay(),
			MaxDelay:      cfg.GetInstallRetryMaxDelay(),
			BackoffFactor: cfg.GetInstallRetryBackoffFactor(),
			Jitter:        cfg.GetInstallRetryJitter(),
		}); err != nil {
			return err
		}
	}

	props := cfg.ToProperties()

	switch cfg.GetExporter() {
	case config.ExporterPrometheus:
		if err := r.InstallPrometheus(ctx, props); err != nil {
			return err
		}
	case config.ExporterOTLP:
		if err := r.InstallOTLP(ctx, props); err != nil {
			return err
		}
	case config.ExporterNone:
		r.log.Infof("Configuration declares no exporter; provider slot left untouched.")
	}

	if cfg.Textfile != nil {
		if err := r.ConfigureSnapshots(props); err != nil {
			return err
		}
	}
	return nil
}
