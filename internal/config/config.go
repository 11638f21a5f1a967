package config

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/metron-labs/metron/pkg/metron/v1/properties"
)

// Exporter kind constants.
const (
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterNone       = "none"
)

// Defaults applied by the getter helpers.
const (
	DefaultHandlerPath   = "/metrics"
	DefaultListenAddress = ":2112"
)

// Config represents the top-level structure of a Metron telemetry YAML file.
type Config struct {
	Name          string            `yaml:"name,omitempty"`
	SchemaVersion string            `yaml:"schemaVersion"`
	Exporter      string            `yaml:"exporter,omitempty"`
	Service       *ServiceConfig    `yaml:"service,omitempty"`
	Attributes    map[string]string `yaml:"attributes,omitempty"`
	Prometheus    *PrometheusConfig `yaml:"prometheus,omitempty"`
	OTLP          *OTLPConfig       `yaml:"otlp,omitempty"`
	Textfile      *TextfileConfig   `yaml:"textfile,omitempty"`
	InstallRetry  *RetryConfig      `yaml:"install_retry,omitempty"`

	// FilePath is an internal field for storing the source file path for
	// context in logging and error messages. It is not parsed from the YAML.
	FilePath string `yaml:"-"`
}

// ServiceConfig identifies the service whose metrics are being exported.
type ServiceConfig struct {
	Name    string `yaml:"name,omitempty"`
	Version string `yaml:"version,omitempty"`
}

// PrometheusConfig holds settings for the Prometheus pull exporter.
type PrometheusConfig struct {
	HandlerPath   string `yaml:"handler_path,omitempty"`
	ListenAddress string `yaml:"listen_address,omitempty"`
	OpenMetrics   *bool  `yaml:"open_metrics,omitempty"`
	GoCollector   *bool  `yaml:"go_collector,omitempty"`
}

// OTLPConfig holds settings for the OTLP push exporter. Durations are Go
// duration strings ("10s", "1m30s").
type OTLPConfig struct {
	Endpoint    string            `yaml:"endpoint,omitempty"`
	Protocol    string            `yaml:"protocol,omitempty"`
	Insecure    *bool             `yaml:"insecure,omitempty"`
	Interval    string            `yaml:"interval,omitempty"`
	Timeout     string            `yaml:"timeout,omitempty"`
	Compression string            `yaml:"compression,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// TextfileConfig holds settings for the textfile snapshot exporter.
type TextfileConfig struct {
	Directory  string            `yaml:"directory"`
	FilePrefix string            `yaml:"file_prefix,omitempty"`
	Interval   string            `yaml:"interval,omitempty"`
	Stage      string            `yaml:"stage,omitempty"`
	Collectors []CollectorConfig `yaml:"collectors,omitempty"`
}

// CollectorConfig selects a registered snapshot collector and its parameters.
type CollectorConfig struct {
	Name   string            `yaml:"name"`
	Params map[string]string `yaml:"params,omitempty"`
}

// RetryConfig defines the parameters for retrying provider installation.
type RetryConfig struct {
	Attempts      int      `yaml:"attempts,omitempty"`
	Delay         string   `yaml:"delay,omitempty"`
	MaxDelay      string   `yaml:"max_delay,omitempty"`
	BackoffFactor *float64 `yaml:"backoff_factor,omitempty"`
	Jitter        *float64 `yaml:"jitter,omitempty"`
}

// GetName returns the configured name or the default ("metron").
func (c *Config) GetName() string {
	if c.Name != "" {
		return c.Name
	}
	return "metron"
}

// GetExporter returns the configured exporter kind or the default
// (ExporterPrometheus), lowercased.
func (c *Config) GetExporter() string {
	if c.Exporter == "" {
		return ExporterPrometheus
	}
	return strings.ToLower(c.Exporter)
}

// GetServiceName returns the configured service name, or "" when unset.
// The provider layer applies its own default.
func (c *Config) GetServiceName() string {
	if c.Service != nil {
		return c.Service.Name
	}
	return ""
}

// GetServiceVersion returns the configured service version, or "" when unset.
func (c *Config) GetServiceVersion() string {
	if c.Service != nil {
		return c.Service.Version
	}
	return ""
}

// GetHandlerPath returns the configured scrape handler path or the default.
func (c *Config) GetHandlerPath() string {
	if c.Prometheus != nil && c.Prometheus.HandlerPath != "" {
		return c.Prometheus.HandlerPath
	}
	return DefaultHandlerPath
}

// GetListenAddress returns the configured HTTP listen address or the default.
func (c *Config) GetListenAddress() string {
	if c.Prometheus != nil && c.Prometheus.ListenAddress != "" {
		return c.Prometheus.ListenAddress
	}
	return DefaultListenAddress
}

// GetOpenMetrics returns whether OpenMetrics negotiation is enabled,
// defaulting to false.
func (c *Config) GetOpenMetrics() bool {
	if c.Prometheus != nil && c.Prometheus.OpenMetrics != nil {
		return *c.Prometheus.OpenMetrics
	}
	return false
}

// GetGoCollector returns whether the Go runtime and process collectors are
// registered alongside the exporter, defaulting to false.
func (c *Config) GetGoCollector() bool {
	if c.Prometheus != nil && c.Prometheus.GoCollector != nil {
		return *c.Prometheus.GoCollector
	}
	return false
}

// GetSnapshotInterval returns the configured textfile snapshot interval, or 0
// when snapshots are written on demand only.
func (c *Config) GetSnapshotInterval() time.Duration {
	if c.Textfile == nil || c.Textfile.Interval == "" {
		return 0
	}
	duration, err := time.ParseDuration(c.Textfile.Interval)
	if err != nil || duration <= 0 {
		return 0
	}
	return duration
}

// GetInstallRetryAttempts returns the configured number of install attempts
// or the default (1).
func (c *Config) GetInstallRetryAttempts() int {
	if c.InstallRetry != nil && c.InstallRetry.Attempts >= 1 {
		return c.InstallRetry.Attempts
	}
	return 1
}

// GetInstallRetryDelay returns the configured base retry delay duration or
// the default (1 second).
func (c *Config) GetInstallRetryDelay() time.Duration {
	delayStr := "1s"
	if c.InstallRetry != nil && c.InstallRetry.Delay != "" {
		delayStr = c.InstallRetry.Delay
	}
	duration, err := time.ParseDuration(delayStr)
	if err != nil || duration <= 0 {
		return 1 * time.Second
	}
	return duration
}

// GetInstallRetryMaxDelay returns the configured maximum retry delay
// duration, or 0 if unset/invalid.
func (c *Config) GetInstallRetryMaxDelay() time.Duration {
	if c.InstallRetry != nil && c.InstallRetry.MaxDelay != "" {
		duration, err := time.ParseDuration(c.InstallRetry.MaxDelay)
		if err != nil || duration < 0 {
			return 0
		}
		return duration
	}
	return 0
}

// GetInstallRetryBackoffFactor returns the configured backoff factor,
// defaulting to 1.0.
func (c *Config) GetInstallRetryBackoffFactor() float64 {
	if c.InstallRetry != nil && c.InstallRetry.BackoffFactor != nil {
		if *c.InstallRetry.BackoffFactor >= 1.0 {
			return *c.InstallRetry.BackoffFactor
		}
	}
	return 1.0
}

// GetInstallRetryJitter returns the configured jitter factor (clamped between
// 0.0 and 1.0), defaulting to 0.0.
func (c *Config) GetInstallRetryJitter() float64 {
	if c.InstallRetry != nil && c.InstallRetry.Jitter != nil {
		jitter := *c.InstallRetry.Jitter
		if jitter < 0.0 {
			jitter = 0.0
		} else if jitter > 1.0 {
			jitter = 1.0
		}
		return jitter
	}
	return 0.0
}

// ToProperties flattens the config into the canonical property keys consumed
// by the install and snapshot operations. The property map remains the single
// configuration currency: a config file and a hand-built map drive the same
// code paths.
func (c *Config) ToProperties() properties.Map {
	props := make(properties.Map)

	if name := c.GetServiceName(); name != "" {
		props[properties.KeyServiceName] = name
	}
	if version := c.GetServiceVersion(); version != "" {
		props[properties.KeyServiceVersion] = version
	}
	for k, v := range c.Attributes {
		props[properties.KeyAttrPrefix+k] = v
	}

	if c.Prometheus != nil {
		if c.Prometheus.HandlerPath != "" {
			props[properties.KeyPrometheusHandlerPath] = c.Prometheus.HandlerPath
		}
		if c.Prometheus.OpenMetrics != nil {
			props[properties.KeyPrometheusOpenMetrics] = strconv.FormatBool(*c.Prometheus.OpenMetrics)
		}
		if c.Prometheus.GoCollector != nil {
			props[properties.KeyPrometheusGoCollector] = strconv.FormatBool(*c.Prometheus.GoCollector)
		}
	}

	if c.OTLP != nil {
		if c.OTLP.Endpoint != "" {
			props[properties.KeyOTLPEndpoint] = c.OTLP.Endpoint
		}
		if c.OTLP.Protocol != "" {
			props[properties.KeyOTLPProtocol] = c.OTLP.Protocol
		}
		if c.OTLP.Insecure != nil {
			props[properties.KeyOTLPInsecure] = strconv.FormatBool(*c.OTLP.Insecure)
		}
		if c.OTLP.Interval != "" {
			props[properties.KeyOTLPInterval] = c.OTLP.Interval
		}
		if c.OTLP.Timeout != "" {
			props[properties.KeyOTLPTimeout] = c.OTLP.Timeout
		}
		if c.OTLP.Compression != "" {
			props[properties.KeyOTLPCompression] = c.OTLP.Compression
		}
		for name, value := range c.OTLP.Headers {
			props[properties.KeyOTLPHeaderPrefix+name] = value
		}
	}

	if c.Textfile != nil {
		props[properties.KeyTextfileDirectory] = c.Textfile.Directory
		if c.Textfile.FilePrefix != "" {
			props[properties.KeyTextfileFilePrefix] = c.Textfile.FilePrefix
		}
		if c.Textfile.Stage != "" {
			props[properties.KeyTextfileStage] = c.Textfile.Stage
		}
		if len(c.Textfile.Collectors) > 0 {
			names := make([]string, 0, len(c.Textfile.Collectors))
			for _, col := range c.Textfile.Collectors {
				names = append(names, col.Name)
				for param, value := range col.Params {
					props[properties.KeyTextfileCollectorPrefix+col.Name+"."+param] = value
				}
			}
			props[properties.KeyTextfileCollectors] = strings.Join(names, ",")
		}
	}

	return props
}

// SortedAttributeKeys returns the attribute names in sorted order for
// deterministic logging.
func (c *Config) SortedAttributeKeys() []string {
	keys := make([]string, 0, len(c.Attributes))
	for k := range c.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
