package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
)

// Pre-compiled regex for validating the config name and collector names.
var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Pre-compiled regex for snapshot stages. Stages end up in file names and
// label values, so the character set is deliberately narrow.
var stageRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]*$`)

// ValidateConfigStructure performs a comprehensive logical validation of the
// parsed Config struct. It checks cross-field consistency and rules that
// cannot be fully expressed in JSON Schema alone. It returns a slice of all
// validation errors found.
func ValidateConfigStructure(c *Config) []error {
	var errs []error

	if c.Name != "" && !nameRegex.MatchString(c.Name) {
		errs = append(errs, metronerrors.NewValidationError("name contains invalid characters (allowed: alphanumeric, underscore, hyphen)", nil))
	}

	switch strings.ToLower(c.Exporter) {
	case "", ExporterPrometheus, ExporterOTLP, ExporterNone:
	default:
		errs = append(errs, metronerrors.NewValidationError(fmt.Sprintf("exporter must be one of 'prometheus', 'otlp', 'none'; got '%s'", c.Exporter), nil))
	}

	if c.Prometheus != nil {
		if c.Prometheus.HandlerPath != "" && !strings.HasPrefix(c.Prometheus.HandlerPath, "/") {
			errs = append(errs, metronerrors.NewValidationError(fmt.Sprintf("prometheus.handler_path must begin with '/': '%s'", c.Prometheus.HandlerPath), nil))
		}
	}

	if c.OTLP != nil {
		switch strings.ToLower(c.OTLP.Protocol) {
		case "", "grpc", "http", "http/protobuf":
		default:
			errs = append(errs, metronerrors.NewValidationError(fmt.Sprintf("otlp.protocol must be 'grpc' or 'http'; got '%s'", c.OTLP.Protocol), nil))
		}
		errs = appendDurationErrors(errs, "otlp.interval", c.OTLP.Interval)
		errs = appendDurationErrors(errs, "otlp.timeout", c.OTLP.Timeout)
		switch strings.ToLower(c.OTLP.Compression) {
		case "", "none", "gzip":
		default:
			errs = append(errs, metronerrors.NewValidationError(fmt.Sprintf("otlp.compression must be 'none' or 'gzip'; got '%s'", c.OTLP.Compression), nil))
		}
	}

	if c.Textfile != nil {
		if strings.TrimSpace(c.Textfile.Directory) == "" {
			errs = append(errs, metronerrors.NewValidationError("textfile.directory is required when a textfile block is present", nil))
		}
		if !stageRegex.MatchString(strings.TrimSpace(c.Textfile.Stage)) {
			errs = append(errs, metronerrors.NewValidationError(fmt.Sprintf("textfile.stage contains invalid characters (allowed: alphanumeric, underscore, hyphen): '%s'", c.Textfile.Stage), nil))
		}
		errs = appendDurationErrors(errs, "textfile.interval", c.Textfile.Interval)

		seen := make(map[string]bool)
		for i, col := range c.Textfile.Collectors {
			display := fmt.Sprintf("textfile.collectors[%d]", i)
			if col.Name == "" {
				errs = append(errs, metronerrors.NewValidationError(fmt.Sprintf("%s: 'name' is required", display), nil))
				continue
			}
			if !nameRegex.MatchString(col.Name) {
				errs = append(errs, metronerrors.NewValidationError(fmt.Sprintf("%s: name '%s' contains invalid characters", display, col.Name), nil))
			}
			if seen[col.Name] {
				errs = append(errs, metronerrors.NewValidationError(fmt.Sprintf("%s: duplicate collector name '%s'", display, col.Name), nil))
			}
			seen[col.Name] = true
		}
	}

	if c.InstallRetry != nil {
		if c.InstallRetry.Attempts < 1 {
			errs = append(errs, metronerrors.NewValidationError("'install_retry.attempts' must be at least 1", nil))
		}
		var baseDelay time.Duration
		var delayErr error
		if c.InstallRetry.Delay != "" {
			baseDelay, delayErr = time.ParseDuration(c.InstallRetry.Delay)
			if delayErr != nil {
				errs = append(errs, metronerrors.NewValidationError(fmt.Sprintf("invalid format for 'install_retry.delay': %v", delayErr), nil))
			} else if baseDelay < 0 {
				errs = append(errs, metronerrors.NewValidationError("'install_retry.delay' cannot be negative", nil))
			}
		}
		if c.InstallRetry.MaxDelay != "" {
			maxDelay, maxDelayErr := time.ParseDuration(c.InstallRetry.MaxDelay)
			if maxDelayErr != nil {
				errs = append(errs, metronerrors.NewValidationError(fmt.Sprintf("invalid format for 'install_retry.max_delay': %v", maxDelayErr), nil))
			} else if maxDelay > 0 && delayErr == nil && maxDelay < baseDelay {
				errs = append(errs, metronerrors.NewValidationError(fmt.Sprintf("'install_retry.max_delay' (%v) cannot be less than 'install_retry.delay' (%v)", maxDelay, baseDelay), nil))
			}
		}
	}

	return errs
}

// appendDurationErrors validates an optional duration field. Durations in
// config files use the Go format ("10s", "1m30s") and must be positive.
func appendDurationErrors(errs []error, field, value string) []error {
	if value == "" {
		return errs
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return append(errs, metronerrors.NewValidationError(fmt.Sprintf("invalid format for '%s': %v", field, err), nil))
	}
	if duration <= 0 {
		return append(errs, metronerrors.NewValidationError(fmt.Sprintf("'%s' must be positive", field), nil))
	}
	return errs
}
