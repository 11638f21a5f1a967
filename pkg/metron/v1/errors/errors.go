package errors

import (
	"errors"
	"fmt"
)

// --- Metron Core Error Types ---

// ConfigError represents an error encountered during the loading, parsing,
// or validation of the telemetry configuration or runtime options.
type ConfigError struct {
	Message string
	Cause   error
}

func NewConfigError(message string, cause error) *ConfigError {
	return &ConfigError{Message: message, Cause: cause}
}
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}
func (e *ConfigError) Unwrap() error { return e.Cause }

// ValidationError indicates that some input (e.g., config file structure,
// schema version, property values) failed validation checks.
type ValidationError struct {
	Message string
	Cause   error
}

func NewValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}
func (e *ValidationError) Unwrap() error { return e.Cause }

// ProviderError represents a failure while constructing, installing, or
// shutting down a metrics provider. Kind identifies the provider flavor
// ("prometheus", "otlp") and Op the operation that failed.
type ProviderError struct {
	Kind  string
	Op    string // e.g., "install", "shutdown", "export"
	Cause error
}

func NewProviderError(kind, op string, cause error) *ProviderError {
	return &ProviderError{Kind: kind, Op: op, Cause: cause}
}
func (e *ProviderError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("provider %s failed: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("%s provider %s failed: %v", e.Kind, e.Op, e.Cause)
}
func (e *ProviderError) Unwrap() error { return e.Cause }

// IsProviderError checks if an error is a ProviderError using errors.As.
func IsProviderError(err error) bool {
	var provErr *ProviderError
	return errors.As(err, &provErr)
}

// CollectorNotFoundError indicates that a collector named in the snapshot
// configuration could not be found in the collector registry.
type CollectorNotFoundError struct {
	CollectorName string
}

func NewCollectorNotFoundError(collectorName string) *CollectorNotFoundError {
	return &CollectorNotFoundError{CollectorName: collectorName}
}
func (e *CollectorNotFoundError) Error() string {
	return fmt.Sprintf("collector not found: %s", e.CollectorName)
}

// SnapshotError represents an error that occurred while gathering or writing
// a single textfile snapshot. These errors are typically non-fatal to the
// snapshot loop itself; the next tick retries from scratch.
type SnapshotError struct {
	Stage     string
	Collector string // collector that failed, empty when the write itself failed
	Cause     error
}

func NewSnapshotError(stage, collector string, cause error) *SnapshotError {
	return &SnapshotError{Stage: stage, Collector: collector, Cause: cause}
}
func (e *SnapshotError) Error() string {
	stageCtx := ""
	if e.Stage != "" {
		stageCtx = fmt.Sprintf(" for stage '%s'", e.Stage)
	}
	if e.Collector != "" {
		return fmt.Sprintf("snapshot error%s in collector '%s': %v", stageCtx, e.Collector, e.Cause)
	}
	return fmt.Sprintf("snapshot error%s: %v", stageCtx, e.Cause)
}
func (e *SnapshotError) Unwrap() error { return e.Cause }
