package secrets

import (
	"errors"
	"strings"
	"sync"
)

// RedactedSecretValue is the placeholder string substituted for a tracked
// secret value before it can leak into logs, events, or error messages.
const RedactedSecretValue = "[REDACTED_SECRET]"

// SecretTracker tracks resolved secret values for the lifetime of one
// configuration load, so anything derived from that configuration (install
// errors, retry logs, event payloads) can be scrubbed before leaving the
// runtime. It is not globally shared.
type SecretTracker struct {
	mu              sync.RWMutex
	resolvedSecrets map[string]struct{} // Stores the raw secret values
}

// NewSecretTracker creates a new, empty tracker.
func NewSecretTracker() *SecretTracker {
	return &SecretTracker{
		resolvedSecrets: make(map[string]struct{}),
	}
}

// Add marks a secret value as having been seen by this tracker instance.
// It is thread-safe. It ignores empty strings.
func (t *SecretTracker) Add(secretValue string) {
	if secretValue == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resolvedSecrets[secretValue] = struct{}{}
}

// IsTracked checks if a given string value is a tracked secret.
// This performs an exact match and is thread-safe.
func (t *SecretTracker) IsTracked(value string) bool {
	if value == "" {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, found := t.resolvedSecrets[value]
	return found
}

// ContainsTrackedSecret checks if the given input string contains any of the
// tracked secret values as a substring. This catches secrets embedded in
// larger strings (e.g., endpoint URLs with inline credentials, Authorization
// header values). It is thread-safe.
func (t *SecretTracker) ContainsTrackedSecret(input string) bool {
	if input == "" {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.resolvedSecrets) == 0 {
		return false
	}

	for secret := range t.resolvedSecrets {
		if strings.Contains(input, secret) {
			return true
		}
	}
	return false
}

// Redact replaces every occurrence of a tracked secret value in the input
// with the redaction placeholder and returns the result. Inputs containing
// no tracked secrets are returned unchanged.
func (t *SecretTracker) Redact(input string) string {
	if input == "" {
		return input
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := input
	for secret := range t.resolvedSecrets {
		out = strings.ReplaceAll(out, secret, RedactedSecretValue)
	}
	return out
}

// RedactError returns an error whose message has tracked secret values
// replaced. When nothing needed redaction the original error is returned
// unchanged so wrapped error chains stay intact.
func (t *SecretTracker) RedactError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	redacted := t.Redact(msg)
	if redacted == msg {
		return err
	}
	return errors.New(redacted)
}
