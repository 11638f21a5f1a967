package secrets

import (
	"context"
	"fmt"
	"regexp"

	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
	metron "github.com/metron-labs/metron/pkg/metron/v1/secrets"
)

// secretRefPattern matches ${env:NAME} references in configuration values.
// The scheme names the default backend; a custom Provider still receives the
// NAME part as its lookup key.
var secretRefPattern = regexp.MustCompile(`\$\{env:([A-Za-z_][A-Za-z0-9_]*)\}`)

// Expander resolves secret references embedded in configuration strings.
// Every resolved value is recorded in the tracker so later log and error
// output can be scrubbed. OnAccess, when set, is invoked once per resolved
// reference with the secret's key (never its value), letting callers emit
// audit events.
type Expander struct {
	Provider metron.Provider
	Tracker  *SecretTracker
	OnAccess func(key string)
}

// NewExpander creates an Expander over the given provider and tracker.
func NewExpander(provider metron.Provider, tracker *SecretTracker) *Expander {
	return &Expander{Provider: provider, Tracker: tracker}
}

// Expand replaces every ${env:NAME} reference in the input with the secret
// value the provider returns for NAME. A reference to a secret the provider
// cannot find is a ConfigError; strings without references pass through
// untouched. Expansion is a single pass; values containing reference syntax
// are not re-expanded.
func (e *Expander) Expand(ctx context.Context, input string) (string, error) {
	if input == "" || e.Provider == nil {
		return input, nil
	}

	var expandErr error
	expanded := secretRefPattern.ReplaceAllStringFunc(input, func(match string) string {
		if expandErr != nil {
			return match
		}
		key := secretRefPattern.FindStringSubmatch(match)[1]
		value, found, err := e.Provider.GetSecret(ctx, key)
		if err != nil {
			expandErr = metronerrors.NewConfigError(fmt.Sprintf("resolving secret '%s'", key), err)
			return match
		}
		if !found {
			expandErr = metronerrors.NewConfigError(fmt.Sprintf("secret '%s' not found", key), nil)
			return match
		}
		if e.Tracker != nil {
			e.Tracker.Add(value)
		}
		if e.OnAccess != nil {
			e.OnAccess(key)
		}
		return value
	})
	if expandErr != nil {
		return "", expandErr
	}
	return expanded, nil
}

// ExpandMap expands every value of the map in place, returning the first
// expansion error encountered. Keys are never expanded.
func (e *Expander) ExpandMap(ctx context.Context, m map[string]string) error {
	for k, v := range m {
		expanded, err := e.Expand(ctx, v)
		if err != nil {
			return err
		}
		m[k] = expanded
	}
	return nil
}
