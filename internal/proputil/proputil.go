package proputil

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
	"github.com/metron-labs/metron/pkg/metron/v1/properties"
)

// GetString retrieves a string property, trimmed of surrounding whitespace.
// Absent keys and keys whose trimmed value is empty both return "". Property
// consumers treat whitespace-only values as unset.
func GetString(props properties.Map, key string) string {
	return strings.TrimSpace(props[key])
}

// GetRequiredString retrieves a required string property. It returns a
// ValidationError if the key is absent or its trimmed value is empty.
func GetRequiredString(props properties.Map, key string) (string, error) {
	value := strings.TrimSpace(props[key])
	if value == "" {
		return "", metronerrors.NewValidationError(fmt.Sprintf("missing required property '%s'", key), nil)
	}
	return value, nil
}

// GetOptionalBool retrieves an optional boolean property.
// Returns the value and true when present and parseable, false and false when
// absent, or an error when the key exists but does not parse as a boolean.
func GetOptionalBool(props properties.Map, key string) (bool, bool, error) {
	raw := strings.TrimSpace(props[key])
	if raw == "" {
		return false, false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, metronerrors.NewValidationError(fmt.Sprintf("property '%s' must be a boolean, got %q", key, raw), nil)
	}
	return value, true, nil
}

// GetOptionalInt retrieves an optional integer property.
// Returns the value and true when present and parseable, 0 and false when
// absent, or an error when the key exists but does not parse as an integer.
func GetOptionalInt(props properties.Map, key string) (int, bool, error) {
	raw := strings.TrimSpace(props[key])
	if raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, metronerrors.NewValidationError(fmt.Sprintf("property '%s' must be an integer, got %q", key, raw), nil)
	}
	return value, true, nil
}

// GetOptionalDuration retrieves an optional duration property. The value may
// be a Go duration string ("30s", "1m30s") or a bare integer interpreted as
// milliseconds, matching the OTLP environment variable convention.
// Returns the value and true when present and parseable, 0 and false when
// absent, or an error when the key exists but parses as neither form.
func GetOptionalDuration(props properties.Map, key string) (time.Duration, bool, error) {
	raw := strings.TrimSpace(props[key])
	if raw == "" {
		return 0, false, nil
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, true, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, metronerrors.NewValidationError(fmt.Sprintf("property '%s' must be a duration or millisecond count, got %q", key, raw), nil)
	}
	return value, true, nil
}

// CollectPrefixed gathers properties whose keys carry the given prefix into a
// new map keyed by the trimmed remainder of the key. Entries whose remainder
// trims to empty are skipped. Values are passed through untouched.
func CollectPrefixed(props properties.Map, prefix string) map[string]string {
	collected := make(map[string]string)
	for key, value := range props {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(key, prefix))
		if name == "" {
			continue
		}
		collected[name] = value
	}
	return collected
}

// SortedKeys returns the map's keys in sorted order. Useful for deterministic
// iteration when rendering or logging property-derived settings.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CheckRequired validates that all keys in the 'required' list carry
// non-empty values. Returns a ValidationError naming the first missing key.
func CheckRequired(props properties.Map, required []string) error {
	for _, key := range required {
		if strings.TrimSpace(props[key]) == "" {
			return metronerrors.NewValidationError(fmt.Sprintf("missing required property '%s'", key), nil)
		}
	}
	return nil
}

// CheckAllowed validates that only keys from the 'allowed' list exist in the
// map. Returns a ValidationError if any unexpected key is found. Skips the
// check if 'allowed' is empty.
func CheckAllowed(props properties.Map, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}

	allowedSet := make(map[string]struct{}, len(allowed))
	for _, key := range allowed {
		allowedSet[key] = struct{}{}
	}

	for key := range props {
		if _, isAllowed := allowedSet[key]; !isAllowed {
			return metronerrors.NewValidationError(fmt.Sprintf("unknown property '%s' provided", key), nil)
		}
	}
	return nil
}
