package instruments

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// ParseAttributes converts a packed attribute string into OpenTelemetry
// attributes. The format is semicolon-delimited key=value pairs; whitespace
// around segments, keys, and values is trimmed. Segments without '=' become
// keys with empty values. Empty segments and empty keys are skipped. Returns
// nil when nothing parses.
func ParseAttributes(packed string) []attribute.KeyValue {
	packed = strings.TrimSpace(packed)
	if packed == "" {
		return nil
	}

	var attrs []attribute.KeyValue
	for _, segment := range strings.Split(packed, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		key, value, _ := strings.Cut(segment, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		attrs = append(attrs, attribute.String(key, value))
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}
