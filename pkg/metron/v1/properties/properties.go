package properties

import (
	"errors"
	"maps"
)

// ErrInvalidHandle indicates that a handle does not reference a live property
// map in the registry. Deleted and zero-value handles both produce it.
var ErrInvalidHandle = errors.New("invalid property map handle")

// Map holds the string-keyed configuration consumed when a metrics provider
// is installed. Well-known keys are listed in the Key* constants; unknown
// keys are ignored by installers so maps can carry host-specific extras.
type Map map[string]string

// Clone returns an independent copy of the map. A nil map clones to nil.
func (m Map) Clone() Map {
	if m == nil {
		return nil
	}
	return Map(maps.Clone(m))
}

// Well-known property keys.
const (
	// KeyServiceName sets the service.name resource attribute.
	KeyServiceName = "service.name"
	// KeyServiceVersion sets the service.version resource attribute.
	KeyServiceVersion = "service.version"
	// KeyAttrPrefix marks additional resource attributes; the remainder of
	// the key after the prefix is the attribute name.
	KeyAttrPrefix = "attr."

	// KeyPrometheusHandlerPath requests the scrape handler be mounted at the
	// given path on the runtime's HTTP server.
	KeyPrometheusHandlerPath = "prometheus.handler_path"
	// KeyPrometheusOpenMetrics enables OpenMetrics content negotiation on the
	// scrape handler.
	KeyPrometheusOpenMetrics = "prometheus.open_metrics"
	// KeyPrometheusGoCollector registers the client_golang Go runtime and
	// process collectors alongside the exporter.
	KeyPrometheusGoCollector = "prometheus.go_collector"

	// OTLP push exporter keys.
	KeyOTLPEndpoint    = "otlp.endpoint"
	KeyOTLPProtocol    = "otlp.protocol" // "grpc" or "http"
	KeyOTLPInsecure    = "otlp.insecure"
	KeyOTLPInterval    = "otlp.interval"
	KeyOTLPTimeout     = "otlp.timeout"
	KeyOTLPCompression = "otlp.compression"
	// KeyOTLPHeaderPrefix marks export request headers; the remainder of the
	// key after the prefix is the header name.
	KeyOTLPHeaderPrefix = "otlp.header."

	// Textfile snapshot keys.
	KeyTextfileDirectory  = "textfile.directory"
	KeyTextfileFilePrefix = "textfile.file_prefix"
	KeyTextfileStage      = "textfile.stage"
	// KeyTextfileCollectors names the collectors to seed from the registry,
	// comma-separated. Empty means every registered collector.
	KeyTextfileCollectors = "textfile.collectors"
	// KeyTextfileCollectorPrefix marks per-collector settings; the remainder
	// of the key is "<collector>.<param>".
	KeyTextfileCollectorPrefix = "textfile.collector."
)

// Handle is an opaque reference to a property map owned by a Registry.
// The zero value references nothing and is rejected by every mutating
// operation. Handles are value types; copying one copies the reference,
// never the map. Handles cannot be constructed outside the registry that
// issued them.
type Handle struct {
	id uint64
}

// Valid reports whether the handle could reference a live map. A true
// result does not guarantee the map still exists; registry operations
// perform the authoritative check.
func (h Handle) Valid() bool { return h.id != 0 }

// Registry owns property maps and issues handles for them. Implementations
// must be safe for concurrent use.
//
// The lifecycle is: New allocates a map, Set populates it, Snapshot hands a
// read-only copy to a consumer (installing a provider never takes ownership),
// and Delete releases it. Callers delete maps they created regardless of
// whether any consumer of the map succeeded.
type Registry interface {
	// New allocates an empty property map and returns its handle.
	New() Handle

	// Set stores a key/value pair in the map referenced by h.
	// It returns ErrInvalidHandle if h does not reference a live map.
	Set(h Handle, key, value string) error

	// Snapshot returns an independent copy of the map referenced by h.
	// Mutating the returned Map never affects the registry's copy, so
	// consumers can hold snapshots across later Set and Delete calls.
	// It returns ErrInvalidHandle if h does not reference a live map.
	Snapshot(h Handle) (Map, error)

	// Keys returns the keys present in the map referenced by h, sorted.
	// It returns ErrInvalidHandle if h does not reference a live map.
	Keys(h Handle) ([]string, error)

	// Delete releases the map referenced by h. Deleting an invalid or
	// already-deleted handle is a no-op.
	Delete(h Handle)

	// Len reports the number of live maps in the registry.
	Len() int

	// With allocates a map, invokes fn with its handle, and guarantees the
	// map is released on every exit path, including panics. It returns the
	// error from fn.
	With(fn func(Handle) error) error
}
