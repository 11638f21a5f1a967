// Package provider builds the exporter pipelines that can occupy the
// runtime's process-wide slot. Two flavors exist: a Prometheus pull provider
// serving a scrape handler, and an OTLP push provider exporting on a periodic
// reader. Construction never touches global state; the runtime decides when a
// built provider becomes the global meter provider.
package provider

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/metron-labs/metron/internal/proputil"
	"github.com/metron-labs/metron/pkg/metron/v1/properties"
)

// Provider kinds as reported by Kind() and used in events and self-metrics.
const (
	KindPrometheus = "prometheus"
	KindOTLP       = "otlp"
)

// defaultServiceName is the service.name resource attribute applied when the
// properties carry none.
const defaultServiceName = "metron"

// Provider is a constructed exporter pipeline. The runtime moves providers in
// and out of the active slot through this interface.
type Provider interface {
	// Kind identifies the provider flavor.
	Kind() string
	// MeterProvider exposes the pipeline's meter provider for global install.
	MeterProvider() metric.MeterProvider
	// InstallGlobal makes this pipeline the process-global meter provider.
	InstallGlobal()
	// Shutdown flushes pending telemetry and releases the pipeline.
	// A provider must tolerate Shutdown after a failed install.
	Shutdown(ctx context.Context) error
}

// buildResource merges, in precedence order: the SDK default resource, the
// runtime's default service name, then every caller-supplied resource. Later
// entries win on attribute conflicts, so user properties override defaults.
func buildResource(extras []*resource.Resource) (*resource.Resource, error) {
	merged, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(defaultServiceName),
	))
	if err != nil {
		return nil, err
	}
	for _, extra := range extras {
		if extra == nil {
			continue
		}
		merged, err = resource.Merge(merged, extra)
		if err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// resourceAttributesFromProperties reads service.name, service.version, and
// attr.* properties into resource attributes. Attributes are sorted by key so
// resource identity is deterministic for equal property maps.
func resourceAttributesFromProperties(props properties.Map) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if name := proputil.GetString(props, properties.KeyServiceName); name != "" {
		attrs = append(attrs, semconv.ServiceNameKey.String(name))
	}
	if version := proputil.GetString(props, properties.KeyServiceVersion); version != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(version))
	}
	extra := proputil.CollectPrefixed(props, properties.KeyAttrPrefix)
	for _, key := range proputil.SortedKeys(extra) {
		attrs = append(attrs, attribute.String(key, extra[key]))
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
	return attrs
}
