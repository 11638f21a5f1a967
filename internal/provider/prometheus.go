package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/metron-labs/metron/internal/instruments"
	"github.com/metron-labs/metron/internal/proputil"
	"github.com/metron-labs/metron/pkg/metron/v1/properties"
)

// PrometheusProvider is a pull-model pipeline: the OTel SDK aggregates into a
// Prometheus registry, and scrapes read from the gatherer via Handler.
type PrometheusProvider struct {
	provider    *sdkmetric.MeterProvider
	exporter    *otelprom.Exporter
	registerer  prometheus.Registerer
	gatherer    prometheus.Gatherer
	openMetrics bool
}

// PrometheusOption configures NewPrometheusProvider.
type PrometheusOption func(*promConfig)

type promConfig struct {
	registerer   prometheus.Registerer
	gatherer     prometheus.Gatherer
	resources    []*resource.Resource
	openMetrics  bool
	goCollectors bool
}

// WithRegisterer directs the exporter to register into reg instead of a fresh
// registry. When reg also implements prometheus.Gatherer (as *Registry does),
// it doubles as the scrape source unless WithGatherer overrides it.
func WithRegisterer(reg prometheus.Registerer) PrometheusOption {
	return func(cfg *promConfig) {
		cfg.registerer = reg
		if g, ok := reg.(prometheus.Gatherer); ok && cfg.gatherer == nil {
			cfg.gatherer = g
		}
	}
}

// WithGatherer sets the gatherer backing Handler. Needed when the registerer
// from WithRegisterer does not expose one.
func WithGatherer(g prometheus.Gatherer) PrometheusOption {
	return func(cfg *promConfig) {
		cfg.gatherer = g
	}
}

// WithResource appends a resource merged over the defaults.
func WithResource(res *resource.Resource) PrometheusOption {
	return func(cfg *promConfig) {
		if res != nil {
			cfg.resources = append(cfg.resources, res)
		}
	}
}

// WithResourceAttributes appends attributes as a resource merged over the defaults.
func WithResourceAttributes(attrs ...attribute.KeyValue) PrometheusOption {
	return func(cfg *promConfig) {
		if len(attrs) == 0 {
			return
		}
		cfg.resources = append(cfg.resources, resource.NewWithAttributes(semconv.SchemaURL, attrs...))
	}
}

// WithServiceName sets the service.name resource attribute. Empty names are ignored.
func WithServiceName(name string) PrometheusOption {
	if name == "" {
		return func(*promConfig) {}
	}
	return WithResourceAttributes(semconv.ServiceNameKey.String(name))
}

// WithServiceVersion sets the service.version resource attribute. Empty versions are ignored.
func WithServiceVersion(version string) PrometheusOption {
	if version == "" {
		return func(*promConfig) {}
	}
	return WithResourceAttributes(semconv.ServiceVersionKey.String(version))
}

// WithOpenMetrics enables OpenMetrics content negotiation on Handler.
func WithOpenMetrics() PrometheusOption {
	return func(cfg *promConfig) {
		cfg.openMetrics = true
	}
}

// WithGoCollectors registers the client_golang Go runtime and process
// collectors into the provider's registerer.
func WithGoCollectors() PrometheusOption {
	return func(cfg *promConfig) {
		cfg.goCollectors = true
	}
}

// NewPrometheusProvider constructs a Prometheus pull pipeline. Without
// WithRegisterer a fresh registry serves as both registerer and gatherer.
func NewPrometheusProvider(opts ...PrometheusOption) (*PrometheusProvider, error) {
	cfg := &promConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.registerer == nil {
		reg := prometheus.NewRegistry()
		cfg.registerer = reg
		cfg.gatherer = reg
	}
	if cfg.gatherer == nil {
		g, ok := cfg.registerer.(prometheus.Gatherer)
		if !ok {
			return nil, errors.New("provider: Prometheus registerer does not expose a gatherer; supply WithGatherer")
		}
		cfg.gatherer = g
	}

	if cfg.goCollectors {
		runtimeCollectors := []prometheus.Collector{
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		}
		for _, c := range runtimeCollectors {
			if err := cfg.registerer.Register(c); err != nil {
				var alreadyRegistered prometheus.AlreadyRegisteredError
				if !errors.As(err, &alreadyRegistered) {
					return nil, fmt.Errorf("provider: registering runtime collector: %w", err)
				}
			}
		}
	}

	exporter, err := otelprom.New(otelprom.WithRegisterer(cfg.registerer))
	if err != nil {
		return nil, fmt.Errorf("provider: creating Prometheus exporter: %w", err)
	}

	res, err := buildResource(cfg.resources)
	if err != nil {
		return nil, fmt.Errorf("provider: building resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	return &PrometheusProvider{
		provider:    mp,
		exporter:    exporter,
		registerer:  cfg.registerer,
		gatherer:    cfg.gatherer,
		openMetrics: cfg.openMetrics,
	}, nil
}

// Kind implements Provider.
func (p *PrometheusProvider) Kind() string { return KindPrometheus }

// MeterProvider returns the pipeline's meter provider.
func (p *PrometheusProvider) MeterProvider() metric.MeterProvider { return p.provider }

// Registerer returns the registerer the exporter registers into.
func (p *PrometheusProvider) Registerer() prometheus.Registerer { return p.registerer }

// Gatherer returns the gatherer backing Handler.
func (p *PrometheusProvider) Gatherer() prometheus.Gatherer { return p.gatherer }

// Handler returns the scrape handler for the provider's gatherer.
func (p *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: p.openMetrics,
	})
}

// InstallGlobal makes this pipeline the process-global meter provider and
// resets the instrument caches to rebind against it.
func (p *PrometheusProvider) InstallGlobal() {
	instruments.InstallMeterProvider(p.provider)
}

// Shutdown flushes and releases the pipeline.
func (p *PrometheusProvider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

// PrometheusOptionsFromProperties translates install properties into provider
// options. Unknown keys are ignored; malformed boolean values are errors.
func PrometheusOptionsFromProperties(props properties.Map) ([]PrometheusOption, error) {
	var opts []PrometheusOption

	if attrs := resourceAttributesFromProperties(props); len(attrs) > 0 {
		opts = append(opts, WithResourceAttributes(attrs...))
	}

	openMetrics, _, err := proputil.GetOptionalBool(props, properties.KeyPrometheusOpenMetrics)
	if err != nil {
		return nil, err
	}
	if openMetrics {
		opts = append(opts, WithOpenMetrics())
	}

	goCollectors, _, err := proputil.GetOptionalBool(props, properties.KeyPrometheusGoCollector)
	if err != nil {
		return nil, err
	}
	if goCollectors {
		opts = append(opts, WithGoCollectors())
	}

	return opts, nil
}

var _ Provider = (*PrometheusProvider)(nil)
