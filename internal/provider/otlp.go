package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/encoding/gzip"

	"github.com/metron-labs/metron/internal/instruments"
	"github.com/metron-labs/metron/internal/proputil"
	"github.com/metron-labs/metron/pkg/metron/v1/properties"
)

// Default OTLP collector endpoints per protocol.
const (
	defaultGRPCEndpoint = "localhost:4317"
	defaultHTTPEndpoint = "localhost:4318"
	// defaultHTTPPath is the OTLP/HTTP metrics ingestion path.
	defaultHTTPPath = "/v1/metrics"
	// defaultExportInterval paces the periodic reader.
	defaultExportInterval = 10 * time.Second
	// defaultExportTimeout bounds a single export request.
	defaultExportTimeout = 10 * time.Second
)

// OTLPConfig describes an OTLP push pipeline. The zero value exports to a
// local collector over gRPC every ten seconds.
type OTLPConfig struct {
	// Endpoint is the collector address as host:port. A scheme prefix is
	// tolerated: "http://" is stripped and implies Insecure, "https://" is
	// stripped and leaves TLS on.
	Endpoint string
	// Protocol selects the transport: "grpc" (default) or "http".
	// "http/protobuf" is accepted as an alias for "http".
	Protocol string
	// Insecure disables transport security.
	Insecure bool
	// Interval is the periodic reader's export interval.
	Interval time.Duration
	// Timeout bounds each export request.
	Timeout time.Duration
	// Compression enables payload compression; only "gzip" is recognized.
	Compression string
	// Headers are added to every export request (e.g., auth tokens).
	Headers map[string]string
	// Attributes extend the provider's resource.
	Attributes []attribute.KeyValue
}

// withDefaults resolves the protocol, fills defaulted fields, and normalizes
// the endpoint. It returns an error for unsupported protocols.
func (c OTLPConfig) withDefaults() (OTLPConfig, error) {
	switch strings.ToLower(c.Protocol) {
	case "", "grpc":
		c.Protocol = "grpc"
	case "http", "http/protobuf":
		c.Protocol = "http"
	default:
		return c, fmt.Errorf("unsupported OTLP protocol: %s", c.Protocol)
	}

	if strings.HasPrefix(c.Endpoint, "http://") {
		c.Endpoint = strings.TrimPrefix(c.Endpoint, "http://")
		c.Insecure = true
	} else if strings.HasPrefix(c.Endpoint, "https://") {
		c.Endpoint = strings.TrimPrefix(c.Endpoint, "https://")
	}
	if c.Endpoint == "" {
		if c.Protocol == "grpc" {
			c.Endpoint = defaultGRPCEndpoint
		} else {
			c.Endpoint = defaultHTTPEndpoint
		}
	}

	if c.Interval <= 0 {
		c.Interval = defaultExportInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultExportTimeout
	}
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	return c, nil
}

// OTLPProvider is a push-model pipeline: a periodic reader exports the SDK's
// aggregations to an OTLP collector.
type OTLPProvider struct {
	provider *sdkmetric.MeterProvider
	endpoint string
	protocol string
}

// NewOTLPProvider constructs an OTLP push pipeline. The context bounds
// exporter construction (the gRPC flavor may dial eagerly).
func NewOTLPProvider(ctx context.Context, cfg OTLPConfig) (*OTLPProvider, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	exporter, err := newOTLPExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("provider: creating OTLP %s exporter: %w", cfg.Protocol, err)
	}

	var extras []*resource.Resource
	if len(cfg.Attributes) > 0 {
		extras = append(extras, resource.NewWithAttributes(semconv.SchemaURL, cfg.Attributes...))
	}
	res, err := buildResource(extras)
	if err != nil {
		return nil, fmt.Errorf("provider: building resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Interval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	return &OTLPProvider{
		provider: mp,
		endpoint: cfg.Endpoint,
		protocol: cfg.Protocol,
	}, nil
}

// newOTLPExporter creates the protocol-specific exporter.
func newOTLPExporter(ctx context.Context, cfg OTLPConfig) (sdkmetric.Exporter, error) {
	gzipped := strings.ToLower(cfg.Compression) == "gzip"

	switch cfg.Protocol {
	case "grpc":
		opts := []otlpmetricgrpc.Option{
			otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
			otlpmetricgrpc.WithHeaders(cfg.Headers),
			otlpmetricgrpc.WithTimeout(cfg.Timeout),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		} else {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
		}
		if gzipped {
			opts = append(opts, otlpmetricgrpc.WithCompressor(gzip.Name))
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case "http":
		opts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.Endpoint),
			otlpmetrichttp.WithURLPath(defaultHTTPPath),
			otlpmetrichttp.WithHeaders(cfg.Headers),
			otlpmetrichttp.WithTimeout(cfg.Timeout),
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if gzipped {
			opts = append(opts, otlpmetrichttp.WithCompression(otlpmetrichttp.GzipCompression))
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unsupported OTLP protocol: %s", cfg.Protocol)
	}
}

// Kind implements Provider.
func (p *OTLPProvider) Kind() string { return KindOTLP }

// MeterProvider returns the pipeline's meter provider.
func (p *OTLPProvider) MeterProvider() metric.MeterProvider { return p.provider }

// Endpoint returns the resolved collector endpoint, for logging.
func (p *OTLPProvider) Endpoint() string { return p.endpoint }

// Protocol returns the resolved transport protocol, for logging.
func (p *OTLPProvider) Protocol() string { return p.protocol }

// InstallGlobal makes this pipeline the process-global meter provider and
// resets the instrument caches to rebind against it.
func (p *OTLPProvider) InstallGlobal() {
	instruments.InstallMeterProvider(p.provider)
}

// Shutdown flushes the periodic reader and releases the pipeline.
func (p *OTLPProvider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

// OTLPConfigFromProperties translates install properties into an OTLPConfig.
// Unknown keys are ignored; malformed boolean and duration values are errors.
func OTLPConfigFromProperties(props properties.Map) (OTLPConfig, error) {
	cfg := OTLPConfig{
		Endpoint:    proputil.GetString(props, properties.KeyOTLPEndpoint),
		Protocol:    proputil.GetString(props, properties.KeyOTLPProtocol),
		Compression: proputil.GetString(props, properties.KeyOTLPCompression),
		Headers:     proputil.CollectPrefixed(props, properties.KeyOTLPHeaderPrefix),
		Attributes:  resourceAttributesFromProperties(props),
	}

	insecure, _, err := proputil.GetOptionalBool(props, properties.KeyOTLPInsecure)
	if err != nil {
		return OTLPConfig{}, err
	}
	cfg.Insecure = insecure

	interval, _, err := proputil.GetOptionalDuration(props, properties.KeyOTLPInterval)
	if err != nil {
		return OTLPConfig{}, err
	}
	cfg.Interval = interval

	timeout, _, err := proputil.GetOptionalDuration(props, properties.KeyOTLPTimeout)
	if err != nil {
		return OTLPConfig{}, err
	}
	cfg.Timeout = timeout

	return cfg, nil
}

var _ Provider = (*OTLPProvider)(nil)
