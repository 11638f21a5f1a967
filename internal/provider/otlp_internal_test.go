package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/metron-labs/metron/pkg/metron/v1/properties"
)

func TestOTLPConfigWithDefaults(t *testing.T) {
	testCases := []struct {
		name         string
		in           OTLPConfig
		wantProtocol string
		wantEndpoint string
		wantInsecure bool
		wantErr      bool
	}{
		{
			name:         "Zero Value Defaults To Local GRPC",
			in:           OTLPConfig{},
			wantProtocol: "grpc",
			wantEndpoint: "localhost:4317",
		},
		{
			name:         "HTTP Protocol Default Endpoint",
			in:           OTLPConfig{Protocol: "http"},
			wantProtocol: "http",
			wantEndpoint: "localhost:4318",
		},
		{
			name:         "HTTP Protobuf Alias",
			in:           OTLPConfig{Protocol: "http/protobuf"},
			wantProtocol: "http",
			wantEndpoint: "localhost:4318",
		},
		{
			name:         "HTTP Scheme Implies Insecure",
			in:           OTLPConfig{Endpoint: "http://collector:4318", Protocol: "http"},
			wantProtocol: "http",
			wantEndpoint: "collector:4318",
			wantInsecure: true,
		},
		{
			name:         "HTTPS Scheme Stays Secure",
			in:           OTLPConfig{Endpoint: "https://collector:4318", Protocol: "http"},
			wantProtocol: "http",
			wantEndpoint: "collector:4318",
			wantInsecure: false,
		},
		{
			name:         "Explicit Insecure Preserved",
			in:           OTLPConfig{Endpoint: "collector:4317", Insecure: true},
			wantProtocol: "grpc",
			wantEndpoint: "collector:4317",
			wantInsecure: true,
		},
		{
			name:    "Unsupported Protocol",
			in:      OTLPConfig{Protocol: "carrier-pigeon"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.in.withDefaults()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantProtocol, got.Protocol)
			assert.Equal(t, tc.wantEndpoint, got.Endpoint)
			assert.Equal(t, tc.wantInsecure, got.Insecure)
			assert.Equal(t, defaultExportInterval, got.Interval)
			assert.Equal(t, defaultExportTimeout, got.Timeout)
			assert.NotNil(t, got.Headers)
		})
	}
}

func TestOTLPConfigFromProperties(t *testing.T) {
	props := properties.Map{
		properties.KeyOTLPEndpoint:                     "collector.internal:4317",
		properties.KeyOTLPProtocol:                     "grpc",
		properties.KeyOTLPInsecure:                     "true",
		properties.KeyOTLPInterval:                     "30s",
		properties.KeyOTLPTimeout:                      "5000",
		properties.KeyOTLPCompression:                  "gzip",
		properties.KeyOTLPHeaderPrefix + "x-api-token": "tok-1",
		properties.KeyServiceName:                      "svc-b",
	}

	cfg, err := OTLPConfigFromProperties(props)
	require.NoError(t, err)

	assert.Equal(t, "collector.internal:4317", cfg.Endpoint)
	assert.Equal(t, "grpc", cfg.Protocol)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 5*time.Second, cfg.Timeout, "bare integers parse as milliseconds")
	assert.Equal(t, "gzip", cfg.Compression)
	assert.Equal(t, map[string]string{"x-api-token": "tok-1"}, cfg.Headers)
	assert.Contains(t, cfg.Attributes, attribute.String("service.name", "svc-b"))
}

func TestOTLPConfigFromPropertiesBadDuration(t *testing.T) {
	_, err := OTLPConfigFromProperties(properties.Map{properties.KeyOTLPInterval: "soonish"})
	assert.Error(t, err)
}

func TestResourceAttributesFromProperties(t *testing.T) {
	props := properties.Map{
		properties.KeyServiceName:         "svc",
		properties.KeyAttrPrefix + "zone": "b",
		properties.KeyAttrPrefix + "env":  "prod",
		properties.KeyAttrPrefix + " ":    "skipped",
	}
	attrs := resourceAttributesFromProperties(props)

	require.Len(t, attrs, 3)
	// Sorted by key for deterministic resource identity.
	assert.Equal(t, attribute.String("env", "prod"), attrs[0])
	assert.Equal(t, attribute.String("service.name", "svc"), attrs[1])
	assert.Equal(t, attribute.String("zone", "b"), attrs[2])
}

func TestBuildResourceUserOverridesDefault(t *testing.T) {
	res, err := buildResource(nil)
	require.NoError(t, err)
	assert.Contains(t, res.Attributes(), attribute.String("service.name", defaultServiceName))
}
