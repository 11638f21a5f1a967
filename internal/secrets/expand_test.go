package secrets_test

import (
	"context"
	"testing"

	"github.com/metron-labs/metron/internal/secrets"
	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	t.Setenv("METRON_TEST_TOKEN", "tok-12345")
	t.Setenv("METRON_TEST_USER", "metron")

	tracker := secrets.NewSecretTracker()
	expander := secrets.NewExpander(secrets.NewEnvProvider(), tracker)

	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "Single Reference",
			input: "Bearer ${env:METRON_TEST_TOKEN}",
			want:  "Bearer tok-12345",
		},
		{
			name:  "Multiple References",
			input: "${env:METRON_TEST_USER}:${env:METRON_TEST_TOKEN}",
			want:  "metron:tok-12345",
		},
		{
			name:  "No References",
			input: "plain value",
			want:  "plain value",
		},
		{
			name:  "Empty Input",
			input: "",
			want:  "",
		},
		{
			name:    "Unknown Variable",
			input:   "${env:METRON_TEST_DOES_NOT_EXIST}",
			wantErr: true,
		},
		{
			name:  "Malformed Reference Left Untouched",
			input: "${env:}",
			want:  "${env:}",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := expander.Expand(context.Background(), tc.input)
			if tc.wantErr {
				require.Error(t, err)
				var cfgErr *metronerrors.ConfigError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	// Resolved values must be tracked for redaction.
	assert.True(t, tracker.IsTracked("tok-12345"))
}

func TestExpandOnAccess(t *testing.T) {
	t.Setenv("METRON_TEST_TOKEN", "tok-12345")

	var accessed []string
	expander := secrets.NewExpander(secrets.NewEnvProvider(), secrets.NewSecretTracker())
	expander.OnAccess = func(key string) { accessed = append(accessed, key) }

	_, err := expander.Expand(context.Background(), "a=${env:METRON_TEST_TOKEN} b=${env:METRON_TEST_TOKEN}")
	require.NoError(t, err)
	assert.Equal(t, []string{"METRON_TEST_TOKEN", "METRON_TEST_TOKEN"}, accessed,
		"OnAccess should fire once per reference, never carrying the value")
}

func TestExpandMap(t *testing.T) {
	t.Setenv("METRON_TEST_TOKEN", "tok-12345")

	expander := secrets.NewExpander(secrets.NewEnvProvider(), secrets.NewSecretTracker())
	m := map[string]string{
		"authorization": "Bearer ${env:METRON_TEST_TOKEN}",
		"plain":         "value",
	}
	require.NoError(t, expander.ExpandMap(context.Background(), m))
	assert.Equal(t, "Bearer tok-12345", m["authorization"])
	assert.Equal(t, "value", m["plain"])

	bad := map[string]string{"k": "${env:METRON_TEST_DOES_NOT_EXIST}"}
	assert.Error(t, expander.ExpandMap(context.Background(), bad))
}
