package runtimestats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metron-labs/metron/pkg/metron/v1/collector"
)

func TestCollect(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	assert.Equal(t, "runtimestats", c.Name())

	metrics, err := c.Collect(context.Background(), "")
	require.NoError(t, err)

	byName := make(map[string]collector.Metric, len(metrics))
	for _, m := range metrics {
		byName[m.Name] = m
	}

	goroutines, ok := byName["metron_go_goroutines"]
	require.True(t, ok)
	assert.Equal(t, collector.TypeGauge, goroutines.Type)
	assert.Greater(t, goroutines.Value, float64(0))

	heapAlloc, ok := byName["metron_go_heap_alloc_bytes"]
	require.True(t, ok)
	assert.Greater(t, heapAlloc.Value, float64(0))

	allocTotal, ok := byName["metron_go_alloc_bytes_total"]
	require.True(t, ok)
	assert.Equal(t, collector.TypeCounter, allocTotal.Type)

	_, ok = byName["metron_go_gc_cycles_total"]
	require.True(t, ok)
}
