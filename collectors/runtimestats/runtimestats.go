// Package runtimestats provides a snapshot collector for Go runtime memory
// and scheduler statistics of the embedding process.
package runtimestats

import (
	"context"
	"runtime"

	"github.com/metron-labs/metron/internal/registry"
	"github.com/metron-labs/metron/pkg/metron/v1/collector"
)

func init() {
	registry.Register("runtimestats", New)
}

// Collector samples runtime.MemStats and the goroutine count. It takes no
// parameters.
type Collector struct{}

// New is the factory function that creates new instances of the runtime
// stats collector.
func New(params map[string]string) (collector.Collector, error) {
	return &Collector{}, nil
}

func (c *Collector) Name() string {
	return "runtimestats"
}

func (c *Collector) Collect(ctx context.Context, stage string) ([]collector.Metric, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return []collector.Metric{
		{
			Name:  "metron_go_goroutines",
			Help:  "Number of goroutines in the embedding process.",
			Type:  collector.TypeGauge,
			Value: float64(runtime.NumGoroutine()),
		},
		{
			Name:  "metron_go_heap_alloc_bytes",
			Help:  "Bytes of allocated heap objects.",
			Type:  collector.TypeGauge,
			Value: float64(ms.HeapAlloc),
		},
		{
			Name:  "metron_go_heap_sys_bytes",
			Help:  "Bytes of heap memory obtained from the OS.",
			Type:  collector.TypeGauge,
			Value: float64(ms.HeapSys),
		},
		{
			Name:  "metron_go_alloc_bytes_total",
			Help:  "Cumulative bytes allocated for heap objects.",
			Type:  collector.TypeCounter,
			Value: float64(ms.TotalAlloc),
		},
		{
			Name:  "metron_go_gc_cycles_total",
			Help:  "Completed garbage collection cycles.",
			Type:  collector.TypeCounter,
			Value: float64(ms.NumGC),
		},
	}, nil
}
