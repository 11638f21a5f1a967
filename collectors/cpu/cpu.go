// Package cpu provides a snapshot collector for aggregate CPU time counters
// read from /proc/stat.
package cpu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/metron-labs/metron/internal/registry"
	"github.com/metron-labs/metron/pkg/metron/v1/collector"
)

// The init function runs automatically when the package is imported. It
// self-registers the collector with the global default registry under the
// name users reference in their snapshot configuration.
func init() {
	registry.Register("cpu", New)
}

type cpuStat struct {
	user   uint64
	system uint64
	iowait uint64
}

// Collector samples cumulative CPU jiffies. The stat file path is
// parameterized so tests can point it at a fixture.
type Collector struct {
	statPath string
}

// New is the factory function that creates new instances of the CPU
// collector. The optional "path" parameter overrides the stat file location.
func New(params map[string]string) (collector.Collector, error) {
	path := strings.TrimSpace(params["path"])
	if path == "" {
		path = "/proc/stat"
	}
	return &Collector{statPath: path}, nil
}

func (c *Collector) Name() string {
	return "cpu"
}

func (c *Collector) Collect(ctx context.Context, stage string) ([]collector.Metric, error) {
	stat, err := c.readCPUTimes()
	if err != nil {
		return nil, err
	}

	return []collector.Metric{
		{
			Name:  "metron_cpu_user_jiffies_total",
			Help:  "Cumulative CPU user jiffies observed by metron.",
			Type:  collector.TypeCounter,
			Value: float64(stat.user),
		},
		{
			Name:  "metron_cpu_system_jiffies_total",
			Help:  "Cumulative CPU system jiffies observed by metron.",
			Type:  collector.TypeCounter,
			Value: float64(stat.system),
		},
		{
			Name:  "metron_cpu_iowait_jiffies_total",
			Help:  "Cumulative CPU I/O wait jiffies observed by metron.",
			Type:  collector.TypeCounter,
			Value: float64(stat.iowait),
		},
	}, nil
}

// readCPUTimes parses the aggregate "cpu" line. Field positions follow
// /proc/stat's layout: user nice system idle iowait.
func (c *Collector) readCPUTimes() (cpuStat, error) {
	file, err := os.Open(c.statPath)
	if err != nil {
		return cpuStat{}, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "cpu ") {
			fields := strings.Fields(line)
			if len(fields) < 6 {
				return cpuStat{}, fmt.Errorf("unexpected cpu stat line: %q", line)
			}
			user, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				return cpuStat{}, fmt.Errorf("parse user field: %w", err)
			}
			system, err := strconv.ParseUint(fields[3], 10, 64)
			if err != nil {
				return cpuStat{}, fmt.Errorf("parse system field: %w", err)
			}
			iowait, err := strconv.ParseUint(fields[5], 10, 64)
			if err != nil {
				return cpuStat{}, fmt.Errorf("parse iowait field: %w", err)
			}
			return cpuStat{user: user, system: system, iowait: iowait}, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return cpuStat{}, err
	}
	return cpuStat{}, errors.New("cpu stat line not found")
}
