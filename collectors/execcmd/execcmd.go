// Package execcmd provides a snapshot collector that samples metrics from an
// external program. The program prints one "name value" pair per line;
// blank lines and lines starting with '#' are ignored.
package execcmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/metron-labs/metron/internal/command"
	"github.com/metron-labs/metron/internal/registry"
	"github.com/metron-labs/metron/pkg/metron/v1/collector"
	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
)

func init() {
	registry.Register("execcmd", New)
}

// Collector runs a configured command on every snapshot and converts its
// output into gauges.
type Collector struct {
	runner     command.Runner
	name       string
	cmd        string
	args       []string
	workingDir string
}

// New is the factory function that creates new instances of the exec
// collector. Parameters:
//
//	command     (required) program to run
//	args        comma-separated argument list
//	working_dir directory the program runs in
//	name        registry name override when several instances are configured
func New(params map[string]string) (collector.Collector, error) {
	cmd := strings.TrimSpace(params["command"])
	if cmd == "" {
		return nil, metronerrors.NewConfigError("execcmd collector requires a 'command' parameter", nil)
	}
	name := strings.TrimSpace(params["name"])
	if name == "" {
		name = "execcmd"
	}

	var args []string
	if raw := params["args"]; strings.TrimSpace(raw) != "" {
		for _, arg := range strings.Split(raw, ",") {
			arg = strings.TrimSpace(arg)
			if arg != "" {
				args = append(args, arg)
			}
		}
	}

	return &Collector{
		runner:     command.NewRunner(),
		name:       name,
		cmd:        cmd,
		args:       args,
		workingDir: strings.TrimSpace(params["working_dir"]),
	}, nil
}

func (c *Collector) Name() string {
	return c.name
}

func (c *Collector) Collect(ctx context.Context, stage string) ([]collector.Metric, error) {
	result, runErr := c.runner.Run(ctx, c.cmd, c.args, c.workingDir, nil)
	if runErr != nil {
		return nil, fmt.Errorf("failed to execute command: %w", runErr)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("command exited with non-zero status %d: %s", result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return c.parseOutput(result.Stdout)
}

func (c *Collector) parseOutput(stdout string) ([]collector.Metric, error) {
	var metrics []collector.Metric
	for i, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected 'name value', got %q", i+1, line)
		}
		if !isValidMetricName(fields[0]) {
			return nil, fmt.Errorf("line %d: invalid metric name %q", i+1, fields[0])
		}
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parse value %q: %w", i+1, fields[1], err)
		}
		metrics = append(metrics, collector.Metric{
			Name:  fields[0],
			Help:  fmt.Sprintf("Value reported by command %q.", c.cmd),
			Type:  collector.TypeGauge,
			Value: value,
		})
	}
	return metrics, nil
}

// isValidMetricName checks the Prometheus metric name grammar
// [a-zA-Z_:][a-zA-Z0-9_:]* so a bad program cannot corrupt the snapshot file.
func isValidMetricName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if r == '_' || r == ':' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}
