// Package textfile writes point-in-time metric snapshots in the Prometheus
// node_exporter textfile-collector format. Snapshots are gathered from
// registered collectors and written atomically so a scraping node_exporter
// never observes a partial file.
package textfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/metron-labs/metron/internal/instruments"
	"github.com/metron-labs/metron/pkg/metron/v1/collector"
	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
	"github.com/metron-labs/metron/pkg/metron/v1/events"
	metronlog "github.com/metron-labs/metron/pkg/metron/v1/log"
)

var (
	// ErrNotConfigured is returned by the runtime when a snapshot operation
	// is requested before ConfigureSnapshots has built an exporter.
	ErrNotConfigured = errors.New("textfile exporter not configured")
	// ErrNilCollector is returned when RegisterCollector receives nil.
	ErrNilCollector = errors.New("collector cannot be nil")
)

// Config holds the exporter settings.
type Config struct {
	// Directory is where .prom files are written. Required; created with
	// MkdirAll if absent.
	Directory string
	// FilePrefix is the base name of written files. Defaults to "metron".
	FilePrefix string
	// Stage is the default snapshot stage applied when WriteSnapshot is
	// called with an empty stage.
	Stage string
}

func (c Config) withDefaults() Config {
	c.Directory = strings.TrimSpace(c.Directory)
	c.FilePrefix = strings.TrimSpace(c.FilePrefix)
	if c.FilePrefix == "" {
		c.FilePrefix = "metron"
	}
	c.Stage = strings.TrimSpace(c.Stage)
	return c
}

// Exporter gathers metrics from its collectors and writes them as a single
// .prom file per stage. An Exporter is owned by the runtime that configured
// it; there is no package-level instance.
type Exporter struct {
	dir          string
	prefix       string
	defaultStage string

	mu         sync.Mutex
	collectors []collector.Collector

	bus events.Bus
	log metronlog.Logger
}

// NewExporter validates the config, creates the target directory, and returns
// an exporter with no collectors. Callers seed it via RegisterCollector or
// SeedFromRegistry. The bus may be nil, in which case no events are emitted.
func NewExporter(cfg Config, bus events.Bus, log metronlog.Logger) (*Exporter, error) {
	if log == nil {
		panic("textfile.NewExporter requires a non-nil logger")
	}
	cfg = cfg.withDefaults()
	if cfg.Directory == "" {
		return nil, metronerrors.NewValidationError("textfile directory is required", nil)
	}
	if _, err := validateStage(cfg.Stage); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, metronerrors.NewSnapshotError(cfg.Stage, "", fmt.Errorf("create snapshot directory: %w", err))
	}

	return &Exporter{
		dir:          cfg.Directory,
		prefix:       cfg.FilePrefix,
		defaultStage: cfg.Stage,
		bus:          bus,
		log:          log.With("component", "TextfileExporter"),
	}, nil
}

// RegisterCollector adds a collector to the snapshot set. Duplicate names are
// allowed; every registered collector contributes to every snapshot.
func (e *Exporter) RegisterCollector(c collector.Collector) error {
	if c == nil {
		return ErrNilCollector
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.collectors = append(e.collectors, c)
	e.log.Debugf("Registered snapshot collector '%s'", c.Name())
	return nil
}

// SeedFromRegistry instantiates the named collectors from reg and registers
// them. An empty names slice seeds every collector the registry lists, in
// sorted order. Params are keyed by collector name and passed to the factory.
func (e *Exporter) SeedFromRegistry(reg collector.Registry, names []string, params map[string]map[string]string) error {
	if reg == nil {
		return metronerrors.NewConfigError("collector registry cannot be nil", nil)
	}
	if len(names) == 0 {
		names = reg.List()
		sort.Strings(names)
	}
	for _, name := range names {
		factory, err := reg.Get(name)
		if err != nil {
			return err
		}
		c, err := factory(params[name])
		if err != nil {
			return metronerrors.NewConfigError(fmt.Sprintf("building collector '%s'", name), err)
		}
		if err := e.RegisterCollector(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns the names of the registered collectors, in registration
// order.
func (e *Exporter) Collectors() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.collectors))
	for _, c := range e.collectors {
		names = append(names, c.Name())
	}
	return names
}

// WriteSnapshot gathers all collectors and atomically writes a .prom file for
// the stage. An empty stage falls back to the configured default stage. The
// written path is returned. Snapshots are serialized; concurrent calls queue
// on the exporter lock.
func (e *Exporter) WriteSnapshot(ctx context.Context, stage string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if stage == "" {
		stage = e.defaultStage
	}
	stage, err := validateStage(stage)
	if err != nil {
		return "", err
	}

	start := time.Now()
	path, bytes, err := e.writeLocked(ctx, stage)
	instruments.RecordSnapshotWrite(ctx, stage, bytes, time.Since(start))
	if err != nil {
		e.log.Errorf("Snapshot write failed for stage '%s': %v", stage, err)
		e.emit(events.Event{Type: events.SnapshotFailed, Timestamp: time.Now(), Stage: stage})
		return "", err
	}
	e.log.Debugf("Snapshot written to %s (%d bytes)", path, bytes)
	e.emit(events.Event{Type: events.SnapshotWritten, Timestamp: time.Now(), Stage: stage, Payload: map[string]interface{}{"path": path}})
	return path, nil
}

func (e *Exporter) writeLocked(ctx context.Context, stage string) (string, int, error) {
	metrics, err := e.collectLocked(ctx, stage)
	if err != nil {
		return "", 0, err
	}

	fileBase := e.prefix
	if stage != "" {
		fileBase = fmt.Sprintf("%s_%s", e.prefix, stage)
	}
	filePath := filepath.Join(e.dir, fileBase+".prom")

	content := formatMetrics(metrics, stage)
	if err := writeFileAtomically(e.dir, fileBase, content, filePath); err != nil {
		return "", 0, metronerrors.NewSnapshotError(stage, "", err)
	}
	return filePath, len(content), nil
}

func (e *Exporter) collectLocked(ctx context.Context, stage string) ([]collector.Metric, error) {
	var all []collector.Metric
	for _, c := range e.collectors {
		select {
		case <-ctx.Done():
			return nil, metronerrors.NewSnapshotError(stage, c.Name(), ctx.Err())
		default:
		}

		start := time.Now()
		metrics, err := c.Collect(ctx, stage)
		instruments.RecordCollectorScrape(ctx, c.Name(), stage, time.Since(start), err)
		if err != nil {
			return nil, metronerrors.NewSnapshotError(stage, c.Name(), err)
		}
		all = append(all, metrics...)
	}
	return all, nil
}

func (e *Exporter) emit(event events.Event) {
	if e.bus != nil {
		e.bus.Emit(event)
	}
}

// formatMetrics renders metrics in the textfile-collector exposition format:
// a # HELP line, a # TYPE line, and one sample line per metric. The stage,
// when non-empty, is added as a label on every sample.
func formatMetrics(metrics []collector.Metric, stage string) string {
	var sb strings.Builder
	for _, metric := range metrics {
		labels := formatLabels(metric.Labels, stage)
		sb.WriteString(fmt.Sprintf("# HELP %s %s\n", metric.Name, metric.Help))
		sb.WriteString(fmt.Sprintf("# TYPE %s %s\n", metric.Name, metric.Type))
		sb.WriteString(fmt.Sprintf("%s%s %g\n", metric.Name, labels, metric.Value))
	}
	return sb.String()
}

// formatLabels renders the label set sorted by key so file contents are
// stable across snapshots of the same data.
func formatLabels(base map[string]string, stage string) string {
	labels := make(map[string]string, len(base)+1)
	for k, v := range base {
		labels[k] = v
	}
	if stage != "" {
		labels["stage"] = stage
	}
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=\"%s\"", k, labels[k]))
	}
	return fmt.Sprintf("{%s}", strings.Join(parts, ","))
}

// validateStage trims the stage and restricts it to characters that are safe
// in both file names and Prometheus label values.
func validateStage(stage string) (string, error) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return "", nil
	}
	for _, r := range stage {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			continue
		}
		return "", metronerrors.NewValidationError(fmt.Sprintf("invalid stage %q: unsupported character %q", stage, string(r)), nil)
	}
	return stage, nil
}

// writeFileAtomically writes content to a temp file in dir, fsyncs it, and
// renames it over target so readers see either the old file or the new one.
func writeFileAtomically(dir, base, content, target string) error {
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
