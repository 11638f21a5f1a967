// Package instruments owns the OpenTelemetry instruments the runtime records
// through whichever meter provider currently occupies the process-wide slot.
// Instruments are cached by name and rebound lazily after every provider
// swap, so samples never land on a shut-down pipeline.
package instruments

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope for all runtime-owned instruments.
const meterName = "github.com/metron-labs/metron"

var (
	errEmptyInstrumentName  = errors.New("metrics: instrument name cannot be empty")
	errNegativeCounterDelta = errors.New("metrics: counter delta must be non-negative")
)

var (
	meterMu  sync.Mutex
	initOnce sync.Once

	installDuration         metric.Float64Histogram
	snapshotWriteDuration   metric.Float64Histogram
	snapshotWriteBytes      metric.Int64Histogram
	collectorScrapeDuration metric.Float64Histogram

	genericMu         sync.Mutex
	genericHistograms map[string]metric.Float64Histogram
	genericCounters   map[string]metric.Int64Counter
)

var (
	providerKey  = attribute.Key("provider")
	stageKey     = attribute.Key("stage")
	collectorKey = attribute.Key("collector")
	statusKey    = attribute.Key("status")
)

// InstallMeterProvider makes mp the process-global meter provider and resets
// every cached instrument so the next sample binds against it. A nil mp
// installs a no-op provider; recording continues without error and without
// effect.
func InstallMeterProvider(mp metric.MeterProvider) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meterMu.Lock()
	defer meterMu.Unlock()
	otel.SetMeterProvider(mp)
	resetLocked()
}

// Reset clears the cached instruments without touching the global provider.
func Reset() {
	meterMu.Lock()
	defer meterMu.Unlock()
	resetLocked()
}

// resetLocked requires meterMu to be held.
func resetLocked() {
	installDuration = nil
	snapshotWriteDuration = nil
	snapshotWriteBytes = nil
	collectorScrapeDuration = nil
	initOnce = sync.Once{}

	genericMu.Lock()
	genericHistograms = nil
	genericCounters = nil
	genericMu.Unlock()
}

// ensureMeter initializes the built-in instruments against the current global
// provider. Double-checked so the hot path skips the mutex.
func ensureMeter() {
	if installDuration != nil {
		return
	}
	meterMu.Lock()
	defer meterMu.Unlock()
	initOnce.Do(initInstruments)
}

// initInstruments requires meterMu to be held (via ensureMeter).
// Creation failures go to the OTel error handler; the corresponding
// instrument stays nil and its record helpers become no-ops.
func initInstruments() {
	meter := otel.Meter(meterName)
	var err error

	installDuration, err = meter.Float64Histogram(
		"metron.provider.install.duration",
		metric.WithDescription("Time spent constructing and installing a metrics provider."),
		metric.WithUnit("s"),
	)
	handle(err)

	snapshotWriteDuration, err = meter.Float64Histogram(
		"metron.snapshot.write.duration",
		metric.WithDescription("Time spent gathering collectors and writing one textfile snapshot."),
		metric.WithUnit("s"),
	)
	handle(err)

	snapshotWriteBytes, err = meter.Int64Histogram(
		"metron.snapshot.write.bytes",
		metric.WithDescription("Size of written textfile snapshots."),
		metric.WithUnit("By"),
	)
	handle(err)

	collectorScrapeDuration, err = meter.Float64Histogram(
		"metron.collector.scrape.duration",
		metric.WithDescription("Time spent in a single collector's Collect call."),
		metric.WithUnit("s"),
	)
	handle(err)
}

func handle(err error) {
	if err != nil {
		otel.Handle(err)
	}
}

// RecordInstall records the duration of a completed provider install.
func RecordInstall(ctx context.Context, kind string, d time.Duration) {
	ensureMeter()
	if installDuration == nil {
		return
	}
	installDuration.Record(ctx, d.Seconds(), metric.WithAttributes(providerKey.String(kind)))
}

// RecordSnapshotWrite records the duration and size of a written snapshot.
func RecordSnapshotWrite(ctx context.Context, stage string, bytes int, d time.Duration) {
	ensureMeter()
	attrs := metric.WithAttributes(stageKey.String(stage))
	if snapshotWriteDuration != nil {
		snapshotWriteDuration.Record(ctx, d.Seconds(), attrs)
	}
	if snapshotWriteBytes != nil {
		snapshotWriteBytes.Record(ctx, int64(bytes), attrs)
	}
}

// RecordCollectorScrape records one collector's Collect call.
func RecordCollectorScrape(ctx context.Context, collectorName, stage string, d time.Duration, err error) {
	ensureMeter()
	if collectorScrapeDuration == nil {
		return
	}
	collectorScrapeDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		collectorKey.String(collectorName),
		stageKey.String(stage),
		statusAttr(err),
	))
}

func statusAttr(err error) attribute.KeyValue {
	if err != nil {
		return statusKey.String("error")
	}
	return statusKey.String("ok")
}

// RecordHistogram records a sample on the histogram with the given name,
// creating and caching the instrument on first use. The instrument binds to
// whatever meter provider is installed at that moment.
func RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) error {
	if name == "" {
		return errEmptyInstrumentName
	}
	hist, err := histogramByName(name)
	if err != nil {
		return err
	}
	hist.Record(ctx, value, metric.WithAttributes(attrs...))
	return nil
}

// AddCounter adds a non-negative delta to the counter with the given name,
// creating and caching the instrument on first use.
func AddCounter(ctx context.Context, name string, delta int64, attrs ...attribute.KeyValue) error {
	if name == "" {
		return errEmptyInstrumentName
	}
	if delta < 0 {
		return errNegativeCounterDelta
	}
	counter, err := counterByName(name)
	if err != nil {
		return err
	}
	counter.Add(ctx, delta, metric.WithAttributes(attrs...))
	return nil
}

func histogramByName(name string) (metric.Float64Histogram, error) {
	genericMu.Lock()
	defer genericMu.Unlock()
	if hist, ok := genericHistograms[name]; ok {
		return hist, nil
	}
	hist, err := otel.Meter(meterName).Float64Histogram(name)
	if err != nil {
		return nil, err
	}
	if genericHistograms == nil {
		genericHistograms = make(map[string]metric.Float64Histogram)
	}
	genericHistograms[name] = hist
	return hist, nil
}

func counterByName(name string) (metric.Int64Counter, error) {
	genericMu.Lock()
	defer genericMu.Unlock()
	if counter, ok := genericCounters[name]; ok {
		return counter, nil
	}
	counter, err := otel.Meter(meterName).Int64Counter(name)
	if err != nil {
		return nil, err
	}
	if genericCounters == nil {
		genericCounters = make(map[string]metric.Int64Counter)
	}
	genericCounters[name] = counter
	return counter, nil
}
