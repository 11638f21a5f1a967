package runtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/metron-labs/metron/internal/instruments"
	"github.com/metron-labs/metron/internal/provider"
	"github.com/metron-labs/metron/internal/retry"
	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
	"github.com/metron-labs/metron/pkg/metron/v1/events"
	"github.com/metron-labs/metron/pkg/metron/v1/properties"
)

// InstallPrometheus builds a Prometheus pull provider from the given
// properties and moves it into the active slot. The properties are consumed
// read-only; a nil map installs a provider with all defaults.
func (r *Runtime) InstallPrometheus(ctx context.Context, props properties.Map) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	opts, err := provider.PrometheusOptionsFromProperties(props)
	if err != nil {
		return r.installFailed(provider.KindPrometheus, err)
	}
	handlerPath := strings.TrimSpace(props[properties.KeyPrometheusHandlerPath])

	start := time.Now()
	var p *provider.PrometheusProvider
	err = r.retryHelper.Do(ctx, r.installRetryConfig("install_prometheus"), func(context.Context) error {
		var buildErr error
		p, buildErr = provider.NewPrometheusProvider(opts...)
		return buildErr
	})
	if err != nil {
		return r.installFailed(provider.KindPrometheus, err)
	}

	r.swapInto(ctx, p, handlerPath)
	instruments.RecordInstall(ctx, provider.KindPrometheus, time.Since(start))
	r.emitProviderEvent(events.ProviderInstalled, provider.KindPrometheus)
	r.log.Infof("Prometheus provider installed as the global meter provider.")
	return nil
}

// InstallOTLP builds an OTLP push provider from the given properties and
// moves it into the active slot. Ownership semantics match InstallPrometheus.
func (r *Runtime) InstallOTLP(ctx context.Context, props properties.Map) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	cfg, err := provider.OTLPConfigFromProperties(props)
	if err != nil {
		return r.installFailed(provider.KindOTLP, err)
	}

	start := time.Now()
	var p *provider.OTLPProvider
	err = r.retryHelper.Do(ctx, r.installRetryConfig("install_otlp"), func(opCtx context.Context) error {
		var buildErr error
		p, buildErr = provider.NewOTLPProvider(opCtx, cfg)
		return buildErr
	})
	if err != nil {
		return r.installFailed(provider.KindOTLP, err)
	}

	r.swapInto(ctx, p, "")
	instruments.RecordInstall(ctx, provider.KindOTLP, time.Since(start))
	r.emitProviderEvent(events.ProviderInstalled, provider.KindOTLP)
	r.log.Infof("OTLP provider installed as the global meter provider (endpoint '%s', protocol '%s').", p.Endpoint(), p.Protocol())
	return nil
}

// Shutdown removes the active provider, restores the no-op global meter
// provider, and flushes pending telemetry. With no provider active it still
// resets the global state and returns nil.
func (r *Runtime) Shutdown(ctx context.Context) error {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	active := r.takeSlot()
	if active == nil {
		r.log.Debugf("Shutdown with no active provider; global meter provider reset to no-op.")
		return nil
	}

	kind := active.Kind()
	err := active.Shutdown(ctx)
	r.emitProviderEvent(events.ProviderShutdown, kind)
	if err != nil {
		redacted := r.secretTracker.RedactError(err)
		r.log.Errorf("Error shutting down %s provider: %v", kind, redacted)
		return metronerrors.NewProviderError(kind, "shutdown", redacted)
	}
	r.log.Infof("Shut down %s provider; global meter provider reset to no-op.", kind)
	return nil
}

// Disable is Shutdown with errors suppressed, for hosts turning telemetry off
// that do not care whether the final flush succeeded.
func (r *Runtime) Disable(ctx context.Context) {
	ctx, cancel := r.opContext(ctx)
	defer cancel()

	active := r.takeSlot()
	if active != nil {
		if err := active.Shutdown(ctx); err != nil {
			r.log.Warnf("Ignoring error while disabling metrics: %v", r.secretTracker.RedactError(err))
		}
	}
	r.eventBus.Emit(events.Event{Type: events.MetricsDisabled, Timestamp: time.Now()})
	r.log.Infof("Metrics disabled; global meter provider reset to no-op.")
}

// Active returns the kind of the provider occupying the slot, or "" when the
// slot is empty.
func (r *Runtime) Active() string {
	r.slotMu.Lock()
	defer r.slotMu.Unlock()
	if r.active == nil {
		return ""
	}
	return r.active.Kind()
}

// Handler returns a stable handler for the merged scrape view: the runtime's
// own registry plus the active Prometheus provider's metrics. Mount it once;
// it follows provider swaps.
func (r *Runtime) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.slotMu.Lock()
		h := r.scrapeHandler
		r.slotMu.Unlock()
		h.ServeHTTP(w, req)
	})
}

// HandlerPath returns the scrape path most recently requested by an install,
// defaulting to "/metrics".
func (r *Runtime) HandlerPath() string {
	r.slotMu.Lock()
	defer r.slotMu.Unlock()
	return r.handlerPath
}

// swapInto moves p into the active slot. A displaced provider is shut down
// while the lock is held; its shutdown error is discarded.
func (r *Runtime) swapInto(ctx context.Context, p provider.Provider, handlerPath string) {
	r.slotMu.Lock()
	defer r.slotMu.Unlock()

	if r.active != nil {
		_ = r.active.Shutdown(ctx)
	}
	p.InstallGlobal()
	r.active = p
	if handlerPath != "" {
		r.handlerPath = handlerPath
	}
	r.rebuildHandlerLocked()
}

// takeSlot clears the slot and restores the no-op global meter provider,
// returning whatever provider was active.
func (r *Runtime) takeSlot() provider.Provider {
	r.slotMu.Lock()
	defer r.slotMu.Unlock()
	active := r.active
	r.active = nil
	instruments.InstallMeterProvider(nil)
	r.rebuildHandlerLocked()
	return active
}

func (r *Runtime) installFailed(kind string, err error) error {
	redacted := r.secretTracker.RedactError(err)
	r.emitProviderEvent(events.ProviderInstallFailed, kind)
	r.log.Errorf("Failed to install %s provider: %v", kind, redacted)
	return metronerrors.NewProviderError(kind, "install", redacted)
}

func (r *Runtime) emitProviderEvent(eventType events.EventType, kind string) {
	r.eventBus.Emit(events.Event{Type: eventType, Timestamp: time.Now(), Provider: kind})
}

func (r *Runtime) installRetryConfig(op string) retry.Config {
	return retry.Config{
		Attempts:      r.installRetry.Attempts,
		Delay:         r.installRetry.Delay,
		MaxDelay:      r.installRetry.MaxDelay,
		BackoffFactor: r.installRetry.BackoffFactor,
		Jitter:        r.installRetry.Jitter,
		OnError:       true,
		Op:            op,
	}
}

// opContext applies the default timeout when the caller passed no deadline.
func (r *Runtime) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.defaultTimeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.defaultTimeout)
}

// RecordHistogram records a sample on the named histogram through the
// globally installed meter provider.
func (r *Runtime) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) error {
	return instruments.RecordHistogram(ctx, name, value, attrs...)
}

// AddCounter adds a non-negative delta to the named counter through the
// globally installed meter provider.
func (r *Runtime) AddCounter(ctx context.Context, name string, delta int64, attrs ...attribute.KeyValue) error {
	return instruments.AddCounter(ctx, name, delta, attrs...)
}
