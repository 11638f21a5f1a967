package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	metron "github.com/metron-labs/metron/pkg/metron/v1"
	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
	metronlog "github.com/metron-labs/metron/pkg/metron/v1/log"

	"github.com/metron-labs/metron/internal/config"
	"github.com/metron-labs/metron/internal/events"
	"github.com/metron-labs/metron/internal/httpserver"
	"github.com/metron-labs/metron/internal/logger"
	"github.com/metron-labs/metron/internal/metrics"
	"github.com/metron-labs/metron/internal/registry"
	intRuntime "github.com/metron-labs/metron/internal/runtime"
	"github.com/metron-labs/metron/internal/secrets"

	_ "github.com/metron-labs/metron/collectors/cpu"
	_ "github.com/metron-labs/metron/collectors/execcmd"
	_ "github.com/metron-labs/metron/collectors/runtimestats"
)

const (
	ExitSuccess            = 0
	ExitFailure            = 1
	ExitUsageError         = 2
	ExitTimeout            = 124
	ExitSigIntBase         = 128
	ExitSigInt             = ExitSigIntBase + int(syscall.SIGINT)
	ExitSigTerm            = ExitSigIntBase + int(syscall.SIGTERM)
	DefaultLogLevel        = "info"
	DefaultLogFmt          = "text"
	DefaultEventBusSize    = 256
	DefaultShutdownTimeout = 5 * time.Second
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "validate" {
		runValidateCommand(os.Args[2:])
		return
	}
	if len(os.Args) == 2 && (os.Args[1] == "--version" || os.Args[1] == "-version") {
		printVersion()
		os.Exit(ExitSuccess)
	}
	exitCode := runAgentCommand(os.Args[1:])
	os.Exit(exitCode)
}

func printVersion() {
	fmt.Printf("metron version %s\n", version)
	fmt.Printf("commit: %s\n", commit)
	fmt.Printf("built: %s\n", buildDate)
	fmt.Printf("go version: %s\n", runtime.Version())
	fmt.Printf("os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

func runValidateCommand(args []string) {
	validateFlags := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := validateFlags.String("config", "", "Path to the telemetry configuration YAML file to validate (required)")
	logLevel := validateFlags.String("log-level", DefaultLogLevel, "Log level for validation output (debug, info, warn, error)")

	validateFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s validate -config <path> [flags...]\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Validates the structure and schema compatibility of a Metron telemetry configuration.")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		validateFlags.PrintDefaults()
	}

	if err := validateFlags.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing validate flags: %v\n", err)
		os.Exit(ExitUsageError)
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config flag is required for validation")
		validateFlags.Usage()
		os.Exit(ExitUsageError)
	}

	log := logger.NewLogger(*logLevel, "text", os.Stderr)
	log.Infof("Validating configuration: %s", *configPath)

	// Secret references are left unexpanded so a configuration can be
	// validated on machines that do not hold the secrets.
	_, err := config.LoadFromFile(context.Background(), *configPath, nil)
	if err != nil {
		var validationErr *metronerrors.ValidationError
		var configErr *metronerrors.ConfigError
		if errors.As(err, &validationErr) {
			log.Errorf("Configuration validation failed:\n%s", validationErr.Error())
		} else if errors.As(err, &configErr) {
			log.Errorf("Configuration error:\n%s", configErr.Error())
		} else {
			log.Errorf("Failed to load or validate configuration: %v", err)
		}
		os.Exit(ExitFailure)
	}

	log.Infof("Configuration validation successful: %s", *configPath)
	os.Exit(ExitSuccess)
}

func runAgentCommand(args []string) int {
	agentFlags := flag.NewFlagSet("metron", flag.ExitOnError)
	configPath := agentFlags.String("config", "", "Path to the telemetry configuration YAML file (required)")
	listenAddr := agentFlags.String("listen", "", "HTTP listen address for the scrape endpoint (overrides the configuration)")
	logLevel := agentFlags.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	logFormat := agentFlags.String("log-format", DefaultLogFmt, "Log format (text, json)")
	snapshotInterval := agentFlags.Duration("snapshot-interval", 0, "Interval between textfile snapshots (overrides the configuration)")
	versionFlag := agentFlags.Bool("version", false, "Print version information and exit")

	agentFlags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags...] -config <path>\n\n", os.Args[0])
		fmt.Fprintln(os.Stderr, "Runs the Metron metrics agent.")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		agentFlags.PrintDefaults()
	}

	if err := agentFlags.Parse(args); err != nil {
		return ExitUsageError
	}

	if *versionFlag {
		printVersion()
		return ExitSuccess
	}

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config flag is required")
		agentFlags.Usage()
		return ExitUsageError
	}
	if *logFormat != "text" && *logFormat != "json" {
		fmt.Fprintln(os.Stderr, "Error: -log-format must be 'text' or 'json'")
		return ExitUsageError
	}
	if *snapshotInterval < 0 {
		fmt.Fprintln(os.Stderr, "Error: -snapshot-interval cannot be negative. Using the configured interval.")
		*snapshotInterval = 0
	}

	var logWriter io.Writer = os.Stderr
	log := logger.NewLogger(*logLevel, *logFormat, logWriter)
	log = log.With("metron_version", version)

	log.Infof("Metron telemetry agent v%s starting...", version)
	log.Debugf("Log level: %s", *logLevel)
	log.Debugf("Log format: %s", *logFormat)

	eventBus := events.NewChannelEventBus(DefaultEventBusSize, log)
	defer eventBus.Close()
	secretsProvider := secrets.NewEnvProvider()
	collectorRegistry := registry.DefaultStaticRegistryGetter
	metricsProvider := metrics.NewPrometheusRegistryProvider()

	runtimeOpts := []metron.RuntimeOption{
		metron.WithEventBus(eventBus),
		metron.WithSecretsProvider(secretsProvider),
		metron.WithCollectorRegistry(collectorRegistry),
		metron.WithMetricsRegistryProvider(metricsProvider),
		metron.WithRedactedKeywords([]string{"password", "token", "secret", "apikey", "privatekey", "authorization", "bearer"}),
	}

	rt, err := intRuntime.NewRuntime(log, runtimeOpts...)
	if err != nil {
		log.Errorf("Failed to create Metron runtime: %v", err)
		return ExitFailure
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	listener := events.NewMetricsEventListener(eventBus, rt.LifecycleCounters(), log)
	go listener.Start(runCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	defer close(sigChan)

	var receivedSignal os.Signal
	var sigMu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case sig := <-sigChan:
			log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
			sigMu.Lock()
			receivedSignal = sig
			sigMu.Unlock()
			cancelRun()
		case <-runCtx.Done():
			log.Debugf("Signal handler exiting because run context is done.")
		}
	}()
	defer wg.Wait()

	log.Infof("Loading configuration: %s", *configPath)
	cfg, err := rt.LoadConfigFile(runCtx, *configPath)
	if err != nil {
		log.Errorf("Failed to load configuration '%s': %v", *configPath, err)
		return ExitFailure
	}

	if err := rt.ApplyLoadedConfig(runCtx, cfg); err != nil {
		log.Errorf("Failed to apply configuration: %v", err)
		shutdownRuntime(rt, log)
		return ExitFailure
	}

	var srv *httpserver.Server
	var srvErrChan <-chan error
	if cfg.GetExporter() == config.ExporterPrometheus {
		listen := *listenAddr
		if listen == "" {
			listen = cfg.GetListenAddress()
		}
		srv = httpserver.New(httpserver.Config{
			ListenAddress: listen,
			HandlerPath:   rt.HandlerPath(),
		}, rt.Handler(), log)
		srvErrChan, err = srv.Start()
		if err != nil {
			log.Errorf("Failed to start metrics server: %v", err)
			shutdownRuntime(rt, log)
			return ExitFailure
		}
	}

	interval := *snapshotInterval
	if interval <= 0 {
		interval = cfg.GetSnapshotInterval()
	}
	if interval > 0 {
		if cfg.Textfile == nil {
			log.Warnf("Snapshot interval set but no textfile exporter is configured; ignoring.")
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				runSnapshotLoop(runCtx, rt, interval, log)
			}()
		}
	}

	log.Infof("Metron agent ready.")

	var runErr error
	if srvErrChan != nil {
		select {
		case err, ok := <-srvErrChan:
			if ok && err != nil {
				log.Errorf("Metrics server failed: %v", err)
				runErr = err
			}
			cancelRun()
		case <-runCtx.Done():
		}
	} else {
		<-runCtx.Done()
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancelShutdown()
	if srv != nil {
		if stopErr := srv.Stop(shutdownCtx); stopErr != nil {
			log.Warnf("Error stopping metrics server: %v", stopErr)
		}
		for range srvErrChan {
		}
	}
	shutdownRuntime(rt, log)

	sigMu.Lock()
	finalSignal := receivedSignal
	sigMu.Unlock()
	return determineExitCode(runErr, finalSignal, log)
}

// runSnapshotLoop writes a textfile snapshot on every tick until the context
// is cancelled. Snapshot failures are logged and do not stop the loop.
func runSnapshotLoop(ctx context.Context, rt *intRuntime.Runtime, interval time.Duration, log metronlog.Logger) {
	log.Infof("Writing textfile snapshots every %v.", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := rt.WriteSnapshot(ctx, ""); err != nil {
				log.Warnf("Periodic snapshot failed: %v", err)
			}
		case <-ctx.Done():
			log.Debugf("Snapshot loop exiting because run context is done.")
			return
		}
	}
}

func shutdownRuntime(rt *intRuntime.Runtime, log metronlog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := rt.Shutdown(ctx); err != nil {
		log.Warnf("Error shutting down metrics provider: %v", err)
	}
}

func determineExitCode(runErr error, sig os.Signal, log metronlog.Logger) int {
	if sig != nil {
		switch sig {
		case syscall.SIGINT:
			log.Warnf("Agent interrupted by signal: SIGINT")
			return ExitSigInt
		case syscall.SIGTERM:
			log.Warnf("Agent terminated by signal: SIGTERM")
			return ExitSigTerm
		default:
			log.Warnf("Agent terminated by signal: %v", sig)
			return ExitFailure
		}
	}
	if runErr != nil {
		if errors.Is(runErr, context.DeadlineExceeded) {
			log.Errorf("Agent run timed out.")
			return ExitTimeout
		}
		return ExitFailure
	}
	log.Infof("Agent stopped cleanly.")
	return ExitSuccess
}
