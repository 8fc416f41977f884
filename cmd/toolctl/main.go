// Command toolctl runs the tool-orchestration server: a compile-time
// registry of security-scanning CLI wrappers exposed over either a
// stdio JSON-RPC 2.0 channel or an HTTP/JSON transport.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/toolops-mcp-server/cache"
	"github.com/jonwraymond/toolops-mcp-server/config"
	"github.com/jonwraymond/toolops-mcp-server/health"
	"github.com/jonwraymond/toolops-mcp-server/observe"
	"github.com/jonwraymond/toolops-mcp-server/registry"
	"github.com/jonwraymond/toolops-mcp-server/secret"
	"github.com/jonwraymond/toolops-mcp-server/server"
	"github.com/jonwraymond/toolops-mcp-server/toolbase"
)

func main() {
	// Must run before any other setup: a subprocess spawn re-execs this
	// same binary with a hidden sentinel argument to apply rlimits
	// between fork and exec (toolbase/rlimit_unix.go). When that
	// sentinel is present this never returns.
	toolbase.ReexecIfSentinel()

	var (
		transportFlag string
		configFlag    string
		debugFlag     bool
	)

	root := &cobra.Command{
		Use:   "toolctl",
		Short: "toolctl runs the tool-orchestration server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), transportFlag, configFlag, debugFlag)
		},
	}

	root.Flags().StringVar(&transportFlag, "transport", "", "transport to serve: stdio or http (overrides config)")
	root.Flags().StringVar(&configFlag, "config", os.Getenv("TOOLS_CONFIG_FILE"), "path to a TOML configuration file")
	root.Flags().BoolVar(&debugFlag, "debug", false, "force debug-level logging regardless of configured level")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "toolctl:", err)
		os.Exit(exitCodeFor(err))
	}
}

// startupError marks an error that occurred before the server began
// serving requests, mapping to exit code 1 ("startup validation
// failed") rather than 2 ("unrecoverable runtime error").
type startupError struct{ err error }

func (e *startupError) Error() string { return e.err.Error() }
func (e *startupError) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var se *startupError
	if errors.As(err, &se) {
		return 1
	}
	return 2
}

func run(ctx context.Context, transportFlag, configFlag string, debug bool) error {
	cfg, warn, err := config.Load(configFlag)
	if err != nil {
		return &startupError{fmt.Errorf("loading config: %w", err)}
	}
	if transportFlag != "" {
		cfg.Server.Transport = config.Transport(transportFlag)
	}
	if cfg.Server.Transport != config.TransportStdio && cfg.Server.Transport != config.TransportHTTP {
		return &startupError{fmt.Errorf("invalid transport %q", cfg.Server.Transport)}
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	cfgStore := config.NewStore(cfg)

	logLevel := cfg.Logging.Level
	obsCfg := observe.Config{
		ServiceName: "toolops-mcp-server",
		Version:     "0.1.0",
		Tracing:     observe.TracingConfig{Enabled: false, Exporter: "none"},
		Metrics:     observe.MetricsConfig{Enabled: cfg.Metrics.Enabled, Exporter: metricsExporter(cfg)},
		Logging:     observe.LoggingConfig{Enabled: true, Level: logLevel},
	}

	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return &startupError{fmt.Errorf("starting telemetry: %w", err)}
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	logger := obs.Logger()

	metrics, err := observe.NewMetrics(obs.Meter())
	if err != nil {
		return &startupError{fmt.Errorf("starting metrics: %w", err)}
	}

	resolver := secret.NewResolver(true, secret.NewEnvProvider())
	pathCache := cache.NewMemoryCache(cache.DefaultPolicy())

	reg := registry.Default(cfgStore, metrics, logger, pathCache, resolver)

	if !warn.Empty() {
		for _, f := range warn.ClampedFields {
			logger.Warn(ctx, "configuration field clamped to safe range", observe.Field{Key: "field", Value: f})
		}
		for _, f := range warn.MalformedEnv {
			logger.Warn(ctx, "ignored malformed environment variable", observe.Field{Key: "var", Value: f})
		}
		for _, k := range warn.UnknownTOMLKeys {
			logger.Warn(ctx, "unknown configuration key in file", observe.Field{Key: "key", Value: k})
		}
	}

	var watcher *config.Watcher
	if configFlag != "" {
		watcher = config.NewWatcher(configFlag, cfgStore, &reloadLogger{logger: logger})
		if err := watcher.Start(ctx); err != nil {
			logger.Warn(ctx, "config hot reload disabled", observe.Field{Key: "error", Value: err.Error()})
			watcher = nil
		} else {
			defer watcher.Stop()
		}
	}

	agg := buildHealthAggregator(cfg, reg)

	srv := server.New(reg, agg, cfgStore, logger)

	switch cfg.Server.Transport {
	case config.TransportHTTP:
		return serveHTTP(ctx, srv, cfgStore, logger)
	default:
		return serveStdio(ctx, srv)
	}
}

func metricsExporter(cfg *config.Config) string {
	if !cfg.Metrics.Enabled {
		return "none"
	}
	if cfg.Metrics.PrometheusEnabled {
		return "prometheus"
	}
	return "stdout"
}

// buildHealthAggregator wires the registry's per-tool informational
// checks alongside the process-wide critical and important checks.
func buildHealthAggregator(cfg *config.Config, reg *registry.Registry) *health.Aggregator {
	agg := health.NewAggregator(health.AggregatorConfig{
		Timeout:  cfg.Health.Timeout,
		Parallel: true,
	})

	agg.RegisterWithPriority("process", health.NewCheckerFunc("process", func(context.Context) health.Result {
		return health.Healthy("process event loop responsive")
	}), health.PriorityCritical)

	agg.RegisterWithPriority("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{
		WarningThreshold:  cfg.Health.MemoryThreshold,
		CriticalThreshold: min1(cfg.Health.MemoryThreshold + 0.05),
	}), health.PriorityImportant)

	agg.RegisterWithPriority("resources", health.NewResourceChecker(health.ResourceCheckerConfig{
		CPUWarningThreshold:   cfg.Health.CPUThreshold,
		CPUCriticalThreshold:  min1(cfg.Health.CPUThreshold + 0.05),
		DiskWarningThreshold:  cfg.Health.DiskThreshold,
		DiskCriticalThreshold: min1(cfg.Health.DiskThreshold + 0.05),
	}), health.PriorityImportant)

	agg.RegisterWithPriority("tools", reg.HealthChecker(), health.PriorityInformational)

	return agg
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

// reloadLogger adapts observe.Logger to config.ReloadLogger.
type reloadLogger struct {
	logger observe.Logger
}

func (r *reloadLogger) ReloadSucceeded(warn config.Warnings) {
	r.logger.Info(context.Background(), "configuration reloaded",
		observe.Field{Key: "clamped", Value: len(warn.ClampedFields)},
		observe.Field{Key: "malformed_env", Value: len(warn.MalformedEnv)},
	)
}

func (r *reloadLogger) ReloadFailed(err error) {
	r.logger.Error(context.Background(), "configuration reload failed", observe.Field{Key: "error", Value: err.Error()})
}

func serveStdio(ctx context.Context, srv *server.Server) error {
	transport := server.NewStdioTransport(srv, os.Stdin, os.Stdout)
	if err := transport.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveHTTP(ctx context.Context, srv *server.Server, cfgStore *config.Store, logger observe.Logger) error {
	transport := server.NewHTTPTransport(srv)

	cfg := cfgStore.Load()
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: transport,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http transport listening", observe.Field{Key: "addr", Value: httpSrv.Addr})
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGracePeriod)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
