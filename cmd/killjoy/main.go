// Package main implements the killjoy daemon: it watches systemd units over
// D-Bus and calls notifier services when a watched unit enters a configured
// state.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kennep/killjoy/config"
	"github.com/kennep/killjoy/dbusclient"
	"github.com/kennep/killjoy/dispatch"
	"github.com/kennep/killjoy/health"
	"github.com/kennep/killjoy/metric"
	"github.com/kennep/killjoy/supervisor"
	"github.com/kennep/killjoy/unit"
	"github.com/kennep/killjoy/watcher"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "killjoy"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Daemon failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	if cliCfg.PrintConfigPath {
		return printConfigPath()
	}

	settings, err := loadSettings(cliCfg.ConfigPath)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid",
			"rules", len(settings.Rules),
			"notifiers", len(settings.Notifiers),
			"watched_buses", settings.BusScopes(),
			"notifier_buses", settings.NotifierScopes())
		return nil
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	return runDaemon(signalCtx, cliCfg, logger, settings)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting killjoy (systemd unit watcher)",
		"version", Version,
		"build_time", BuildTime)

	return cliCfg, logger, false, nil
}

// printConfigPath resolves the settings file through the XDG search order
// and prints it.
func printConfigPath() error {
	path, err := config.SearchPath()
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// loadSettings loads the settings file from the explicit path, or through
// the XDG search order when no path was given.
func loadSettings(path string) (*config.Settings, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDefault()
}

// runDaemon wires the components together and blocks until shutdown.
func runDaemon(ctx context.Context, cliCfg *CLIConfig, logger *slog.Logger, settings *config.Settings) error {
	metricsRegistry := metric.NewMetricsRegistry()
	core := metricsRegistry.CoreMetrics()
	monitor := health.NewMonitor()

	sender, err := dispatch.NewBusSender(dispatch.WithSenderLogger(logger))
	if err != nil {
		return fmt.Errorf("create notification sender: %w", err)
	}
	defer func() { _ = sender.Close() }()

	engine, err := dispatch.NewEngine(settings, sender,
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(core),
		dispatch.WithHealthMonitor(monitor))
	if err != nil {
		return fmt.Errorf("create dispatch engine: %w", err)
	}

	sup, err := buildSupervisor(settings, engine, logger, core, monitor)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sup.Run(gctx)
	})

	if cliCfg.HealthPort > 0 {
		startHealthServer(g, gctx, cliCfg.HealthPort, monitor)
	}

	if cliCfg.MetricsPort > 0 {
		startMetricsServer(g, gctx, cliCfg.MetricsPort, metricsRegistry)
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("daemon stopped: %w", err)
	}

	slog.Info("killjoy shutdown complete")
	return nil
}

// buildSupervisor creates one watcher session per bus scope the rules
// reference.
func buildSupervisor(settings *config.Settings, engine *dispatch.Engine,
	logger *slog.Logger, core *metric.Metrics, monitor *health.Monitor) (*supervisor.Supervisor, error) {
	var runners []supervisor.Runner
	for _, scope := range settings.BusScopes() {
		factory := busFactory(scope, logger)
		session, err := watcher.NewSession(scope, settings.RulesForScope(scope), factory, engine,
			watcher.WithLogger(logger),
			watcher.WithMetrics(core),
			watcher.WithHealthMonitor(monitor))
		if err != nil {
			return nil, fmt.Errorf("create %s bus session: %w", scope, err)
		}
		runners = append(runners, session)
	}

	sup, err := supervisor.New(runners,
		supervisor.WithLogger(logger),
		supervisor.WithHealthMonitor(monitor))
	if err != nil {
		return nil, fmt.Errorf("create supervisor: %w", err)
	}
	return sup, nil
}

// busFactory builds a fresh bus client per connection attempt.
func busFactory(scope unit.BusScope, logger *slog.Logger) watcher.BusFactory {
	return func() (watcher.Bus, error) {
		return dbusclient.New(scope, dbusclient.WithLogger(logger))
	}
}

// startHealthServer serves the aggregate health endpoint until the group
// context is canceled.
func startHealthServer(g *errgroup.Group, ctx context.Context, port int, monitor *health.Monitor) {
	mux := http.NewServeMux()
	mux.Handle("/healthz", health.Handler(monitor, appName))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	g.Go(func() error {
		slog.Info("health endpoint listening", "port", port, "path", "/healthz")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

// startMetricsServer serves Prometheus metrics until the group context is
// canceled.
func startMetricsServer(g *errgroup.Group, ctx context.Context, port int, registry *metric.MetricsRegistry) {
	server := metric.NewServer(port, "/metrics", registry)

	g.Go(func() error {
		slog.Info("metrics endpoint listening", "port", port, "path", "/metrics")
		return server.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		return server.Stop()
	})
}
