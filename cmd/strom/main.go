// Package main implements the entry point for the strom pipeline
// runtime. It compiles declarative flow definitions into execution
// graphs and manages their lifecycle, exposing Prometheus metrics and
// optionally publishing pipeline events to NATS.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/eyevinn-osaas/strom-sub003/catalog"
	"github.com/eyevinn-osaas/strom-sub003/clock"
	"github.com/eyevinn-osaas/strom-sub003/compiler"
	"github.com/eyevinn-osaas/strom-sub003/config"
	"github.com/eyevinn-osaas/strom-sub003/metric"
	"github.com/eyevinn-osaas/strom-sub003/natsclient"
	"github.com/eyevinn-osaas/strom-sub003/node"
	"github.com/eyevinn-osaas/strom-sub003/pipeline"
	"github.com/eyevinn-osaas/strom-sub003/simgraph"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "strom"
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
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
	validate    bool
}

func parseFlags() *cliFlags {
	f := &cliFlags{}
	flag.StringVar(&f.configPath, "config", os.Getenv("STROM_CONFIG"),
		"Path to configuration file (env: STROM_CONFIG)")
	flag.StringVar(&f.logLevel, "log-level", "",
		"Override log level: debug, info, warn, error")
	flag.StringVar(&f.logFormat, "log-format", "",
		"Override log format: text, json")
	flag.BoolVar(&f.showVersion, "version", false, "Show version and exit")
	flag.BoolVar(&f.validate, "validate", false, "Validate configuration and flows, then exit")
	flag.Parse()
	return f
}

func run() error {
	flags := parseFlags()
	if flags.showVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	slog.Info("Starting strom pipeline runtime",
		"version", Version,
		"config_path", flags.configPath)

	flows, blocks, err := loadDefinitions(cfg.FlowDir, flag.Args())
	if err != nil {
		return err
	}

	if flags.validate {
		slog.Info("Configuration and flow definitions are valid",
			"flows", len(flows), "blocks", len(blocks))
		return nil
	}

	ctx := context.Background()

	metricsRegistry := metric.NewMetricsRegistry()
	metricsServer, err := startMetricsServer(cfg.Server.Addr, metricsRegistry)
	if err != nil {
		return err
	}
	defer func() { _ = metricsServer.Stop() }()

	publisher, natsClose, err := setupEventPublisher(ctx, cfg, logger, metricsRegistry)
	if err != nil {
		return err
	}
	defer natsClose()

	cat := catalog.NewMemoryCatalog()
	for _, def := range blocks {
		if err := cat.Register(def); err != nil {
			return fmt.Errorf("register block %s: %w", def.ID, err)
		}
	}

	registry := node.NewRegistry()
	if err := registerNodeTypes(registry); err != nil {
		return fmt.Errorf("register node types: %w", err)
	}

	comp := compiler.New(cat, registry, logger, metricsRegistry)
	clocks := clock.NewRegistry(simgraph.ClockFactory)
	provider := simgraph.NewProvider(logger)

	service, err := pipeline.NewService(comp, provider, registry, clocks, publisher,
		logger, metricsRegistry, pipeline.ServiceConfig{
			Workers:     cfg.Pipeline.Workers,
			QueueSize:   cfg.Pipeline.QueueSize,
			QosInterval: cfg.Pipeline.QosInterval,
		})
	if err != nil {
		return fmt.Errorf("create pipeline service: %w", err)
	}

	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	for _, f := range flows {
		state, err := service.Start(signalCtx, f)
		if err != nil {
			slog.Error("Flow failed to start", "flow_id", f.ID, "error", err)
			continue
		}
		slog.Info("Flow started", "flow_id", f.ID, "state", state)
	}

	slog.Info("strom started", "flows", len(flows), "metrics_addr", cfg.Server.Addr)

	<-signalCtx.Done()
	slog.Info("Received shutdown signal")

	if err := service.Close(cfg.Pipeline.StopTimeout); err != nil {
		return fmt.Errorf("shutdown pipelines: %w", err)
	}
	slog.Info("strom shutdown complete")
	return nil
}

// startMetricsServer starts the Prometheus endpoint on the configured
// address and returns the running server.
func startMetricsServer(addr string, registry *metric.MetricsRegistry) (*metric.Server, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid server port %q: %w", portStr, err)
	}

	server := metric.NewServer(port, "/metrics", registry)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("Metrics server exited", "error", err)
		}
	}()
	return server, nil
}

// setupEventPublisher connects the optional NATS event publisher. The
// returned close function is a no-op when NATS is disabled.
func setupEventPublisher(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
) (pipeline.EventPublisher, func(), error) {
	if !cfg.NATS.Enabled {
		return nil, func() {}, nil
	}

	client, err := natsclient.NewClient(cfg.NATS.URL, logger,
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithReconnectWait(cfg.NATS.ReconnectWait),
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithMetrics(metricsRegistry),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS client: %w", err)
	}

	slog.Info("Connecting to NATS", "url", cfg.NATS.URL)
	if err := client.Connect(ctx); err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	closeFn := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			slog.Warn("NATS close failed", "error", err)
		}
	}
	return natsclient.NewEventPublisher(client), closeFn, nil
}
