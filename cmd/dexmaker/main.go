// Package main is the entry point for the DEX market-making agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/0xvey/dexmaker/business/agent"
	agentDI "github.com/0xvey/dexmaker/business/agent/di"
	"github.com/0xvey/dexmaker/business/feed"
	feedDI "github.com/0xvey/dexmaker/business/feed/di"
	"github.com/0xvey/dexmaker/business/selector"
	"github.com/0xvey/dexmaker/business/trading"
	"github.com/0xvey/dexmaker/internal/apm"
	"github.com/0xvey/dexmaker/internal/config"
	"github.com/0xvey/dexmaker/internal/health"
	"github.com/0xvey/dexmaker/internal/logger"
	"github.com/0xvey/dexmaker/internal/metrics"
	"github.com/0xvey/dexmaker/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Parse flags
	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dexmaker %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	// Run application
	if err := run(ctx, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logLevel := logger.LevelInfo
	switch cfg.App.LogLevel {
	case "debug":
		logLevel = logger.LevelDebug
	case "warn":
		logLevel = logger.LevelWarn
	case "error":
		logLevel = logger.LevelError
	}

	log := logger.New(os.Stderr, logLevel, cfg.App.Name, nil)
	log.Info(ctx, "starting DEX market-making agent",
		"version", version,
		"environment", cfg.App.Environment,
	)

	// Initialize observability if enabled
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		// Set service name env var for OTEL
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		// OTLP when an endpoint is configured, Zipkin for local dev
		tracing := apm.ZipkinProvider
		if cfg.Telemetry.OTLPEndpoint != "" {
			tracing = apm.OTLPProvider
		}
		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(tracing, log))
		log.Info(ctx, "tracing initialized", "provider", string(tracing), "endpoint", cfg.Telemetry.OTLPEndpoint)

		// Initialize metrics with Prometheus
		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		)

		// Start Prometheus metrics server in background
		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(port)))
		log.Info(ctx, "prometheus metrics server started", "port", port)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	// Start health check server on port 8081
	healthServer := health.NewServer(8081, version)
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", 8081)
	}
	defer healthServer.Stop(ctx)

	// Create monolith (application container)
	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Define modules in dependency order
	modules := []monolith.Module{
		&feed.Module{},     // Must be first - provides live prices
		&trading.Module{},  // Depends on the chain client from the monolith
		&selector.Module{}, // Independent, ranks the pair universe
		&agent.Module{},    // Depends on feed, trading, and selector
	}

	// Register all module services
	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}

	// Start all modules; the agent module launches the trading loop
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	// Wire health checks now that services exist
	feedService := feedDI.GetFeedService(mono.Services())
	healthServer.RegisterCheck("price_feed", func(ctx context.Context) (bool, string) {
		if !feedService.Healthy() {
			return false, "feed disconnected"
		}
		return true, "connected"
	})
	healthServer.RegisterCheck("chain_rpc", func(ctx context.Context) (bool, string) {
		if _, err := mono.EthClient().ChainID(ctx); err != nil {
			return false, err.Error()
		}
		return true, "reachable"
	})

	log.Info(ctx, "all modules started, market making in progress")

	// Wait for shutdown
	<-ctx.Done()

	log.Info(ctx, "shutting down")

	// Stop the agent gracefully
	runner := agentDI.GetRunner(mono.Services())
	if err := runner.Stop(); err != nil {
		log.Error(ctx, "error stopping agent", "error", err)
	}

	return nil
}
