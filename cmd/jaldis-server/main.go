// Command jaldis-server is the process entry point: it loads
// configuration, wires up logging and metrics, and runs the
// single-threaded event loop forever.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/jalsol/jaldis/internal/config"
	"github.com/jalsol/jaldis/internal/server"
	"github.com/jalsol/jaldis/internal/telemetry/logger"
	"github.com/jalsol/jaldis/internal/telemetry/metric"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "jaldis-server",
		Usage:   "in-memory RESP-compatible key-value server",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "address", EnvVars: []string{"JALDIS_ADDRESS"}, Usage: "bind address"},
			&cli.IntFlag{Name: "port", EnvVars: []string{"JALDIS_PORT"}, Usage: "bind port"},
			&cli.IntFlag{Name: "backlog", EnvVars: []string{"JALDIS_BACKLOG"}, Usage: "listen backlog"},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{"JALDIS_LOG_LEVEL"}, Usage: "debug, info, warn, error"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a YAML config file"},
			&cli.StringFlag{Name: "metrics-address", EnvVars: []string{"JALDIS_METRICS_ADDRESS"}, Value: "", Usage: "address to serve /metrics on (empty disables it)"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "jaldis-server: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	loader, err := config.NewLoader()
	if err != nil {
		return err
	}
	if err := loader.LoadFile(c.String("config")); err != nil {
		return err
	}
	if err := loader.LoadEnv(); err != nil {
		return err
	}

	overrides := map[string]any{}
	if c.IsSet("address") {
		overrides["address"] = c.String("address")
	}
	if c.IsSet("port") {
		overrides["port"] = c.Int("port")
	}
	if c.IsSet("backlog") {
		overrides["backlog"] = c.Int("backlog")
	}
	if c.IsSet("log-level") {
		overrides["log_level"] = c.String("log-level")
	}
	if err := loader.LoadFlags(overrides); err != nil {
		return err
	}

	cfg, err := loader.Build()
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: "json"})
	metrics := metric.NewRegistry()

	if addr := c.String("metrics-address"); addr != "" {
		go serveMetrics(addr, metrics, log)
	}

	srv := server.New(cfg, log, metrics)
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("jaldis-server: %w", err)
	}
	defer srv.Close()

	log.Info("jaldis-server starting", "version", version, "address", cfg.Address, "port", cfg.Port)
	return srv.Run()
}

func serveMetrics(addr string, metrics *metric.Registry, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Gatherer(), promhttp.HandlerOpts{}))
	log.Info("metrics endpoint listening", "address", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics endpoint failed", "error", err)
	}
}
