package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/G1D0/flowgate/internal/observe"
	"github.com/G1D0/flowgate/internal/router"
	"github.com/G1D0/flowgate/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configPath := flag.String("config", "configs/flowgate.yaml", "path to the gateway config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "flowgate:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := router.LoadConfig(configPath)
	if err != nil {
		return err
	}
	level, err := observe.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := observe.NewLogger(level)
	slog.SetDefault(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observe.NewMetrics(reg)

	tp, err := observe.NewTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	// No Fetcher: each Build makes one from the reloaded upstream_timeout.
	deps := router.Deps{
		Logger:  logger,
		Metrics: metrics,
		Tracer:  tp.Tracer(observe.TracerName),
	}

	watcher, err := router.NewWatcher(configPath,
		func(c *router.Config) (*router.Router, error) { return router.Build(c, deps) },
		router.OnChange(func(c *router.Config) {
			metrics.RouteReloads.WithLabelValues("success").Inc()
			logger.Info("routes loaded", "routes", len(c.Routes), "middleware", c.Middleware)
			if fields := router.StartupChanges(cfg, c); len(fields) > 0 {
				logger.Warn("config fields changed that only apply at startup, restart to use them", "fields", fields)
			}
		}),
		router.OnError(func(err error) {
			metrics.RouteReloads.WithLabelValues("error").Inc()
			logger.Error("route reload failed, keeping previous routes", "error", err)
		}),
	)
	if err != nil {
		return err
	}
	if _, err := watcher.Start(); err != nil {
		watcher.Close()
		return err
	}

	gateway := server.New(server.Config{
		Addr:         cfg.Listen,
		Handler:      server.NewHandler(watcher, logger),
		DrainTimeout: cfg.DrainTimeout,
		Logger:       logger,
	})
	gateway.RegisterCloser(watcher)
	gateway.RegisterCloser(closerFunc(func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return tp.Shutdown(shutdownCtx)
	}))

	if cfg.MetricsListen != "" {
		admin := http.NewServeMux()
		admin.Handle("/metrics", observe.Handler(reg))
		admin.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "ok\n")
		})
		metricsServer := server.New(server.Config{
			Addr:         cfg.MetricsListen,
			Handler:      admin,
			DrainTimeout: time.Second,
			Logger:       logger.With("server", "metrics"),
		})
		go func() {
			if err := metricsServer.Run(ctx); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	err = gateway.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
