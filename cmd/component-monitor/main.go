package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"ship-status-dash/pkg/aggregator"
	"ship-status-dash/pkg/catalog"
	"ship-status-dash/pkg/metrics"
	"ship-status-dash/pkg/status"
)

func buildProvider(config *MonitorConfig, log *logrus.Logger) (catalog.Provider, error) {
	if config.CatalogPath != "" {
		return catalog.NewFileProvider(config.CatalogPath, log)
	}
	return catalog.NewHTTPProvider(config.DashboardURL, nil), nil
}

func buildSource(ctx context.Context, config *MonitorConfig, log *logrus.Logger) (status.Source, error) {
	switch config.Source {
	case SourcePrometheus:
		token, err := config.Prometheus.bearerToken()
		if err != nil {
			return nil, err
		}
		client, err := buildPrometheusClient(ctx, &config.Prometheus, token, log)
		if err != nil {
			return nil, err
		}
		return status.NewPrometheusSource(client, config.Prometheus.Probes, log)
	default:
		return status.NewHTTPSource(config.DashboardURL, status.HTTPSourceOptions{
			MaxRetries: config.HTTPRetries,
		}), nil
	}
}

func buildPrometheusClient(ctx context.Context, config *PrometheusConfig, token string, log *logrus.Logger) (v1.API, error) {
	if config.URL != "" {
		return status.NewPrometheusClient(config.URL, token)
	}

	kubeconfig := config.kubeconfigPath()
	client, address, err := status.NewPrometheusClientFromKubeconfig(ctx, kubeconfig, config.RouteNamespace, config.RouteName, token)
	if err != nil {
		return nil, fmt.Errorf("failed to discover prometheus: %w", err)
	}
	log.WithFields(logrus.Fields{
		"kubeconfig": kubeconfig,
		"route":      config.RouteNamespace + "/" + config.RouteName,
		"address":    address,
	}).Info("Discovered Prometheus route")
	return client, nil
}

// logChanges returns a subscriber that logs every entity whose status changed since the previous snapshot.
func logChanges(log *logrus.Logger) aggregator.Subscriber {
	var previous *aggregator.Snapshot
	return func(snapshot *aggregator.Snapshot, changed bool) {
		defer func() { previous = snapshot }()
		if !changed {
			log.Debug("Snapshot unchanged")
			return
		}
		for _, change := range snapshot.Changes(previous) {
			fields := logrus.Fields{
				"component": change.Component,
				"from":      change.From,
				"to":        change.To,
			}
			if change.SubComponent != "" {
				fields["sub_component"] = change.SubComponent
			}
			log.WithFields(fields).Info("Status changed")
		}
	}
}

func serveMetrics(ctx context.Context, log *logrus.Logger, addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Infof("Serving metrics on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithField("error", err).Error("Metrics server failed")
	}
}

func main() {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	configPath := flag.String("config", "", "Path to the component-monitor config file")
	metricsAddr := flag.String("metrics-addr", ":9090", "Address to serve Prometheus metrics on; empty disables it")
	flag.Parse()

	if *configPath == "" {
		log.Fatal("config path is required (use --config flag)")
	}
	config, err := loadMonitorConfig(*configPath)
	if err != nil {
		log.WithFields(logrus.Fields{
			"config_path": *configPath,
			"error":       err,
		}).Fatal("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m, err := metrics.New(registry)
	if err != nil {
		log.WithField("error", err).Fatal("Failed to register metrics")
	}

	provider, err := buildProvider(config, log)
	if err != nil {
		log.WithField("error", err).Fatal("Failed to create catalog provider")
	}
	if fileProvider, ok := provider.(*catalog.FileProvider); ok {
		go func() {
			if err := fileProvider.Watch(ctx); err != nil {
				log.WithField("error", err).Error("Catalog watcher stopped")
			}
		}()
	}
	source, err := buildSource(ctx, config, log)
	if err != nil {
		log.WithField("error", err).Fatal("Failed to create status source")
	}
	engine, err := aggregator.NewEngine(source, config.Aggregation, log, m)
	if err != nil {
		log.WithField("error", err).Fatal("Failed to create aggregation engine")
	}

	poller := aggregator.NewPoller(engine, provider, config.Interval, log, m)
	poller.Subscribe(logChanges(log))

	if *metricsAddr != "" {
		go serveMetrics(ctx, log, *metricsAddr, registry)
	}

	log.WithFields(logrus.Fields{
		"source":   config.Source,
		"interval": config.Interval,
	}).Info("Starting component monitor")
	if err := poller.Run(ctx); err != nil {
		log.WithField("error", err).Fatal("Component monitor failed")
	}
	log.Info("Component monitor stopped")
}
