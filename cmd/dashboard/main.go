package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ship-status-dash/pkg/aggregator"
	"ship-status-dash/pkg/catalog"
	"ship-status-dash/pkg/metrics"
	"ship-status-dash/pkg/outages"
	"ship-status-dash/pkg/status"
	"ship-status-dash/pkg/types"
)

// Options contains command-line configuration options for the dashboard server.
type Options struct {
	ConfigPath                string
	WatchConfig               bool
	Port                      string
	DatabaseDSN               string
	LogLevel                  string
	RefreshInterval           time.Duration
	LookupTimeout             time.Duration
	DefaultComponentStatus    string
	DefaultSubComponentStatus string
	FallbackPolicy            string
}

// NewOptions parses command-line flags and returns a new Options instance.
func NewOptions() *Options {
	opts := &Options{}

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to config file")
	flag.BoolVar(&opts.WatchConfig, "watch-config", true, "Reload the config file when it changes")
	flag.StringVar(&opts.Port, "port", "8080", "Port to listen on")
	flag.StringVar(&opts.DatabaseDSN, "dsn", "", "PostgreSQL DSN connection string")
	flag.StringVar(&opts.LogLevel, "log-level", "info", "Log level")
	flag.DurationVar(&opts.RefreshInterval, "refresh-interval", 30*time.Second, "How often to rebuild the status snapshot")
	flag.DurationVar(&opts.LookupTimeout, "lookup-timeout", status.DefaultLookupTimeout, "Timeout for each individual status lookup")
	flag.StringVar(&opts.DefaultComponentStatus, "default-component-status", string(types.StatusUnknown), "Status reported for a component whose lookup fails")
	flag.StringVar(&opts.DefaultSubComponentStatus, "default-sub-component-status", string(types.StatusUnknown), "Status reported for a sub-component whose lookup fails")
	flag.StringVar(&opts.FallbackPolicy, "fallback-policy", string(aggregator.FallbackDefault), "Fallback policy for failed lookups: default or previous")
	flag.Parse()

	return opts
}

// Validate checks that all required options are provided and valid.
func (o *Options) Validate() error {
	if o.ConfigPath == "" {
		return errors.New("config path is required (use --config flag)")
	}

	if _, err := os.Stat(o.ConfigPath); os.IsNotExist(err) {
		return errors.New("config file does not exist: " + o.ConfigPath)
	}

	if o.Port == "" {
		return errors.New("port cannot be empty")
	}

	if o.DatabaseDSN == "" {
		return errors.New("database DSN is required (use --dsn flag)")
	}

	if o.RefreshInterval <= 0 {
		return errors.New("refresh interval must be positive")
	}

	if _, err := logrus.ParseLevel(o.LogLevel); err != nil {
		return err
	}

	return o.AggregatorOptions().Validate()
}

// AggregatorOptions converts the command-line options into aggregation engine options.
func (o *Options) AggregatorOptions() aggregator.Options {
	return aggregator.Options{
		LookupTimeout:             o.LookupTimeout,
		DefaultComponentStatus:    types.Status(o.DefaultComponentStatus),
		DefaultSubComponentStatus: types.Status(o.DefaultSubComponentStatus),
		FallbackPolicy:            aggregator.FallbackPolicy(o.FallbackPolicy),
	}
}

func setupLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.InfoLevel)
	if parsed, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(parsed)
	}
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}

func connectDatabase(log *logrus.Logger, dsn string) *gorm.DB {
	log.Info("Connecting to PostgreSQL database")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.WithField("error", err).Fatal("Failed to connect to database")
	}
	return db
}

func main() {
	opts := NewOptions()
	log := setupLogger(opts.LogLevel)

	if err := opts.Validate(); err != nil {
		log.WithField("error", err).Fatal("Invalid command-line options")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("Loading config from %s", opts.ConfigPath)
	provider, err := catalog.NewFileProvider(opts.ConfigPath, log)
	if err != nil {
		log.WithFields(logrus.Fields{
			"config_path": opts.ConfigPath,
			"error":       err,
		}).Fatal("Failed to load config file")
	}
	if opts.WatchConfig {
		go func() {
			if err := provider.Watch(ctx); err != nil {
				log.WithField("error", err).Error("Config watcher stopped")
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		log.WithField("error", err).Fatal("Failed to register metrics")
	}

	store := outages.NewStore(connectDatabase(log, opts.DatabaseDSN))
	source := status.NewDatabaseSource(store, provider)

	engine, err := aggregator.NewEngine(source, opts.AggregatorOptions(), log, m)
	if err != nil {
		log.WithField("error", err).Fatal("Failed to create aggregation engine")
	}
	poller := aggregator.NewPoller(engine, provider, opts.RefreshInterval, log, m)
	go func() {
		if err := poller.Run(ctx); err != nil {
			log.WithField("error", err).Error("Snapshot poller stopped")
		}
	}()

	server := NewServer(NewHandlers(log, provider, source, store, poller, opts.AggregatorOptions(), m), registry, log)

	addr := ":" + opts.Port
	if err := server.Start(ctx, addr); err != nil {
		log.WithFields(logrus.Fields{
			"address": addr,
			"error":   err,
		}).Fatal("Server failed to start")
	}
}
