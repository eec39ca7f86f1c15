package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ship-status-dash/pkg/aggregator"
	"ship-status-dash/pkg/status"
)

// Status sources the monitor can aggregate from.
const (
	SourceDashboard  = "dashboard"
	SourcePrometheus = "prometheus"
)

// MonitorConfig is the component-monitor configuration file. The catalog is read from
// CatalogPath when set, otherwise from the dashboard at DashboardURL, which also serves the
// statuses when Source is "dashboard".
type MonitorConfig struct {
	DashboardURL string             `yaml:"dashboard_url"`
	CatalogPath  string             `yaml:"catalog_path"`
	Source       string             `yaml:"source"`
	Interval     time.Duration      `yaml:"interval"`
	HTTPRetries  uint64             `yaml:"http_retries"`
	Prometheus   PrometheusConfig   `yaml:"prometheus"`
	Aggregation  aggregator.Options `yaml:"aggregation"`
}

// PrometheusConfig configures the Prometheus status source. When URL is empty, Prometheus is
// discovered through the OpenShift route RouteNamespace/RouteName using the kubeconfig at
// Kubeconfig ($KUBECONFIG by default), whose token is used unless BearerTokenFile is set.
type PrometheusConfig struct {
	URL             string         `yaml:"url"`
	BearerTokenFile string         `yaml:"bearer_token_file"`
	Kubeconfig      string         `yaml:"kubeconfig"`
	RouteNamespace  string         `yaml:"route_namespace"`
	RouteName       string         `yaml:"route_name"`
	Probes          []status.Probe `yaml:"probes"`
}

// loadMonitorConfig reads the file at path and applies defaults for anything left unset.
func loadMonitorConfig(path string) (*MonitorConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read monitor config: %w", err)
	}

	config := &MonitorConfig{
		Source:      SourceDashboard,
		Interval:    30 * time.Second,
		Aggregation: aggregator.DefaultOptions(),
		Prometheus: PrometheusConfig{
			RouteNamespace: status.DefaultPrometheusRouteNamespace,
			RouteName:      status.DefaultPrometheusRouteName,
		},
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse monitor config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration for consistency.
func (c *MonitorConfig) Validate() error {
	if c.DashboardURL == "" && c.CatalogPath == "" {
		return errors.New("one of dashboard_url or catalog_path is required")
	}
	if c.Interval <= 0 {
		return errors.New("interval must be positive")
	}

	switch c.Source {
	case SourceDashboard:
		if c.DashboardURL == "" {
			return errors.New("dashboard_url is required for the dashboard source")
		}
	case SourcePrometheus:
		if c.Prometheus.URL == "" && (c.Prometheus.RouteNamespace == "" || c.Prometheus.RouteName == "") {
			return errors.New("prometheus.url or a prometheus route is required for the prometheus source")
		}
		if len(c.Prometheus.Probes) == 0 {
			return errors.New("at least one prometheus probe is required")
		}
		for _, probe := range c.Prometheus.Probes {
			if err := probe.Validate(); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}

	return c.Aggregation.Validate()
}

func (c *PrometheusConfig) kubeconfigPath() string {
	if c.Kubeconfig != "" {
		return c.Kubeconfig
	}
	return status.KubeconfigPath()
}

func (c *PrometheusConfig) bearerToken() (string, error) {
	if c.BearerTokenFile == "" {
		return "", nil
	}
	token, err := os.ReadFile(c.BearerTokenFile)
	if err != nil {
		return "", fmt.Errorf("failed to read bearer token: %w", err)
	}
	return strings.TrimSpace(string(token)), nil
}
