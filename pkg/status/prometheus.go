package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"github.com/sirupsen/logrus"
	"k8s.io/client-go/transport"

	"ship-status-dash/pkg/types"
)

// ErrNoProbes is returned for entities that have no Prometheus probes configured.
var ErrNoProbes = errors.New("no probes configured")

// Probe is a PromQL query that fires when it returns any sample (or a non-zero scalar).
// A firing probe puts its sub-component into the status matching Severity.
type Probe struct {
	Component    string         `json:"component" yaml:"component"`
	SubComponent string         `json:"sub_component" yaml:"sub_component"`
	Query        string         `json:"query" yaml:"query"`
	Severity     types.Severity `json:"severity" yaml:"severity"`
}

// Validate checks that the probe is complete.
func (p Probe) Validate() error {
	if p.Component == "" || p.SubComponent == "" {
		return errors.New("probe must name a component and sub-component")
	}
	if p.Query == "" {
		return fmt.Errorf("probe for %s/%s has no query", p.Component, p.SubComponent)
	}
	if !types.IsValidSeverity(string(p.Severity)) {
		return fmt.Errorf("probe for %s/%s has invalid severity %q", p.Component, p.SubComponent, p.Severity)
	}
	return nil
}

// Querier is the part of the Prometheus HTTP API used by PrometheusSource.
type Querier interface {
	Query(ctx context.Context, query string, ts time.Time, opts ...v1.Option) (model.Value, v1.Warnings, error)
}

// PrometheusSource derives statuses by evaluating probes against Prometheus.
type PrometheusSource struct {
	api    Querier
	probes map[string]map[string][]Probe
	order  map[string][]string
	logger *logrus.Logger
	now    func() time.Time
}

// NewPrometheusClient connects to the Prometheus HTTP API at address, authenticating with
// bearerToken when it is non-empty.
func NewPrometheusClient(address, bearerToken string) (v1.API, error) {
	roundTripper := api.DefaultRoundTripper
	if bearerToken != "" {
		roundTripper = transport.NewBearerAuthRoundTripper(bearerToken, roundTripper)
	}
	client, err := api.NewClient(api.Config{
		Address:      address,
		RoundTripper: roundTripper,
	})
	if err != nil {
		return nil, err
	}
	return v1.NewAPI(client), nil
}

// NewPrometheusSource groups probes by component and sub-component.
func NewPrometheusSource(querier Querier, probes []Probe, logger *logrus.Logger) (*PrometheusSource, error) {
	s := &PrometheusSource{
		api:    querier,
		probes: make(map[string]map[string][]Probe),
		order:  make(map[string][]string),
		logger: logger,
		now:    time.Now,
	}
	for _, probe := range probes {
		if err := probe.Validate(); err != nil {
			return nil, err
		}
		bySub, ok := s.probes[probe.Component]
		if !ok {
			bySub = make(map[string][]Probe)
			s.probes[probe.Component] = bySub
		}
		if _, ok := bySub[probe.SubComponent]; !ok {
			s.order[probe.Component] = append(s.order[probe.Component], probe.SubComponent)
		}
		bySub[probe.SubComponent] = append(bySub[probe.SubComponent], probe)
	}
	return s, nil
}

func (s *PrometheusSource) GetComponentStatus(ctx context.Context, componentName string) (types.ComponentStatus, error) {
	subComponents := s.order[componentName]
	if len(subComponents) == 0 {
		return types.ComponentStatus{}, fmt.Errorf("%w: component %s", ErrNoProbes, componentName)
	}

	statuses := make([]types.Status, 0, len(subComponents))
	for _, subComponent := range subComponents {
		status, err := s.evaluate(ctx, s.probes[componentName][subComponent])
		if err != nil {
			return types.ComponentStatus{}, err
		}
		statuses = append(statuses, status)
	}

	return types.ComponentStatus{
		ComponentName: componentName,
		Status:        types.RollupSubComponentStatuses(statuses),
		ActiveOutages: []types.Outage{},
	}, nil
}

func (s *PrometheusSource) GetSubComponentStatus(ctx context.Context, componentName, subComponentName string) (types.ComponentStatus, error) {
	probes := s.probes[componentName][subComponentName]
	if len(probes) == 0 {
		return types.ComponentStatus{}, fmt.Errorf("%w: sub-component %s/%s", ErrNoProbes, componentName, subComponentName)
	}

	status, err := s.evaluate(ctx, probes)
	if err != nil {
		return types.ComponentStatus{}, err
	}
	return types.ComponentStatus{
		ComponentName: subComponentName,
		Status:        status,
		ActiveOutages: []types.Outage{},
	}, nil
}

// evaluate runs the probes and returns the status of the most severe one that fires.
func (s *PrometheusSource) evaluate(ctx context.Context, probes []Probe) (types.Status, error) {
	var firing []types.Outage
	for _, probe := range probes {
		result, warnings, err := s.api.Query(ctx, probe.Query, s.now())
		if err != nil {
			return "", fmt.Errorf("query %q failed: %w", probe.Query, err)
		}
		if len(warnings) > 0 {
			s.logger.WithFields(logrus.Fields{
				"component":     probe.Component,
				"sub_component": probe.SubComponent,
				"query":         probe.Query,
			}).Warnf("Query warnings: %v", warnings)
		}

		fires, err := isFiring(result)
		if err != nil {
			return "", fmt.Errorf("query %q: %w", probe.Query, err)
		}
		if fires {
			firing = append(firing, types.Outage{ComponentName: probe.SubComponent, Severity: probe.Severity})
		}
	}
	return types.DetermineStatusFromSeverity(firing), nil
}

func isFiring(result model.Value) (bool, error) {
	switch v := result.(type) {
	case model.Vector:
		return len(v) > 0, nil
	case model.Matrix:
		return len(v) > 0, nil
	case *model.Scalar:
		return float64(v.Value) != 0, nil
	default:
		return false, fmt.Errorf("%w: result type %T", ErrUnexpectedResponse, result)
	}
}
