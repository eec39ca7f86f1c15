package status

import (
	"context"
	"fmt"
	"time"

	"ship-status-dash/pkg/catalog"
	"ship-status-dash/pkg/types"
)

// ActiveOutageLister returns the outages that are active at a point in time for a set of sub-components.
type ActiveOutageLister interface {
	ListActive(ctx context.Context, subComponentNames []string, now time.Time) ([]types.Outage, error)
}

// DatabaseSource derives statuses from recorded outages. A sub-component takes the status of its most
// severe active outage; a component rolls up the statuses of its sub-components.
type DatabaseSource struct {
	outages ActiveOutageLister
	catalog catalog.Provider
	now     func() time.Time
}

// NewDatabaseSource creates a source over the given outage store and catalog.
func NewDatabaseSource(outages ActiveOutageLister, provider catalog.Provider) *DatabaseSource {
	return &DatabaseSource{
		outages: outages,
		catalog: provider,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *DatabaseSource) GetComponentStatus(ctx context.Context, componentName string) (types.ComponentStatus, error) {
	component, err := s.component(ctx, componentName)
	if err != nil {
		return types.ComponentStatus{}, err
	}

	names := make([]string, 0, len(component.Subcomponents))
	for _, subComponent := range component.Subcomponents {
		names = append(names, subComponent.Name)
	}

	outages, err := s.outages.ListActive(ctx, names, s.now())
	if err != nil {
		return types.ComponentStatus{}, fmt.Errorf("failed to list active outages for %s: %w", componentName, err)
	}

	bySubComponent := make(map[string][]types.Outage, len(names))
	for _, outage := range outages {
		bySubComponent[outage.ComponentName] = append(bySubComponent[outage.ComponentName], outage)
	}
	statuses := make([]types.Status, 0, len(names))
	for _, name := range names {
		statuses = append(statuses, types.DetermineStatusFromSeverity(bySubComponent[name]))
	}

	return types.ComponentStatus{
		ComponentName: componentName,
		Status:        types.RollupSubComponentStatuses(statuses),
		ActiveOutages: outages,
	}, nil
}

func (s *DatabaseSource) GetSubComponentStatus(ctx context.Context, componentName, subComponentName string) (types.ComponentStatus, error) {
	component, err := s.component(ctx, componentName)
	if err != nil {
		return types.ComponentStatus{}, err
	}
	if component.GetSubComponent(subComponentName) == nil {
		return types.ComponentStatus{}, fmt.Errorf("%w: sub-component %s/%s", ErrUnknownTarget, componentName, subComponentName)
	}

	outages, err := s.outages.ListActive(ctx, []string{subComponentName}, s.now())
	if err != nil {
		return types.ComponentStatus{}, fmt.Errorf("failed to list active outages for %s/%s: %w", componentName, subComponentName, err)
	}

	return types.ComponentStatus{
		ComponentName: subComponentName,
		Status:        types.DetermineStatusFromSeverity(outages),
		ActiveOutages: outages,
	}, nil
}

func (s *DatabaseSource) component(ctx context.Context, componentName string) (*types.Component, error) {
	components, err := s.catalog.ListComponents(ctx)
	if err != nil {
		return nil, err
	}
	config := types.Config{Components: components}
	component := config.GetComponent(componentName)
	if component == nil {
		return nil, fmt.Errorf("%w: component %s", ErrUnknownTarget, componentName)
	}
	return component, nil
}
