package aggregator

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"ship-status-dash/pkg/metrics"
	"ship-status-dash/pkg/types"
)

// Snapshot is the health of a whole catalog as seen by one aggregation pass. Components and
// sub-components appear in catalog order. A Snapshot is never modified once returned, so it may
// be shared freely between readers; callers must not mutate it either.
type Snapshot struct {
	Components []ComponentSnapshot `json:"components"`
}

// ComponentSnapshot is a component's own reported status alongside those of its sub-components.
type ComponentSnapshot struct {
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	ShipTeam      string                 `json:"ship_team"`
	SlackChannel  string                 `json:"slack_channel"`
	Owners        []types.Owner          `json:"owners"`
	Status        types.Status           `json:"status"`
	ActiveOutages []types.Outage         `json:"active_outages"`
	SubComponents []SubComponentSnapshot `json:"sub_components"`
}

// SubComponentSnapshot is a sub-component with its status and active outages.
type SubComponentSnapshot struct {
	types.SubComponent
	Status        types.Status   `json:"status"`
	ActiveOutages []types.Outage `json:"active_outages"`
}

// Equal reports whether two snapshots have the same content. Nil and empty slices compare equal.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	return cmp.Equal(s.Components, other.Components, cmpopts.EquateEmpty())
}

// Component returns the named component entry, or nil.
func (s *Snapshot) Component(name string) *ComponentSnapshot {
	if s == nil {
		return nil
	}
	for i := range s.Components {
		if s.Components[i].Name == name {
			return &s.Components[i]
		}
	}
	return nil
}

// SubComponent returns the entry for a sub-component of the named component, or nil.
func (s *Snapshot) SubComponent(componentName, subComponentName string) *SubComponentSnapshot {
	component := s.Component(componentName)
	if component == nil {
		return nil
	}
	for i := range component.SubComponents {
		if component.SubComponents[i].Name == subComponentName {
			return &component.SubComponents[i]
		}
	}
	return nil
}

// StatusCounts tallies entities by kind and status.
func (s *Snapshot) StatusCounts() map[string]map[string]int {
	counts := map[string]map[string]int{
		metrics.KindComponent:    {},
		metrics.KindSubComponent: {},
	}
	if s == nil {
		return counts
	}
	for _, component := range s.Components {
		counts[metrics.KindComponent][string(component.Status)]++
		for _, subComponent := range component.SubComponents {
			counts[metrics.KindSubComponent][string(subComponent.Status)]++
		}
	}
	return counts
}

func newComponentSnapshot(component types.Component) ComponentSnapshot {
	entry := ComponentSnapshot{
		Name:          component.Name,
		Description:   component.Description,
		ShipTeam:      component.ShipTeam,
		SlackChannel:  component.SlackChannel,
		Owners:        component.Owners,
		SubComponents: make([]SubComponentSnapshot, len(component.Subcomponents)),
	}
	for i, subComponent := range component.Subcomponents {
		entry.SubComponents[i].SubComponent = subComponent
	}
	return entry
}

// Change is a status transition of one entity between two snapshots. SubComponent is empty for
// component-level changes, and From is empty for entities absent from the earlier snapshot.
type Change struct {
	Component    string
	SubComponent string
	From         types.Status
	To           types.Status
}

// Changes lists the entities of s whose status differs from previous, in catalog order.
func (s *Snapshot) Changes(previous *Snapshot) []Change {
	if s == nil {
		return nil
	}
	var changes []Change
	for _, component := range s.Components {
		var from types.Status
		if old := previous.Component(component.Name); old != nil {
			from = old.Status
		}
		if from != component.Status {
			changes = append(changes, Change{Component: component.Name, From: from, To: component.Status})
		}
		for _, subComponent := range component.SubComponents {
			var subFrom types.Status
			if old := previous.SubComponent(component.Name, subComponent.Name); old != nil {
				subFrom = old.Status
			}
			if subFrom != subComponent.Status {
				changes = append(changes, Change{Component: component.Name, SubComponent: subComponent.Name, From: subFrom, To: subComponent.Status})
			}
		}
	}
	return changes
}
