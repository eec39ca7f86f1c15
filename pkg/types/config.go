package types

import (
	"errors"
	"fmt"
)

// ErrInvalidCatalog is returned when a catalog violates its naming invariants.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Config contains the application configuration including component definitions.
type Config struct {
	Components []Component `json:"components" yaml:"components"`
}

// GetComponent returns a copy of the named component, or nil when it is not configured.
func (c *Config) GetComponent(componentName string) *Component {
	for _, component := range c.Components {
		if component.Name == componentName {
			return &component
		}
	}
	return nil
}

// Validate checks that component names are present and unique, and that sub-component
// names are present and unique within their owning component.
func (c *Config) Validate() error {
	return ValidateComponents(c.Components)
}

// ValidateComponents applies the catalog naming invariants to a list of components.
func ValidateComponents(components []Component) error {
	seen := make(map[string]struct{}, len(components))
	for i, component := range components {
		if component.Name == "" {
			return fmt.Errorf("%w: component at index %d has no name", ErrInvalidCatalog, i)
		}
		if _, ok := seen[component.Name]; ok {
			return fmt.Errorf("%w: duplicate component %q", ErrInvalidCatalog, component.Name)
		}
		seen[component.Name] = struct{}{}

		subSeen := make(map[string]struct{}, len(component.Subcomponents))
		for j, subComponent := range component.Subcomponents {
			if subComponent.Name == "" {
				return fmt.Errorf("%w: sub-component at index %d of %q has no name", ErrInvalidCatalog, j, component.Name)
			}
			if _, ok := subSeen[subComponent.Name]; ok {
				return fmt.Errorf("%w: duplicate sub-component %q in %q", ErrInvalidCatalog, subComponent.Name, component.Name)
			}
			subSeen[subComponent.Name] = struct{}{}
		}
	}
	return nil
}

// CloneComponents returns a deep copy of components, so the result shares no slices with the input.
func CloneComponents(components []Component) []Component {
	if components == nil {
		return nil
	}
	cloned := make([]Component, len(components))
	for i, component := range components {
		cloned[i] = component.DeepCopy()
	}
	return cloned
}

// Component represents a top-level system component with sub-components and ownership information.
type Component struct {
	Name          string         `json:"name" yaml:"name"`
	Description   string         `json:"description" yaml:"description"`
	ShipTeam      string         `json:"ship_team" yaml:"ship_team"`
	SlackChannel  string         `json:"slack_channel" yaml:"slack_channel"`
	Subcomponents []SubComponent `json:"sub_components" yaml:"sub_components"`
	Owners        []Owner        `json:"owners" yaml:"owners"`
}

func (c *Component) GetSubComponent(subComponentName string) *SubComponent {
	for _, subComponent := range c.Subcomponents {
		if subComponent.Name == subComponentName {
			return &subComponent
		}
	}
	return nil
}

// DeepCopy returns a copy of the component that does not alias its sub-component or owner slices.
func (c Component) DeepCopy() Component {
	out := c
	if c.Subcomponents != nil {
		out.Subcomponents = append([]SubComponent(nil), c.Subcomponents...)
	}
	if c.Owners != nil {
		out.Owners = append([]Owner(nil), c.Owners...)
	}
	return out
}

// SubComponent represents a sub-component that can have outages tracked against it.
type SubComponent struct {
	Name                 string `json:"name" yaml:"name"`
	Description          string `json:"description" yaml:"description"`
	Managed              bool   `json:"managed" yaml:"managed"`
	RequiresConfirmation bool   `json:"requires_confirmation" yaml:"requires_confirmation"`
}

// Owner represents ownership information for a component, either via Rover group or service account.
type Owner struct {
	RoverGroup     string `json:"rover_group,omitempty" yaml:"rover_group,omitempty"`
	ServiceAccount string `json:"service_account,omitempty" yaml:"service_account,omitempty"`
}
