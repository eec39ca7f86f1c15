// Package status resolves the health of individual components and sub-components.
//
// A Source reports status from some upstream signal and may fail for any reason. The Resolver
// wraps a single Source call with a timeout and substitutes a fallback on failure, so one bad
// lookup never takes down anything beyond its own entity.
package status

import (
	"context"
	"errors"
	"fmt"

	"ship-status-dash/pkg/types"
)

var (
	// ErrUnknownTarget is returned by sources asked about an entity they know nothing about.
	ErrUnknownTarget = errors.New("unknown status target")
	// ErrUnexpectedResponse is returned when an upstream answers with something that is not a status.
	ErrUnexpectedResponse = errors.New("unexpected status response")
)

// Source reports the status and active outages of components and sub-components.
// Each call addresses exactly one entity.
type Source interface {
	GetComponentStatus(ctx context.Context, componentName string) (types.ComponentStatus, error)
	GetSubComponentStatus(ctx context.Context, componentName, subComponentName string) (types.ComponentStatus, error)
}

// Target identifies either a component or, when SubComponent is set, one of its sub-components.
type Target struct {
	Component    string
	SubComponent string
}

// ComponentTarget returns the target for a top-level component.
func ComponentTarget(componentName string) Target {
	return Target{Component: componentName}
}

// SubComponentTarget returns the target for a sub-component of a component.
func SubComponentTarget(componentName, subComponentName string) Target {
	return Target{Component: componentName, SubComponent: subComponentName}
}

// IsSubComponent reports whether the target addresses a sub-component.
func (t Target) IsSubComponent() bool {
	return t.SubComponent != ""
}

func (t Target) String() string {
	if t.IsSubComponent() {
		return fmt.Sprintf("%s/%s", t.Component, t.SubComponent)
	}
	return t.Component
}
