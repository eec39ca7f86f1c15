// Package catalog supplies the list of monitored components and their sub-components.
//
// Providers always hand out independent copies, so a caller may hold on to a catalog for
// the length of an aggregation pass without it changing underneath.
package catalog

import (
	"context"

	"ship-status-dash/pkg/types"
)

// Provider lists the currently configured components. Implementations must be idempotent
// and must not share slices between calls.
type Provider interface {
	ListComponents(ctx context.Context) ([]types.Component, error)
}

// Static is a Provider over a fixed list of components.
type Static []types.Component

// ListComponents returns a copy of the static catalog.
func (s Static) ListComponents(ctx context.Context) ([]types.Component, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return types.CloneComponents(s), nil
}

// ProviderFunc adapts a function into a Provider.
type ProviderFunc func(ctx context.Context) ([]types.Component, error)

func (f ProviderFunc) ListComponents(ctx context.Context) ([]types.Component, error) {
	return f(ctx)
}
