// Package aggregator builds a consistent health view of a whole catalog from independent,
// failure-prone status lookups.
//
// Each pass issues one lookup per component and one per sub-component, all concurrently, and
// joins on their completion. A failed lookup only affects its own entity, which receives the
// configured fallback status; only a catalog failure or cancellation fails the pass.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ship-status-dash/pkg/catalog"
	"ship-status-dash/pkg/metrics"
	"ship-status-dash/pkg/status"
	"ship-status-dash/pkg/types"
)

// ErrCatalog marks a pass that failed because the catalog could not be obtained or was invalid.
var ErrCatalog = errors.New("catalog unavailable")

// FallbackPolicy decides what status an entity gets when its lookup fails.
type FallbackPolicy string

const (
	// FallbackDefault always substitutes the configured default status.
	FallbackDefault FallbackPolicy = "default"
	// FallbackPrevious reuses the entity's status from the last committed snapshot, falling back
	// to the configured default when the entity was not in it.
	FallbackPrevious FallbackPolicy = "previous"
)

// Options configures an Engine. The default statuses are substituted when a component or
// sub-component lookup fails; MaxConcurrency caps in-flight lookups, with zero meaning every
// lookup of a pass runs at once.
type Options struct {
	LookupTimeout             time.Duration  `yaml:"lookup_timeout"`
	DefaultComponentStatus    types.Status   `yaml:"default_component_status"`
	DefaultSubComponentStatus types.Status   `yaml:"default_sub_component_status"`
	FallbackPolicy            FallbackPolicy `yaml:"fallback_policy"`
	MaxConcurrency            int            `yaml:"max_concurrency"`
}

// DefaultOptions returns Unknown for both entity kinds and the default fallback policy.
func DefaultOptions() Options {
	return Options{
		LookupTimeout:             status.DefaultLookupTimeout,
		DefaultComponentStatus:    types.StatusUnknown,
		DefaultSubComponentStatus: types.StatusUnknown,
		FallbackPolicy:            FallbackDefault,
	}
}

// Validate checks the options for consistency.
func (o Options) Validate() error {
	if o.LookupTimeout <= 0 {
		return errors.New("lookup timeout must be positive")
	}
	if !o.DefaultComponentStatus.IsValid() {
		return fmt.Errorf("invalid default component status %q", o.DefaultComponentStatus)
	}
	if !o.DefaultSubComponentStatus.IsValid() {
		return fmt.Errorf("invalid default sub-component status %q", o.DefaultSubComponentStatus)
	}
	switch o.FallbackPolicy {
	case FallbackDefault, FallbackPrevious:
	default:
		return fmt.Errorf("invalid fallback policy %q", o.FallbackPolicy)
	}
	if o.MaxConcurrency < 0 {
		return errors.New("max concurrency cannot be negative")
	}
	return nil
}

// Engine runs aggregation passes. It is safe for concurrent use.
type Engine struct {
	resolver *status.Resolver
	opts     Options
	logger   *logrus.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	previous *Snapshot
}

// NewEngine creates an Engine resolving statuses from source. m may be nil.
func NewEngine(source status.Source, opts Options, logger *logrus.Logger, m *metrics.Metrics) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		resolver: status.NewResolver(source, opts.LookupTimeout, logger, m),
		opts:     opts,
		logger:   logger,
		metrics:  m,
	}, nil
}

// Refresh reads the catalog from provider and aggregates it. Catalog failures fail the pass.
func (e *Engine) Refresh(ctx context.Context, provider catalog.Provider) (*Snapshot, error) {
	components, err := provider.ListComponents(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			e.metrics.ObservePass(metrics.ResultCancelled, 0)
			return nil, ctxErr
		}
		e.metrics.ObservePass(metrics.ResultError, 0)
		return nil, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	return e.Aggregate(ctx, components)
}

// Aggregate resolves every component and sub-component in components concurrently and returns
// the assembled snapshot. The catalog is copied first, so later changes to components do not
// affect the pass. If ctx is cancelled before every lookup has finished, no snapshot is returned.
func (e *Engine) Aggregate(ctx context.Context, components []types.Component) (*Snapshot, error) {
	start := time.Now()
	if err := types.ValidateComponents(components); err != nil {
		e.metrics.ObservePass(metrics.ResultError, time.Since(start))
		return nil, fmt.Errorf("%w: %w", ErrCatalog, err)
	}
	components = types.CloneComponents(components)
	fallbacks := e.fallbacks()

	snapshot := &Snapshot{Components: make([]ComponentSnapshot, len(components))}
	var fallbackCount atomic.Int64

	var g errgroup.Group
	if e.opts.MaxConcurrency > 0 {
		g.SetLimit(e.opts.MaxConcurrency)
	}
	for i, component := range components {
		snapshot.Components[i] = newComponentSnapshot(component)
		entry := &snapshot.Components[i]

		// every goroutine owns exactly one slot of the snapshot, so no locking is needed until the join
		g.Go(func() error {
			result := e.resolver.Resolve(ctx, status.ComponentTarget(component.Name), fallbacks.component(component.Name))
			entry.Status = result.Status
			entry.ActiveOutages = result.ActiveOutages
			if result.Fallback {
				fallbackCount.Add(1)
			}
			return nil
		})
		for j, subComponent := range component.Subcomponents {
			slot := &entry.SubComponents[j]
			g.Go(func() error {
				result := e.resolver.Resolve(ctx, status.SubComponentTarget(component.Name, subComponent.Name), fallbacks.subComponent(component.Name, subComponent.Name))
				slot.Status = result.Status
				slot.ActiveOutages = result.ActiveOutages
				if result.Fallback {
					fallbackCount.Add(1)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		e.metrics.ObservePass(metrics.ResultCancelled, time.Since(start))
		e.logger.WithField("error", err).Debug("Aggregation pass cancelled, discarding results")
		return nil, err
	}

	duration := time.Since(start)
	e.metrics.ObservePass(metrics.ResultSuccess, duration)
	e.logger.WithFields(logrus.Fields{
		"components": len(components),
		"fallbacks":  fallbackCount.Load(),
		"duration":   duration,
	}).Debug("Aggregation pass completed")
	return snapshot, nil
}

// Commit records snapshot as the last published one. Under FallbackPrevious, later passes reuse its
// statuses for failed lookups; snapshots that were never committed are not consulted.
func (e *Engine) Commit(snapshot *Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.previous = snapshot
}

func (e *Engine) fallbacks() fallbackTable {
	table := fallbackTable{
		componentDefault:    e.opts.DefaultComponentStatus,
		subComponentDefault: e.opts.DefaultSubComponentStatus,
	}
	if e.opts.FallbackPolicy == FallbackPrevious {
		e.mu.Lock()
		table.previous = e.previous
		e.mu.Unlock()
	}
	return table
}

type fallbackTable struct {
	componentDefault    types.Status
	subComponentDefault types.Status
	previous            *Snapshot
}

func (f fallbackTable) component(name string) types.Status {
	if entry := f.previous.Component(name); entry != nil {
		return entry.Status
	}
	return f.componentDefault
}

func (f fallbackTable) subComponent(componentName, subComponentName string) types.Status {
	if entry := f.previous.SubComponent(componentName, subComponentName); entry != nil {
		return entry.Status
	}
	return f.subComponentDefault
}
