package status

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ship-status-dash/pkg/metrics"
	"ship-status-dash/pkg/types"
)

// DefaultLookupTimeout bounds a single status lookup when no timeout is configured.
const DefaultLookupTimeout = 10 * time.Second

// Resolution is the outcome of resolving one target. Fallback is set when the source
// failed and Status is the substituted value.
type Resolution struct {
	Status        types.Status
	ActiveOutages []types.Outage
	Fallback      bool
}

// Resolver performs exactly one Source call per Resolve, bounded by a fixed timeout.
// It never returns an error: any failure yields the caller's fallback status and no outages.
type Resolver struct {
	source  Source
	timeout time.Duration
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewResolver creates a Resolver. A non-positive timeout uses DefaultLookupTimeout; m may be nil.
func NewResolver(source Source, timeout time.Duration, logger *logrus.Logger, m *metrics.Metrics) *Resolver {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Resolver{
		source:  source,
		timeout: timeout,
		logger:  logger,
		metrics: m,
	}
}

type lookupResult struct {
	status types.ComponentStatus
	err    error
}

// Resolve looks up target and returns the reported status and outages verbatim, or the
// fallback status with an empty outage list when the lookup fails or times out.
func (r *Resolver) Resolve(ctx context.Context, target Target, fallback types.Status) Resolution {
	start := time.Now()
	kind := metrics.KindComponent
	if target.IsSubComponent() {
		kind = metrics.KindSubComponent
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// buffered so that a source ignoring its context cannot leak a blocked goroutine
	results := make(chan lookupResult, 1)
	go func() {
		status, err := r.lookup(callCtx, target)
		results <- lookupResult{status: status, err: err}
	}()

	var result lookupResult
	select {
	case result = <-results:
	case <-callCtx.Done():
		result.err = fmt.Errorf("status lookup for %s: %w", target, callCtx.Err())
	}

	if result.err == nil && !result.status.Status.IsValid() {
		result.err = fmt.Errorf("%w: status %q for %s", ErrUnexpectedResponse, result.status.Status, target)
	}

	if result.err != nil && ctx.Err() != nil {
		// the whole pass was cancelled and its results will be discarded
		r.metrics.ObserveLookup(kind, metrics.ResultCancelled, time.Since(start))
		r.loggerFor(target).WithField("error", result.err).Debug("Status lookup cancelled")
		return Resolution{
			Status:        fallback,
			ActiveOutages: []types.Outage{},
			Fallback:      true,
		}
	}

	if result.err != nil {
		r.metrics.ObserveLookup(kind, metrics.ResultFallback, time.Since(start))
		r.loggerFor(target).WithFields(logrus.Fields{
			"error":    result.err,
			"fallback": fallback,
			"duration": time.Since(start),
		}).Warn("Status lookup failed, substituting fallback status")
		return Resolution{
			Status:        fallback,
			ActiveOutages: []types.Outage{},
			Fallback:      true,
		}
	}

	r.metrics.ObserveLookup(kind, metrics.ResultSuccess, time.Since(start))
	outages := result.status.ActiveOutages
	if outages == nil {
		outages = []types.Outage{}
	}
	return Resolution{
		Status:        result.status.Status,
		ActiveOutages: outages,
	}
}

func (r *Resolver) lookup(ctx context.Context, target Target) (types.ComponentStatus, error) {
	if target.IsSubComponent() {
		return r.source.GetSubComponentStatus(ctx, target.Component, target.SubComponent)
	}
	return r.source.GetComponentStatus(ctx, target.Component)
}

func (r *Resolver) loggerFor(target Target) *logrus.Entry {
	fields := logrus.Fields{"component": target.Component}
	if target.IsSubComponent() {
		fields["sub_component"] = target.SubComponent
	}
	return r.logger.WithFields(fields)
}
