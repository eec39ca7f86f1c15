// Package statustest provides an in-memory status.Source for tests.
package statustest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ship-status-dash/pkg/status"
	"ship-status-dash/pkg/types"
)

// Response describes how the fake answers a single target.
type Response struct {
	Status  types.Status
	Outages []types.Outage
	Err     error
	// Delay is waited out before answering; the wait is cut short by context cancellation
	// unless IgnoreContext is set.
	Delay         time.Duration
	IgnoreContext bool
	// Hang blocks until the context is done.
	Hang bool
}

// Source is a configurable fake status source. Targets without a response fail with status.ErrUnknownTarget.
type Source struct {
	mu        sync.Mutex
	responses map[status.Target]Response
	calls     map[status.Target]int
}

// NewSource creates an empty fake.
func NewSource() *Source {
	return &Source{
		responses: make(map[status.Target]Response),
		calls:     make(map[status.Target]int),
	}
}

// SetComponent configures the response for a component lookup.
func (s *Source) SetComponent(componentName string, resp Response) *Source {
	return s.set(status.ComponentTarget(componentName), resp)
}

// SetSubComponent configures the response for a sub-component lookup.
func (s *Source) SetSubComponent(componentName, subComponentName string, resp Response) *Source {
	return s.set(status.SubComponentTarget(componentName, subComponentName), resp)
}

func (s *Source) set(target status.Target, resp Response) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[target] = resp
	return s
}

// Calls returns how many times target was looked up.
func (s *Source) Calls(target status.Target) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[target]
}

// TotalCalls returns the number of lookups across all targets.
func (s *Source) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *Source) GetComponentStatus(ctx context.Context, componentName string) (types.ComponentStatus, error) {
	return s.answer(ctx, status.ComponentTarget(componentName))
}

func (s *Source) GetSubComponentStatus(ctx context.Context, componentName, subComponentName string) (types.ComponentStatus, error) {
	return s.answer(ctx, status.SubComponentTarget(componentName, subComponentName))
}

func (s *Source) answer(ctx context.Context, target status.Target) (types.ComponentStatus, error) {
	s.mu.Lock()
	s.calls[target]++
	resp, ok := s.responses[target]
	s.mu.Unlock()

	if !ok {
		return types.ComponentStatus{}, fmt.Errorf("%w: %s", status.ErrUnknownTarget, target)
	}

	switch {
	case resp.Hang:
		<-ctx.Done()
		return types.ComponentStatus{}, ctx.Err()
	case resp.Delay > 0 && resp.IgnoreContext:
		time.Sleep(resp.Delay)
	case resp.Delay > 0:
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return types.ComponentStatus{}, ctx.Err()
		}
	}

	if resp.Err != nil {
		return types.ComponentStatus{}, resp.Err
	}
	name := target.Component
	if target.IsSubComponent() {
		name = target.SubComponent
	}
	return types.ComponentStatus{
		ComponentName: name,
		Status:        resp.Status,
		ActiveOutages: resp.Outages,
	}, nil
}
