package aggregator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ship-status-dash/pkg/catalog"
	"ship-status-dash/pkg/metrics"
)

// Subscriber is notified of every published snapshot. changed is false when the snapshot has the
// same content as the one published before it.
type Subscriber func(snapshot *Snapshot, changed bool)

// Poller runs aggregation passes on an interval and on demand, and keeps the latest snapshot.
//
// A pass started by Trigger cancels any pass still in flight; a periodic tick is skipped while a
// pass is running. Cancelled or failed passes never replace the published snapshot.
type Poller struct {
	engine   *Engine
	provider catalog.Provider
	interval time.Duration
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	trigger  chan struct{}

	mu          sync.RWMutex
	latest      *Snapshot
	publishedAt time.Time
	subscribers []Subscriber
}

// NewPoller creates a Poller. m may be nil.
func NewPoller(engine *Engine, provider catalog.Provider, interval time.Duration, logger *logrus.Logger, m *metrics.Metrics) *Poller {
	return &Poller{
		engine:   engine,
		provider: provider,
		interval: interval,
		logger:   logger,
		metrics:  m,
		trigger:  make(chan struct{}, 1),
	}
}

// Subscribe registers fn to be called, from the polling goroutine, with every published snapshot.
func (p *Poller) Subscribe(fn Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Latest returns the most recently published snapshot and when it was published. The snapshot is
// nil until the first pass completes.
func (p *Poller) Latest() (*Snapshot, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.publishedAt
}

// Trigger requests an immediate pass, superseding any pass in flight. It never blocks.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

type passResult struct {
	id       uint64
	snapshot *Snapshot
	err      error
}

// Run starts a pass immediately and then polls until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	if p.interval <= 0 {
		return errors.New("poll interval must be positive")
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	results := make(chan passResult)
	var (
		current    uint64
		inFlight   bool
		cancelPass context.CancelFunc = func() {}
	)
	defer func() { cancelPass() }()

	start := func() {
		cancelPass()
		passCtx, cancel := context.WithCancel(ctx)
		cancelPass = cancel
		current++
		inFlight = true

		go func(id uint64) {
			snapshot, err := p.engine.Refresh(passCtx, p.provider)
			select {
			case results <- passResult{id: id, snapshot: snapshot, err: err}:
			case <-ctx.Done():
			}
		}(current)
	}

	start()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.trigger:
			start()
		case <-ticker.C:
			if inFlight {
				p.logger.Debug("Previous aggregation pass still running, skipping tick")
				continue
			}
			start()
		case result := <-results:
			if result.id != current {
				p.logger.WithField("pass", result.id).Debug("Discarding superseded aggregation pass")
				continue
			}
			inFlight = false
			if result.err != nil {
				p.logger.WithField("error", result.err).Error("Aggregation pass failed")
				continue
			}
			p.publish(result.snapshot)
		}
	}
}

func (p *Poller) publish(snapshot *Snapshot) {
	now := time.Now()

	p.mu.Lock()
	changed := !p.latest.Equal(snapshot)
	p.latest = snapshot
	p.publishedAt = now
	subscribers := append([]Subscriber(nil), p.subscribers...)
	p.mu.Unlock()

	p.engine.Commit(snapshot)
	p.metrics.SetSnapshot(now, snapshot.StatusCounts())
	if changed {
		p.logger.WithField("components", len(snapshot.Components)).Info("Published changed snapshot")
	}
	for _, fn := range subscribers {
		fn(snapshot, changed)
	}
}
