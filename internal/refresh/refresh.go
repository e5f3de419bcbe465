// Package refresh periodically re-enriches groups so cached coverage stays
// warm.
package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/sitecover/internal/enrich"
	"github.com/signalsfoundry/sitecover/internal/logging"
	"github.com/signalsfoundry/sitecover/model"
)

// DefaultInterval is used when Config.Interval is not positive.
const DefaultInterval = 15 * time.Minute

// GroupLister lists every known group.
type GroupLister interface {
	ListGroups(ctx context.Context) ([]model.Group, error)
}

// GroupEnricher re-enriches one group.
type GroupEnricher interface {
	EnrichGroup(ctx context.Context, groupID int64, refresh bool) (enrich.GroupResult, error)
}

// MetricsRecorder counts refreshed groups by outcome.
type MetricsRecorder interface {
	GroupRefreshed(err error)
}

// Config selects what is refreshed and how often. Empty Groups refreshes
// every group the lister knows about.
type Config struct {
	Interval time.Duration
	Groups   []int64
}

// Status describes the refresher and its last completed run.
type Status struct {
	Running   bool
	Runs      int
	LastRun   time.Time
	Refreshed int
	Failed    int
}

// Refresher drives periodic refreshes and notifies registered listeners
// after every run.
type Refresher struct {
	mu       sync.RWMutex
	interval time.Duration
	groups   []int64

	lister   GroupLister
	enricher GroupEnricher
	metrics  MetricsRecorder
	log      logging.Logger

	status    Status
	cancel    context.CancelFunc
	done      chan struct{}
	listeners []func(Status)
}

// Option customises a Refresher.
type Option func(*Refresher)

func WithMetrics(m MetricsRecorder) Option {
	return func(r *Refresher) { r.metrics = m }
}

func WithLogger(log logging.Logger) Option {
	return func(r *Refresher) {
		if log != nil {
			r.log = log
		}
	}
}

// New constructs a stopped refresher.
func New(lister GroupLister, enricher GroupEnricher, cfg Config, opts ...Option) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	r := &Refresher{
		interval: cfg.Interval,
		groups:   append([]int64(nil), cfg.Groups...),
		lister:   lister,
		enricher: enricher,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddListener registers a callback invoked after every run.
func (r *Refresher) AddListener(fn func(Status)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Status returns a snapshot of the refresher state.
func (r *Refresher) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Start refreshes immediately and then on every interval until ctx is done
// or Stop is called. It returns a channel closed when the loop exits.
// Starting a running refresher returns the existing channel.
func (r *Refresher) Start(ctx context.Context) <-chan struct{} {
	r.mu.Lock()
	if r.status.Running {
		done := r.done
		r.mu.Unlock()
		r.log.Warn(ctx, "refresher is already running")
		return done
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done
	r.status.Running = true
	r.mu.Unlock()

	r.log.Info(ctx, "starting group refresher", logging.Duration("interval", r.interval))
	go func() {
		defer close(done)
		defer func() {
			r.mu.Lock()
			r.status.Running = false
			r.mu.Unlock()
		}()

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.RefreshAll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RefreshAll(ctx)
			}
		}
	}()
	return done
}

// Stop ends the loop and waits for it to exit. Stopping a stopped
// refresher is a no-op.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.log.Info(context.Background(), "group refresher stopped")
}

// RefreshAll refreshes every configured group once. One group failing does
// not stop the others.
func (r *Refresher) RefreshAll(ctx context.Context) Status {
	groups, err := r.targets(ctx)
	if err != nil {
		r.log.Error(ctx, "failed to list groups for refresh", logging.Err(err))
	}

	var refreshed, failed int
	for _, id := range groups {
		if ctx.Err() != nil {
			break
		}
		res, err := r.enricher.EnrichGroup(ctx, id, true)
		if r.metrics != nil {
			r.metrics.GroupRefreshed(err)
		}
		if err != nil {
			failed++
			r.log.Error(ctx, "failed to refresh group", logging.Int64("group_id", id), logging.Err(err))
			continue
		}
		refreshed++
		r.log.Debug(ctx, "group refreshed",
			logging.Int64("group_id", id),
			logging.Int("sites", len(res.Sites)),
			logging.Int("failed_sites", res.Failed),
		)
	}

	r.mu.Lock()
	r.status.Runs++
	r.status.LastRun = time.Now()
	r.status.Refreshed = refreshed
	r.status.Failed = failed
	st := r.status
	listeners := append([]func(Status){}, r.listeners...)
	r.mu.Unlock()

	r.log.Info(ctx, "group refresh completed",
		logging.Int("refreshed", refreshed),
		logging.Int("failed", failed),
	)
	for _, fn := range listeners {
		fn(st)
	}
	return st
}

func (r *Refresher) targets(ctx context.Context) ([]int64, error) {
	if len(r.groups) > 0 {
		return r.groups, nil
	}
	if r.lister == nil {
		return nil, nil
	}
	groups, err := r.lister.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return ids, nil
}
