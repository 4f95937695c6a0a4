// Package poller drives the recurring availability checks over every active
// subscription.
package poller

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/dining-watcher/internal/metrics"
	"github.com/example/dining-watcher/internal/source"
	"github.com/example/dining-watcher/internal/subscription"
)

// Dispatcher hands a non-empty check result to the notification pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, sub subscription.Subscription, slots []source.Slot) error
}

// Config holds the externally supplied scheduler knobs.
type Config struct {
	// Interval between cycle starts. A cycle that runs long delays the
	// next one; cycles never overlap.
	Interval time.Duration
	// MaxConcurrent bounds the number of simultaneously in-flight
	// availability checks within a cycle.
	MaxConcurrent int
	// CheckTimeout bounds one subscription's availability check.
	CheckTimeout time.Duration
	// CycleDeadline bounds a whole cycle; checks still pending at the
	// deadline are cancelled and count as failures.
	CycleDeadline time.Duration
}

// Poller evaluates every active subscription once per cycle against the
// availability source. Per-subscription failures are contained: a cycle
// completes even if every check fails.
type Poller struct {
	store      subscription.Store
	src        source.AvailabilitySource
	dispatcher Dispatcher
	cfg        Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func New(store subscription.Store, src source.AvailabilitySource, d Dispatcher, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Poller {
	return &Poller{
		store:      store,
		src:        src,
		dispatcher: d,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
	}
}

// Run executes poll cycles until ctx is cancelled. The first cycle starts
// immediately. Cycles run synchronously inside the loop, so cycle N+1 can
// never start before cycle N has finished or hit its deadline.
func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.cfg.Interval)
	defer t.Stop()

	p.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runCycle(ctx)
		}
	}
}

// runCycle snapshots the active subscription set once and fans the checks
// out under the concurrency limit. Subscriptions added mid-cycle are picked
// up next cycle.
func (p *Poller) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	started := time.Now()
	cycleCtx, cancel := context.WithTimeout(ctx, p.cfg.CycleDeadline)
	defer cancel()

	subs, err := p.store.Active(ctx)
	if err != nil {
		p.logger.Error("loading active subscriptions failed", zap.Error(err))
		return
	}
	p.metrics.ActiveSubscriptions.Set(float64(len(subs)))

	g, gctx := errgroup.WithContext(cycleCtx)
	g.SetLimit(p.cfg.MaxConcurrent)
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			p.check(gctx, sub)
			return nil
		})
	}
	_ = g.Wait()

	p.metrics.CyclesTotal.Inc()
	p.metrics.CycleDuration.Observe(time.Since(started).Seconds())
	p.logger.Debug("poll cycle complete",
		zap.Int("subscriptions", len(subs)),
		zap.Duration("elapsed", time.Since(started)))
}

// check runs one subscription's availability check. Failures are logged and
// treated as "no match this cycle"; they never abort the cycle.
func (p *Poller) check(ctx context.Context, sub subscription.Subscription) {
	p.metrics.ChecksInflight.Inc()
	defer p.metrics.ChecksInflight.Dec()

	checkCtx, cancel := context.WithTimeout(ctx, p.cfg.CheckTimeout)
	defer cancel()

	slots, err := p.src.CheckAvailability(checkCtx, sub.Resource, sub.Criteria)
	p.touchChecked(ctx, sub.ID)

	switch {
	case err != nil:
		outcome := metrics.OutcomeError
		if errors.Is(err, source.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		p.metrics.ChecksTotal.WithLabelValues(outcome).Inc()
		p.logger.Warn("availability check failed",
			zap.String("subscription_id", sub.ID),
			zap.String("restaurant_id", sub.Resource.RestaurantID),
			zap.Error(err))
		return

	case len(slots) == 0:
		p.metrics.ChecksTotal.WithLabelValues(metrics.OutcomeNoMatch).Inc()
		return
	}

	p.metrics.ChecksTotal.WithLabelValues(metrics.OutcomeMatch).Inc()
	if err := p.dispatcher.Dispatch(checkCtx, sub, slots); err != nil {
		// Subscription stays active; the next matching cycle retries.
		p.logger.Warn("dispatch failed, will retry on next match",
			zap.String("subscription_id", sub.ID),
			zap.Error(err))
	}
}

// touchChecked records the attempt timestamp regardless of outcome. On
// shutdown the parent context is already cancelled, so fall back to a short
// detached context rather than losing the attempt record.
func (p *Poller) touchChecked(ctx context.Context, id string) {
	touchCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		touchCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	if err := p.store.TouchChecked(touchCtx, id, time.Now()); err != nil {
		p.logger.Warn("recording poll attempt failed",
			zap.String("subscription_id", id),
			zap.Error(err))
	}
}
