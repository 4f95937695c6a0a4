// Package dispatch delivers found-match notifications and records the
// resulting subscription resolution.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/dining-watcher/internal/metrics"
	"github.com/example/dining-watcher/internal/notify"
	"github.com/example/dining-watcher/internal/source"
	"github.com/example/dining-watcher/internal/subscription"
)

// Sentinel errors for the two dispatch failure classes.
var (
	// ErrDelivery: the notification could not be confirmed as delivered.
	// The subscription stays active and will be re-notified on a later
	// match.
	ErrDelivery = errors.New("notification delivery failed")

	// ErrPersistence: the notification went out but the resolution could
	// not be recorded. The subscription may be re-notified next cycle;
	// a duplicate beats a silently lost resolution.
	ErrPersistence = errors.New("delivered but resolution not recorded")
)

// Dispatcher sends exactly one notification per subscription resolution and
// marks the subscription resolved if and only if delivery is confirmed.
type Dispatcher struct {
	store    subscription.Store
	provider notify.Provider
	logger   *zap.Logger
	metrics  *metrics.Metrics

	// bookingBaseURL is the public site root for the booking deep link.
	bookingBaseURL string
}

func New(store subscription.Store, provider notify.Provider, bookingBaseURL string, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		store:          store,
		provider:       provider,
		logger:         logger,
		metrics:        m,
		bookingBaseURL: bookingBaseURL,
	}
}

// Dispatch delivers the result to the subscription's owner. It re-reads the
// subscription first so a duplicate call for an already-resolved
// subscription is a no-op rather than a second notification.
func (d *Dispatcher) Dispatch(ctx context.Context, sub subscription.Subscription, slots []source.Slot) error {
	if len(slots) == 0 {
		return nil
	}

	current, err := d.store.Get(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("reading subscription %s before dispatch: %w", sub.ID, err)
	}
	if current.Status != subscription.StatusActive {
		d.logger.Debug("skipping dispatch for non-active subscription",
			zap.String("subscription_id", sub.ID),
			zap.String("status", string(current.Status)))
		return nil
	}

	n := notify.BuildNotification(d.bookingBaseURL, current, slots)
	if err := d.provider.Send(ctx, n); err != nil {
		d.metrics.NotificationsTotal.WithLabelValues(metrics.StatusFailed).Inc()
		d.logger.Warn("notification delivery failed",
			zap.String("subscription_id", sub.ID),
			zap.String("owner", sub.Owner),
			zap.String("provider", d.provider.Name()),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	d.metrics.NotificationsTotal.WithLabelValues(metrics.StatusSent).Inc()

	if err := d.store.MarkResolved(ctx, sub.ID); err != nil {
		// The message is already out. Surface the inconsistency loudly:
		// the next match may produce a duplicate notification.
		d.logger.Error("notification sent but resolution not recorded",
			zap.String("subscription_id", sub.ID),
			zap.Error(err))
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	d.logger.Info("subscription resolved",
		zap.String("subscription_id", sub.ID),
		zap.String("owner", sub.Owner),
		zap.String("restaurant", sub.Resource.RestaurantName),
		zap.Int("slots", len(slots)))
	return nil
}
