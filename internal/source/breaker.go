package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/example/dining-watcher/internal/subscription"
)

// Breaker wraps an AvailabilitySource with a circuit breaker so a dying
// upstream fails fast instead of burning every check's timeout budget. An
// open circuit reports ErrUnavailable, which the poller treats like any
// other transient failure.
type Breaker struct {
	inner AvailabilitySource
	cb    *gobreaker.CircuitBreaker
}

func NewBreaker(inner AvailabilitySource) *Breaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "availability-source",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
	})
	return &Breaker{inner: inner, cb: cb}
}

func (b *Breaker) CheckAvailability(ctx context.Context, res subscription.ResourceRef, c subscription.Criteria) ([]Slot, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.CheckAvailability(ctx, res, c)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		return nil, err
	}
	slots, _ := out.([]Slot)
	return slots, nil
}
