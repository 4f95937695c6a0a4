// Package subscription holds the durable watch-request model and its
// persistence backends.
package subscription

import (
	"context"
	"fmt"
	"time"
)

// Status of a subscription. Transitions are monotonic: active -> resolved.
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// MealPeriod is the closed set of reservation time-window categories.
type MealPeriod string

const (
	MealBreakfast MealPeriod = "Breakfast"
	MealBrunch    MealPeriod = "Brunch"
	MealLunch     MealPeriod = "Lunch"
	MealDinner    MealPeriod = "Dinner"
)

// MealPeriods lists every valid meal period.
var MealPeriods = []MealPeriod{MealBreakfast, MealBrunch, MealLunch, MealDinner}

func (m MealPeriod) Valid() bool {
	for _, p := range MealPeriods {
		if m == p {
			return true
		}
	}
	return false
}

const (
	MinPartySize = 1
	MaxPartySize = 20
)

// ResourceRef identifies the restaurant being watched and its parent
// location.
type ResourceRef struct {
	LocationID     string
	LocationName   string
	RestaurantID   string
	RestaurantName string
}

// Criteria are the search parameters checked against the availability
// source.
type Criteria struct {
	PartySize  int
	Date       time.Time // calendar date; time-of-day is ignored
	MealPeriod MealPeriod
}

// Subscription is a durable record of intent to be notified when a matching
// reservation slot opens up.
type Subscription struct {
	ID            string
	Owner         string
	Resource      ResourceRef
	Criteria      Criteria
	Status        Status
	CreatedAt     time.Time
	ResolvedAt    *time.Time
	LastCheckedAt *time.Time
}

// ValidationError reports a subscription rejected at creation time. Nothing
// is persisted when one is returned.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// Validate checks the subscription against the creation bounds. now is the
// reference time for the not-in-the-past date rule.
func (s Subscription) Validate(now time.Time) error {
	if s.Owner == "" {
		return &ValidationError{Field: "owner", Msg: "required"}
	}
	if s.Resource.RestaurantID == "" {
		return &ValidationError{Field: "restaurant_id", Msg: "required"}
	}
	if s.Resource.LocationID == "" {
		return &ValidationError{Field: "location_id", Msg: "required"}
	}
	if s.Criteria.PartySize < MinPartySize || s.Criteria.PartySize > MaxPartySize {
		return &ValidationError{
			Field: "party_size",
			Msg:   fmt.Sprintf("must be between %d and %d", MinPartySize, MaxPartySize),
		}
	}
	if s.Criteria.Date.IsZero() {
		return &ValidationError{Field: "date", Msg: "required"}
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	d := s.Criteria.Date
	target := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, now.Location())
	if target.Before(today) {
		return &ValidationError{Field: "date", Msg: "must not be in the past"}
	}
	if !s.Criteria.MealPeriod.Valid() {
		return &ValidationError{
			Field: "meal_period",
			Msg:   fmt.Sprintf("must be one of %v", MealPeriods),
		}
	}
	return nil
}

// Store is the persistence surface shared by the poller, the dispatcher and
// the intake flows. All mutation of subscription state goes through it.
type Store interface {
	// Add validates and persists a new subscription, returning its
	// assigned id. Rejects out-of-bounds criteria with a
	// *ValidationError.
	Add(ctx context.Context, sub Subscription) (string, error)

	// Get returns a single subscription by id.
	Get(ctx context.Context, id string) (Subscription, error)

	// Active returns a snapshot of every active subscription in creation
	// order.
	Active(ctx context.Context) ([]Subscription, error)

	// ListByOwner returns the owner's active subscriptions.
	ListByOwner(ctx context.Context, owner string) ([]Subscription, error)

	// MarkResolved transitions a subscription to resolved. Marking an
	// already-resolved subscription again is a no-op.
	MarkResolved(ctx context.Context, id string) error

	// TouchChecked records the timestamp of a poll attempt, independent
	// of its outcome.
	TouchChecked(ctx context.Context, id string, at time.Time) error
}
