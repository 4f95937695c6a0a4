// Package source defines the external availability collaborator and its
// implementations.
package source

import (
	"context"
	"errors"

	"github.com/example/dining-watcher/internal/subscription"
)

// Slot is one open reservation slot as reported by the source.
type Slot struct {
	// Time is the display time of the slot, e.g. "6:30 PM".
	Time string
	// Ref is the source's opaque reference for the slot, used to build
	// booking links.
	Ref string
}

// Sentinel errors for the two transient failure classes. Both are retried
// implicitly on the next poll cycle and never surfaced to the requester.
var (
	ErrUnavailable = errors.New("availability source unavailable")
	ErrTimeout     = errors.New("availability source timed out")
)

// AvailabilitySource answers "which slots are open right now" for one
// restaurant and one set of criteria. An empty result is not an error; it
// means no match this cycle.
type AvailabilitySource interface {
	CheckAvailability(ctx context.Context, res subscription.ResourceRef, c subscription.Criteria) ([]Slot, error)
}
