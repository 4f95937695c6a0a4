package notify

import (
	"fmt"
	"strings"

	"github.com/example/dining-watcher/internal/source"
	"github.com/example/dining-watcher/internal/subscription"
)

// MaxDisplaySlots bounds how many slot times one notification lists.
// Truncation is display-only and never affects the dispatch outcome.
const MaxDisplaySlots = 5

// BuildNotification formats the found-availability message for a
// subscription. bookingBaseURL is the public site root used for the deep
// link.
func BuildNotification(bookingBaseURL string, sub subscription.Subscription, slots []source.Slot) Notification {
	times := make([]string, 0, MaxDisplaySlots)
	for _, s := range slots {
		if len(times) == MaxDisplaySlots {
			break
		}
		times = append(times, s.Time)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A reservation is available for %s!\n\n", sub.Resource.RestaurantName)
	fmt.Fprintf(&b, "Restaurant: %s\n", sub.Resource.RestaurantName)
	fmt.Fprintf(&b, "Location: %s\n", sub.Resource.LocationName)
	fmt.Fprintf(&b, "Party Size: %d\n", sub.Criteria.PartySize)
	fmt.Fprintf(&b, "Date: %s\n", sub.Criteria.Date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Meal Period: %s\n", sub.Criteria.MealPeriod)
	fmt.Fprintf(&b, "Available Times: %s\n", strings.Join(times, ", "))
	if len(slots) > MaxDisplaySlots {
		fmt.Fprintf(&b, "(and %d more)\n", len(slots)-MaxDisplaySlots)
	}
	fmt.Fprintf(&b, "\nBook now: %s\n", source.BookingURL(bookingBaseURL, sub.Resource, sub.Criteria))

	return Notification{
		Owner:   sub.Owner,
		Subject: fmt.Sprintf("Dining availability found: %s", sub.Resource.RestaurantName),
		Body:    b.String(),
	}
}
