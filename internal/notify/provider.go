// Package notify delivers found-availability notifications to requesters
// through a pluggable provider.
package notify

import (
	"context"
	"errors"
)

// Notification is one message addressed to a subscription's owner. Owner is
// the opaque routing identifier the subscription was created with (an email
// address for smtp, a mention id for webhooks).
type Notification struct {
	Owner   string
	Subject string
	Body    string
}

// ErrRecipientUnreachable marks a delivery rejected because the recipient
// cannot be reached (closed DMs, bad address). Like every other delivery
// failure it leaves the subscription active.
var ErrRecipientUnreachable = errors.New("recipient unreachable")

// Provider is a notification delivery backend. A nil return value is the
// only delivery confirmation; any error, including an ambiguous one, counts
// as a failed delivery.
type Provider interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}
