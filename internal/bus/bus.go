// Package bus provides the asynchronous message channel the marketplace
// parties communicate over: addressed point-to-point delivery with
// per-pair FIFO ordering and blocking receive with timeout and filter.
package bus

import (
	"context"
	"time"

	"carbroker/internal/domain"
)

// Filter selects which queued messages a Receive call is willing to
// take. The zero value matches everything. Non-matching messages stay
// queued for later receives.
type Filter struct {
	Sender        domain.PartyID // empty matches any sender
	Performatives []domain.Performative
}

// Matches reports whether the message passes the filter.
func (f Filter) Matches(m domain.Message) bool {
	if f.Sender != "" && m.Sender != f.Sender {
		return false
	}
	if len(f.Performatives) == 0 {
		return true
	}
	for _, p := range f.Performatives {
		if m.Performative == p {
			return true
		}
	}
	return false
}

// Bus is the message channel between named parties. Send never blocks
// on the receiver; Receive blocks up to timeout for the first queued
// message matching the filter.
type Bus interface {
	// Register creates the party's mailbox. Messages sent to an
	// unregistered party are rejected with domain.ErrAgentNotFound.
	Register(party domain.PartyID)

	// Unregister discards the party's mailbox and any queued messages.
	Unregister(party domain.PartyID)

	// Send queues the message in the receiver's mailbox.
	Send(m domain.Message) error

	// Receive removes and returns the first queued message matching
	// the filter, blocking up to timeout for one to arrive. Returns
	// ok=false on timeout or context cancellation.
	Receive(ctx context.Context, party domain.PartyID, f Filter, timeout time.Duration) (domain.Message, bool)
}
