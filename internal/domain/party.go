package domain

import "strings"

// PartyID identifies a participant on the message bus: the broker,
// a buyer, or a dealer.
type PartyID string

// BrokerID is the well-known address of the broker actor.
const BrokerID PartyID = "broker"

// manualPrefix marks human-supervised parties. The broker uses it to
// classify commission as manual rather than automated.
const manualPrefix = "M."

// Manual reports whether the party is human-supervised.
func (p PartyID) Manual() bool {
	return strings.HasPrefix(string(p), manualPrefix)
}

func (p PartyID) String() string {
	return string(p)
}
