// Package negotiator implements the offer/counter-offer state machines
// for automated buyers and dealers, plus the decision policies shared
// with the human-supervised flow.
package negotiator

// State is the lifecycle state of a negotiation session.
type State int

const (
	StateNegotiating State = iota
	StateAccepted
	StateRejected
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	case StateTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// Session is the per-pair negotiation state on the buyer's side. It is
// created when a buyer starts negotiating with a matched dealer,
// mutated only by that buyer's loop, and discarded once State leaves
// StateNegotiating.
type Session struct {
	CarType      string
	Round        int
	CurrentOffer int64
	ReservePrice int64
	MinRounds    int
	State        State
}
