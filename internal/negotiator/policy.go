package negotiator

import "sync"

// Action is what a policy wants done with the current counter-offer.
type Action int

const (
	// ActionCounter sends Offer as the next proposal.
	ActionCounter Action = iota
	// ActionAccept accepts the dealer's counter at Offer.
	ActionAccept
	// ActionReject rejects and ends the negotiation.
	ActionReject
	// ActionGiveUp ends the negotiation without a reply.
	ActionGiveUp
)

// Decision is a policy's answer for one round.
type Decision struct {
	Action Action
	Offer  int64
}

// Policy decides the buyer's next move given the session state and the
// dealer's counter-offer. Implementations may mutate the session's
// CurrentOffer and State.
type Policy interface {
	Decide(s *Session, counter int64) Decision
}

// probeRatio is the fraction of the dealer's counter an automated
// buyer offers while probing for a better deal in the early rounds.
const probeRatio = 0.97

// AutomatedPolicy is the self-driving buyer strategy: probe below
// affordable counters for the first MinRounds rounds, then accept;
// move halfway toward unaffordable counters, capped at the reserve
// price, and give up once the cap is hit.
type AutomatedPolicy struct{}

// Decide implements Policy. The probe-before-accept check runs before
// the budget clamp: an affordable counter is always handled by the
// round check first, so probing can continue past MinRounds only while
// counters stay above the reserve price.
func (AutomatedPolicy) Decide(s *Session, counter int64) Decision {
	if counter <= s.ReservePrice {
		if s.Round < s.MinRounds {
			// Truncation is floor for non-negative prices.
			s.CurrentOffer = int64(float64(counter) * probeRatio)
			return Decision{Action: ActionCounter, Offer: s.CurrentOffer}
		}
		s.State = StateAccepted
		return Decision{Action: ActionAccept, Offer: counter}
	}

	next := s.CurrentOffer + (counter-s.CurrentOffer)/2
	if next > s.ReservePrice {
		next = s.ReservePrice
	}
	s.CurrentOffer = next
	if s.CurrentOffer >= s.ReservePrice {
		// Budget exhausted; never accept above reserve.
		s.State = StateTimedOut
		return Decision{Action: ActionGiveUp}
	}
	return Decision{Action: ActionCounter, Offer: s.CurrentOffer}
}

// ManualPolicy defers each round's decision to a human, fed through
// Submit. Decide blocks until a decision arrives or the policy is
// closed.
type ManualPolicy struct {
	decisions chan Decision
	done      chan struct{}
	closeOnce sync.Once
}

// NewManualPolicy creates a ManualPolicy ready to accept decisions.
func NewManualPolicy() *ManualPolicy {
	return &ManualPolicy{
		decisions: make(chan Decision, 16),
		done:      make(chan struct{}),
	}
}

// Submit queues a human decision for the next Decide call.
func (p *ManualPolicy) Submit(d Decision) {
	select {
	case p.decisions <- d:
	case <-p.done:
	}
}

// Close releases any blocked Decide call; the session ends as timed
// out.
func (p *ManualPolicy) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// Decide implements Policy. Counter-offers above the reserve price are
// clamped so a manual buyer can never overspend their stated budget.
func (p *ManualPolicy) Decide(s *Session, counter int64) Decision {
	select {
	case d := <-p.decisions:
		switch d.Action {
		case ActionAccept:
			s.State = StateAccepted
			return Decision{Action: ActionAccept, Offer: counter}
		case ActionReject:
			s.State = StateRejected
			return d
		case ActionGiveUp:
			s.State = StateTimedOut
			return d
		default:
			if d.Offer > s.ReservePrice {
				d.Offer = s.ReservePrice
			}
			s.CurrentOffer = d.Offer
			return d
		}
	case <-p.done:
		s.State = StateTimedOut
		return Decision{Action: ActionGiveUp}
	}
}
