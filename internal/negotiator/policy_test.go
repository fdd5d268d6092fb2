package negotiator

import "testing"

func newSession(offer, reserve int64, minRounds int) *Session {
	return &Session{
		CarType:      "Toyota",
		CurrentOffer: offer,
		ReservePrice: reserve,
		MinRounds:    minRounds,
		State:        StateNegotiating,
	}
}

// A 30000 listing is countered at 28500 after the first round; an
// affordable counter in the probing rounds draws a 3%-under probe,
// 27645.
func TestAutomatedPolicy_ProbesAffordableCounter(t *testing.T) {
	s := newSession(25000, 29000, 3)
	s.Round = 1

	d := AutomatedPolicy{}.Decide(s, 28500)
	if d.Action != ActionCounter {
		t.Fatalf("action = %v, want counter", d.Action)
	}
	if d.Offer != 27645 {
		t.Errorf("offer = %d, want 27645", d.Offer)
	}
	if s.CurrentOffer != 27645 {
		t.Errorf("CurrentOffer = %d, want 27645", s.CurrentOffer)
	}
	if s.State != StateNegotiating {
		t.Errorf("state = %v, want negotiating", s.State)
	}
}

func TestAutomatedPolicy_AcceptsAfterMinRounds(t *testing.T) {
	s := newSession(25000, 29000, 3)
	s.Round = 3

	d := AutomatedPolicy{}.Decide(s, 28500)
	if d.Action != ActionAccept {
		t.Fatalf("action = %v, want accept", d.Action)
	}
	if d.Offer != 28500 {
		t.Errorf("offer = %d, want the counter itself", d.Offer)
	}
	if s.State != StateAccepted {
		t.Errorf("state = %v, want accepted", s.State)
	}
}

// The probing-round check runs before the budget clamp, so an
// affordable counter keeps being probed even when the halfway move
// would have gone over budget.
func TestAutomatedPolicy_ProbeBeforeClamp(t *testing.T) {
	s := newSession(1000, 28500, 3)
	s.Round = 1

	d := AutomatedPolicy{}.Decide(s, 28500)
	if d.Action != ActionCounter {
		t.Fatalf("action = %v, want counter", d.Action)
	}
	if d.Offer != 27645 {
		t.Errorf("offer = %d, want the probe 27645, not a halfway move", d.Offer)
	}
}

func TestAutomatedPolicy_HalfwayMoveOnUnaffordable(t *testing.T) {
	s := newSession(15000, 20000, 3)
	s.Round = 1

	d := AutomatedPolicy{}.Decide(s, 21000)
	if d.Action != ActionCounter {
		t.Fatalf("action = %v, want counter", d.Action)
	}
	if d.Offer != 18000 {
		t.Errorf("offer = %d, want 18000", d.Offer)
	}
}

func TestAutomatedPolicy_GivesUpAtReserve(t *testing.T) {
	s := newSession(15000, 20000, 3)
	s.Round = 1

	d := AutomatedPolicy{}.Decide(s, 28500)
	if d.Action != ActionGiveUp {
		t.Fatalf("action = %v, want give up", d.Action)
	}
	if s.CurrentOffer != 20000 {
		t.Errorf("CurrentOffer = %d, want the reserve", s.CurrentOffer)
	}
	if s.State != StateTimedOut {
		t.Errorf("state = %v, want timed out", s.State)
	}
}

func TestManualPolicy_RelaysDecisions(t *testing.T) {
	p := NewManualPolicy()
	defer p.Close()

	p.Submit(Decision{Action: ActionCounter, Offer: 24000})
	s := newSession(20000, 26000, 0)
	d := p.Decide(s, 28000)
	if d.Action != ActionCounter || d.Offer != 24000 {
		t.Errorf("got %+v", d)
	}
	if s.CurrentOffer != 24000 {
		t.Errorf("CurrentOffer = %d", s.CurrentOffer)
	}

	p.Submit(Decision{Action: ActionAccept})
	d = p.Decide(s, 25000)
	if d.Action != ActionAccept || d.Offer != 25000 {
		t.Errorf("got %+v, want accept at the counter", d)
	}
	if s.State != StateAccepted {
		t.Errorf("state = %v", s.State)
	}
}

func TestManualPolicy_ClampsCounterToReserve(t *testing.T) {
	p := NewManualPolicy()
	defer p.Close()

	p.Submit(Decision{Action: ActionCounter, Offer: 99999})
	s := newSession(20000, 26000, 0)
	d := p.Decide(s, 28000)
	if d.Offer != 26000 {
		t.Errorf("offer = %d, want clamped to the reserve", d.Offer)
	}
}

func TestManualPolicy_CloseEndsSession(t *testing.T) {
	p := NewManualPolicy()
	p.Close()
	p.Close() // closing twice is fine

	s := newSession(20000, 26000, 0)
	d := p.Decide(s, 28000)
	if d.Action != ActionGiveUp {
		t.Errorf("action = %v, want give up", d.Action)
	}
	if s.State != StateTimedOut {
		t.Errorf("state = %v", s.State)
	}
}
