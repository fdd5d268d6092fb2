package negotiator

import (
	"context"
	"strings"
	"testing"
	"time"

	"carbroker/internal/bus"
	"carbroker/internal/domain"
)

func newTestBuyer(b bus.Bus) *Buyer {
	return NewBuyer(BuyerConfig{
		ID:              "buyer1",
		CarType:         "Toyota",
		InitialOffer:    25000,
		ReservePrice:    29000,
		MinRounds:       3,
		Bus:             b,
		Logger:          discardLogger(),
		ContactTimeout:  time.Second,
		ResponseTimeout: time.Second,
	})
}

func TestBuyer_DiscoveryRefused(t *testing.T) {
	b := bus.NewInProc()
	b.Register(domain.BrokerID)

	states := make(chan State, 1)
	go func() {
		states <- newTestBuyer(b).Run(context.Background())
	}()

	m, ok := b.Receive(context.Background(), domain.BrokerID, bus.Filter{}, time.Second)
	if !ok || m.Performative != domain.PerformativeRequest || m.Body != "Toyota" {
		t.Fatalf("expected a match request, got %+v ok=%v", m, ok)
	}
	_ = b.Send(domain.Message{
		Performative: domain.PerformativeRefuse,
		Sender:       domain.BrokerID,
		Receiver:     "buyer1",
		Body:         "No matching dealers",
	})

	select {
	case s := <-states:
		if s != StateTimedOut {
			t.Errorf("state = %v, want timed out", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("buyer did not finish")
	}

	// A refused discovery ends the run with no failure report.
	if m, ok := b.Receive(context.Background(), domain.BrokerID, bus.Filter{}, 50*time.Millisecond); ok {
		t.Errorf("unexpected message after refusal: %+v", m)
	}
}

// Full exchange against a live dealer: a 30000 listing with a 29000
// budget settles in two rounds at the 27645 probe, and both sides
// report the deal to the broker.
func TestBuyer_NegotiatesToAcceptance(t *testing.T) {
	b := bus.NewInProc()
	b.Register(domain.BrokerID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newTestDealer(b).Run(ctx)

	// Drain the dealer's listing registration.
	if m, ok := b.Receive(ctx, domain.BrokerID, bus.Filter{}, time.Second); !ok || m.Body != "Toyota,30000" {
		t.Fatalf("expected the listing registration, got %+v ok=%v", m, ok)
	}

	states := make(chan State, 1)
	go func() {
		states <- newTestBuyer(b).Run(ctx)
	}()

	m, ok := b.Receive(ctx, domain.BrokerID, bus.Filter{Performatives: []domain.Performative{domain.PerformativeRequest}}, time.Second)
	if !ok {
		t.Fatal("expected a match request")
	}
	_ = b.Send(domain.Message{
		Performative: domain.PerformativeInform,
		Sender:       domain.BrokerID,
		Receiver:     m.Sender,
		Body:         domain.EncodeMatchReply("dealer1", 30000),
	})

	select {
	case s := <-states:
		if s != StateAccepted {
			t.Fatalf("state = %v, want accepted", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("negotiation did not finish")
	}

	// Both parties confirm: the buyer at its final 27645 offer, the
	// dealer at the 30000 list price.
	var bodies []string
	for i := 0; i < 2; i++ {
		m, ok := b.Receive(ctx, domain.BrokerID, bus.Filter{Performatives: []domain.Performative{domain.PerformativeInform}}, time.Second)
		if !ok {
			t.Fatalf("expected confirmation %d", i+1)
		}
		bodies = append(bodies, m.Body)
	}
	joined := strings.Join(bodies, "|")
	if !strings.Contains(joined, "DEAL_CONFIRMED,buyer1,dealer1,Toyota,27645") {
		t.Errorf("missing the buyer confirmation at 27645: %q", joined)
	}
	if !strings.Contains(joined, "DEAL_CONFIRMED,buyer1,dealer1,Toyota,30000") {
		t.Errorf("missing the dealer confirmation at list price: %q", joined)
	}
}

func TestBuyer_SilentDealerTimesOut(t *testing.T) {
	b := bus.NewInProc()
	b.Register(domain.BrokerID)
	b.Register("ghost")

	buyer := NewBuyer(BuyerConfig{
		ID:              "buyer1",
		CarType:         "Toyota",
		InitialOffer:    25000,
		ReservePrice:    29000,
		Bus:             b,
		Logger:          discardLogger(),
		ContactTimeout:  time.Second,
		ResponseTimeout: 50 * time.Millisecond,
	})

	states := make(chan State, 1)
	go func() {
		states <- buyer.Run(context.Background())
	}()

	m, _ := b.Receive(context.Background(), domain.BrokerID, bus.Filter{}, time.Second)
	_ = b.Send(domain.Message{
		Performative: domain.PerformativeInform,
		Sender:       domain.BrokerID,
		Receiver:     m.Sender,
		Body:         domain.EncodeMatchReply("ghost", 30000),
	})

	select {
	case s := <-states:
		if s != StateTimedOut {
			t.Errorf("state = %v, want timed out", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("buyer did not finish")
	}

	// The stall is reported to the broker as a failure.
	fm, ok := b.Receive(context.Background(), domain.BrokerID, bus.Filter{
		Performatives: []domain.Performative{domain.PerformativeFailure},
	}, time.Second)
	if !ok {
		t.Fatal("expected a failure report")
	}
	if fm.Body != "NEGOTIATION_FAILED,buyer1,ghost,Toyota" {
		t.Errorf("body = %q", fm.Body)
	}
}

func TestNegotiate_DealerRejects(t *testing.T) {
	b := bus.NewInProc()
	b.Register("buyer1")
	b.Register("dealer1")

	sess := &Session{
		CarType:      "Toyota",
		CurrentOffer: 25000,
		ReservePrice: 29000,
		MinRounds:    3,
		State:        StateNegotiating,
	}

	done := make(chan int64, 1)
	go func() {
		done <- Negotiate(context.Background(), b, "buyer1", "dealer1", sess, AutomatedPolicy{}, time.Second, discardLogger())
	}()

	if _, ok := b.Receive(context.Background(), "dealer1", bus.Filter{}, time.Second); !ok {
		t.Fatal("expected the opening offer")
	}
	_ = b.Send(domain.Message{
		Performative: domain.PerformativeReject,
		Sender:       "dealer1",
		Receiver:     "buyer1",
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("negotiation did not finish")
	}
	if sess.State != StateRejected {
		t.Errorf("state = %v, want rejected", sess.State)
	}
}
