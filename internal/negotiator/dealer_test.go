package negotiator

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"carbroker/internal/bus"
	"carbroker/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCounterOffer(t *testing.T) {
	cases := []struct {
		listPrice int64
		round     int
		want      int64
	}{
		{30000, 1, 28500}, // 95%
		{30000, 2, 27075}, // 90.25%
		{30000, 7, 21000}, // 69.8% clamps to the 70% floor
		{30000, 20, 21000},
		{10000, 1, 9500},
	}
	for _, tc := range cases {
		if got := counterOffer(tc.listPrice, tc.round); got != tc.want {
			t.Errorf("counterOffer(%d, %d) = %d, want %d", tc.listPrice, tc.round, got, tc.want)
		}
	}
}

func newTestDealer(b bus.Bus) *Dealer {
	return NewDealer(DealerConfig{
		ID:           "dealer1",
		CarType:      "Toyota",
		ListPrice:    30000,
		Bus:          b,
		Logger:       discardLogger(),
		PollInterval: 10 * time.Millisecond,
	})
}

func TestDealer_CountersLowOffer(t *testing.T) {
	b := bus.NewInProc()
	b.Register("buyer1")
	d := newTestDealer(b)

	d.handleProposal(domain.Message{
		Performative: domain.PerformativePropose,
		Sender:       "buyer1",
		Receiver:     "dealer1",
		Body:         "Toyota,25000",
	})

	m, ok := b.Receive(context.Background(), "buyer1", bus.Filter{}, time.Second)
	if !ok {
		t.Fatal("expected a counter-offer")
	}
	if m.Performative != domain.PerformativePropose {
		t.Fatalf("performative = %s", m.Performative)
	}
	if m.Body != "Toyota,28500" {
		t.Errorf("body = %q, want Toyota,28500", m.Body)
	}
}

// The per-buyer round counter survives across proposals and is never
// reset, so a buyer that keeps pushing keeps eroding the floor.
func TestDealer_RoundsNeverReset(t *testing.T) {
	b := bus.NewInProc()
	b.Register("buyer1")
	b.Register("buyer2")
	d := newTestDealer(b)

	propose := func(sender domain.PartyID) string {
		t.Helper()
		d.handleProposal(domain.Message{
			Performative: domain.PerformativePropose,
			Sender:       sender,
			Receiver:     "dealer1",
			Body:         "Toyota,1000",
		})
		m, ok := b.Receive(context.Background(), sender, bus.Filter{}, time.Second)
		if !ok {
			t.Fatal("expected a counter-offer")
		}
		return m.Body
	}

	if got := propose("buyer1"); got != "Toyota,28500" {
		t.Errorf("buyer1 round 1 = %q", got)
	}
	if got := propose("buyer1"); got != "Toyota,27075" {
		t.Errorf("buyer1 round 2 = %q", got)
	}
	// A different buyer starts at round 1 of its own counter.
	if got := propose("buyer2"); got != "Toyota,28500" {
		t.Errorf("buyer2 round 1 = %q", got)
	}
	// buyer1's counter picks up where it left off.
	if got := propose("buyer1"); got != "Toyota,25721" {
		t.Errorf("buyer1 round 3 = %q", got)
	}
}

// An accepted offer is confirmed to the broker at the original list
// price, not at the offer that was accepted.
func TestDealer_ConfirmsAtListPrice(t *testing.T) {
	b := bus.NewInProc()
	b.Register("buyer1")
	b.Register(domain.BrokerID)
	d := newTestDealer(b)

	d.handleProposal(domain.Message{
		Performative: domain.PerformativePropose,
		Sender:       "buyer1",
		Receiver:     "dealer1",
		Body:         "Toyota,29000",
	})

	m, ok := b.Receive(context.Background(), "buyer1", bus.Filter{}, time.Second)
	if !ok || m.Performative != domain.PerformativeAccept {
		t.Fatalf("expected an acceptance, got %+v ok=%v", m, ok)
	}

	m, ok = b.Receive(context.Background(), domain.BrokerID, bus.Filter{}, time.Second)
	if !ok {
		t.Fatal("expected a deal confirmation at the broker")
	}
	if m.Body != "DEAL_CONFIRMED,buyer1,dealer1,Toyota,30000" {
		t.Errorf("body = %q, want the list price 30000", m.Body)
	}
}

func TestDealer_MalformedProposalGetsFailure(t *testing.T) {
	b := bus.NewInProc()
	b.Register("buyer1")
	d := newTestDealer(b)

	d.handleProposal(domain.Message{
		Performative: domain.PerformativePropose,
		Sender:       "buyer1",
		Receiver:     "dealer1",
		Body:         "garbage",
	})

	m, ok := b.Receive(context.Background(), "buyer1", bus.Filter{}, time.Second)
	if !ok || m.Performative != domain.PerformativeFailure {
		t.Fatalf("expected FAILURE, got %+v ok=%v", m, ok)
	}

	// The garbage must not have consumed a round.
	d.handleProposal(domain.Message{
		Performative: domain.PerformativePropose,
		Sender:       "buyer1",
		Receiver:     "dealer1",
		Body:         "Toyota,1000",
	})
	m, ok = b.Receive(context.Background(), "buyer1", bus.Filter{}, time.Second)
	if !ok || m.Body != "Toyota,28500" {
		t.Fatalf("got %+v ok=%v, want the round-1 counter", m, ok)
	}
}

func TestDealer_RunRegistersAndRetires(t *testing.T) {
	b := bus.NewInProc()
	b.Register(domain.BrokerID)
	d := newTestDealer(b)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	m, ok := b.Receive(ctx, domain.BrokerID, bus.Filter{}, time.Second)
	if !ok {
		t.Fatal("expected a listing registration")
	}
	if m.Performative != domain.PerformativeInform || m.Body != "Toyota,30000" {
		t.Fatalf("got %+v", m)
	}

	// A completion notice from the broker retires the dealer.
	if err := b.Send(domain.Message{
		Performative: domain.PerformativeConfirm,
		Sender:       domain.BrokerID,
		Receiver:     "dealer1",
		Body:         domain.EncodeDealCompleted("buyer1", "Toyota", 30000),
	}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dealer did not retire on the completion notice")
	}
}

func TestDealer_CounterKeepsCarType(t *testing.T) {
	b := bus.NewInProc()
	b.Register("buyer1")
	d := newTestDealer(b)

	d.handleProposal(domain.Message{
		Performative: domain.PerformativePropose,
		Sender:       "buyer1",
		Body:         "Toyota,100",
	})
	m, _ := b.Receive(context.Background(), "buyer1", bus.Filter{}, time.Second)
	if !strings.HasPrefix(m.Body, "Toyota,") {
		t.Errorf("counter body = %q", m.Body)
	}
}
