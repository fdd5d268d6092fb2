// Package broker implements the marketplace broker: the listing
// directory, cheapest-price matching, deal finalization with
// de-duplicated commission crediting, and the commission ledger.
package broker

import (
	"context"
	"log/slog"
	"time"

	"carbroker/internal/bus"
	"carbroker/internal/domain"
	"carbroker/internal/store"
)

// Broker is the single shared actor all parties reach by name. It owns
// the listing directory and the ledger; every mutation of either goes
// through its message loop, so no extra locking is needed beyond the
// stores' own.
type Broker struct {
	id           domain.PartyID
	bus          bus.Bus
	listings     *store.ListingStore
	ledger       *store.Ledger
	commission   int64
	pollInterval time.Duration
	logger       *slog.Logger
}

// New creates a Broker reachable at domain.BrokerID.
func New(b bus.Bus, listings *store.ListingStore, ledger *store.Ledger, commission int64, pollInterval time.Duration, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	if pollInterval == 0 {
		pollInterval = time.Second
	}
	return &Broker{
		id:           domain.BrokerID,
		bus:          b,
		listings:     listings,
		ledger:       ledger,
		commission:   commission,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// ID returns the broker's bus address.
func (b *Broker) ID() domain.PartyID {
	return b.id
}

// Run drives the broker's receive/decode/dispatch loop until the
// context is cancelled. Nothing a party sends can stop the loop:
// malformed messages are logged and dropped.
func (b *Broker) Run(ctx context.Context) {
	b.bus.Register(b.id)
	defer b.bus.Unregister(b.id)

	b.logger.Info("broker started")
	for {
		if ctx.Err() != nil {
			b.logger.Info("broker stopped")
			return
		}
		m, ok := b.bus.Receive(ctx, b.id, bus.Filter{}, b.pollInterval)
		if !ok {
			continue
		}
		b.dispatch(m)
	}
}

// dispatch decodes one inbound message and routes it by payload type.
func (b *Broker) dispatch(m domain.Message) {
	p, err := domain.DecodeBrokerInbound(m)
	if err != nil {
		b.logger.Warn("malformed message dropped",
			slog.String("sender", m.Sender.String()),
			slog.String("performative", string(m.Performative)),
			slog.String("body", m.Body))
		return
	}

	switch p := p.(type) {
	case domain.ListingRegistration:
		b.register(m.Sender, p)
	case domain.MatchRequest:
		b.handleMatchRequest(m.Sender, p)
	case domain.CandidateQuery:
		b.handleCandidateQuery(m.Sender, p)
	case domain.DealConfirmed:
		b.confirmDeal(p)
	case domain.DealRejected:
		b.rejectDeal(p)
	case domain.NegotiationFailed:
		b.logger.Info("negotiation failed",
			slog.String("buyer", p.BuyerID.String()),
			slog.String("dealer", p.DealerID.String()),
			slog.String("car_type", p.CarType))
	}
}

// register upserts the sender's listing. No reply is sent.
func (b *Broker) register(dealer domain.PartyID, p domain.ListingRegistration) {
	b.listings.Upsert(dealer, p.CarType, p.Price)
	b.logger.Info("listing registered",
		slog.String("dealer", dealer.String()),
		slog.String("car_type", p.CarType),
		slog.Int64("price", p.Price))
}

// handleMatchRequest replies with the cheapest exact-match listing, or
// a refusal when none matches.
func (b *Broker) handleMatchRequest(buyer domain.PartyID, p domain.MatchRequest) {
	best, ok := b.listings.FindBest(p.CarType)
	if !ok {
		_ = b.bus.Send(domain.Message{
			Performative: domain.PerformativeRefuse,
			Sender:       b.id,
			Receiver:     buyer,
			Body:         "No matching dealers",
		})
		b.logger.Info("no dealers found",
			slog.String("buyer", buyer.String()),
			slog.String("car_type", p.CarType))
		return
	}

	_ = b.bus.Send(domain.Message{
		Performative: domain.PerformativeInform,
		Sender:       b.id,
		Receiver:     buyer,
		Body:         domain.EncodeMatchReply(best.DealerID, best.Price),
	})
	b.logger.Info("buyer matched",
		slog.String("buyer", buyer.String()),
		slog.String("dealer", best.DealerID.String()),
		slog.Int64("price", best.Price))
}

// handleCandidateQuery replies with every listing matching the car
// type case-insensitively at or under the price cap. An empty list is
// a valid reply.
func (b *Broker) handleCandidateQuery(buyer domain.PartyID, p domain.CandidateQuery) {
	matches := b.listings.FindAll(p.CarType, p.MaxPrice)
	candidates := make([]domain.Candidate, 0, len(matches))
	for _, l := range matches {
		candidates = append(candidates, domain.Candidate{DealerID: l.DealerID, Price: l.Price})
	}

	_ = b.bus.Send(domain.Message{
		Performative: domain.PerformativeInform,
		Sender:       b.id,
		Receiver:     buyer,
		Body:         domain.EncodeCandidateList(candidates),
	})
	b.logger.Info("candidate query answered",
		slog.String("buyer", buyer.String()),
		slog.String("car_type", p.CarType),
		slog.Int("matches", len(candidates)))
}

// confirmDeal finalizes a deal: retire the dealer's listing, credit
// the commission, and notify both parties. Removing the listing first
// de-duplicates confirmations per (buyer, dealer): the second
// confirmation for the same dealer finds no listing and credits
// nothing.
func (b *Broker) confirmDeal(p domain.DealConfirmed) {
	if _, ok := b.listings.Remove(p.DealerID); !ok {
		b.logger.Debug("duplicate deal confirmation ignored",
			slog.String("buyer", p.BuyerID.String()),
			slog.String("dealer", p.DealerID.String()))
		return
	}

	manual := p.BuyerID.Manual() || p.DealerID.Manual()
	b.ledger.Credit(b.commission, manual)

	_ = b.bus.Send(domain.Message{
		Performative: domain.PerformativeConfirm,
		Sender:       b.id,
		Receiver:     p.BuyerID,
		Body:         domain.EncodeDealCompleted(p.DealerID, p.CarType, p.Price),
	})
	_ = b.bus.Send(domain.Message{
		Performative: domain.PerformativeConfirm,
		Sender:       b.id,
		Receiver:     p.DealerID,
		Body:         domain.EncodeDealCompleted(p.BuyerID, p.CarType, p.Price),
	})

	b.logger.Info("deal confirmed",
		slog.String("buyer", p.BuyerID.String()),
		slog.String("dealer", p.DealerID.String()),
		slog.String("car_type", p.CarType),
		slog.Int64("price", p.Price),
		slog.Int64("commission", b.commission),
		slog.Bool("manual", manual))
}

// rejectDeal retires the dealer's listing and notifies both parties.
// There is no commission effect.
func (b *Broker) rejectDeal(p domain.DealRejected) {
	b.listings.Remove(p.DealerID)

	_ = b.bus.Send(domain.Message{
		Performative: domain.PerformativeConfirm,
		Sender:       b.id,
		Receiver:     p.BuyerID,
		Body:         domain.EncodeDealOff(p.DealerID, p.CarType),
	})
	_ = b.bus.Send(domain.Message{
		Performative: domain.PerformativeConfirm,
		Sender:       b.id,
		Receiver:     p.DealerID,
		Body:         domain.EncodeDealOff(p.BuyerID, p.CarType),
	})

	b.logger.Info("deal rejected",
		slog.String("buyer", p.BuyerID.String()),
		slog.String("dealer", p.DealerID.String()),
		slog.String("car_type", p.CarType))
}
