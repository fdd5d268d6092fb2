package negotiator

import (
	"context"
	"log/slog"
	"math"
	"time"

	"carbroker/internal/bus"
	"carbroker/internal/domain"
)

// Per-round discount compounding and the hard floor, as fractions of
// the list price.
const (
	roundDiscount = 0.95
	priceFloor    = 0.70
)

// counterOffer computes the dealer's floor for the given round: the
// list price discounted 5% per round, never below 70% of list.
func counterOffer(listPrice int64, round int) int64 {
	discounted := int64(float64(listPrice) * math.Pow(roundDiscount, float64(round)))
	floor := int64(float64(listPrice) * priceFloor)
	if discounted < floor {
		return floor
	}
	return discounted
}

// DealerConfig carries the construction parameters for a Dealer.
type DealerConfig struct {
	ID        domain.PartyID
	CarType   string
	ListPrice int64

	Bus    bus.Bus
	Broker domain.PartyID
	Logger *slog.Logger

	// PollInterval is the listen loop's receive timeout; it only
	// bounds how quickly the loop notices shutdown.
	PollInterval time.Duration
}

// Dealer is the automated dealer negotiator. It registers one listing
// with the broker and answers proposals with an exponentially decaying
// counter-offer floor until its deal is confirmed.
type Dealer struct {
	cfg DealerConfig

	// rounds counts proposals per buyer. It grows monotonically for
	// the whole relationship and is never reset, even if the buyer
	// restarts negotiation.
	rounds map[domain.PartyID]int
}

// NewDealer creates a Dealer, applying defaults for unset config fields.
func NewDealer(cfg DealerConfig) *Dealer {
	if cfg.Broker == "" {
		cfg.Broker = domain.BrokerID
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	return &Dealer{
		cfg:    cfg,
		rounds: make(map[domain.PartyID]int),
	}
}

// Run registers the listing and serves proposals until the context is
// cancelled or the broker reports the dealer's deal closed. The listing
// is retired broker-side on confirmation or rejection; a dealer must
// re-register to sell again.
func (d *Dealer) Run(ctx context.Context) {
	cfg := d.cfg
	cfg.Bus.Register(cfg.ID)
	defer cfg.Bus.Unregister(cfg.ID)

	err := cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativeInform,
		Sender:       cfg.ID,
		Receiver:     cfg.Broker,
		Body:         domain.EncodeListing(cfg.CarType, cfg.ListPrice),
	})
	if err != nil {
		cfg.Logger.Warn("listing registration failed",
			slog.String("dealer", cfg.ID.String()),
			slog.String("error", err.Error()))
		return
	}
	cfg.Logger.Info("listing registered",
		slog.String("dealer", cfg.ID.String()),
		slog.String("car_type", cfg.CarType),
		slog.Int64("list_price", cfg.ListPrice))

	for {
		if ctx.Err() != nil {
			return
		}
		m, ok := cfg.Bus.Receive(ctx, cfg.ID, bus.Filter{
			Performatives: []domain.Performative{
				domain.PerformativePropose,
				domain.PerformativeConfirm,
			},
		}, cfg.PollInterval)
		if !ok {
			continue
		}

		switch m.Performative {
		case domain.PerformativeConfirm:
			notice, err := domain.ParseCompletionNotice(m.Body)
			if err != nil {
				cfg.Logger.Warn("malformed broker notice dropped",
					slog.String("dealer", cfg.ID.String()),
					slog.String("body", m.Body))
				continue
			}
			switch n := notice.(type) {
			case domain.DealCompleted:
				cfg.Logger.Info("deal completed",
					slog.String("dealer", cfg.ID.String()),
					slog.String("buyer", n.Counterpart.String()),
					slog.Int64("price", n.Price))
				return
			case domain.DealOff:
				cfg.Logger.Info("deal rejected, listing retired",
					slog.String("dealer", cfg.ID.String()),
					slog.String("buyer", n.Counterpart.String()))
				return
			}

		case domain.PerformativePropose:
			d.handleProposal(m)
		}
	}
}

// handleProposal answers one buyer offer: accept at or above the
// current round's floor, counter below it. A malformed proposal gets a
// FAILURE reply and changes no state.
func (d *Dealer) handleProposal(m domain.Message) {
	cfg := d.cfg

	p, err := domain.ParseProposal(m.Body)
	if err != nil {
		cfg.Logger.Warn("malformed proposal",
			slog.String("dealer", cfg.ID.String()),
			slog.String("buyer", m.Sender.String()),
			slog.String("body", m.Body))
		_ = cfg.Bus.Send(domain.Message{
			Performative: domain.PerformativeFailure,
			Sender:       cfg.ID,
			Receiver:     m.Sender,
		})
		return
	}

	d.rounds[m.Sender]++
	counter := counterOffer(cfg.ListPrice, d.rounds[m.Sender])

	cfg.Logger.Debug("offer received",
		slog.String("dealer", cfg.ID.String()),
		slog.String("buyer", m.Sender.String()),
		slog.Int("round", d.rounds[m.Sender]),
		slog.Int64("offer", p.Price),
		slog.Int64("floor", counter))

	if p.Price >= counter {
		_ = cfg.Bus.Send(domain.Message{
			Performative: domain.PerformativeAccept,
			Sender:       cfg.ID,
			Receiver:     m.Sender,
		})
		// The deal is reported at the original list price, not the
		// accepted offer.
		_ = cfg.Bus.Send(domain.Message{
			Performative: domain.PerformativeInform,
			Sender:       cfg.ID,
			Receiver:     cfg.Broker,
			Body:         domain.EncodeDealConfirmed(m.Sender, cfg.ID, cfg.CarType, cfg.ListPrice),
		})
		cfg.Logger.Info("offer accepted",
			slog.String("dealer", cfg.ID.String()),
			slog.String("buyer", m.Sender.String()),
			slog.Int64("offer", p.Price))
		return
	}

	_ = cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativePropose,
		Sender:       cfg.ID,
		Receiver:     m.Sender,
		Body:         domain.EncodeProposal(cfg.CarType, counter),
	})
}
