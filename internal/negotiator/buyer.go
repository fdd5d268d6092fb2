package negotiator

import (
	"context"
	"log/slog"
	"time"

	"carbroker/internal/bus"
	"carbroker/internal/domain"
)

// BuyerConfig carries the construction parameters for a Buyer.
type BuyerConfig struct {
	ID           domain.PartyID
	CarType      string
	InitialOffer int64
	ReservePrice int64
	MinRounds    int

	Bus    bus.Bus
	Broker domain.PartyID
	Policy Policy
	Logger *slog.Logger

	// ContactTimeout bounds the wait for the broker's match reply;
	// ResponseTimeout bounds each round's wait for the dealer.
	ContactTimeout  time.Duration
	ResponseTimeout time.Duration
}

// Buyer is the automated buyer negotiator: it discovers the cheapest
// dealer through the broker, then runs a bounded-round offer loop
// against that one dealer.
type Buyer struct {
	cfg BuyerConfig
}

// NewBuyer creates a Buyer, applying defaults for unset config fields.
func NewBuyer(cfg BuyerConfig) *Buyer {
	if cfg.Broker == "" {
		cfg.Broker = domain.BrokerID
	}
	if cfg.Policy == nil {
		cfg.Policy = AutomatedPolicy{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MinRounds == 0 {
		cfg.MinRounds = 3
	}
	if cfg.ContactTimeout == 0 {
		cfg.ContactTimeout = 30 * time.Second
	}
	if cfg.ResponseTimeout == 0 {
		cfg.ResponseTimeout = 15 * time.Second
	}
	return &Buyer{cfg: cfg}
}

// Run executes the whole buyer lifecycle: discover, negotiate,
// finalize. It returns the terminal state. A failed discovery ends the
// run with no further messages; any other unsuccessful terminal state
// is reported to the broker as a negotiation failure.
func (b *Buyer) Run(ctx context.Context) State {
	cfg := b.cfg
	cfg.Bus.Register(cfg.ID)
	defer cfg.Bus.Unregister(cfg.ID)

	reply, ok := b.discover(ctx)
	if !ok {
		return StateTimedOut
	}

	cfg.Logger.Info("matched with dealer",
		slog.String("buyer", cfg.ID.String()),
		slog.String("dealer", reply.DealerID.String()),
		slog.Int64("price", reply.Price))

	sess := &Session{
		CarType:      cfg.CarType,
		CurrentOffer: cfg.InitialOffer,
		ReservePrice: cfg.ReservePrice,
		MinRounds:    cfg.MinRounds,
		State:        StateNegotiating,
	}

	finalPrice := Negotiate(ctx, cfg.Bus, cfg.ID, reply.DealerID, sess, cfg.Policy, cfg.ResponseTimeout, cfg.Logger)

	if sess.State == StateAccepted {
		_ = cfg.Bus.Send(domain.Message{
			Performative: domain.PerformativeInform,
			Sender:       cfg.ID,
			Receiver:     cfg.Broker,
			Body:         domain.EncodeDealConfirmed(cfg.ID, reply.DealerID, cfg.CarType, finalPrice),
		})
		cfg.Logger.Info("deal accepted",
			slog.String("buyer", cfg.ID.String()),
			slog.String("dealer", reply.DealerID.String()),
			slog.Int64("price", finalPrice))
	} else {
		_ = cfg.Bus.Send(domain.Message{
			Performative: domain.PerformativeFailure,
			Sender:       cfg.ID,
			Receiver:     cfg.Broker,
			Body:         domain.EncodeNegotiationFailed(cfg.ID, reply.DealerID, cfg.CarType),
		})
		cfg.Logger.Info("negotiation failed",
			slog.String("buyer", cfg.ID.String()),
			slog.String("dealer", reply.DealerID.String()),
			slog.String("state", sess.State.String()))
	}
	return sess.State
}

// discover asks the broker for the cheapest dealer of the wanted car
// type. No reply within the contact timeout, a refusal, or a malformed
// reply all end discovery.
func (b *Buyer) discover(ctx context.Context) (domain.MatchReply, bool) {
	cfg := b.cfg
	err := cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativeRequest,
		Sender:       cfg.ID,
		Receiver:     cfg.Broker,
		Body:         cfg.CarType,
	})
	if err != nil {
		cfg.Logger.Warn("broker contact failed",
			slog.String("buyer", cfg.ID.String()),
			slog.String("error", err.Error()))
		return domain.MatchReply{}, false
	}

	m, ok := cfg.Bus.Receive(ctx, cfg.ID, bus.Filter{
		Sender:        cfg.Broker,
		Performatives: []domain.Performative{domain.PerformativeInform, domain.PerformativeRefuse},
	}, cfg.ContactTimeout)
	if !ok {
		cfg.Logger.Info("no broker reply", slog.String("buyer", cfg.ID.String()))
		return domain.MatchReply{}, false
	}
	if m.Performative == domain.PerformativeRefuse {
		cfg.Logger.Info("no matching dealers",
			slog.String("buyer", cfg.ID.String()),
			slog.String("car_type", cfg.CarType))
		return domain.MatchReply{}, false
	}

	reply, err := domain.ParseMatchReply(m.Body)
	if err != nil {
		cfg.Logger.Warn("malformed match reply dropped",
			slog.String("buyer", cfg.ID.String()),
			slog.String("body", m.Body))
		return domain.MatchReply{}, false
	}
	return reply, true
}

// Negotiate runs the offer/counter-offer loop for buyerID against
// dealer until the session leaves StateNegotiating, and returns the
// final price when the session ends accepted. Rounds count from 1 on
// the first offer. The caller owns finalization with the broker.
func Negotiate(
	ctx context.Context,
	b bus.Bus,
	buyerID, dealer domain.PartyID,
	sess *Session,
	policy Policy,
	responseTimeout time.Duration,
	logger *slog.Logger,
) int64 {
	var finalPrice int64

	for sess.State == StateNegotiating {
		if ctx.Err() != nil {
			sess.State = StateTimedOut
			break
		}

		sess.Round++
		err := b.Send(domain.Message{
			Performative: domain.PerformativePropose,
			Sender:       buyerID,
			Receiver:     dealer,
			Body:         domain.EncodeProposal(sess.CarType, sess.CurrentOffer),
		})
		if err != nil {
			logger.Warn("offer delivery failed",
				slog.String("buyer", buyerID.String()),
				slog.String("dealer", dealer.String()),
				slog.String("error", err.Error()))
			sess.State = StateTimedOut
			break
		}
		logger.Debug("offer sent",
			slog.String("buyer", buyerID.String()),
			slog.Int("round", sess.Round),
			slog.Int64("offer", sess.CurrentOffer))

		m, ok := b.Receive(ctx, buyerID, bus.Filter{
			Sender: dealer,
			Performatives: []domain.Performative{
				domain.PerformativeAccept,
				domain.PerformativeReject,
				domain.PerformativePropose,
			},
		}, responseTimeout)
		if !ok {
			logger.Info("response timeout",
				slog.String("buyer", buyerID.String()),
				slog.String("dealer", dealer.String()))
			sess.State = StateTimedOut
			break
		}

		switch m.Performative {
		case domain.PerformativeAccept:
			sess.State = StateAccepted
			finalPrice = sess.CurrentOffer

		case domain.PerformativeReject:
			sess.State = StateRejected

		case domain.PerformativePropose:
			counter, err := domain.ParseProposal(m.Body)
			if err != nil {
				logger.Warn("malformed counter-offer dropped",
					slog.String("buyer", buyerID.String()),
					slog.String("body", m.Body))
				sess.State = StateTimedOut
				break
			}
			logger.Debug("counter received",
				slog.String("buyer", buyerID.String()),
				slog.Int64("counter", counter.Price))

			d := policy.Decide(sess, counter.Price)
			switch d.Action {
			case ActionAccept:
				_ = b.Send(domain.Message{
					Performative: domain.PerformativeAccept,
					Sender:       buyerID,
					Receiver:     dealer,
				})
				finalPrice = d.Offer
			case ActionReject:
				_ = b.Send(domain.Message{
					Performative: domain.PerformativeReject,
					Sender:       buyerID,
					Receiver:     dealer,
				})
			}
			// ActionCounter loops; ActionGiveUp ends via session state.
		}
	}

	return finalPrice
}
