package manual

import (
	"context"
	"log/slog"
	"time"

	"carbroker/internal/bus"
	"carbroker/internal/domain"
	"carbroker/internal/store"
)

// DealerConfig carries the construction parameters for a manual Dealer.
type DealerConfig struct {
	ID        domain.PartyID
	CarType   string
	ListPrice int64

	Bus        bus.Bus
	Broker     domain.PartyID
	Acceptance *store.AcceptanceStore
	Logger     *slog.Logger

	PollInterval time.Duration
}

// Dealer is a human-supervised dealer. It registers its listing like
// an automated dealer, but every decision about an incoming offer is
// made by the supervising human through Accept, Reject, or Propose.
type Dealer struct {
	cfg DealerConfig

	inbox *chatQueue
	board *statusBoard
}

// NewDealer creates a manual Dealer, applying defaults for unset fields.
func NewDealer(cfg DealerConfig) *Dealer {
	if cfg.Broker == "" {
		cfg.Broker = domain.BrokerID
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	return &Dealer{
		cfg:   cfg,
		inbox: &chatQueue{},
		board: newStatusBoard(),
	}
}

// ID returns the dealer's bus address.
func (d *Dealer) ID() domain.PartyID { return d.cfg.ID }

// Run registers the listing with the broker and pumps inbound messages
// into the inbox until the context is cancelled. Unlike the automated
// dealer it never answers a proposal on its own.
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
		m, ok := cfg.Bus.Receive(ctx, cfg.ID, bus.Filter{}, cfg.PollInterval)
		if !ok {
			continue
		}
		d.dispatch(m)
	}
}

func (d *Dealer) dispatch(m domain.Message) {
	cfg := d.cfg

	switch m.Performative {
	case domain.PerformativeConfirm:
		if m.Sender == cfg.Broker {
			d.handleBrokerNotice(m)
			return
		}
		// Buyer's acceptance notice.
		d.board.set(m.Sender, statusAccepted)
		d.inbox.push(ChatMessage{
			From:         m.Sender,
			Performative: m.Performative,
			Body:         m.Body,
			ReceivedAt:   time.Now(),
		})

	case domain.PerformativeReject:
		d.board.set(m.Sender, statusRejected)

	case domain.PerformativePropose, domain.PerformativeInform:
		// Offers and chat both go to the human.
		d.inbox.push(ChatMessage{
			From:         m.Sender,
			Performative: m.Performative,
			Body:         m.Body,
			ReceivedAt:   time.Now(),
		})
	}
}

func (d *Dealer) handleBrokerNotice(m domain.Message) {
	notice, err := domain.ParseCompletionNotice(m.Body)
	if err != nil {
		d.cfg.Logger.Warn("malformed broker notice dropped",
			slog.String("dealer", d.cfg.ID.String()),
			slog.String("body", m.Body))
		return
	}
	switch n := notice.(type) {
	case domain.DealCompleted:
		d.board.set(n.Counterpart, statusFinalized)
		d.cfg.Logger.Info("deal completed",
			slog.String("dealer", d.cfg.ID.String()),
			slog.String("buyer", n.Counterpart.String()),
			slog.Int64("price", n.Price))
	case domain.DealOff:
		d.board.set(n.Counterpart, statusRejected)
	}
}

// Accept records the dealer's acceptance of the buyer's interest and
// notifies the buyer. If this call observes mutuality it sends the
// single DEAL_CONFIRMED to the broker, at the dealer's list price.
func (d *Dealer) Accept(buyer domain.PartyID) (string, error) {
	cfg := d.cfg

	if cfg.Acceptance.Rejected(buyer, cfg.ID) {
		d.board.set(buyer, statusRejected)
		return statusRejected, domain.ErrNegotiationClosed
	}

	mutual, shouldNotify := cfg.Acceptance.RecordAccept(store.RoleDealer, buyer, cfg.ID)

	_ = cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativeAccept,
		Sender:       cfg.ID,
		Receiver:     buyer,
		Body:         "DEALER_ACCEPT",
	})

	if shouldNotify {
		_ = cfg.Bus.Send(domain.Message{
			Performative: domain.PerformativeInform,
			Sender:       cfg.ID,
			Receiver:     cfg.Broker,
			Body:         domain.EncodeDealConfirmed(buyer, cfg.ID, cfg.CarType, cfg.ListPrice),
		})
		cfg.Logger.Info("mutual acceptance, deal sent to broker",
			slog.String("dealer", cfg.ID.String()),
			slog.String("buyer", buyer.String()),
			slog.Int64("price", cfg.ListPrice))
	}

	if mutual {
		d.board.set(buyer, statusFinalized)
		return statusFinalized, nil
	}
	d.board.set(buyer, statusAwaiting)
	return statusAwaiting, nil
}

// Reject is terminal for the pair: it tells the buyer and the broker.
func (d *Dealer) Reject(buyer domain.PartyID) {
	cfg := d.cfg

	cfg.Acceptance.RecordReject(buyer, cfg.ID)

	_ = cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativeReject,
		Sender:       cfg.ID,
		Receiver:     buyer,
		Body:         "DEALER_REJECT",
	})
	_ = cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativeInform,
		Sender:       cfg.ID,
		Receiver:     cfg.Broker,
		Body:         domain.EncodeDealRejected(buyer, cfg.ID, cfg.CarType),
	})
	d.board.set(buyer, statusRejected)
}

// Propose sends a counter-offer to the buyer.
func (d *Dealer) Propose(buyer domain.PartyID, price int64) error {
	return d.cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativePropose,
		Sender:       d.cfg.ID,
		Receiver:     buyer,
		Body:         domain.EncodeProposal(d.cfg.CarType, price),
	})
}

// SendChat delivers a free-form chat line to the counterpart.
func (d *Dealer) SendChat(to domain.PartyID, text string) error {
	return d.cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativeInform,
		Sender:       d.cfg.ID,
		Receiver:     to,
		Body:         text,
	})
}

// PollMessage pops the oldest inbound message, if any.
func (d *Dealer) PollMessage() (ChatMessage, bool) {
	return d.inbox.poll()
}

// Messages drains the inbound queue.
func (d *Dealer) Messages() []ChatMessage {
	return d.inbox.drain()
}

// Statuses returns the per-buyer status lines.
func (d *Dealer) Statuses() map[domain.PartyID]string {
	return d.board.snapshot()
}
