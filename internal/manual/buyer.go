package manual

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"carbroker/internal/bus"
	"carbroker/internal/domain"
	"carbroker/internal/negotiator"
	"carbroker/internal/store"
)

// BuyerConfig carries the construction parameters for a manual Buyer.
type BuyerConfig struct {
	ID           domain.PartyID
	CarType      string
	InitialOffer int64
	ReservePrice int64

	Bus        bus.Bus
	Broker     domain.PartyID
	Acceptance *store.AcceptanceStore
	Logger     *slog.Logger

	// QueryTimeout bounds the wait for the broker's candidate list;
	// ResponseTimeout bounds each guided-negotiation round (human
	// paced, so much longer than the automated default).
	QueryTimeout    time.Duration
	ResponseTimeout time.Duration
	PollInterval    time.Duration
}

// Buyer is a human-supervised buyer. The human drives it through the
// exported methods; Run pumps the bus mailbox in the background,
// queueing chat and surfacing counterpart decisions.
type Buyer struct {
	cfg BuyerConfig

	inbox  *chatQueue
	board  *statusBoard
	policy *negotiator.ManualPolicy

	// candidatesCh hands the broker's candidate reply from the Run
	// loop to a waiting QueryCandidates call.
	candidatesCh chan []domain.Candidate

	// negotiating admits at most one guided session at a time.
	negotiating atomic.Bool

	// session, while non-nil, receives the counterpart's negotiation
	// traffic from the Run pump.
	sessionMu sync.Mutex
	session   *guidedSession

	mu         sync.Mutex
	candidates map[domain.PartyID]int64 // dealer → listed price from the last query
}

// guidedSession is the pump's view of an active guided negotiation:
// PROPOSE, ACCEPT and REJECT from the counterpart are handed to the
// session through inbound instead of being dispatched as chat.
type guidedSession struct {
	dealer  domain.PartyID
	inbound chan domain.Message
}

// NewBuyer creates a manual Buyer, applying defaults for unset fields.
func NewBuyer(cfg BuyerConfig) *Buyer {
	if cfg.Broker == "" {
		cfg.Broker = domain.BrokerID
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 3 * time.Second
	}
	if cfg.ResponseTimeout == 0 {
		cfg.ResponseTimeout = 2 * time.Minute
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	return &Buyer{
		cfg:          cfg,
		inbox:        &chatQueue{},
		board:        newStatusBoard(),
		policy:       negotiator.NewManualPolicy(),
		candidatesCh: make(chan []domain.Candidate, 1),
		candidates:   make(map[domain.PartyID]int64),
	}
}

// ID returns the buyer's bus address.
func (b *Buyer) ID() domain.PartyID { return b.cfg.ID }

// Run registers the mailbox and pumps inbound messages until the
// context is cancelled. While a guided negotiation session is active
// the pump forwards the counterpart's negotiation traffic to it.
func (b *Buyer) Run(ctx context.Context) {
	cfg := b.cfg
	cfg.Bus.Register(cfg.ID)
	defer cfg.Bus.Unregister(cfg.ID)
	defer b.policy.Close()

	for {
		if ctx.Err() != nil {
			return
		}
		m, ok := cfg.Bus.Receive(ctx, cfg.ID, bus.Filter{}, cfg.PollInterval)
		if !ok {
			continue
		}
		b.dispatch(m)
	}
}

func (b *Buyer) guided() *guidedSession {
	b.sessionMu.Lock()
	defer b.sessionMu.Unlock()
	return b.session
}

func (b *Buyer) dispatch(m domain.Message) {
	cfg := b.cfg

	if gs := b.guided(); gs != nil && m.Sender == gs.dealer {
		switch m.Performative {
		case domain.PerformativePropose, domain.PerformativeAccept, domain.PerformativeReject:
			select {
			case gs.inbound <- m:
			default:
				cfg.Logger.Warn("guided session inbound full, message dropped",
					slog.String("buyer", cfg.ID.String()),
					slog.String("dealer", gs.dealer.String()))
			}
			return
		}
	}

	switch m.Performative {
	case domain.PerformativeInform:
		if m.Sender == cfg.Broker {
			// Candidate list reply for a waiting QueryCandidates.
			candidates, err := domain.ParseCandidateList(m.Body)
			if err != nil {
				cfg.Logger.Warn("malformed candidate list dropped",
					slog.String("buyer", cfg.ID.String()),
					slog.String("body", m.Body))
				return
			}
			select {
			case b.candidatesCh <- candidates:
			default:
			}
			return
		}
		// Free-form chat from a counterpart.
		b.inbox.push(ChatMessage{
			From:         m.Sender,
			Performative: m.Performative,
			Body:         m.Body,
			ReceivedAt:   time.Now(),
		})

	case domain.PerformativeConfirm:
		if m.Sender == cfg.Broker {
			b.handleBrokerNotice(m)
			return
		}
		// Counterpart's acceptance notice; the shared acceptance
		// record was already updated by the acceptor.
		b.board.set(m.Sender, statusAccepted)
		b.inbox.push(ChatMessage{
			From:         m.Sender,
			Performative: m.Performative,
			Body:         m.Body,
			ReceivedAt:   time.Now(),
		})

	case domain.PerformativeAccept:
		b.board.set(m.Sender, statusAccepted)

	case domain.PerformativeReject:
		b.board.set(m.Sender, statusRejected)

	case domain.PerformativePropose:
		// Counter-offer outside a guided session; surface it to the
		// human.
		b.inbox.push(ChatMessage{
			From:         m.Sender,
			Performative: m.Performative,
			Body:         m.Body,
			ReceivedAt:   time.Now(),
		})
	}
}

func (b *Buyer) handleBrokerNotice(m domain.Message) {
	notice, err := domain.ParseCompletionNotice(m.Body)
	if err != nil {
		b.cfg.Logger.Warn("malformed broker notice dropped",
			slog.String("buyer", b.cfg.ID.String()),
			slog.String("body", m.Body))
		return
	}
	switch n := notice.(type) {
	case domain.DealCompleted:
		b.board.set(n.Counterpart, statusFinalized)
		b.cfg.Logger.Info("deal completed",
			slog.String("buyer", b.cfg.ID.String()),
			slog.String("dealer", n.Counterpart.String()),
			slog.Int64("price", n.Price))
	case domain.DealOff:
		b.board.set(n.Counterpart, statusRejected)
	}
}

// QueryCandidates asks the broker for dealers of the wanted car type
// within the reserve price. The match is case-insensitive and an empty
// result is not an error.
func (b *Buyer) QueryCandidates(ctx context.Context) ([]domain.Candidate, error) {
	cfg := b.cfg

	// Flush a stale reply from an earlier timed-out query.
	select {
	case <-b.candidatesCh:
	default:
	}

	err := cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativeQueryIf,
		Sender:       cfg.ID,
		Receiver:     cfg.Broker,
		Body:         domain.EncodeCandidateQuery(cfg.CarType, cfg.ReservePrice),
	})
	if err != nil {
		return nil, err
	}

	select {
	case candidates := <-b.candidatesCh:
		b.mu.Lock()
		for _, c := range candidates {
			b.candidates[c.DealerID] = c.Price
		}
		b.mu.Unlock()
		return candidates, nil
	case <-time.After(cfg.QueryTimeout):
		return nil, domain.ErrNoMatch
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// candidatePrice returns the dealer's listed price from the last
// candidate query.
func (b *Buyer) candidatePrice(dealer domain.PartyID) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.candidates[dealer]
	return p, ok
}

// Accept records the buyer's acceptance of the dealer's listed offer
// and notifies the dealer. If this call observes mutuality it sends
// the single DEAL_CONFIRMED to the broker; otherwise the deal waits
// for the counterpart. Returns the buyer's resulting status line.
func (b *Buyer) Accept(dealer domain.PartyID) (string, error) {
	price, ok := b.candidatePrice(dealer)
	if !ok {
		return "", domain.ErrUnknownCounterpart
	}
	return b.accept(dealer, price)
}

func (b *Buyer) accept(dealer domain.PartyID, price int64) (string, error) {
	cfg := b.cfg

	if cfg.Acceptance.Rejected(cfg.ID, dealer) {
		b.board.set(dealer, statusRejected)
		return statusRejected, domain.ErrNegotiationClosed
	}

	mutual, shouldNotify := cfg.Acceptance.RecordAccept(store.RoleBuyer, cfg.ID, dealer)

	_ = cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativeConfirm,
		Sender:       cfg.ID,
		Receiver:     dealer,
		Body:         "BUYER_ACCEPT",
	})

	if shouldNotify {
		_ = cfg.Bus.Send(domain.Message{
			Performative: domain.PerformativeInform,
			Sender:       cfg.ID,
			Receiver:     cfg.Broker,
			Body:         domain.EncodeDealConfirmed(cfg.ID, dealer, cfg.CarType, price),
		})
		cfg.Logger.Info("mutual acceptance, deal sent to broker",
			slog.String("buyer", cfg.ID.String()),
			slog.String("dealer", dealer.String()),
			slog.Int64("price", price))
	}

	if mutual {
		b.board.set(dealer, statusFinalized)
		return statusFinalized, nil
	}
	b.board.set(dealer, statusAwaiting)
	return statusAwaiting, nil
}

// Reject is terminal: it tells the dealer and the broker, and any
// prior or later accept by the counterpart is ignored.
func (b *Buyer) Reject(dealer domain.PartyID) {
	cfg := b.cfg

	cfg.Acceptance.RecordReject(cfg.ID, dealer)

	_ = cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativeReject,
		Sender:       cfg.ID,
		Receiver:     dealer,
		Body:         "BUYER_REJECT",
	})
	_ = cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativeInform,
		Sender:       cfg.ID,
		Receiver:     cfg.Broker,
		Body:         domain.EncodeDealRejected(cfg.ID, dealer, cfg.CarType),
	})
	b.board.set(dealer, statusRejected)
}

// Propose sends a one-off offer to the dealer outside a guided
// session.
func (b *Buyer) Propose(dealer domain.PartyID, price int64) error {
	return b.cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativePropose,
		Sender:       b.cfg.ID,
		Receiver:     dealer,
		Body:         domain.EncodeProposal(b.cfg.CarType, price),
	})
}

// StartNegotiation launches a guided offer/counter-offer session
// against the dealer, driven round by round through SubmitDecision.
// The session opens with the buyer's initial offer.
func (b *Buyer) StartNegotiation(ctx context.Context, dealer domain.PartyID) error {
	if !b.negotiating.CompareAndSwap(false, true) {
		return domain.ErrNegotiationClosed
	}

	// Routing must be in place before the opening offer goes out, or a
	// fast counterpart's reply could land in the chat inbox instead of
	// the session.
	gs := &guidedSession{dealer: dealer, inbound: make(chan domain.Message, 16)}
	b.sessionMu.Lock()
	b.session = gs
	b.sessionMu.Unlock()

	go func() {
		defer func() {
			b.sessionMu.Lock()
			b.session = nil
			b.sessionMu.Unlock()
			b.negotiating.Store(false)
		}()
		cfg := b.cfg

		sess := &negotiator.Session{
			CarType:      cfg.CarType,
			CurrentOffer: cfg.InitialOffer,
			ReservePrice: cfg.ReservePrice,
			State:        negotiator.StateNegotiating,
		}
		sb := &sessionBus{Bus: cfg.Bus, inbound: gs.inbound}
		price := negotiator.Negotiate(ctx, sb, cfg.ID, dealer, sess, b.policy, cfg.ResponseTimeout, cfg.Logger)

		switch sess.State {
		case negotiator.StateAccepted:
			if _, err := b.accept(dealer, price); err != nil {
				cfg.Logger.Warn("guided session ended on closed deal",
					slog.String("buyer", cfg.ID.String()),
					slog.String("dealer", dealer.String()))
			}
		case negotiator.StateRejected:
			// The session already told the dealer; record and tell
			// the broker.
			cfg.Acceptance.RecordReject(cfg.ID, dealer)
			_ = cfg.Bus.Send(domain.Message{
				Performative: domain.PerformativeInform,
				Sender:       cfg.ID,
				Receiver:     cfg.Broker,
				Body:         domain.EncodeDealRejected(cfg.ID, dealer, cfg.CarType),
			})
			b.board.set(dealer, statusRejected)
		default:
			b.board.set(dealer, "negotiation abandoned")
		}
	}()
	return nil
}

// SubmitDecision feeds the human's next move to the active guided
// session.
func (b *Buyer) SubmitDecision(d negotiator.Decision) error {
	if !b.negotiating.Load() {
		return domain.ErrNegotiationClosed
	}
	b.policy.Submit(d)
	return nil
}

// SendChat delivers a free-form chat line to the counterpart.
func (b *Buyer) SendChat(to domain.PartyID, text string) error {
	return b.cfg.Bus.Send(domain.Message{
		Performative: domain.PerformativeInform,
		Sender:       b.cfg.ID,
		Receiver:     to,
		Body:         text,
	})
}

// PollMessage pops the oldest inbound message, if any.
func (b *Buyer) PollMessage() (ChatMessage, bool) {
	return b.inbox.poll()
}

// Messages drains the inbound queue.
func (b *Buyer) Messages() []ChatMessage {
	return b.inbox.drain()
}

// Statuses returns the per-dealer status lines.
func (b *Buyer) Statuses() map[domain.PartyID]string {
	return b.board.snapshot()
}

// sessionBus overlays a guided session's inbound channel on the shared
// bus: sends go out normally, receives come from the Run pump. The
// session and the pump therefore never contend for the same mailbox.
type sessionBus struct {
	bus.Bus
	inbound <-chan domain.Message
}

func (s *sessionBus) Receive(ctx context.Context, _ domain.PartyID, f bus.Filter, timeout time.Duration) (domain.Message, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case m := <-s.inbound:
			if f.Matches(m) {
				return m, true
			}
		case <-timer.C:
			return domain.Message{}, false
		case <-ctx.Done():
			return domain.Message{}, false
		}
	}
}
