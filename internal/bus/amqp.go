package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"carbroker/internal/domain"
)

// queuePrefix namespaces the per-party queues on a shared broker.
const queuePrefix = "carbroker."

// AMQP is a Bus backed by a RabbitMQ server: one durable queue per
// registered party, a consumer goroutine per party feeding the same
// in-memory mailbox structure the in-process bus uses, so filtering
// and ordering semantics are identical. Selected when AMQP_URL is set.
type AMQP struct {
	url    string
	logger *slog.Logger

	connMu sync.Mutex
	conn   *amqp.Connection
	pubCh  *amqp.Channel

	mu        sync.Mutex
	mailboxes map[domain.PartyID]*mailbox
	cancels   map[domain.PartyID]context.CancelFunc
}

// DialAMQP connects to the AMQP server at url.
func DialAMQP(url string, logger *slog.Logger) (*AMQP, error) {
	b := &AMQP{
		url:       url,
		logger:    logger,
		mailboxes: make(map[domain.PartyID]*mailbox),
		cancels:   make(map[domain.PartyID]context.CancelFunc),
	}
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

// connect dials the server unless the current connection is still
// healthy.
func (b *AMQP) connect() error {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if b.conn != nil && !b.conn.IsClosed() {
		return nil
	}
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	b.conn = conn
	b.pubCh = ch
	return nil
}

// Close shuts down all consumers and the connection.
func (b *AMQP) Close() error {
	b.mu.Lock()
	for _, cancel := range b.cancels {
		cancel()
	}
	b.mu.Unlock()

	b.connMu.Lock()
	defer b.connMu.Unlock()
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

// Register declares the party's queue and starts a consumer goroutine
// that drains it into a local mailbox.
func (b *AMQP) Register(party domain.PartyID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.mailboxes[party]; ok {
		return
	}
	mb := newMailbox()
	b.mailboxes[party] = mb

	ctx, cancel := context.WithCancel(context.Background())
	b.cancels[party] = cancel
	go b.consume(ctx, party, mb)
}

// Unregister stops the party's consumer and discards its mailbox. The
// server-side queue is left declared; pending messages stay on it.
func (b *AMQP) Unregister(party domain.PartyID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cancel, ok := b.cancels[party]; ok {
		cancel()
		delete(b.cancels, party)
	}
	delete(b.mailboxes, party)
}

// Send publishes the message to the receiver's queue.
func (b *AMQP) Send(m domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if err := b.connect(); err != nil {
		return err
	}

	b.connMu.Lock()
	defer b.connMu.Unlock()

	if _, err := b.pubCh.QueueDeclare(queuePrefix+string(m.Receiver), true, false, false, false, nil); err != nil {
		return err
	}
	return b.pubCh.PublishWithContext(context.Background(), "", queuePrefix+string(m.Receiver), false, false,
		amqp.Publishing{
			MessageId:   m.ID,
			Type:        string(m.Performative),
			ReplyTo:     string(m.Sender),
			AppId:       string(m.Receiver),
			ContentType: "text/plain",
			Body:        []byte(m.Body),
		})
}

// Receive has the same semantics as the in-process bus: it scans the
// local mailbox the consumer goroutine fills.
func (b *AMQP) Receive(ctx context.Context, party domain.PartyID, f Filter, timeout time.Duration) (domain.Message, bool) {
	b.mu.Lock()
	mb, ok := b.mailboxes[party]
	b.mu.Unlock()

	if !ok {
		return domain.Message{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		m, wake, ok := mb.take(f)
		if ok {
			return m, true
		}
		select {
		case <-wake:
		case <-timer.C:
			return domain.Message{}, false
		case <-ctx.Done():
			return domain.Message{}, false
		}
	}
}

// consume runs the party's consumer with a reconnect-and-backoff loop.
// It only returns when the party is unregistered or the bus is closed.
func (b *AMQP) consume(ctx context.Context, party domain.PartyID, mb *mailbox) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		err := b.consumeOnce(ctx, party, mb)
		if err != nil {
			b.logger.Warn("bus consumer ended, reconnecting",
				slog.String("party", party.String()),
				slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (b *AMQP) consumeOnce(ctx context.Context, party domain.PartyID, mb *mailbox) error {
	if err := b.connect(); err != nil {
		return err
	}

	b.connMu.Lock()
	conn := b.conn
	b.connMu.Unlock()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	queue := queuePrefix + string(party)
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return amqp.ErrClosed
			}
			mb.push(domain.Message{
				ID:           d.MessageId,
				Performative: domain.Performative(d.Type),
				Sender:       domain.PartyID(d.ReplyTo),
				Receiver:     party,
				Body:         string(d.Body),
			})
			_ = d.Ack(false)
		}
	}
}
