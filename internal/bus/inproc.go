package bus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"carbroker/internal/domain"
)

// mailbox is one party's unbounded FIFO queue. wake is closed and
// replaced on every arrival so that all blocked receivers observe it;
// a mailbox may have several concurrent receivers with different
// filters, and a single-token signal would let one receiver swallow
// the wakeup meant for another.
type mailbox struct {
	mu    sync.Mutex
	queue []domain.Message
	wake  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{})}
}

func (mb *mailbox) push(m domain.Message) {
	mb.mu.Lock()
	mb.queue = append(mb.queue, m)
	close(mb.wake)
	mb.wake = make(chan struct{})
	mb.mu.Unlock()
}

// take removes and returns the first queued message matching the
// filter, preserving the order of everything it skips. On a miss it
// returns the channel to wait on for the next arrival; handing it out
// under the queue lock means an arrival between the scan and the wait
// cannot be missed.
func (mb *mailbox) take(f Filter) (domain.Message, <-chan struct{}, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	for i, m := range mb.queue {
		if f.Matches(m) {
			mb.queue = append(mb.queue[:i], mb.queue[i+1:]...)
			return m, nil, true
		}
	}
	return domain.Message{}, mb.wake, false
}

// InProc is the in-process Bus implementation: one mailbox per
// registered party, delivery is an append under the mailbox lock, so
// messages between a fixed sender/receiver pair arrive in send order.
type InProc struct {
	mu        sync.RWMutex
	mailboxes map[domain.PartyID]*mailbox
}

// NewInProc creates an empty in-process bus.
func NewInProc() *InProc {
	return &InProc{mailboxes: make(map[domain.PartyID]*mailbox)}
}

// Register creates the party's mailbox. Registering twice is a no-op
// that keeps the existing queue.
func (b *InProc) Register(party domain.PartyID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.mailboxes[party]; !ok {
		b.mailboxes[party] = newMailbox()
	}
}

// Unregister discards the party's mailbox and any queued messages.
func (b *InProc) Unregister(party domain.PartyID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.mailboxes, party)
}

// Send queues the message in the receiver's mailbox, assigning a
// message ID if the caller left it empty.
func (b *InProc) Send(m domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	b.mu.RLock()
	mb, ok := b.mailboxes[m.Receiver]
	b.mu.RUnlock()

	if !ok {
		return domain.ErrAgentNotFound
	}
	mb.push(m)
	return nil
}

// Receive blocks up to timeout for the first queued message matching
// the filter. Non-matching messages are left queued.
func (b *InProc) Receive(ctx context.Context, party domain.PartyID, f Filter, timeout time.Duration) (domain.Message, bool) {
	b.mu.RLock()
	mb, ok := b.mailboxes[party]
	b.mu.RUnlock()

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
