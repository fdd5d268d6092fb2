// Package manual implements the human-supervised buyer and dealer
// agents: candidate discovery, the mutual-acceptance reconciliation
// protocol, guided negotiation, and free-form chat queues.
package manual

import (
	"sync"
	"time"

	"carbroker/internal/domain"
)

// ChatMessage is one inbound message surfaced to the supervising
// human: free-form chat, an incoming proposal, or a decision notice.
type ChatMessage struct {
	From         domain.PartyID
	Performative domain.Performative
	Body         string
	ReceivedAt   time.Time
}

// chatQueue is a FIFO, unbounded inbound-message queue an external UI
// can poll. It is deliberately independent of the accept/reject state.
type chatQueue struct {
	mu   sync.Mutex
	msgs []ChatMessage
}

func (q *chatQueue) push(m ChatMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.msgs = append(q.msgs, m)
}

// poll removes and returns the oldest queued message.
func (q *chatQueue) poll() (ChatMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.msgs) == 0 {
		return ChatMessage{}, false
	}
	m := q.msgs[0]
	q.msgs = q.msgs[1:]
	return m, true
}

// drain removes and returns all queued messages in arrival order.
func (q *chatQueue) drain() []ChatMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.msgs
	q.msgs = nil
	return out
}

// statusBoard tracks a human-readable per-counterpart status line.
type statusBoard struct {
	mu       sync.Mutex
	statuses map[domain.PartyID]string
}

func newStatusBoard() *statusBoard {
	return &statusBoard{statuses: make(map[domain.PartyID]string)}
}

func (s *statusBoard) set(p domain.PartyID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[p] = status
}

func (s *statusBoard) snapshot() map[domain.PartyID]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[domain.PartyID]string, len(s.statuses))
	for k, v := range s.statuses {
		out[k] = v
	}
	return out
}

// Status values shown per counterpart.
const (
	statusAwaiting  = "awaiting counterpart"
	statusFinalized = "finalized"
	statusRejected  = "rejected"
	statusAccepted  = "counterpart accepted"
)
