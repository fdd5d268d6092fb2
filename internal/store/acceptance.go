package store

import (
	"sync"

	"carbroker/internal/domain"
)

// Role distinguishes which side of a pair is recording a decision.
type Role int

const (
	RoleBuyer Role = iota
	RoleDealer
)

// pairKey identifies one buyer/dealer relationship.
type pairKey struct {
	Buyer  domain.PartyID
	Dealer domain.PartyID
}

// pairRecord holds one pair's acceptance state under its own mutex, so
// unrelated negotiations never serialize on each other. The two accept
// flags are set independently by two different actors; notified flips
// exactly once, electing the single side that reports mutuality.
type pairRecord struct {
	mu             sync.Mutex
	buyerAccepted  bool
	dealerAccepted bool
	rejected       bool
	notified       bool
}

// AcceptanceStore tracks independent accept/reject decisions for
// human-supervised buyer/dealer pairs. A flag, once set, is never
// unset except by process restart.
type AcceptanceStore struct {
	mu    sync.Mutex
	pairs map[pairKey]*pairRecord
}

// NewAcceptanceStore creates an empty AcceptanceStore.
func NewAcceptanceStore() *AcceptanceStore {
	return &AcceptanceStore{pairs: make(map[pairKey]*pairRecord)}
}

// record returns the pair's record, creating it if needed. Only the
// map lookup is under the store lock; all state changes happen under
// the per-pair lock.
func (s *AcceptanceStore) record(buyer, dealer domain.PartyID) *pairRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pairKey{Buyer: buyer, Dealer: dealer}
	r, ok := s.pairs[k]
	if !ok {
		r = &pairRecord{}
		s.pairs[k] = r
	}
	return r
}

// RecordAccept marks the given side's acceptance. mutual reports
// whether both sides have now accepted; shouldNotify is true for
// exactly one caller per pair, the one that observed mutuality first
// and therefore owns sending the single DEAL_CONFIRMED to the broker.
// A pair that has been rejected ignores further accepts.
func (s *AcceptanceStore) RecordAccept(role Role, buyer, dealer domain.PartyID) (mutual, shouldNotify bool) {
	r := s.record(buyer, dealer)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rejected {
		return false, false
	}
	switch role {
	case RoleBuyer:
		r.buyerAccepted = true
	case RoleDealer:
		r.dealerAccepted = true
	}
	if !r.buyerAccepted || !r.dealerAccepted {
		return false, false
	}
	if r.notified {
		return true, false
	}
	r.notified = true
	return true, true
}

// RecordReject marks the pair rejected. Rejection is terminal: a prior
// accept by the other side is simply ignored from here on.
func (s *AcceptanceStore) RecordReject(buyer, dealer domain.PartyID) {
	r := s.record(buyer, dealer)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.rejected = true
}

// Mutual reports whether both sides of the pair have accepted.
func (s *AcceptanceStore) Mutual(buyer, dealer domain.PartyID) bool {
	r := s.record(buyer, dealer)

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.buyerAccepted && r.dealerAccepted
}

// Accepted reports whether the given side of the pair has accepted.
func (s *AcceptanceStore) Accepted(role Role, buyer, dealer domain.PartyID) bool {
	r := s.record(buyer, dealer)

	r.mu.Lock()
	defer r.mu.Unlock()

	if role == RoleBuyer {
		return r.buyerAccepted
	}
	return r.dealerAccepted
}

// Rejected reports whether the pair has been rejected by either side.
func (s *AcceptanceStore) Rejected(buyer, dealer domain.PartyID) bool {
	r := s.record(buyer, dealer)

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rejected
}
