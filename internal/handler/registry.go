package handler

import (
	"sync"

	"carbroker/internal/domain"
	"carbroker/internal/manual"
)

// Registry tracks the manual agents created over the API so later
// requests can address them by ID.
type Registry struct {
	mu      sync.RWMutex
	buyers  map[domain.PartyID]*manual.Buyer
	dealers map[domain.PartyID]*manual.Dealer
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		buyers:  make(map[domain.PartyID]*manual.Buyer),
		dealers: make(map[domain.PartyID]*manual.Dealer),
	}
}

// AddBuyer registers a manual buyer. It returns
// domain.ErrAgentExists if the ID is taken.
func (r *Registry) AddBuyer(b *manual.Buyer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.buyers[b.ID()]; ok {
		return domain.ErrAgentExists
	}
	r.buyers[b.ID()] = b
	return nil
}

// AddDealer registers a manual dealer. It returns
// domain.ErrAgentExists if the ID is taken.
func (r *Registry) AddDealer(d *manual.Dealer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.dealers[d.ID()]; ok {
		return domain.ErrAgentExists
	}
	r.dealers[d.ID()] = d
	return nil
}

// Buyer looks up a manual buyer by ID.
func (r *Registry) Buyer(id domain.PartyID) (*manual.Buyer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.buyers[id]
	if !ok {
		return nil, domain.ErrAgentNotFound
	}
	return b, nil
}

// Dealer looks up a manual dealer by ID.
func (r *Registry) Dealer(id domain.PartyID) (*manual.Dealer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.dealers[id]
	if !ok {
		return nil, domain.ErrAgentNotFound
	}
	return d, nil
}
