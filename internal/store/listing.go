package store

import (
	"strings"
	"sync"

	"github.com/google/btree"

	"carbroker/internal/domain"
)

// listingLess orders the price index by car type, then price ascending,
// then registration sequence ascending. The first entry of a car type
// is therefore the cheapest listing, earliest registration on ties.
func listingLess(a, b domain.Listing) bool {
	if a.CarType != b.CarType {
		return a.CarType < b.CarType
	}
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Seq < b.Seq
}

// ListingStore is the broker's thread-safe listing directory: a primary
// index by dealer and a B-tree price index for cheapest-price matching.
// A dealer has exactly one active listing; Upsert overwrites (last
// write wins) and Remove retires it.
type ListingStore struct {
	mu       sync.RWMutex
	byDealer map[domain.PartyID]domain.Listing
	index    *btree.BTreeG[domain.Listing]
	seq      uint64
}

// NewListingStore creates an empty ListingStore.
func NewListingStore() *ListingStore {
	const degree = 32
	return &ListingStore{
		byDealer: make(map[domain.PartyID]domain.Listing),
		index:    btree.NewG[domain.Listing](degree, listingLess),
	}
}

// Upsert registers or overwrites the dealer's listing. A re-registration
// gets a fresh sequence number, so it loses equal-price ties against
// listings registered before it.
func (s *ListingStore) Upsert(dealer domain.PartyID, carType string, price int64) domain.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byDealer[dealer]; ok {
		s.index.Delete(old)
	}
	s.seq++
	l := domain.Listing{DealerID: dealer, CarType: carType, Price: price, Seq: s.seq}
	s.byDealer[dealer] = l
	s.index.ReplaceOrInsert(l)
	return l
}

// Remove retires the dealer's listing and reports whether one was
// present. Confirmation de-duplication hinges on this: the first
// confirmation for a dealer removes the listing, the second finds
// nothing and must not credit commission again.
func (s *ListingStore) Remove(dealer domain.PartyID) (domain.Listing, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.byDealer[dealer]
	if !ok {
		return domain.Listing{}, false
	}
	delete(s.byDealer, dealer)
	s.index.Delete(l)
	return l, true
}

// Get returns the dealer's current listing.
func (s *ListingStore) Get(dealer domain.PartyID) (domain.Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.byDealer[dealer]
	return l, ok
}

// FindBest returns the listing with minimal price among exact matches
// for carType, earliest registration on ties, or ok=false when no
// listing matches.
func (s *ListingStore) FindBest(carType string) (domain.Listing, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best domain.Listing
	found := false
	s.index.AscendGreaterOrEqual(domain.Listing{CarType: carType}, func(l domain.Listing) bool {
		if l.CarType != carType {
			return false
		}
		best = l
		found = true
		return false
	})
	return best, found
}

// FindAll returns listings whose car type matches case-insensitively
// and whose price is at or under maxPrice, in index order (price
// ascending within each exact spelling). An empty slice is a valid
// "nothing matched" result, not an error.
func (s *ListingStore) FindAll(carType string, maxPrice int64) []domain.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// The index is keyed by exact car type, so a case-insensitive
	// match has to walk the whole tree.
	out := []domain.Listing{}
	s.index.Ascend(func(l domain.Listing) bool {
		if strings.EqualFold(l.CarType, carType) && l.Price <= maxPrice {
			out = append(out, l)
		}
		return true
	})
	return out
}

// Snapshot returns all active listings in index order.
func (s *ListingStore) Snapshot() []domain.Listing {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Listing, 0, len(s.byDealer))
	s.index.Ascend(func(l domain.Listing) bool {
		out = append(out, l)
		return true
	})
	return out
}

// Len returns the number of active listings.
func (s *ListingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.byDealer)
}
