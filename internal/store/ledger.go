package store

import "sync"

// Ledger accumulates broker commission, split into automated and
// manual buckets. Totals are monotonically non-decreasing; there is no
// decrement operation, commissions are never reversed.
type Ledger struct {
	mu        sync.RWMutex
	automated int64
	manual    int64
}

// NewLedger creates a zeroed Ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Credit adds amount to the matching bucket. Non-positive amounts are
// ignored so a bad caller cannot make the totals go backwards.
func (l *Ledger) Credit(amount int64, manual bool) {
	if amount <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if manual {
		l.manual += amount
	} else {
		l.automated += amount
	}
}

// Totals returns the automated, manual, and grand commission totals.
func (l *Ledger) Totals() (automated, manual, grand int64) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.automated, l.manual, l.automated + l.manual
}
