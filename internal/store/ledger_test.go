package store

import (
	"sync"
	"testing"
)

func TestLedger_CreditBuckets(t *testing.T) {
	l := NewLedger()
	l.Credit(500, false)
	l.Credit(500, false)
	l.Credit(500, true)

	automated, manual, grand := l.Totals()
	if automated != 1000 {
		t.Errorf("automated = %d, want 1000", automated)
	}
	if manual != 500 {
		t.Errorf("manual = %d, want 500", manual)
	}
	if grand != 1500 {
		t.Errorf("grand = %d, want 1500", grand)
	}
}

func TestLedger_IgnoresNonPositive(t *testing.T) {
	l := NewLedger()
	l.Credit(0, false)
	l.Credit(-500, true)

	if _, _, grand := l.Totals(); grand != 0 {
		t.Errorf("grand = %d, want 0", grand)
	}
}

func TestLedger_ConcurrentCredits(t *testing.T) {
	l := NewLedger()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(manual bool) {
			defer wg.Done()
			l.Credit(500, manual)
		}(i%2 == 0)
	}
	wg.Wait()

	automated, manual, grand := l.Totals()
	if automated != 25000 || manual != 25000 || grand != 50000 {
		t.Errorf("totals = %d/%d/%d, want 25000/25000/50000", automated, manual, grand)
	}
}
