package store

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"carbroker/internal/domain"
)

// Whatever sequence of accepts and rejects arrives, each pair elects at
// most one notifier, and only if both sides accepted before any
// rejection.
func TestProperty_AtMostOneNotifierPerPair(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewAcceptanceStore()
		notifiers := make(map[string]int)
		rejectedFirst := make(map[string]bool)

		n := rapid.IntRange(1, 80).Draw(t, "numOps")
		for i := 0; i < n; i++ {
			buyer := domain.PartyID(fmt.Sprintf("M.buyer-%d", rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("buyer-%d", i))))
			dealer := domain.PartyID(fmt.Sprintf("M.dealer-%d", rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("dealer-%d", i))))
			key := string(buyer) + "/" + string(dealer)

			switch rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("op-%d", i)) {
			case 0:
				if _, notify := s.RecordAccept(RoleBuyer, buyer, dealer); notify {
					notifiers[key]++
				}
			case 1:
				if _, notify := s.RecordAccept(RoleDealer, buyer, dealer); notify {
					notifiers[key]++
				}
			case 2:
				if !s.Mutual(buyer, dealer) && notifiers[key] == 0 {
					rejectedFirst[key] = true
				}
				s.RecordReject(buyer, dealer)
			}
		}

		for key, count := range notifiers {
			if count > 1 {
				t.Fatalf("pair %s elected %d notifiers", key, count)
			}
			if rejectedFirst[key] {
				t.Fatalf("pair %s notified after being rejected first", key)
			}
		}
	})
}
