package negotiator

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// An automated buyer never offers or accepts above its reserve price,
// no matter what counters the dealer produces.
func TestProperty_AutomatedBuyerRespectsReserve(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		reserve := rapid.Int64Range(1000, 50000).Draw(t, "reserve")
		initial := rapid.Int64Range(1, reserve).Draw(t, "initial")
		minRounds := rapid.IntRange(1, 5).Draw(t, "minRounds")

		s := &Session{
			CurrentOffer: initial,
			ReservePrice: reserve,
			MinRounds:    minRounds,
			State:        StateNegotiating,
		}

		rounds := rapid.IntRange(1, 20).Draw(t, "rounds")
		for i := 0; i < rounds && s.State == StateNegotiating; i++ {
			s.Round++
			counter := rapid.Int64Range(0, 2*reserve).Draw(t, fmt.Sprintf("counter-%d", i))

			d := AutomatedPolicy{}.Decide(s, counter)

			if s.CurrentOffer > reserve {
				t.Fatalf("round %d: CurrentOffer %d above reserve %d", s.Round, s.CurrentOffer, reserve)
			}
			switch d.Action {
			case ActionAccept:
				if counter > reserve {
					t.Fatalf("round %d: accepted %d above reserve %d", s.Round, counter, reserve)
				}
				if d.Offer != counter {
					t.Fatalf("round %d: accept offer %d != counter %d", s.Round, d.Offer, counter)
				}
			case ActionCounter:
				if d.Offer > reserve {
					t.Fatalf("round %d: countered %d above reserve %d", s.Round, d.Offer, reserve)
				}
			case ActionGiveUp:
				if s.State != StateTimedOut {
					t.Fatalf("round %d: give up without ending the session", s.Round)
				}
			}
		}
	})
}

// The dealer's floor decays 5% per round but never drops below 70% of
// the list price, and never increases from one round to the next.
func TestProperty_DealerFloorDecaysToSeventyPercent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		listPrice := rapid.Int64Range(100, 1000000).Draw(t, "listPrice")
		floor := int64(float64(listPrice) * 0.70)

		prev := listPrice
		for round := 1; round <= 30; round++ {
			c := counterOffer(listPrice, round)
			if c > prev {
				t.Fatalf("round %d: counter %d above previous %d", round, c, prev)
			}
			if c < floor {
				t.Fatalf("round %d: counter %d below the floor %d", round, c, floor)
			}
			prev = c
		}

		if counterOffer(listPrice, 30) != floor {
			t.Fatalf("deep rounds should sit at the floor, got %d want %d", counterOffer(listPrice, 30), floor)
		}
	})
}
