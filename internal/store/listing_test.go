package store

import "testing"

func TestListingStore_UpsertOverwrites(t *testing.T) {
	s := NewListingStore()
	s.Upsert("dealer1", "Toyota", 30000)
	s.Upsert("dealer1", "Honda", 22000)

	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	l, ok := s.Get("dealer1")
	if !ok {
		t.Fatal("expected a listing")
	}
	if l.CarType != "Honda" || l.Price != 22000 {
		t.Errorf("got %+v, want the overwritten listing", l)
	}

	// The old index entry must be gone along with it.
	if _, ok := s.FindBest("Toyota"); ok {
		t.Error("stale Toyota index entry survived the overwrite")
	}
}

func TestListingStore_RemoveReportsPresence(t *testing.T) {
	s := NewListingStore()
	s.Upsert("dealer1", "Toyota", 30000)

	l, ok := s.Remove("dealer1")
	if !ok {
		t.Fatal("first remove should find the listing")
	}
	if l.CarType != "Toyota" || l.Price != 30000 {
		t.Errorf("got %+v", l)
	}

	if _, ok := s.Remove("dealer1"); ok {
		t.Error("second remove must report absence")
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
}

func TestListingStore_FindBestCheapest(t *testing.T) {
	s := NewListingStore()
	s.Upsert("dealer1", "Honda", 23500)
	s.Upsert("dealer2", "Honda", 22000)
	s.Upsert("dealer3", "Toyota", 21000) // cheaper, but the wrong car

	best, ok := s.FindBest("Honda")
	if !ok {
		t.Fatal("expected a match")
	}
	if best.DealerID != "dealer2" || best.Price != 22000 {
		t.Errorf("got %+v, want dealer2 at 22000", best)
	}
}

func TestListingStore_FindBestExactType(t *testing.T) {
	s := NewListingStore()
	s.Upsert("dealer1", "Honda", 22000)

	if _, ok := s.FindBest("honda"); ok {
		t.Error("FindBest must match the car type exactly")
	}
	if _, ok := s.FindBest("Ford"); ok {
		t.Error("expected no match for an unlisted type")
	}
}

func TestListingStore_FindBestTieBreak(t *testing.T) {
	s := NewListingStore()
	s.Upsert("late", "Honda", 22000)
	s.Upsert("later", "Honda", 22000)

	best, ok := s.FindBest("Honda")
	if !ok {
		t.Fatal("expected a match")
	}
	if best.DealerID != "late" {
		t.Errorf("tie should go to the earliest registration, got %s", best.DealerID)
	}

	// Re-registering at the same price forfeits the tie.
	s.Upsert("late", "Honda", 22000)
	best, _ = s.FindBest("Honda")
	if best.DealerID != "later" {
		t.Errorf("re-registered dealer should lose the tie, got %s", best.DealerID)
	}
}

func TestListingStore_FindAllCaseInsensitive(t *testing.T) {
	s := NewListingStore()
	s.Upsert("dealer1", "Toyota", 26000)
	s.Upsert("dealer2", "toyota", 25500)
	s.Upsert("dealer3", "Toyota", 31000) // over the cap
	s.Upsert("dealer4", "Honda", 20000)  // wrong type

	got := s.FindAll("TOYOTA", 26000)
	if len(got) != 2 {
		t.Fatalf("got %d listings, want 2: %+v", len(got), got)
	}
	for _, l := range got {
		if l.Price > 26000 {
			t.Errorf("listing over the price cap: %+v", l)
		}
	}
}

func TestListingStore_FindAllEmpty(t *testing.T) {
	s := NewListingStore()
	got := s.FindAll("Toyota", 26000)
	if got == nil {
		t.Fatal("expected an empty slice, not nil")
	}
	if len(got) != 0 {
		t.Errorf("got %v", got)
	}
}

func TestListingStore_Snapshot(t *testing.T) {
	s := NewListingStore()
	s.Upsert("dealer2", "Toyota", 30000)
	s.Upsert("dealer1", "Honda", 22000)

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("got %d listings", len(snap))
	}
	// Index order: car type ascending.
	if snap[0].CarType != "Honda" || snap[1].CarType != "Toyota" {
		t.Errorf("snapshot out of index order: %+v", snap)
	}
}
