package domain

// Listing is a dealer's currently advertised car type and price.
// A dealer has at most one active listing; re-registration overwrites
// it (last write wins) and a confirmed or rejected deal retires it.
type Listing struct {
	DealerID PartyID
	CarType  string
	Price    int64
	Seq      uint64 // registration sequence assigned by the store
}

// Deal is the payload of a confirmation message. It is never stored;
// once the ledger and the listing directory are updated it is gone.
type Deal struct {
	BuyerID  PartyID
	DealerID PartyID
	CarType  string
	Price    int64
}

// Candidate is one entry of a manual buyer's candidate list reply.
type Candidate struct {
	DealerID PartyID
	Price    int64
}
