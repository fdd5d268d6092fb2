package handler

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"carbroker/internal/bus"
	"carbroker/internal/domain"
	"carbroker/internal/negotiator"
	"carbroker/internal/store"
)

var (
	partyIDRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)
	carTypeRegex = regexp.MustCompile(`^[a-zA-Z0-9 _-]{1,64}$`)
)

// MarketHandler spawns automated agents and exposes the broker's
// directory and ledger.
type MarketHandler struct {
	// agentCtx bounds the lifetime of spawned agent goroutines to the
	// server's lifetime.
	agentCtx context.Context

	bus      bus.Bus
	listings *store.ListingStore
	ledger   *store.Ledger
	logger   *slog.Logger

	minRounds       int
	contactTimeout  time.Duration
	responseTimeout time.Duration
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(
	agentCtx context.Context,
	b bus.Bus,
	listings *store.ListingStore,
	ledger *store.Ledger,
	minRounds int,
	contactTimeout, responseTimeout time.Duration,
	logger *slog.Logger,
) *MarketHandler {
	return &MarketHandler{
		agentCtx:        agentCtx,
		bus:             b,
		listings:        listings,
		ledger:          ledger,
		logger:          logger,
		minRounds:       minRounds,
		contactTimeout:  contactTimeout,
		responseTimeout: responseTimeout,
	}
}

// registerDealerRequest is the JSON request body for POST /dealers.
type registerDealerRequest struct {
	DealerID string `json:"dealer_id"`
	CarType  string `json:"car_type"`
	Price    int64  `json:"price"`
}

// registerBuyerRequest is the JSON request body for POST /buyers.
type registerBuyerRequest struct {
	BuyerID      string `json:"buyer_id"`
	CarType      string `json:"car_type"`
	InitialOffer int64  `json:"initial_offer"`
	ReservePrice int64  `json:"reserve_price"`
}

// listingResponse is a single listing in GET /listings.
type listingResponse struct {
	DealerID string `json:"dealer_id"`
	CarType  string `json:"car_type"`
	Price    int64  `json:"price"`
}

// ledgerResponse is the JSON response for GET /ledger.
type ledgerResponse struct {
	Automated int64 `json:"automated"`
	Manual    int64 `json:"manual"`
	Total     int64 `json:"total"`
}

func validateParty(id, field string, wantManual bool) error {
	if !partyIDRegex.MatchString(id) {
		return &domain.ValidationError{Message: field + " must match " + partyIDRegex.String()}
	}
	if domain.PartyID(id).Manual() != wantManual {
		if wantManual {
			return &domain.ValidationError{Message: field + " must carry the manual marker prefix \"M.\""}
		}
		return &domain.ValidationError{Message: field + " must not carry the manual marker prefix \"M.\""}
	}
	return nil
}

func validateCarType(carType string) error {
	if !carTypeRegex.MatchString(carType) {
		return &domain.ValidationError{Message: "car_type must match " + carTypeRegex.String()}
	}
	return nil
}

// SpawnDealer handles POST /dealers: it starts an automated dealer
// that registers its listing and negotiates on its own.
func (h *MarketHandler) SpawnDealer(w http.ResponseWriter, r *http.Request) {
	var req registerDealerRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := validateParty(req.DealerID, "dealer_id", false); err != nil {
		WriteDomainError(w, err)
		return
	}
	if err := validateCarType(req.CarType); err != nil {
		WriteDomainError(w, err)
		return
	}
	if req.Price <= 0 {
		WriteDomainError(w, &domain.ValidationError{Message: "price must be positive"})
		return
	}

	dealer := negotiator.NewDealer(negotiator.DealerConfig{
		ID:        domain.PartyID(req.DealerID),
		CarType:   req.CarType,
		ListPrice: req.Price,
		Bus:       h.bus,
		Logger:    h.logger,
	})
	go dealer.Run(h.agentCtx)

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"dealer_id": req.DealerID,
		"status":    "listing",
	})
}

// SpawnBuyer handles POST /buyers: it starts an automated buyer whose
// negotiation runs asynchronously.
func (h *MarketHandler) SpawnBuyer(w http.ResponseWriter, r *http.Request) {
	var req registerBuyerRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := validateParty(req.BuyerID, "buyer_id", false); err != nil {
		WriteDomainError(w, err)
		return
	}
	if err := validateCarType(req.CarType); err != nil {
		WriteDomainError(w, err)
		return
	}
	if req.InitialOffer <= 0 || req.ReservePrice <= 0 || req.InitialOffer >= req.ReservePrice {
		WriteDomainError(w, &domain.ValidationError{Message: "initial_offer and reserve_price must be positive, with initial_offer below reserve_price"})
		return
	}

	buyer := negotiator.NewBuyer(negotiator.BuyerConfig{
		ID:              domain.PartyID(req.BuyerID),
		CarType:         req.CarType,
		InitialOffer:    req.InitialOffer,
		ReservePrice:    req.ReservePrice,
		MinRounds:       h.minRounds,
		Bus:             h.bus,
		Logger:          h.logger,
		ContactTimeout:  h.contactTimeout,
		ResponseTimeout: h.responseTimeout,
	})
	go buyer.Run(h.agentCtx)

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"buyer_id": req.BuyerID,
		"status":   "negotiating",
	})
}

// ListListings handles GET /listings.
func (h *MarketHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	listings := h.listings.Snapshot()
	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, listingResponse{
			DealerID: l.DealerID.String(),
			CarType:  l.CarType,
			Price:    l.Price,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"listings": out})
}

// GetLedger handles GET /ledger.
func (h *MarketHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	automated, manual, grand := h.ledger.Totals()
	WriteJSON(w, http.StatusOK, ledgerResponse{
		Automated: automated,
		Manual:    manual,
		Total:     grand,
	})
}
