package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"carbroker/internal/bus"
	"carbroker/internal/domain"
	"carbroker/internal/manual"
	"carbroker/internal/negotiator"
	"carbroker/internal/store"
)

// ManualHandler exposes the human-supervised agents: creation,
// candidate queries, the mutual accept/reject protocol, guided
// negotiation, and chat.
type ManualHandler struct {
	agentCtx context.Context

	bus        bus.Bus
	acceptance *store.AcceptanceStore
	registry   *Registry
	logger     *slog.Logger

	queryTimeout time.Duration
}

// NewManualHandler creates a ManualHandler.
func NewManualHandler(
	agentCtx context.Context,
	b bus.Bus,
	acceptance *store.AcceptanceStore,
	registry *Registry,
	queryTimeout time.Duration,
	logger *slog.Logger,
) *ManualHandler {
	return &ManualHandler{
		agentCtx:     agentCtx,
		bus:          b,
		acceptance:   acceptance,
		registry:     registry,
		logger:       logger,
		queryTimeout: queryTimeout,
	}
}

// counterpartRequest addresses a decision at the other party.
type counterpartRequest struct {
	Counterpart string `json:"counterpart"`
}

// proposeRequest carries a manual offer.
type proposeRequest struct {
	Counterpart string `json:"counterpart"`
	Price       int64  `json:"price"`
}

// chatRequest carries one chat line.
type chatRequest struct {
	Counterpart string `json:"counterpart"`
	Text        string `json:"text"`
}

// decisionRequest feeds a guided negotiation round.
type decisionRequest struct {
	Action string `json:"action"` // counter | accept | reject | give_up
	Price  int64  `json:"price"`
}

// candidateResponse is one dealer in the candidates reply.
type candidateResponse struct {
	DealerID string `json:"dealer_id"`
	Price    int64  `json:"price"`
}

// messageResponse is one queued inbound message.
type messageResponse struct {
	From         string `json:"from"`
	Performative string `json:"performative"`
	Body         string `json:"body"`
	ReceivedAt   string `json:"received_at"`
}

// CreateBuyer handles POST /manual/buyers.
func (h *ManualHandler) CreateBuyer(w http.ResponseWriter, r *http.Request) {
	var req registerBuyerRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := validateParty(req.BuyerID, "buyer_id", true); err != nil {
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

	buyer := manual.NewBuyer(manual.BuyerConfig{
		ID:           domain.PartyID(req.BuyerID),
		CarType:      req.CarType,
		InitialOffer: req.InitialOffer,
		ReservePrice: req.ReservePrice,
		Bus:          h.bus,
		Acceptance:   h.acceptance,
		Logger:       h.logger,
		QueryTimeout: h.queryTimeout,
	})
	if err := h.registry.AddBuyer(buyer); err != nil {
		WriteDomainError(w, err)
		return
	}
	go buyer.Run(h.agentCtx)

	WriteJSON(w, http.StatusCreated, map[string]string{"buyer_id": req.BuyerID})
}

// CreateDealer handles POST /manual/dealers.
func (h *ManualHandler) CreateDealer(w http.ResponseWriter, r *http.Request) {
	var req registerDealerRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := validateParty(req.DealerID, "dealer_id", true); err != nil {
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

	dealer := manual.NewDealer(manual.DealerConfig{
		ID:         domain.PartyID(req.DealerID),
		CarType:    req.CarType,
		ListPrice:  req.Price,
		Bus:        h.bus,
		Acceptance: h.acceptance,
		Logger:     h.logger,
	})
	if err := h.registry.AddDealer(dealer); err != nil {
		WriteDomainError(w, err)
		return
	}
	go dealer.Run(h.agentCtx)

	WriteJSON(w, http.StatusCreated, map[string]string{"dealer_id": req.DealerID})
}

// GetCandidates handles GET /manual/buyers/{buyer_id}/candidates.
func (h *ManualHandler) GetCandidates(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.registry.Buyer(domain.PartyID(chi.URLParam(r, "buyer_id")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	candidates, err := buyer.QueryCandidates(r.Context())
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	out := make([]candidateResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, candidateResponse{DealerID: c.DealerID.String(), Price: c.Price})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"candidates": out})
}

// BuyerAccept handles POST /manual/buyers/{buyer_id}/accept.
func (h *ManualHandler) BuyerAccept(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.registry.Buyer(domain.PartyID(chi.URLParam(r, "buyer_id")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	var req counterpartRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	status, err := buyer.Accept(domain.PartyID(req.Counterpart))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}

// BuyerReject handles POST /manual/buyers/{buyer_id}/reject.
func (h *ManualHandler) BuyerReject(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.registry.Buyer(domain.PartyID(chi.URLParam(r, "buyer_id")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	var req counterpartRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	buyer.Reject(domain.PartyID(req.Counterpart))
	WriteJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// BuyerPropose handles POST /manual/buyers/{buyer_id}/propose.
func (h *ManualHandler) BuyerPropose(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.registry.Buyer(domain.PartyID(chi.URLParam(r, "buyer_id")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	var req proposeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Price <= 0 {
		WriteDomainError(w, &domain.ValidationError{Message: "price must be positive"})
		return
	}

	if err := buyer.Propose(domain.PartyID(req.Counterpart), req.Price); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "proposed"})
}

// BuyerNegotiate handles POST /manual/buyers/{buyer_id}/negotiate:
// it opens a guided session against the named dealer.
func (h *ManualHandler) BuyerNegotiate(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.registry.Buyer(domain.PartyID(chi.URLParam(r, "buyer_id")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	var req counterpartRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if err := buyer.StartNegotiation(h.agentCtx, domain.PartyID(req.Counterpart)); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "negotiating"})
}

// BuyerDecision handles POST /manual/buyers/{buyer_id}/decision:
// it feeds the next human move to the active guided session.
func (h *ManualHandler) BuyerDecision(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.registry.Buyer(domain.PartyID(chi.URLParam(r, "buyer_id")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	var req decisionRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var d negotiator.Decision
	switch req.Action {
	case "counter":
		if req.Price <= 0 {
			WriteDomainError(w, &domain.ValidationError{Message: "price must be positive for a counter decision"})
			return
		}
		d = negotiator.Decision{Action: negotiator.ActionCounter, Offer: req.Price}
	case "accept":
		d = negotiator.Decision{Action: negotiator.ActionAccept}
	case "reject":
		d = negotiator.Decision{Action: negotiator.ActionReject}
	case "give_up":
		d = negotiator.Decision{Action: negotiator.ActionGiveUp}
	default:
		WriteDomainError(w, &domain.ValidationError{Message: "action must be one of: counter, accept, reject, give_up"})
		return
	}

	if err := buyer.SubmitDecision(d); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
}

// DealerAccept handles POST /manual/dealers/{dealer_id}/accept.
func (h *ManualHandler) DealerAccept(w http.ResponseWriter, r *http.Request) {
	dealer, err := h.registry.Dealer(domain.PartyID(chi.URLParam(r, "dealer_id")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	var req counterpartRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	status, err := dealer.Accept(domain.PartyID(req.Counterpart))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": status})
}

// DealerReject handles POST /manual/dealers/{dealer_id}/reject.
func (h *ManualHandler) DealerReject(w http.ResponseWriter, r *http.Request) {
	dealer, err := h.registry.Dealer(domain.PartyID(chi.URLParam(r, "dealer_id")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	var req counterpartRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	dealer.Reject(domain.PartyID(req.Counterpart))
	WriteJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// DealerPropose handles POST /manual/dealers/{dealer_id}/propose.
func (h *ManualHandler) DealerPropose(w http.ResponseWriter, r *http.Request) {
	dealer, err := h.registry.Dealer(domain.PartyID(chi.URLParam(r, "dealer_id")))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	var req proposeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Price <= 0 {
		WriteDomainError(w, &domain.ValidationError{Message: "price must be positive"})
		return
	}

	if err := dealer.Propose(domain.PartyID(req.Counterpart), req.Price); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "proposed"})
}

// agent is the common surface of manual buyers and dealers used by the
// shared chat/status endpoints.
type agent interface {
	SendChat(to domain.PartyID, text string) error
	Messages() []manual.ChatMessage
	Statuses() map[domain.PartyID]string
}

func (h *ManualHandler) lookup(r *http.Request) (agent, error) {
	if id := chi.URLParam(r, "buyer_id"); id != "" {
		return h.registry.Buyer(domain.PartyID(id))
	}
	return h.registry.Dealer(domain.PartyID(chi.URLParam(r, "dealer_id")))
}

// Chat handles POST /manual/{role}/{id}/chat.
func (h *ManualHandler) Chat(w http.ResponseWriter, r *http.Request) {
	a, err := h.lookup(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	var req chatRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Text == "" {
		WriteDomainError(w, &domain.ValidationError{Message: "text must not be empty"})
		return
	}

	if err := a.SendChat(domain.PartyID(req.Counterpart), req.Text); err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// Messages handles GET /manual/{role}/{id}/messages: it drains the
// agent's inbound queue.
func (h *ManualHandler) Messages(w http.ResponseWriter, r *http.Request) {
	a, err := h.lookup(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	msgs := a.Messages()
	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageResponse{
			From:         m.From.String(),
			Performative: string(m.Performative),
			Body:         m.Body,
			ReceivedAt:   m.ReceivedAt.UTC().Format(time.RFC3339),
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"messages": out})
}

// Status handles GET /manual/{role}/{id}/status: the per-counterpart
// status lines.
func (h *ManualHandler) Status(w http.ResponseWriter, r *http.Request) {
	a, err := h.lookup(r)
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	statuses := a.Statuses()
	out := make(map[string]string, len(statuses))
	for k, v := range statuses {
		out[k.String()] = v
	}
	WriteJSON(w, http.StatusOK, map[string]any{"statuses": out})
}
