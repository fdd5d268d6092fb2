package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Body tags for INFORM/FAILURE payloads that carry a discriminant as
// their first field.
const (
	tagDealConfirmed     = "DEAL_CONFIRMED"
	tagDealRejected      = "DEAL_REJECTED"
	tagDealCompleted     = "DEAL_COMPLETED"
	tagDealOff           = "DEAL_OFF"
	tagNegotiationFailed = "NEGOTIATION_FAILED"
)

// Payload is the decoded, tagged form of a message body. Consumers
// switch on the concrete type instead of re-parsing free text.
type Payload interface {
	isPayload()
}

// ListingRegistration registers or overwrites a dealer's listing.
type ListingRegistration struct {
	CarType string
	Price   int64
}

// MatchRequest asks the broker for the cheapest dealer of a car type.
type MatchRequest struct {
	CarType string
}

// MatchReply is the broker's best-match answer to a MatchRequest.
type MatchReply struct {
	DealerID PartyID
	Price    int64
}

// CandidateQuery asks the broker for all dealers of a car type at or
// under a price cap. Used by manual buyers.
type CandidateQuery struct {
	CarType  string
	MaxPrice int64
}

// Proposal is an offer or counter-offer between a buyer and a dealer.
type Proposal struct {
	CarType string
	Price   int64
}

// DealConfirmed finalizes a deal with the broker; the embedded Deal is
// the whole payload.
type DealConfirmed struct {
	Deal
}

// DealRejected abandons a deal, retiring the dealer's listing.
type DealRejected struct {
	BuyerID  PartyID
	DealerID PartyID
	CarType  string
}

// NegotiationFailed reports that an automated buyer gave up.
type NegotiationFailed struct {
	BuyerID  PartyID
	DealerID PartyID
	CarType  string
}

// DealCompleted is the broker's completion notice to both parties.
type DealCompleted struct {
	Counterpart PartyID
	CarType     string
	Price       int64
}

// DealOff is the broker's rejection notice to both parties.
type DealOff struct {
	Counterpart PartyID
	CarType     string
}

func (ListingRegistration) isPayload() {}
func (MatchRequest) isPayload()        {}
func (MatchReply) isPayload()          {}
func (CandidateQuery) isPayload()      {}
func (Proposal) isPayload()            {}
func (DealConfirmed) isPayload()       {}
func (DealRejected) isPayload()        {}
func (NegotiationFailed) isPayload()   {}
func (DealCompleted) isPayload()       {}
func (DealOff) isPayload()             {}

// parsePrice parses a non-negative decimal integer price field.
func parsePrice(s string) (int64, error) {
	p, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || p < 0 {
		return 0, ErrMalformedMessage
	}
	return p, nil
}

// split enforces the exact field arity for a tagged body.
func split(body string, arity int) ([]string, error) {
	parts := strings.Split(body, ",")
	if len(parts) != arity {
		return nil, ErrMalformedMessage
	}
	return parts, nil
}

// DecodeBrokerInbound decodes a message addressed to the broker into
// its tagged payload. INFORM bodies are disambiguated by their first
// field: DEAL_CONFIRMED and DEAL_REJECTED carry an explicit tag, and
// everything else is a dealer registration.
func DecodeBrokerInbound(m Message) (Payload, error) {
	switch m.Performative {
	case PerformativeRequest:
		carType := strings.TrimSpace(m.Body)
		if carType == "" {
			return nil, ErrMalformedMessage
		}
		return MatchRequest{CarType: carType}, nil

	case PerformativeQueryIf:
		parts, err := split(m.Body, 2)
		if err != nil {
			return nil, err
		}
		maxPrice, err := parsePrice(parts[1])
		if err != nil {
			return nil, err
		}
		return CandidateQuery{CarType: strings.TrimSpace(parts[0]), MaxPrice: maxPrice}, nil

	case PerformativeInform:
		switch {
		case strings.HasPrefix(m.Body, tagDealConfirmed+","):
			parts, err := split(m.Body, 5)
			if err != nil {
				return nil, err
			}
			price, err := parsePrice(parts[4])
			if err != nil {
				return nil, err
			}
			return DealConfirmed{Deal{
				BuyerID:  PartyID(parts[1]),
				DealerID: PartyID(parts[2]),
				CarType:  parts[3],
				Price:    price,
			}}, nil

		case strings.HasPrefix(m.Body, tagDealRejected+","):
			parts, err := split(m.Body, 4)
			if err != nil {
				return nil, err
			}
			return DealRejected{
				BuyerID:  PartyID(parts[1]),
				DealerID: PartyID(parts[2]),
				CarType:  parts[3],
			}, nil

		default:
			parts, err := split(m.Body, 2)
			if err != nil {
				return nil, err
			}
			price, err := parsePrice(parts[1])
			if err != nil {
				return nil, err
			}
			carType := strings.TrimSpace(parts[0])
			if carType == "" {
				return nil, ErrMalformedMessage
			}
			return ListingRegistration{CarType: carType, Price: price}, nil
		}

	case PerformativeFailure:
		parts, err := split(m.Body, 4)
		if err != nil || parts[0] != tagNegotiationFailed {
			return nil, ErrMalformedMessage
		}
		return NegotiationFailed{
			BuyerID:  PartyID(parts[1]),
			DealerID: PartyID(parts[2]),
			CarType:  parts[3],
		}, nil
	}

	return nil, ErrMalformedMessage
}

// ParseMatchReply decodes the broker's "dealer,price" best-match reply.
func ParseMatchReply(body string) (MatchReply, error) {
	parts, err := split(body, 2)
	if err != nil {
		return MatchReply{}, err
	}
	price, err := parsePrice(parts[1])
	if err != nil {
		return MatchReply{}, err
	}
	if strings.TrimSpace(parts[0]) == "" {
		return MatchReply{}, ErrMalformedMessage
	}
	return MatchReply{DealerID: PartyID(strings.TrimSpace(parts[0])), Price: price}, nil
}

// ParseProposal decodes a "carType,price" offer body.
func ParseProposal(body string) (Proposal, error) {
	parts, err := split(body, 2)
	if err != nil {
		return Proposal{}, err
	}
	price, err := parsePrice(parts[1])
	if err != nil {
		return Proposal{}, err
	}
	return Proposal{CarType: strings.TrimSpace(parts[0]), Price: price}, nil
}

// ParseCandidateList decodes the broker's ";"-joined candidate list.
// An empty body is a valid empty list.
func ParseCandidateList(body string) ([]Candidate, error) {
	body = strings.TrimSuffix(body, ";")
	if body == "" {
		return []Candidate{}, nil
	}
	entries := strings.Split(body, ";")
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		parts, err := split(e, 2)
		if err != nil {
			return nil, err
		}
		price, err := parsePrice(parts[1])
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{DealerID: PartyID(strings.TrimSpace(parts[0])), Price: price})
	}
	return out, nil
}

// ParseCompletionNotice decodes the broker's CONFIRM body, either a
// DEAL_COMPLETED or a DEAL_OFF notice.
func ParseCompletionNotice(body string) (Payload, error) {
	switch {
	case strings.HasPrefix(body, tagDealCompleted+","):
		parts, err := split(body, 4)
		if err != nil {
			return nil, err
		}
		price, err := parsePrice(parts[3])
		if err != nil {
			return nil, err
		}
		return DealCompleted{Counterpart: PartyID(parts[1]), CarType: parts[2], Price: price}, nil
	case strings.HasPrefix(body, tagDealOff+","):
		parts, err := split(body, 3)
		if err != nil {
			return nil, err
		}
		return DealOff{Counterpart: PartyID(parts[1]), CarType: parts[2]}, nil
	}
	return nil, ErrMalformedMessage
}

// Encoders build the exact wire strings of the protocol table.

func EncodeListing(carType string, price int64) string {
	return fmt.Sprintf("%s,%d", carType, price)
}

func EncodeProposal(carType string, price int64) string {
	return fmt.Sprintf("%s,%d", carType, price)
}

func EncodeCandidateQuery(carType string, maxPrice int64) string {
	return fmt.Sprintf("%s,%d", carType, maxPrice)
}

func EncodeMatchReply(dealer PartyID, price int64) string {
	return fmt.Sprintf("%s,%d", dealer, price)
}

func EncodeCandidateList(candidates []Candidate) string {
	var b strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&b, "%s,%d;", c.DealerID, c.Price)
	}
	return b.String()
}

func EncodeDealConfirmed(buyer, dealer PartyID, carType string, price int64) string {
	return fmt.Sprintf("%s,%s,%s,%s,%d", tagDealConfirmed, buyer, dealer, carType, price)
}

func EncodeDealRejected(buyer, dealer PartyID, carType string) string {
	return fmt.Sprintf("%s,%s,%s,%s", tagDealRejected, buyer, dealer, carType)
}

func EncodeNegotiationFailed(buyer, dealer PartyID, carType string) string {
	return fmt.Sprintf("%s,%s,%s,%s", tagNegotiationFailed, buyer, dealer, carType)
}

func EncodeDealCompleted(counterpart PartyID, carType string, price int64) string {
	return fmt.Sprintf("%s,%s,%s,%d", tagDealCompleted, counterpart, carType, price)
}

func EncodeDealOff(counterpart PartyID, carType string) string {
	return fmt.Sprintf("%s,%s,%s", tagDealOff, counterpart, carType)
}
