package domain

// Performative is the semantic tag of a message, after the FIPA ACL
// performatives the marketplace protocol is built on.
type Performative string

const (
	PerformativeInform  Performative = "INFORM"
	PerformativeRequest Performative = "REQUEST"
	PerformativeQueryIf Performative = "QUERY_IF"
	PerformativePropose Performative = "PROPOSE"
	PerformativeAccept  Performative = "ACCEPT_PROPOSAL"
	PerformativeReject  Performative = "REJECT_PROPOSAL"
	PerformativeConfirm Performative = "CONFIRM"
	PerformativeRefuse  Performative = "REFUSE"
	PerformativeFailure Performative = "FAILURE"
)

// Message is a single addressed unit of delivery on the bus. Body is a
// comma-delimited string whose shape depends on the performative; it is
// decoded exactly once at the consumer boundary (see codec.go).
type Message struct {
	ID           string
	Performative Performative
	Sender       PartyID
	Receiver     PartyID
	Body         string
}
