package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrMalformedMessage   = errors.New("malformed_message")
	ErrNoMatch            = errors.New("no_match")
	ErrAgentNotFound      = errors.New("agent_not_found")
	ErrAgentExists        = errors.New("agent_already_exists")
	ErrUnknownCounterpart = errors.New("unknown_counterpart")
	ErrNegotiationClosed  = errors.New("negotiation_closed")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
