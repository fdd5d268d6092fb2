package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"carbroker/internal/domain"
)

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status
// code, error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// WriteDomainError maps a domain error to its HTTP status.
func WriteDomainError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, "validation_error", ve.Message)
	case errors.Is(err, domain.ErrAgentNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "agent not found")
	case errors.Is(err, domain.ErrUnknownCounterpart):
		WriteError(w, http.StatusNotFound, err.Error(), "counterpart not in the last candidate list")
	case errors.Is(err, domain.ErrAgentExists):
		WriteError(w, http.StatusConflict, err.Error(), "agent already exists")
	case errors.Is(err, domain.ErrNegotiationClosed):
		WriteError(w, http.StatusConflict, err.Error(), "negotiation already closed or in progress")
	case errors.Is(err, domain.ErrNoMatch):
		WriteError(w, http.StatusGatewayTimeout, err.Error(), "no broker reply within the query timeout")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// ParseJSON decodes the request body as JSON into v. It validates the
// Content-Type header and rejects unknown fields.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("request body must be JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("request body must be valid JSON")
	}

	return nil
}
