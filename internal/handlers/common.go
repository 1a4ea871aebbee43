package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationError describes one rejected ingress field. Requests failing
// validation never reach the relay client.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Message
}

// RelayResponse is the body of every ingress reply, successful or not.
type RelayResponse struct {
	Success     bool              `json:"success"`
	ID          string            `json:"id,omitempty"`
	RequestID   string            `json:"request_id,omitempty"`
	DisplayID   string            `json:"display_id,omitempty"`
	Message     string            `json:"message,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Validations []ValidationError `json:"validations,omitempty"`
}

func validationFailure(errs []ValidationError) RelayResponse {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return RelayResponse{
		Success:     false,
		Message:     strings.Join(msgs, "; "),
		Reason:      "validation",
		Validations: errs,
	}
}

func markSpanError(r *http.Request, code int, message string) {
	span := opentracing.SpanFromContext(r.Context())
	if span != nil {
		ext.Error.Set(span, true)
		span.SetTag("http.status_code", code)
		span.SetTag("error.message", message)
	}
}

func respondWithError(w http.ResponseWriter, r *http.Request, code int, message string) {
	markSpanError(r, code, message)
	respondWithJSON(w, r, code, ErrorResponse{Error: message})
}

// respondWithFailure sends a structured failure body and flags the span.
func respondWithFailure(w http.ResponseWriter, r *http.Request, code int, resp RelayResponse) {
	markSpanError(r, code, resp.Message)
	respondWithJSON(w, r, code, resp)
}

func respondWithJSON(w http.ResponseWriter, r *http.Request, code int, payload interface{}) {
	span := opentracing.SpanFromContext(r.Context())
	if span != nil {
		span.SetTag("http.status_code", code)
	}

	response, err := json.Marshal(payload)
	if err != nil {
		code = http.StatusInternalServerError
		response = []byte(`{"success":false,"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
