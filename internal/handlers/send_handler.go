package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aanthord/mtls-relay/internal/config"
	"github.com/aanthord/mtls-relay/internal/httputil"
	"github.com/aanthord/mtls-relay/internal/metrics"
	"github.com/aanthord/mtls-relay/internal/models"
	"github.com/aanthord/mtls-relay/internal/relay"
	"github.com/aanthord/mtls-relay/internal/tracing"
	"go.uber.org/zap"
)

// MessageRelay is the messenger hop as seen from the ingress role.
type MessageRelay interface {
	SendMessage(ctx context.Context, req *relay.SendMessageRequest) (*relay.SendMessageResponse, error)
	GetMessages(ctx context.Context) ([]models.Message, error)
}

type SendRequest struct {
	Content string `json:"content" example:"hi"`
	Sender  string `json:"sender" example:"alice"`
}

// SendHandler accepts a message and relays it to the messenger hop.
type SendHandler struct {
	relay   MessageRelay
	retrier *Retrier
	logger  *zap.SugaredLogger
}

func NewSendHandler(relay MessageRelay, retrier *Retrier, logger *zap.SugaredLogger) *SendHandler {
	return &SendHandler{relay: relay, retrier: retrier, logger: logger}
}

// Handle godoc
// @Summary Send a message
// @Description Validates the message and relays it over mutual TLS to the messenger hop.
// @Tags messages
// @Accept json
// @Produce json
// @Param message body SendRequest true "Message to send"
// @Success 200 {object} RelayResponse "Message stored downstream"
// @Failure 400 {object} RelayResponse "Missing content or sender"
// @Failure 502 {object} RelayResponse "Downstream rejected the message"
// @Failure 503 {object} RelayResponse "Downstream unreachable"
// @Failure 504 {object} RelayResponse "Downstream timed out"
// @Router /send [post]
func (h *SendHandler) Handle(w http.ResponseWriter, r *http.Request) {
	span, ctx := tracing.StartSpanFromContext(r.Context(), "SendHandler.Handle", "")
	defer span.Finish()

	body, err := httputil.ReadBody(w, r, httputil.DefaultMaxBodyBytes)
	if err != nil {
		h.logger.Errorw("Failed to read request body", "error", err)
		respondWithFailure(w, r, http.StatusBadRequest, RelayResponse{Message: err.Error(), Reason: "validation"})
		return
	}

	var req SendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Warnw("Failed to decode message", "error", err)
		respondWithFailure(w, r, http.StatusBadRequest, RelayResponse{Message: "Invalid message format: " + err.Error(), Reason: "validation"})
		return
	}

	if errs := validateSendRequest(req); len(errs) > 0 {
		h.logger.Infow("Message validation failed", "validation_errors", errs)
		respondWithFailure(w, r, http.StatusBadRequest, validationFailure(errs))
		return
	}

	msg := models.NewMessage(req.Content, req.Sender)
	var resp *relay.SendMessageResponse
	err = h.retrier.Do(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = h.relay.SendMessage(ctx, &relay.SendMessageRequest{
			Content:   msg.Content,
			Sender:    msg.Sender,
			Timestamp: msg.Timestamp,
		})
		return callErr
	})
	if err != nil {
		code, failure := relayFailure(err)
		h.logger.Errorw("Failed to relay message", "sender", msg.Sender, "status", code, "error", err)
		metrics.ForwardFailures.WithLabelValues(config.RoleIngress, failure.Reason).Inc()
		respondWithFailure(w, r, code, failure)
		return
	}

	h.logger.Infow("Message relayed", "id", resp.ID, "sender", msg.Sender)
	metrics.MessagesRelayed.WithLabelValues(config.RoleIngress).Inc()

	respondWithJSON(w, r, http.StatusOK, RelayResponse{Success: resp.Success, ID: resp.ID, Message: "Message sent"})
}

func validateSendRequest(req SendRequest) []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(req.Content) == "" {
		errs = append(errs, ValidationError{Field: "content", Message: "content is required"})
	}
	if strings.TrimSpace(req.Sender) == "" {
		errs = append(errs, ValidationError{Field: "sender", Message: "sender is required"})
	}
	return errs
}
