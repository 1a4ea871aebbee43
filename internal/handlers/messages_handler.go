package handlers

import (
	"net/http"

	"github.com/aanthord/mtls-relay/internal/models"
	"go.uber.org/zap"
)

type MessagesResponse struct {
	Messages []models.Message `json:"messages"`
	Error    string           `json:"error,omitempty"`
}

// MessagesHandler pulls the messenger's store over RPC for polling viewers.
type MessagesHandler struct {
	relay  MessageRelay
	logger *zap.SugaredLogger
}

func NewMessagesHandler(relay MessageRelay, logger *zap.SugaredLogger) *MessagesHandler {
	return &MessagesHandler{relay: relay, logger: logger}
}

// Handle godoc
// @Summary List relayed messages
// @Description Reads every message stored by the messenger hop, in arrival order.
// @Tags messages
// @Produce json
// @Success 200 {object} MessagesResponse
// @Failure 500 {object} MessagesResponse "The messenger hop could not be read"
// @Router /messages [get]
func (h *MessagesHandler) Handle(w http.ResponseWriter, r *http.Request) {
	messages, err := h.relay.GetMessages(r.Context())
	if err != nil {
		h.logger.Errorw("Failed to fetch messages", "error", err)
		markSpanError(r, http.StatusInternalServerError, err.Error())
		respondWithJSON(w, r, http.StatusInternalServerError, MessagesResponse{
			Messages: []models.Message{},
			Error:    "Failed to fetch messages: " + err.Error(),
		})
		return
	}

	respondWithJSON(w, r, http.StatusOK, MessagesResponse{Messages: messages})
}
