package handlers

import (
	"net/http"

	"github.com/aanthord/mtls-relay/internal/models"
	"go.uber.org/zap"
)

// SearchHandler looks up display records by the request id threaded through
// the pipeline.
type SearchHandler struct {
	store  RecordStore
	logger *zap.SugaredLogger
}

func NewSearchHandler(store RecordStore, logger *zap.SugaredLogger) *SearchHandler {
	return &SearchHandler{store: store, logger: logger}
}

// Handle godoc
// @Summary Search records by request id
// @Description Returns the display records carrying the given request id.
// @Tags display
// @Produce json
// @Param request_id query string true "Request ID"
// @Success 200 {object} DataResponse
// @Failure 400 {object} ErrorResponse
// @Router /search [get]
func (h *SearchHandler) Handle(w http.ResponseWriter, r *http.Request) {
	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		h.logger.Info("Missing request_id query parameter")
		respondWithError(w, r, http.StatusBadRequest, "Missing request_id query parameter")
		return
	}

	results := h.store.Find(func(rec models.StoredRecord) bool {
		return rec.RequestID == requestID
	})

	respondWithJSON(w, r, http.StatusOK, DataResponse{Data: results})

	h.logger.Infow("Search performed successfully", "request_id", requestID, "results", len(results))
}
