package handlers

import (
	"net/http"

	"github.com/aanthord/mtls-relay/internal/models"
	"go.uber.org/zap"
)

// RecordStore is the read side of the display store.
type RecordStore interface {
	Snapshot() []models.StoredRecord
	Find(pred func(models.StoredRecord) bool) []models.StoredRecord
}

type DataResponse struct {
	Data []models.StoredRecord `json:"data"`
}

// DataHandler serves the display store to polling viewers.
type DataHandler struct {
	store  RecordStore
	logger *zap.SugaredLogger
}

func NewDataHandler(store RecordStore, logger *zap.SugaredLogger) *DataHandler {
	return &DataHandler{store: store, logger: logger}
}

// Handle godoc
// @Summary List displayed records
// @Description Returns a snapshot of every record stored by the display hop, in append order.
// @Tags display
// @Produce json
// @Success 200 {object} DataResponse
// @Router /data [get]
// @Router /api/data [get]
func (h *DataHandler) Handle(w http.ResponseWriter, r *http.Request) {
	records := h.store.Snapshot()
	h.logger.Debugw("Serving display records", "count", len(records))

	respondWithJSON(w, r, http.StatusOK, DataResponse{Data: records})
}
