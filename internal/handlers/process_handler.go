package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/aanthord/mtls-relay/internal/config"
	"github.com/aanthord/mtls-relay/internal/httputil"
	"github.com/aanthord/mtls-relay/internal/ids"
	"github.com/aanthord/mtls-relay/internal/metrics"
	"github.com/aanthord/mtls-relay/internal/relay"
	"github.com/aanthord/mtls-relay/internal/tracing"
	"go.uber.org/zap"
)

// PipelineRelay is the forwarder hop as seen from the gateway role.
type PipelineRelay interface {
	ProcessData(ctx context.Context, req *relay.ProcessDataRequest) (*relay.ProcessDataResponse, error)
}

type ProcessRequest struct {
	Data json.RawMessage `json:"data" swaggertype:"object"`
}

// ProcessHandler accepts an arbitrary JSON (or XML) document and relays it
// down the pipeline chain.
type ProcessHandler struct {
	relay   PipelineRelay
	ids     ids.Generator
	retrier *Retrier
	logger  *zap.SugaredLogger
}

func NewProcessHandler(relay PipelineRelay, requestIDs ids.Generator, retrier *Retrier, logger *zap.SugaredLogger) *ProcessHandler {
	return &ProcessHandler{relay: relay, ids: requestIDs, retrier: retrier, logger: logger}
}

// Handle godoc
// @Summary Process a document (supports JSON and XML)
// @Description Relays {"data": ...} through the forwarder hop to the display store. An XML body is converted to JSON and relayed whole.
// @Tags pipeline
// @Accept json
// @Accept xml
// @Produce json
// @Param X-Request-ID header string false "Correlation id to carry end to end"
// @Param request body ProcessRequest true "Document to relay"
// @Success 200 {object} RelayResponse "Stored by the display hop"
// @Failure 400 {object} RelayResponse "Missing or malformed data"
// @Failure 502 {object} RelayResponse "Downstream rejected the document"
// @Failure 503 {object} RelayResponse "Downstream unreachable"
// @Failure 504 {object} RelayResponse "Downstream timed out"
// @Router /process [post]
func (h *ProcessHandler) Handle(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if requestID == "" {
		requestID = h.ids.NewID()
	}

	span, ctx := tracing.StartSpanFromContext(r.Context(), "ProcessHandler.Handle", requestID)
	defer span.Finish()

	data, verr := h.decode(w, r)
	if verr != nil {
		h.logger.Infow("Rejected process request", "request_id", requestID, "error", verr)
		respondWithFailure(w, r, http.StatusBadRequest, validationFailure([]ValidationError{*verr}))
		return
	}

	var resp *relay.ProcessDataResponse
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		var callErr error
		resp, callErr = h.relay.ProcessData(ctx, &relay.ProcessDataRequest{
			JSONData: string(data),
			SourceID: requestID,
		})
		return callErr
	})
	if err != nil {
		code, failure := relayFailure(err)
		failure.RequestID = requestID
		h.logger.Errorw("Failed to relay data", "request_id", requestID, "status", code, "error", err)
		metrics.ForwardFailures.WithLabelValues(config.RoleGateway, failure.Reason).Inc()
		respondWithFailure(w, r, code, failure)
		return
	}

	h.logger.Infow("Data relayed", "request_id", resp.RequestID, "display_id", resp.DisplayID)
	metrics.MessagesRelayed.WithLabelValues(config.RoleGateway).Inc()

	respondWithJSON(w, r, http.StatusOK, RelayResponse{
		Success:   resp.Success,
		RequestID: resp.RequestID,
		DisplayID: resp.DisplayID,
		Message:   "Data processed",
	})
}

// decode extracts the document to relay: the "data" member of a JSON body,
// or the whole of an XML body.
func (h *ProcessHandler) decode(w http.ResponseWriter, r *http.Request) (json.RawMessage, *ValidationError) {
	body, err := httputil.ReadBody(w, r, httputil.DefaultMaxBodyBytes)
	if err != nil {
		return nil, &ValidationError{Field: "body", Message: err.Error()}
	}

	if httputil.IsXML(r) {
		data, err := httputil.XMLToJSON(body)
		if err != nil {
			return nil, &ValidationError{Field: "body", Message: err.Error()}
		}
		return data, nil
	}

	var req ProcessRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, &ValidationError{Field: "body", Message: "Invalid request format: " + err.Error()}
	}
	data := bytes.TrimSpace(req.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, &ValidationError{Field: "data", Message: "data is required"}
	}
	return data, nil
}
