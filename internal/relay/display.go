package relay

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/aanthord/mtls-relay/internal/metrics"
	"github.com/aanthord/mtls-relay/internal/models"
	"github.com/aanthord/mtls-relay/internal/rpc"
	"github.com/aanthord/mtls-relay/internal/storage"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// DisplayService is the terminal hop of the pipeline chain. The same store is
// handed to the HTTP poll handlers, which only ever read snapshots.
type DisplayService struct {
	store  *storage.Log[models.StoredRecord]
	logger *zap.SugaredLogger
}

func NewDisplayService(store *storage.Log[models.StoredRecord], logger *zap.SugaredLogger) *DisplayService {
	return &DisplayService{store: store, logger: logger}
}

func (s *DisplayService) Register(srv *rpc.Server) {
	rpc.Handle(srv, MethodSendToDisplay, s.SendToDisplay)
	rpc.Handle(srv, MethodListRecords, s.ListRecords)
}

func (s *DisplayService) SendToDisplay(ctx context.Context, req *SendToDisplayRequest) (*SendToDisplayResponse, error) {
	data := strings.TrimSpace(req.JSONData)
	if data == "" {
		return nil, rpc.Errorf(rpc.CodeInvalidArgument, "json_data is required")
	}
	if !json.Valid([]byte(data)) {
		return nil, rpc.Errorf(rpc.CodeInvalidArgument, "json_data is not valid JSON")
	}

	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		if md, ok := rpc.FromContext(ctx); ok {
			requestID = md.Header[rpc.HeaderRequestID]
		}
	}

	displayID, _ := s.store.Append(func(id string) models.StoredRecord {
		return models.NewStoredRecord(id, requestID, []byte(data))
	})
	metrics.RecordsStored.WithLabelValues("display").Set(float64(s.store.Len()))

	s.logger.Infow("Record stored",
		"display_id", displayID,
		"request_id", requestID,
		"size", humanize.Bytes(uint64(len(data))),
	)
	return &SendToDisplayResponse{Success: true, DisplayID: displayID}, nil
}

func (s *DisplayService) ListRecords(ctx context.Context, _ *ListRecordsRequest) (*ListRecordsResponse, error) {
	return &ListRecordsResponse{Records: s.store.Snapshot()}, nil
}
