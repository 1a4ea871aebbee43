package relay

import (
	"context"
	"errors"

	"github.com/aanthord/mtls-relay/internal/business"
	"github.com/aanthord/mtls-relay/internal/config"
	"github.com/aanthord/mtls-relay/internal/metrics"
	"github.com/aanthord/mtls-relay/internal/rpc"
	"go.uber.org/zap"
)

// ForwarderService exposes the intermediate pipeline hop over RPC.
type ForwarderService struct {
	processor *business.MessageProcessor
	logger    *zap.SugaredLogger
}

func NewForwarderService(processor *business.MessageProcessor, logger *zap.SugaredLogger) *ForwarderService {
	return &ForwarderService{processor: processor, logger: logger}
}

func (s *ForwarderService) Register(srv *rpc.Server) {
	rpc.Handle(srv, MethodProcessData, s.ProcessData)
}

func (s *ForwarderService) ProcessData(ctx context.Context, req *ProcessDataRequest) (*ProcessDataResponse, error) {
	sourceID := req.SourceID
	if sourceID == "" {
		if md, ok := rpc.FromContext(ctx); ok {
			sourceID = md.Header[rpc.HeaderRequestID]
		}
	}

	res, err := s.processor.ProcessData(ctx, req.JSONData, sourceID)
	if err != nil {
		st := forwardStatus(err)
		if st.Code != rpc.CodeInvalidArgument {
			metrics.ForwardFailures.WithLabelValues(config.RoleForwarder, st.Code.String()).Inc()
			s.logger.Errorw("Failed to forward payload", "source_id", sourceID, "error", err)
		}
		return nil, st
	}

	metrics.MessagesRelayed.WithLabelValues(config.RoleForwarder).Inc()
	return &ProcessDataResponse{Success: true, RequestID: res.RequestID, DisplayID: res.DisplayID}, nil
}

// forwardStatus maps a processing failure onto the status returned upstream:
// local validation is InvalidArgument, an unreachable display hop keeps its
// timeout distinction, and downstream rejections pass through unchanged.
func forwardStatus(err error) *rpc.Status {
	if errors.Is(err, business.ErrInvalidPayload) {
		return &rpc.Status{Code: rpc.CodeInvalidArgument, Message: err.Error()}
	}
	var st *rpc.Status
	if errors.As(err, &st) {
		return st
	}
	var ue *rpc.UnavailableError
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return &rpc.Status{Code: rpc.CodeDeadlineExceeded, Message: "display hop timed out"}
		}
		return &rpc.Status{Code: rpc.CodeUnavailable, Message: "display hop unavailable"}
	}
	return &rpc.Status{Code: rpc.CodeInternal, Message: err.Error()}
}
