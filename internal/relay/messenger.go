package relay

import (
	"context"
	"strings"
	"time"

	"github.com/aanthord/mtls-relay/internal/metrics"
	"github.com/aanthord/mtls-relay/internal/models"
	"github.com/aanthord/mtls-relay/internal/rpc"
	"github.com/aanthord/mtls-relay/internal/storage"
	"go.uber.org/zap"
)

// MessengerService is the terminal hop of the message chain. It owns the
// message store; SendMessage is its only writer.
type MessengerService struct {
	store  *storage.Log[models.Message]
	logger *zap.SugaredLogger
}

func NewMessengerService(store *storage.Log[models.Message], logger *zap.SugaredLogger) *MessengerService {
	return &MessengerService{store: store, logger: logger}
}

func (s *MessengerService) Register(srv *rpc.Server) {
	rpc.Handle(srv, MethodSendMessage, s.SendMessage)
	rpc.Handle(srv, MethodGetMessages, s.GetMessages)
}

func (s *MessengerService) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	sender := strings.TrimSpace(req.Sender)
	if content == "" {
		return nil, rpc.Errorf(rpc.CodeInvalidArgument, "content is required")
	}
	if sender == "" {
		return nil, rpc.Errorf(rpc.CodeInvalidArgument, "sender is required")
	}
	timestamp := req.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}

	id, _ := s.store.Append(func(id string) models.Message {
		return models.Message{ID: id, Content: content, Sender: sender, Timestamp: timestamp}
	})
	metrics.RecordsStored.WithLabelValues("messages").Set(float64(s.store.Len()))

	md, _ := rpc.FromContext(ctx)
	s.logger.Infow("Message stored", "id", id, "sender", sender, "peer", md.Peer)
	return &SendMessageResponse{Success: true, ID: id}, nil
}

func (s *MessengerService) GetMessages(ctx context.Context, _ *GetMessagesRequest) (*GetMessagesResponse, error) {
	return &GetMessagesResponse{Messages: s.store.Snapshot()}, nil
}
