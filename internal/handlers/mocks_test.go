package handlers

import (
	"context"

	"github.com/aanthord/mtls-relay/internal/models"
	"github.com/aanthord/mtls-relay/internal/relay"
	"github.com/stretchr/testify/mock"
)

type MockMessageRelay struct {
	mock.Mock
}

func (m *MockMessageRelay) SendMessage(ctx context.Context, req *relay.SendMessageRequest) (*relay.SendMessageResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*relay.SendMessageResponse)
	return resp, args.Error(1)
}

func (m *MockMessageRelay) GetMessages(ctx context.Context) ([]models.Message, error) {
	args := m.Called(ctx)
	messages, _ := args.Get(0).([]models.Message)
	return messages, args.Error(1)
}

type MockPipelineRelay struct {
	mock.Mock
}

func (m *MockPipelineRelay) ProcessData(ctx context.Context, req *relay.ProcessDataRequest) (*relay.ProcessDataResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*relay.ProcessDataResponse)
	return resp, args.Error(1)
}
