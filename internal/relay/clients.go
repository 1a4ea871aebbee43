package relay

import (
	"context"

	"github.com/aanthord/mtls-relay/internal/models"
	"github.com/aanthord/mtls-relay/internal/rpc"
)

// Caller is the transport a typed client rides on. *rpc.Client implements it.
type Caller interface {
	Call(ctx context.Context, method string, args, reply interface{}) error
}

// withRequestID carries the correlation id to the next hop in the frame
// headers as well as in the body.
func withRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return rpc.WithOutgoingHeader(ctx, rpc.HeaderRequestID, requestID)
}

type MessengerClient struct {
	caller Caller
}

func NewMessengerClient(caller Caller) *MessengerClient {
	return &MessengerClient{caller: caller}
}

func (c *MessengerClient) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	var resp SendMessageResponse
	if err := c.caller.Call(ctx, MethodSendMessage, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *MessengerClient) GetMessages(ctx context.Context) ([]models.Message, error) {
	var resp GetMessagesResponse
	if err := c.caller.Call(ctx, MethodGetMessages, &GetMessagesRequest{}, &resp); err != nil {
		return nil, err
	}
	if resp.Messages == nil {
		resp.Messages = []models.Message{}
	}
	return resp.Messages, nil
}

type PipelineClient struct {
	caller Caller
}

func NewPipelineClient(caller Caller) *PipelineClient {
	return &PipelineClient{caller: caller}
}

func (c *PipelineClient) ProcessData(ctx context.Context, req *ProcessDataRequest) (*ProcessDataResponse, error) {
	var resp ProcessDataResponse
	if err := c.caller.Call(withRequestID(ctx, req.SourceID), MethodProcessData, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type DisplayClient struct {
	caller Caller
}

func NewDisplayClient(caller Caller) *DisplayClient {
	return &DisplayClient{caller: caller}
}

func (c *DisplayClient) SendToDisplay(ctx context.Context, req *SendToDisplayRequest) (*SendToDisplayResponse, error) {
	var resp SendToDisplayResponse
	if err := c.caller.Call(withRequestID(ctx, req.RequestID), MethodSendToDisplay, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Forward delivers env to the display hop and returns its display id.
func (c *DisplayClient) Forward(ctx context.Context, env models.RelayEnvelope) (string, error) {
	resp, err := c.SendToDisplay(ctx, &SendToDisplayRequest{
		JSONData:  string(env.Payload),
		RequestID: env.RequestID,
	})
	if err != nil {
		return "", err
	}
	return resp.DisplayID, nil
}

func (c *DisplayClient) ListRecords(ctx context.Context) ([]models.StoredRecord, error) {
	var resp ListRecordsResponse
	if err := c.caller.Call(ctx, MethodListRecords, &ListRecordsRequest{}, &resp); err != nil {
		return nil, err
	}
	if resp.Records == nil {
		resp.Records = []models.StoredRecord{}
	}
	return resp.Records, nil
}
