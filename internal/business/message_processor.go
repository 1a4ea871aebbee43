package business

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aanthord/mtls-relay/internal/ids"
	"github.com/aanthord/mtls-relay/internal/models"
	"github.com/aanthord/mtls-relay/internal/tracing"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// ErrInvalidPayload marks input rejected before anything is forwarded.
var ErrInvalidPayload = errors.New("invalid payload")

// Forwarder delivers an envelope to the next hop and returns the id the
// payload was stored under there.
type Forwarder interface {
	Forward(ctx context.Context, env models.RelayEnvelope) (string, error)
}

type Result struct {
	RequestID string
	DisplayID string
}

// MessageProcessor is the intermediate pipeline hop: it validates a payload,
// settles its request id and forwards it downstream, blocking until the next
// hop acknowledges.
type MessageProcessor struct {
	next   Forwarder
	ids    ids.Generator
	logger *zap.SugaredLogger
}

func NewMessageProcessor(next Forwarder, requestIDs ids.Generator, logger *zap.SugaredLogger) *MessageProcessor {
	return &MessageProcessor{
		next:   next,
		ids:    requestIDs,
		logger: logger,
	}
}

func (mp *MessageProcessor) ProcessData(ctx context.Context, jsonData, sourceID string) (*Result, error) {
	span, ctx := tracing.StartSpanFromContext(ctx, "ProcessData", sourceID)
	defer span.Finish()

	env, err := mp.envelope(jsonData, sourceID)
	if err != nil {
		tracing.MarkError(span, err)
		return nil, err
	}
	span.SetTag("request_id", env.RequestID)

	displayID, err := mp.forward(ctx, env)
	if err != nil {
		tracing.MarkError(span, err)
		return nil, err
	}

	mp.logger.Infow("Payload forwarded",
		"request_id", env.RequestID,
		"display_id", displayID,
		"size", humanize.Bytes(uint64(len(env.Payload))),
	)
	return &Result{RequestID: env.RequestID, DisplayID: displayID}, nil
}

func (mp *MessageProcessor) envelope(jsonData, sourceID string) (models.RelayEnvelope, error) {
	data := strings.TrimSpace(jsonData)
	if data == "" {
		return models.RelayEnvelope{}, fmt.Errorf("%w: json_data is required", ErrInvalidPayload)
	}
	if !json.Valid([]byte(data)) {
		return models.RelayEnvelope{}, fmt.Errorf("%w: json_data is not valid JSON", ErrInvalidPayload)
	}

	requestID := strings.TrimSpace(sourceID)
	if requestID == "" {
		requestID = mp.ids.NewID()
		mp.logger.Debugw("Generated request id", "request_id", requestID)
	}
	return models.RelayEnvelope{Payload: json.RawMessage(data), RequestID: requestID}, nil
}

func (mp *MessageProcessor) forward(ctx context.Context, env models.RelayEnvelope) (string, error) {
	span, ctx := tracing.StartSpanFromContext(ctx, "ForwardToDisplay", env.RequestID)
	defer span.Finish()

	displayID, err := mp.next.Forward(ctx, env)
	if err != nil {
		tracing.MarkError(span, err)
		return "", fmt.Errorf("failed to forward request %s: %w", env.RequestID, err)
	}
	return displayID, nil
}
