package business

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aanthord/mtls-relay/internal/ids"
	"github.com/aanthord/mtls-relay/internal/models"
	"github.com/aanthord/mtls-relay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Forward(ctx context.Context, env models.RelayEnvelope) (string, error) {
	args := m.Called(ctx, env)
	return args.String(0), args.Error(1)
}

func TestProcessDataKeepsSourceID(t *testing.T) {
	next := new(MockForwarder)
	next.On("Forward", mock.Anything, models.RelayEnvelope{
		Payload:   json.RawMessage(`{"k":1}`),
		RequestID: "req-1",
	}).Return("disp-1", nil)

	mp := NewMessageProcessor(next, ids.NewUUIDGenerator(), testutil.NewTestLogger(t))
	res, err := mp.ProcessData(context.Background(), ` {"k":1} `, "req-1")

	require.NoError(t, err)
	assert.Equal(t, &Result{RequestID: "req-1", DisplayID: "disp-1"}, res)
	next.AssertExpectations(t)
}

func TestProcessDataGeneratesRequestID(t *testing.T) {
	next := new(MockForwarder)
	next.On("Forward", mock.Anything, mock.MatchedBy(func(env models.RelayEnvelope) bool {
		return len(env.RequestID) == 36
	})).Return("disp-2", nil)

	mp := NewMessageProcessor(next, ids.NewUUIDGenerator(), testutil.NewTestLogger(t))
	res, err := mp.ProcessData(context.Background(), `[1,2,3]`, "  ")

	require.NoError(t, err)
	assert.Len(t, res.RequestID, 36)
	assert.Equal(t, "disp-2", res.DisplayID)
}

func TestProcessDataRejectsBadPayload(t *testing.T) {
	for name, data := range map[string]string{
		"empty":      "",
		"whitespace": " \n\t",
		"not json":   "{oops",
	} {
		t.Run(name, func(t *testing.T) {
			next := new(MockForwarder)
			mp := NewMessageProcessor(next, ids.NewUUIDGenerator(), testutil.NewTestLogger(t))

			_, err := mp.ProcessData(context.Background(), data, "")
			assert.ErrorIs(t, err, ErrInvalidPayload)
			next.AssertNotCalled(t, "Forward", mock.Anything, mock.Anything)
		})
	}
}

func TestProcessDataWrapsForwardError(t *testing.T) {
	downstream := errors.New("connection refused")
	next := new(MockForwarder)
	next.On("Forward", mock.Anything, mock.Anything).Return("", downstream)

	mp := NewMessageProcessor(next, ids.NewUUIDGenerator(), testutil.NewTestLogger(t))
	_, err := mp.ProcessData(context.Background(), `{}`, "req-9")

	assert.ErrorIs(t, err, downstream)
	assert.Contains(t, err.Error(), "req-9")
	assert.NotErrorIs(t, err, ErrInvalidPayload)
}
