package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aanthord/mtls-relay/internal/relay"
	"github.com/aanthord/mtls-relay/internal/rpc"
	"github.com/aanthord/mtls-relay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func postJSON(t *testing.T, h http.HandlerFunc, path, body string) (*httptest.ResponseRecorder, RelayResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)

	var resp RelayResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	return rr, resp
}

func TestSendHandlerSuccess(t *testing.T) {
	m := new(MockMessageRelay)
	m.On("SendMessage", mock.Anything, mock.MatchedBy(func(req *relay.SendMessageRequest) bool {
		return req.Content == "hi" && req.Sender == "alice" && req.Timestamp > 0
	})).Return(&relay.SendMessageResponse{Success: true, ID: "4f1c7c2e-9a51-4d8e-a0d4-1f0e1b0a9c11"}, nil)

	h := NewSendHandler(m, nil, testutil.NewTestLogger(t))
	rr, resp := postJSON(t, h.Handle, "/send", `{"content":" hi ","sender":"alice"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.True(t, resp.Success)
	assert.Equal(t, "4f1c7c2e-9a51-4d8e-a0d4-1f0e1b0a9c11", resp.ID)
	m.AssertExpectations(t)
}

func TestSendHandlerValidation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{"empty content", `{"content":"","sender":"alice"}`, []string{"content"}},
		{"whitespace sender", `{"content":"hi","sender":"  \t"}`, []string{"sender"}},
		{"both missing", `{}`, []string{"content", "sender"}},
		{"malformed json", `{"content":`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockMessageRelay)
			h := NewSendHandler(m, nil, testutil.NewTestLogger(t))

			rr, resp := postJSON(t, h.Handle, "/send", tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
			var fields []string
			for _, v := range resp.Validations {
				fields = append(fields, v.Field)
			}
			assert.Equal(t, tt.fields, fields)
			m.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
		})
	}
}

func TestSendHandlerRelayFailures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"unreachable", rpc.NewUnavailableError("localhost:3004", relay.MethodSendMessage, errors.New("connection refused"), false), http.StatusServiceUnavailable, "unavailable"},
		{"timeout", rpc.NewUnavailableError("localhost:3004", relay.MethodSendMessage, errors.New("i/o timeout"), true), http.StatusGatewayTimeout, "timeout"},
		{"invalid argument", rpc.Errorf(rpc.CodeInvalidArgument, "content is required"), http.StatusBadRequest, "invalid_argument"},
		{"downstream internal", rpc.Errorf(rpc.CodeInternal, "boom"), http.StatusBadGateway, "rejected"},
		{"downstream unavailable", rpc.Errorf(rpc.CodeUnavailable, "display hop unavailable"), http.StatusServiceUnavailable, "unavailable"},
		{"local", errors.New("unexpected"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockMessageRelay)
			m.On("SendMessage", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			h := NewSendHandler(m, nil, testutil.NewTestLogger(t))
			rr, resp := postJSON(t, h.Handle, "/send", `{"content":"hi","sender":"alice"}`)

			assert.Equal(t, tt.status, rr.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.reason, resp.Reason)
			assert.NotEmpty(t, resp.Message)
			m.AssertExpectations(t)
		})
	}
}

func TestSendHandlerRetriesUnavailable(t *testing.T) {
	unavailable := rpc.NewUnavailableError("localhost:3004", relay.MethodSendMessage, errors.New("connection refused"), false)

	m := new(MockMessageRelay)
	m.On("SendMessage", mock.Anything, mock.Anything).Return(nil, unavailable).Twice()
	m.On("SendMessage", mock.Anything, mock.Anything).Return(&relay.SendMessageResponse{Success: true, ID: "id-1"}, nil).Once()

	retrier := &Retrier{Max: 2, InitialInterval: time.Millisecond}
	h := NewSendHandler(m, retrier, testutil.NewTestLogger(t))
	rr, resp := postJSON(t, h.Handle, "/send", `{"content":"hi","sender":"alice"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "id-1", resp.ID)
	m.AssertNumberOfCalls(t, "SendMessage", 3)
}

func TestSendHandlerDoesNotRetryRejections(t *testing.T) {
	m := new(MockMessageRelay)
	m.On("SendMessage", mock.Anything, mock.Anything).Return(nil, rpc.Errorf(rpc.CodeInvalidArgument, "no")).Once()

	retrier := &Retrier{Max: 3, InitialInterval: time.Millisecond}
	h := NewSendHandler(m, retrier, testutil.NewTestLogger(t))
	rr, _ := postJSON(t, h.Handle, "/send", `{"content":"hi","sender":"alice"}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	m.AssertNumberOfCalls(t, "SendMessage", 1)
}

func TestSendHandlerRetriesStayWithinBudget(t *testing.T) {
	m := new(MockMessageRelay)
	unavailable := rpc.NewUnavailableError("messenger:3004", relay.MethodSendMessage, errors.New("connection refused"), false)
	m.On("SendMessage", mock.Anything, mock.Anything).Return(nil, unavailable)

	retrier := &Retrier{Max: 1000, InitialInterval: 20 * time.Millisecond, Budget: 150 * time.Millisecond}
	h := NewSendHandler(m, retrier, testutil.NewTestLogger(t))

	start := time.Now()
	rr, resp := postJSON(t, h.Handle, "/send", `{"content":"hi","sender":"alice"}`)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "unavailable", resp.Reason)
}

func TestRetrierBoundsEachAttempt(t *testing.T) {
	retrier := &Retrier{Max: 3, InitialInterval: time.Millisecond, Budget: time.Minute}
	var sawDeadline bool
	err := retrier.Do(context.Background(), func(ctx context.Context) error {
		_, sawDeadline = ctx.Deadline()
		return nil
	})
	require.NoError(t, err)
	assert.True(t, sawDeadline)
}
