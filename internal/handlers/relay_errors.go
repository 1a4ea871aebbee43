package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aanthord/mtls-relay/internal/rpc"
	"github.com/cenkalti/backoff/v4"
)

// relayFailure turns a relay client error into the HTTP status and body the
// ingress caller sees.
func relayFailure(err error) (int, RelayResponse) {
	resp := RelayResponse{Success: false}

	var ue *rpc.UnavailableError
	var st *rpc.Status
	switch {
	case errors.As(err, &ue) && ue.Timeout():
		resp.Message, resp.Reason = "Downstream relay timed out", "timeout"
		return http.StatusGatewayTimeout, resp
	case errors.As(err, &ue):
		resp.Message, resp.Reason = "Downstream relay unavailable", "unavailable"
		return http.StatusServiceUnavailable, resp
	case errors.As(err, &st):
		switch st.Code {
		case rpc.CodeDeadlineExceeded:
			resp.Message, resp.Reason = "Downstream relay timed out: "+st.Message, "timeout"
			return http.StatusGatewayTimeout, resp
		case rpc.CodeUnavailable:
			resp.Message, resp.Reason = "Downstream relay unavailable: "+st.Message, "unavailable"
			return http.StatusServiceUnavailable, resp
		case rpc.CodeInvalidArgument:
			resp.Message, resp.Reason = st.Message, "invalid_argument"
			return http.StatusBadRequest, resp
		default:
			resp.Message, resp.Reason = "Downstream relay rejected the request: "+st.Message, "rejected"
			return http.StatusBadGateway, resp
		}
	default:
		resp.Message, resp.Reason = "Internal error", "internal"
		return http.StatusInternalServerError, resp
	}
}

// Retrier retries relay calls that failed with *rpc.UnavailableError. With
// Max at zero every call is attempted exactly once. Budget, when set, bounds
// all attempts and the waits between them.
type Retrier struct {
	Max             int
	InitialInterval time.Duration
	Budget          time.Duration
}

func NewRetrier(max int, budget time.Duration) *Retrier {
	return &Retrier{Max: max, InitialInterval: backoff.DefaultInitialInterval, Budget: budget}
}

func (rt *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if rt == nil || rt.Max <= 0 {
		return fn(ctx)
	}
	if rt.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.Budget)
		defer cancel()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = rt.InitialInterval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(rt.Max)), ctx)

	var last error
	err := backoff.Retry(func() error {
		last = fn(ctx)
		var ue *rpc.UnavailableError
		if last != nil && !errors.As(last, &ue) {
			return backoff.Permanent(last)
		}
		return last
	}, b)
	if err != nil && last != nil && ctx.Err() != nil {
		// out of budget while waiting: report the relay failure, not the wait
		return last
	}
	return err
}
