package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrServerClosed is returned by Server.Serve after Close.
var ErrServerClosed = errors.New("rpc: server closed")

// ErrClientClosed is returned by calls on a closed Client.
var ErrClientClosed = errors.New("rpc: client closed")

// UnavailableError means the downstream hop could not be reached, the TLS
// handshake failed, or the call ran past its deadline.
type UnavailableError struct {
	Target  string
	Method  string
	Err     error
	timeout bool
}

func NewUnavailableError(target, method string, err error, timeout bool) *UnavailableError {
	return &UnavailableError{Target: target, Method: method, Err: err, timeout: timeout}
}

func newUnavailable(target, method string, err error, ctx context.Context) *UnavailableError {
	return NewUnavailableError(target, method, err, isTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded))
}

func (e *UnavailableError) Error() string {
	if e.timeout {
		return fmt.Sprintf("relay %s unavailable: %s timed out: %v", e.Target, e.Method, e.Err)
	}
	return fmt.Sprintf("relay %s unavailable: %s: %v", e.Target, e.Method, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Timeout reports whether the call failed because its deadline expired.
func (e *UnavailableError) Timeout() bool { return e.timeout }

// HandshakeError is logged by the server when a peer fails mutual TLS.
type HandshakeError struct {
	Remote string
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("tls handshake with %s failed: %v", e.Remote, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
