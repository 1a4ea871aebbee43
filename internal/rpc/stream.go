package rpc

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// Listen opens a TCP listener on addr. Server.Serve layers TLS on top.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// dialTLS connects to target and completes the handshake before returning,
// so problems with the server certificate surface here.
func dialTLS(ctx context.Context, target string, cfg *tls.Config, timeout time.Duration) (net.Conn, error) {
	d := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: timeout},
		Config:    cfg,
	}
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
