package rpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/aanthord/mtls-relay/internal/metrics"
	"github.com/aanthord/mtls-relay/internal/tracing"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const (
	DefaultTimeout     = 5 * time.Second
	DefaultDialTimeout = 3 * time.Second
	DefaultMaxPool     = 4
	DefaultMaxIdle     = time.Minute
)

// A past deadline makes blocked reads and writes return immediately.
var aLongTimeAgo = time.Unix(1, 0)

type ClientOptions struct {
	// Timeout bounds each call. A shorter context deadline wins.
	Timeout     time.Duration
	DialTimeout time.Duration
	// MaxPool caps the idle connections kept for reuse.
	MaxPool int
	// MaxIdle drops pooled connections unused for longer than this, keeping
	// the client ahead of the server's idle timeout.
	MaxIdle time.Duration
	Logger  *zap.SugaredLogger
}

// Client calls one downstream relay over pooled mutual-TLS connections. It is
// safe for concurrent use; each in-flight call holds its own connection.
type Client struct {
	target    string
	tlsConfig *tls.Config
	opts      ClientOptions
	logger    *zap.SugaredLogger

	mu     sync.Mutex
	pool   []*clientConn
	closed bool
}

type clientConn struct {
	*framedConn
	lastUsed time.Time
}

func NewClient(target string, tlsConfig *tls.Config, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.MaxPool <= 0 {
		opts.MaxPool = DefaultMaxPool
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = DefaultMaxIdle
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		target:    target,
		tlsConfig: tlsConfig,
		opts:      opts,
		logger:    logger.With("target", target),
	}
}

func (c *Client) Target() string { return c.target }

// Call sends args to method and decodes the result into reply. reply may be
// nil when the caller does not need the response body.
func (c *Client) Call(ctx context.Context, method string, args, reply interface{}) error {
	span, ctx := tracing.StartClientSpan(ctx, method)
	defer span.Finish()

	start := time.Now()
	defer func() {
		metrics.RPCCallDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	body, err := msgpack.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}

	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	header := outgoingHeaders(ctx)
	header[HeaderTimeout] = time.Until(deadline).String()
	tracing.InjectHeaders(span, header)

	var resp responseFrame
	if err := c.roundTrip(ctx, deadline, &requestFrame{Method: method, Header: header, Body: body}, &resp); err != nil {
		uerr := newUnavailable(c.target, method, err, ctx)
		tracing.MarkError(span, uerr)
		c.logger.Debugw("RPC call failed", "method", method, "timeout", uerr.Timeout(), "error", err)
		return uerr
	}

	if resp.Code != CodeOK {
		st := &Status{Code: resp.Code, Message: resp.Message}
		tracing.MarkError(span, st)
		return st
	}
	if reply != nil {
		if err := msgpack.Unmarshal(resp.Body, reply); err != nil {
			return fmt.Errorf("decode %s response: %w", method, err)
		}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, deadline time.Time, req *requestFrame, resp *responseFrame) error {
	conn, err := c.getConn(ctx)
	if err != nil {
		return err
	}

	if err := conn.conn.SetDeadline(deadline); err != nil {
		conn.release()
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.conn.SetDeadline(aLongTimeAgo)
	})

	err = conn.write(req)
	if err == nil {
		err = conn.read(resp)
	}

	if !stop() {
		// The deadline fired mid-call; the stream position is unknown.
		conn.release()
		if err == nil {
			err = ctx.Err()
		}
		return err
	}
	if err != nil {
		conn.release()
		return err
	}
	_ = conn.conn.SetDeadline(time.Time{})
	c.returnConn(conn)
	return nil
}

// Ping establishes (or reuses) a connection to prove the downstream is up
// and accepts our certificate.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()
	conn, err := c.getConn(ctx)
	if err != nil {
		return newUnavailable(c.target, "ping", err, ctx)
	}
	c.returnConn(conn)
	return nil
}

func (c *Client) getConn(ctx context.Context) (*clientConn, error) {
	for {
		conn, err := c.getPooledConn()
		if err != nil {
			return nil, err
		}
		if conn == nil {
			break
		}
		// Nothing has been sent yet, so dropping a dead connection and
		// dialing afresh is not a retry of the call.
		if err := conn.check(); err != nil {
			c.logger.Debugw("Dropping stale pooled connection", "error", err)
			conn.release()
			continue
		}
		return conn, nil
	}

	raw, err := dialTLS(ctx, c.target, c.tlsConfig, c.opts.DialTimeout)
	if err != nil {
		return nil, err
	}
	c.logger.Debugw("Connected to relay", "remote", raw.RemoteAddr().String())
	return &clientConn{framedConn: newFramedConn(raw)}, nil
}

func (c *Client) getPooledConn() (*clientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}
	for len(c.pool) > 0 {
		n := len(c.pool) - 1
		conn := c.pool[n]
		c.pool[n] = nil
		c.pool = c.pool[:n]
		if time.Since(conn.lastUsed) > c.opts.MaxIdle {
			conn.release()
			continue
		}
		return conn, nil
	}
	return nil, nil
}

func (c *Client) returnConn(conn *clientConn) {
	conn.lastUsed = time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed && len(c.pool) < c.opts.MaxPool {
		c.pool = append(c.pool, conn)
		return
	}
	conn.release()
}

// Close drops every pooled connection. In-flight calls finish on their own
// connections, which are then closed instead of pooled.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for _, conn := range c.pool {
		conn.release()
	}
	c.pool = nil
	return nil
}

func (c *Client) poolSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pool)
}

func (cc *clientConn) release() {
	_ = cc.conn.Close()
}
