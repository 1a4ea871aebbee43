package rpc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/aanthord/mtls-relay/internal/metrics"
	"github.com/aanthord/mtls-relay/internal/tracing"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const DefaultHandshakeTimeout = 10 * time.Second

// HandlerFunc serves one method. decode fills its argument from the request
// body. A returned *Status is sent to the caller as is; any other error is
// reported as Internal.
type HandlerFunc func(ctx context.Context, decode func(v interface{}) error) (interface{}, error)

// Handle registers a typed handler for method.
func Handle[Req any, Resp any](s *Server, method string, fn func(ctx context.Context, req *Req) (*Resp, error)) {
	s.Register(method, func(ctx context.Context, decode func(v interface{}) error) (interface{}, error) {
		req := new(Req)
		if err := decode(req); err != nil {
			return nil, Errorf(CodeInvalidArgument, "malformed %s request: %v", method, err)
		}
		return fn(ctx, req)
	})
}

type ServerOptions struct {
	// IdleTimeout closes connections that send no request for this long.
	// Zero keeps them open until the peer leaves.
	IdleTimeout      time.Duration
	HandshakeTimeout time.Duration
	Logger           *zap.SugaredLogger
}

// Server accepts mutual-TLS connections and dispatches framed calls to the
// registered handlers, one goroutine per connection.
type Server struct {
	tlsConfig *tls.Config
	opts      ServerOptions
	logger    *zap.SugaredLogger

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[net.Conn]struct{}
	closed    bool
	wg        sync.WaitGroup
}

func NewServer(tlsConfig *tls.Config, opts ServerOptions) *Server {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		tlsConfig: tlsConfig,
		opts:      opts,
		logger:    logger,
		handlers:  make(map[string]HandlerFunc),
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[net.Conn]struct{}),
	}
}

func (s *Server) Register(method string, h HandlerFunc) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[method] = h
}

func (s *Server) ListenAndServe(addr string) error {
	l, err := Listen(addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(l)
}

// Serve wraps l in TLS and accepts connections until Close is called, after
// which it returns ErrServerClosed.
func (s *Server) Serve(l net.Listener) error {
	tl := tls.NewListener(l, s.tlsConfig)
	if !s.trackListener(tl) {
		_ = tl.Close()
		return ErrServerClosed
	}
	defer s.untrackListener(tl)

	s.logger.Infow("RPC server listening", "addr", l.Addr().String())

	var tempDelay time.Duration
	for {
		conn, err := tl.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if tempDelay > time.Second {
					tempDelay = time.Second
				}
				s.logger.Warnw("Accept failed, retrying", "error", err, "delay", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0

		if !s.trackConn(conn) {
			_ = conn.Close()
			return ErrServerClosed
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrackConn(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	peer, err := s.handshake(conn)
	if err != nil {
		metrics.TLSHandshakeFailures.Inc()
		s.logger.Warnw("Rejected connection", "error", &HandshakeError{Remote: remote, Err: err})
		return
	}
	s.logger.Debugw("Accepted connection", "remote", remote, "peer", peer)

	fc := newFramedConn(conn)
	for {
		if s.opts.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.opts.IdleTimeout))
		}
		var req requestFrame
		if err := fc.read(&req); err != nil {
			if !errors.Is(err, io.EOF) && !s.isClosed() {
				s.logger.Debugw("Closing connection", "remote", remote, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Time{})

		resp := s.dispatch(&req, peer)
		if err := fc.write(resp); err != nil {
			s.logger.Warnw("Failed to write response", "remote", remote, "method", req.Method, "error", err)
			return
		}
	}
}

// handshake completes mutual TLS before any frame is read and returns the
// common name of the verified client certificate.
func (s *Server) handshake(conn net.Conn) (string, error) {
	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return "", fmt.Errorf("connection is not TLS")
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.HandshakeTimeout)
	defer cancel()
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return "", err
	}
	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return "", fmt.Errorf("no client certificate")
	}
	return state.PeerCertificates[0].Subject.CommonName, nil
}

func (s *Server) dispatch(req *requestFrame, peer string) *responseFrame {
	ctx := s.ctx
	if d, ok := callTimeout(req.Header); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	span, ctx := tracing.StartServerSpan(ctx, req.Method, req.Header)
	defer span.Finish()
	ctx = withMetadata(ctx, Metadata{Method: req.Method, Header: req.Header, Peer: peer})

	s.handlersMu.RLock()
	h, ok := s.handlers[req.Method]
	s.handlersMu.RUnlock()

	var resp *responseFrame
	if !ok {
		resp = statusFrame(Errorf(CodeUnimplemented, "unknown method %q", req.Method))
	} else {
		out, err := h(ctx, func(v interface{}) error { return msgpack.Unmarshal(req.Body, v) })
		if err == nil {
			body, merr := msgpack.Marshal(out)
			if merr != nil {
				err = fmt.Errorf("encode response: %w", merr)
			} else {
				resp = &responseFrame{Code: CodeOK, Body: body}
			}
		}
		if err != nil {
			resp = statusFrame(err)
		}
	}

	if resp.Code != CodeOK {
		tracing.MarkError(span, errors.New(resp.Message))
	}
	metrics.RPCHandled.WithLabelValues(req.Method, resp.Code.String()).Inc()
	return resp
}

func statusFrame(err error) *responseFrame {
	var st *Status
	if errors.As(err, &st) {
		return &responseFrame{Code: st.Code, Message: st.Message}
	}
	return &responseFrame{Code: CodeInternal, Message: err.Error()}
}

// Close stops every listener, closes open connections and waits for Serve
// and all connection goroutines to return.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	for l := range s.listeners {
		_ = l.Close()
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) trackListener(l net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.listeners[l] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrackListener(l net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, l)
	s.wg.Done()
}

func (s *Server) trackConn(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrackConn(c net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}
