package rpc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aanthord/mtls-relay/internal/metrics"
	"github.com/aanthord/mtls-relay/internal/testutil"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoRequest struct {
	Text string `msgpack:"text"`
}

type echoResponse struct {
	Text      string `msgpack:"text"`
	Peer      string `msgpack:"peer"`
	RequestID string `msgpack:"request_id"`
}

func echo(ctx context.Context, req *echoRequest) (*echoResponse, error) {
	md, _ := FromContext(ctx)
	return &echoResponse{Text: req.Text, Peer: md.Peer, RequestID: md.Header[HeaderRequestID]}, nil
}

func startServer(t *testing.T, pki *testutil.PKI, register func(s *Server)) string {
	t.Helper()
	s := NewServer(pki.Bundle(t, "display").ServerConfig(), ServerOptions{Logger: testutil.NewTestLogger(t)})
	register(s)

	l, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Serve(l) }()

	t.Cleanup(func() {
		require.NoError(t, s.Close())
		assert.ErrorIs(t, <-done, ErrServerClosed)
	})
	return l.Addr().String()
}

func newClient(t *testing.T, addr string, cfg *tls.Config, opts ClientOptions) *Client {
	t.Helper()
	opts.Logger = testutil.NewTestLogger(t)
	c := NewClient(addr, cfg, opts)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCallRoundTrip(t *testing.T) {
	pki := testutil.NewPKI(t)
	addr := startServer(t, pki, func(s *Server) { Handle(s, "Echo.Say", echo) })
	c := newClient(t, addr, pki.Bundle(t, "forwarder").ClientConfig("localhost"), ClientOptions{})

	ctx := WithOutgoingHeader(context.Background(), HeaderRequestID, "req-1")
	var resp echoResponse
	require.NoError(t, c.Call(ctx, "Echo.Say", &echoRequest{Text: "hello"}, &resp))

	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, "forwarder", resp.Peer)
	assert.Equal(t, "req-1", resp.RequestID)
}

func TestConnectionIsReused(t *testing.T) {
	pki := testutil.NewPKI(t)
	addr := startServer(t, pki, func(s *Server) { Handle(s, "Echo.Say", echo) })
	c := newClient(t, addr, pki.Bundle(t, "forwarder").ClientConfig("localhost"), ClientOptions{})

	for i := 0; i < 5; i++ {
		require.NoError(t, c.Call(context.Background(), "Echo.Say", &echoRequest{Text: "x"}, nil))
		assert.Equal(t, 1, c.poolSize())
	}
}

// serveAt runs an echo server on addr that the test may close early.
func serveAt(t *testing.T, pki *testutil.PKI, addr string, opts ServerOptions) (*Server, string) {
	t.Helper()
	opts.Logger = testutil.NewTestLogger(t)
	s := NewServer(pki.Bundle(t, "display").ServerConfig(), opts)
	Handle(s, "Echo.Say", echo)

	l, err := Listen(addr)
	require.NoError(t, err)
	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() { _ = s.Close() })
	return s, l.Addr().String()
}

func TestPooledConnectionAfterDownstreamRestart(t *testing.T) {
	pki := testutil.NewPKI(t)
	first, addr := serveAt(t, pki, "127.0.0.1:0", ServerOptions{})
	c := newClient(t, addr, pki.Bundle(t, "forwarder").ClientConfig("localhost"), ClientOptions{})

	require.NoError(t, c.Call(context.Background(), "Echo.Say", &echoRequest{Text: "before"}, nil))
	require.Equal(t, 1, c.poolSize())

	require.NoError(t, first.Close())
	serveAt(t, pki, addr, ServerOptions{})

	var resp echoResponse
	require.NoError(t, c.Call(context.Background(), "Echo.Say", &echoRequest{Text: "after"}, &resp))
	assert.Equal(t, "after", resp.Text)
	assert.Equal(t, 1, c.poolSize())
}

func TestPooledConnectionAfterServerIdleClose(t *testing.T) {
	pki := testutil.NewPKI(t)
	_, addr := serveAt(t, pki, "127.0.0.1:0", ServerOptions{IdleTimeout: 50 * time.Millisecond})
	c := newClient(t, addr, pki.Bundle(t, "forwarder").ClientConfig("localhost"), ClientOptions{})

	require.NoError(t, c.Call(context.Background(), "Echo.Say", &echoRequest{Text: "one"}, nil))
	time.Sleep(200 * time.Millisecond)

	var resp echoResponse
	require.NoError(t, c.Call(context.Background(), "Echo.Say", &echoRequest{Text: "two"}, &resp))
	assert.Equal(t, "two", resp.Text)
}

func TestHandlerSeesCallerDeadline(t *testing.T) {
	pki := testutil.NewPKI(t)
	gaveUp := make(chan error, 1)
	addr := startServer(t, pki, func(s *Server) {
		Handle(s, "Echo.Slow", func(ctx context.Context, req *echoRequest) (*echoResponse, error) {
			_, ok := ctx.Deadline()
			if !ok {
				gaveUp <- errors.New("no deadline on handler context")
				return &echoResponse{}, nil
			}
			<-ctx.Done()
			gaveUp <- ctx.Err()
			return &echoResponse{}, nil
		})
	})
	c := newClient(t, addr, pki.Bundle(t, "forwarder").ClientConfig("localhost"), ClientOptions{Timeout: 100 * time.Millisecond})

	err := c.Call(context.Background(), "Echo.Slow", &echoRequest{}, nil)
	assert.Equal(t, CodeDeadlineExceeded, CodeOf(err))

	select {
	case err := <-gaveUp:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("handler kept running after the caller's deadline")
	}
}

func TestCallTimeoutHeader(t *testing.T) {
	header := map[string]string{HeaderTimeout: (250 * time.Millisecond).String()}
	d, ok := callTimeout(header)
	require.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, d)

	_, ok = callTimeout(map[string]string{HeaderTimeout: "soon"})
	assert.False(t, ok)
	_, ok = callTimeout(nil)
	assert.False(t, ok)
}

func TestConcurrentCalls(t *testing.T) {
	pki := testutil.NewPKI(t)
	addr := startServer(t, pki, func(s *Server) { Handle(s, "Echo.Say", echo) })
	c := newClient(t, addr, pki.Bundle(t, "forwarder").ClientConfig("localhost"), ClientOptions{MaxPool: 2})

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := fmt.Sprintf("msg-%d", i)
			var resp echoResponse
			if err := c.Call(context.Background(), "Echo.Say", &echoRequest{Text: text}, &resp); err != nil {
				errs <- err
				return
			}
			if resp.Text != text {
				errs <- fmt.Errorf("got %q, want %q", resp.Text, text)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.LessOrEqual(t, c.poolSize(), 2)
}

func TestHandlerErrors(t *testing.T) {
	pki := testutil.NewPKI(t)
	addr := startServer(t, pki, func(s *Server) {
		Handle(s, "Echo.Reject", func(ctx context.Context, req *echoRequest) (*echoResponse, error) {
			return nil, Errorf(CodeInvalidArgument, "text %q not allowed", req.Text)
		})
		Handle(s, "Echo.Broken", func(ctx context.Context, req *echoRequest) (*echoResponse, error) {
			return nil, errors.New("disk on fire")
		})
	})
	c := newClient(t, addr, pki.Bundle(t, "forwarder").ClientConfig("localhost"), ClientOptions{})

	tests := []struct {
		method string
		code   Code
		msg    string
	}{
		{method: "Echo.Reject", code: CodeInvalidArgument, msg: `text "bad" not allowed`},
		{method: "Echo.Broken", code: CodeInternal, msg: "disk on fire"},
		{method: "Echo.Missing", code: CodeUnimplemented, msg: `unknown method "Echo.Missing"`},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			err := c.Call(context.Background(), tt.method, &echoRequest{Text: "bad"}, nil)
			var st *Status
			require.True(t, errors.As(err, &st), "got %v", err)
			assert.Equal(t, tt.code, st.Code)
			assert.Equal(t, tt.msg, st.Message)
			assert.Equal(t, tt.code, CodeOf(err))
		})
	}

	// a rejection leaves the connection usable
	assert.Equal(t, 1, c.poolSize())
}

func TestMalformedRequestBody(t *testing.T) {
	pki := testutil.NewPKI(t)
	addr := startServer(t, pki, func(s *Server) { Handle(s, "Echo.Say", echo) })
	c := newClient(t, addr, pki.Bundle(t, "forwarder").ClientConfig("localhost"), ClientOptions{})

	err := c.Call(context.Background(), "Echo.Say", "not a struct", nil)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
}

func TestCallTimeout(t *testing.T) {
	pki := testutil.NewPKI(t)
	release := make(chan struct{})
	defer close(release)

	addr := startServer(t, pki, func(s *Server) {
		Handle(s, "Echo.Slow", func(ctx context.Context, req *echoRequest) (*echoResponse, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return &echoResponse{}, nil
		})
	})
	c := newClient(t, addr, pki.Bundle(t, "forwarder").ClientConfig("localhost"), ClientOptions{Timeout: 100 * time.Millisecond})

	start := time.Now()
	err := c.Call(context.Background(), "Echo.Slow", &echoRequest{}, nil)
	elapsed := time.Since(start)

	var ue *UnavailableError
	require.True(t, errors.As(err, &ue), "got %v", err)
	assert.True(t, ue.Timeout())
	assert.Equal(t, CodeDeadlineExceeded, CodeOf(err))
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, 0, c.poolSize())
}

func TestCallContextDeadlineWins(t *testing.T) {
	pki := testutil.NewPKI(t)
	release := make(chan struct{})
	defer close(release)

	addr := startServer(t, pki, func(s *Server) {
		Handle(s, "Echo.Slow", func(ctx context.Context, req *echoRequest) (*echoResponse, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return &echoResponse{}, nil
		})
	})
	c := newClient(t, addr, pki.Bundle(t, "forwarder").ClientConfig("localhost"), ClientOptions{Timeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := c.Call(ctx, "Echo.Slow", &echoRequest{}, nil)

	var ue *UnavailableError
	require.True(t, errors.As(err, &ue), "got %v", err)
	assert.True(t, ue.Timeout())
}

func TestCallUnreachable(t *testing.T) {
	pki := testutil.NewPKI(t)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := newClient(t, addr, pki.Bundle(t, "forwarder").ClientConfig("localhost"), ClientOptions{})
	err = c.Call(context.Background(), "Echo.Say", &echoRequest{}, nil)

	var ue *UnavailableError
	require.True(t, errors.As(err, &ue), "got %v", err)
	assert.False(t, ue.Timeout())
	assert.Equal(t, addr, ue.Target)
	assert.Equal(t, CodeUnavailable, CodeOf(err))

	assert.Error(t, c.Ping(context.Background()))
}

func TestPing(t *testing.T) {
	pki := testutil.NewPKI(t)
	addr := startServer(t, pki, func(s *Server) {})
	c := newClient(t, addr, pki.Bundle(t, "forwarder").ClientConfig("localhost"), ClientOptions{})

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, 1, c.poolSize())
}

func TestUntrustedPeersAreRejected(t *testing.T) {
	pki := testutil.NewPKI(t)
	var handled atomic.Int32
	addr := startServer(t, pki, func(s *Server) {
		Handle(s, "Echo.Say", func(ctx context.Context, req *echoRequest) (*echoResponse, error) {
			handled.Add(1)
			return &echoResponse{}, nil
		})
	})

	trusted := pki.Bundle(t, "forwarder")
	rogue := testutil.NewPKI(t).Bundle(t, "forwarder")

	tests := []struct {
		name string
		cfg  *tls.Config
	}{
		{
			name: "client certificate from another CA",
			cfg: &tls.Config{
				ServerName:   "localhost",
				RootCAs:      trusted.CA,
				Certificates: []tls.Certificate{rogue.Cert},
			},
		},
		{
			name: "no client certificate",
			cfg: &tls.Config{
				ServerName: "localhost",
				RootCAs:    trusted.CA,
			},
		},
		{
			name: "server not signed by our CA",
			cfg:  rogue.ClientConfig("localhost"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := promtest.ToFloat64(metrics.TLSHandshakeFailures)

			c := newClient(t, addr, tt.cfg, ClientOptions{Timeout: 2 * time.Second})
			err := c.Call(context.Background(), "Echo.Say", &echoRequest{Text: "let me in"}, nil)

			var ue *UnavailableError
			require.True(t, errors.As(err, &ue), "got %v", err)
			assert.Eventually(t, func() bool {
				return promtest.ToFloat64(metrics.TLSHandshakeFailures) > before
			}, 2*time.Second, 10*time.Millisecond)
		})
	}

	assert.Equal(t, int32(0), handled.Load())

	// the server keeps serving trusted peers
	c := newClient(t, addr, trusted.ClientConfig("localhost"), ClientOptions{})
	require.NoError(t, c.Call(context.Background(), "Echo.Say", &echoRequest{}, nil))
	assert.Equal(t, int32(1), handled.Load())
}

func TestClosedClient(t *testing.T) {
	pki := testutil.NewPKI(t)
	addr := startServer(t, pki, func(s *Server) { Handle(s, "Echo.Say", echo) })
	c := newClient(t, addr, pki.Bundle(t, "forwarder").ClientConfig("localhost"), ClientOptions{})
	require.NoError(t, c.Close())

	err := c.Call(context.Background(), "Echo.Say", &echoRequest{}, nil)
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeOK, CodeOf(nil))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, CodeInvalidArgument, CodeOf(fmt.Errorf("wrapped: %w", Errorf(CodeInvalidArgument, "bad"))))
	assert.Equal(t, "Unimplemented", CodeUnimplemented.String())
}
