package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aanthord/mtls-relay/internal/certs"
	"github.com/aanthord/mtls-relay/internal/config"
	"github.com/aanthord/mtls-relay/internal/handlers"
	"github.com/aanthord/mtls-relay/internal/relay"
	"github.com/aanthord/mtls-relay/internal/rpc"
	"github.com/aanthord/mtls-relay/internal/tracing"
	"github.com/gorilla/mux"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout  = 15 * time.Second
	httpWriteTimeout = 15 * time.Second
	// retryBudget leaves room to write the JSON failure before the HTTP
	// server cuts the response.
	retryBudget = httpWriteTimeout - 2*time.Second
)

// process holds what every role shares: configuration, logger, tracer, the
// certificate bundle loaded once at startup and the HTTP router.
type process struct {
	ctx    context.Context
	cfg    *config.Config
	logger *zap.SugaredLogger
	tracer opentracing.Tracer
	bundle *certs.Bundle
	router *mux.Router

	rpcServer *rpc.Server
	clients   []*rpc.Client
	closers   []io.Closer
}

func newProcess(ctx context.Context, cfg *config.Config) (*process, error) {
	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger = logger.With("role", cfg.Role)

	tracer, tracerCloser, err := tracing.InitJaeger("relay-"+cfg.Role, cfg.Tracing)
	if err != nil {
		return nil, err
	}

	bundle, err := certs.Load(cfg.CertsDir, cfg.CertName)
	if err != nil {
		_ = tracerCloser.Close()
		logger.Errorw("Failed to load certificates", "certs_dir", cfg.CertsDir, "cert_name", cfg.CertName, "error", err)
		return nil, err
	}
	logger.Infow("Loaded certificates", "certs_dir", cfg.CertsDir, "cert_name", cfg.CertName)

	return &process{
		ctx:     ctx,
		cfg:     cfg,
		logger:  logger,
		tracer:  tracer,
		bundle:  bundle,
		router:  newRouter(cfg.Role, logger, tracer),
		closers: []io.Closer{tracerCloser},
	}, nil
}

// downstream connects to the next hop, waiting for it to come up.
func (p *process) downstream() (*rpc.Client, error) {
	c := rpc.NewClient(p.cfg.Downstream, p.bundle.ClientConfig(p.cfg.ServerName()), rpc.ClientOptions{
		Timeout:     p.cfg.RPCTimeout,
		DialTimeout: p.cfg.DialTimeout,
		MaxPool:     p.cfg.MaxPool,
		MaxIdle:     p.cfg.IdleTimeout / 2,
		Logger:      p.logger,
	})
	if err := relay.WaitForDownstream(p.ctx, c, p.cfg.ConnectRetries, p.cfg.ConnectInterval, p.logger); err != nil {
		_ = c.Close()
		return nil, err
	}
	p.clients = append(p.clients, c)
	return c, nil
}

func (p *process) retrier() *handlers.Retrier {
	return handlers.NewRetrier(p.cfg.IngressRetries, retryBudget)
}

func (p *process) newRPCServer() *rpc.Server {
	p.rpcServer = rpc.NewServer(p.bundle.ServerConfig(), rpc.ServerOptions{
		IdleTimeout: p.cfg.IdleTimeout,
		Logger:      p.logger,
	})
	return p.rpcServer
}

// serve runs the HTTP server, and the RPC server when the role has one, until
// the context is cancelled or either server fails.
func (p *process) serve() error {
	srv := &http.Server{
		Addr:         p.cfg.HTTPAddr,
		Handler:      withCORS(p.router, p.cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: httpWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(p.ctx)

	g.Go(func() error {
		p.logger.Infow("Starting HTTP server", "addr", p.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	if p.rpcServer != nil {
		g.Go(func() error {
			if err := p.rpcServer.ListenAndServe(p.cfg.RPCAddr); err != nil && !errors.Is(err, rpc.ErrServerClosed) {
				return fmt.Errorf("RPC server failed: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		p.logger.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if p.rpcServer != nil {
			_ = p.rpcServer.Close()
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		p.logger.Info("Server exited gracefully")
		return nil
	})

	return g.Wait()
}

func (p *process) close() {
	for _, c := range p.clients {
		_ = c.Close()
	}
	for _, c := range p.closers {
		_ = c.Close()
	}
	_ = p.logger.Sync()
}
