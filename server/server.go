// Package server exposes the x402 resource server over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitwit/x402pay/clients"
	"github.com/vitwit/x402pay/config"
	"github.com/vitwit/x402pay/discovery"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/metrics"
	"github.com/vitwit/x402pay/negotiation"
	"github.com/vitwit/x402pay/settlement"
	"github.com/vitwit/x402pay/store"
	"github.com/vitwit/x402pay/types"
)

// LedgerFactory connects to the ledger of network at rpcURL.
type LedgerFactory func(network types.Network, rpcURL string) (clients.LedgerRPC, error)

// Server is the x402 resource server.
type Server struct {
	cfg        *config.Config
	engine     *gin.Engine
	negotiator *negotiation.Negotiator
	discovery  *discovery.Responder
	gateway    *settlement.Gateway
	store      *store.Store
	logger     logger.Logger
	metrics    metrics.Recorder
	registry   *prometheus.Registry

	newLedger LedgerFactory
	mu        sync.Mutex
	ledgers   map[types.Network]clients.LedgerRPC
}

type Option func(*Server)

func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithMetrics replaces the Prometheus recorder installed by enable_metrics.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Server) {
		s.metrics = r
	}
}

func WithGateway(g *settlement.Gateway) Option {
	return func(s *Server) {
		s.gateway = g
	}
}

func WithStore(st *store.Store) Option {
	return func(s *Server) {
		s.store = st
	}
}

func WithLedgerFactory(f LedgerFactory) Option {
	return func(s *Server) {
		s.newLedger = f
	}
}

func defaultLedger(network types.Network, rpcURL string) (clients.LedgerRPC, error) {
	return clients.NewSolanaClient(network, rpcURL)
}

// New wires the negotiator, discovery, gateway and mint lookup behind a gin
// engine.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, &types.X402Error{
			Kind:    types.KindUnsupportedConfig,
			Code:    types.ErrConfigError,
			Message: "server requires a configuration",
		}
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger.NoopLogger{},
		newLedger: defaultLedger,
		ledgers:   make(map[types.Network]clients.LedgerRPC),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.EnableMetrics {
		s.registry = prometheus.NewRegistry()
		if s.metrics == nil {
			rec, err := metrics.NewPrometheusRecorder(s.registry)
			if err != nil {
				return nil, err
			}
			s.metrics = rec
		}
	}
	if s.metrics == nil {
		s.metrics = metrics.NoopRecorder{}
	}
	if s.store == nil {
		s.store = store.New(store.NewMemoryKV())
	}
	if s.gateway == nil {
		s.gateway = settlement.NewGateway(cfg.Gateway.URL,
			settlement.WithAPIKey(cfg.Gateway.APIKey),
			settlement.WithTimeout(cfg.DefaultTimeout),
			settlement.WithLogger(s.logger),
			settlement.WithMetrics(s.metrics),
		)
	}

	n, err := negotiation.New(cfg,
		negotiation.WithLogger(s.logger),
		negotiation.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}
	s.negotiator = n
	s.discovery = discovery.NewResponder(cfg, s.logger)

	s.engine = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on the configured listen address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", map[string]any{"address": s.cfg.ListenAddress})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close releases ledger and gateway connections.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for network, l := range s.ledgers {
		l.Close()
		delete(s.ledgers, network)
	}
	_ = s.gateway.Close()
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.accessLog())

	for _, res := range s.cfg.Resources {
		r.GET(res.Path, s.handleResource(res))
	}
	r.GET("/discover", s.handleDiscover)
	r.GET("/mint-info/:address/:chain", s.handleMintInfo)
	r.POST("/optimize-tx", s.handleOptimizeTx)
	r.POST("/send-optimized-tx", s.handleSendOptimizedTx)

	if s.registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
	return r
}

// ledger returns the cached ledger client for network, connecting on first use.
func (s *Server) ledger(network types.Network) (clients.LedgerRPC, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.ledgers[network]; ok {
		return l, nil
	}

	rpcURL := network.DefaultRPCURL()
	if _, chain, ok := s.cfg.Chain(network.String()); ok {
		rpcURL = chain.RPCURLFor(network)
	}

	l, err := s.newLedger(network, rpcURL)
	if err != nil {
		return nil, err
	}
	s.ledgers[network] = l
	return l, nil
}
