// Package x402 provides an implementation of the x402 pay-per-request
// protocol on Solana: negotiation, discovery, payment verification and
// settlement through a transaction gateway.
package x402

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vitwit/x402pay/config"
	"github.com/vitwit/x402pay/discovery"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/metrics"
	"github.com/vitwit/x402pay/negotiation"
	"github.com/vitwit/x402pay/payload"
	"github.com/vitwit/x402pay/settlement"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/verification"
)

// X402 is the main struct that provides all x402 functionality
type X402 struct {
	cfg        *config.Config
	negotiator *negotiation.Negotiator
	discovery  *discovery.Responder
	verifier   *verification.VerificationService
	gateway    *settlement.Gateway

	logger  logger.Logger
	metrics metrics.Recorder
	timeout time.Duration
}

// VerifyRequest is one X-PAYMENT header to check against a requirement.
type VerifyRequest struct {
	Payment      string                     `json:"payment"`
	Requirements *types.PaymentRequirements `json:"requirements"`
	Payer        string                     `json:"payer"`
}

// New creates a new X402 instance with the given configuration
func New(cfg *config.Config, opts ...Option) (*X402, error) {
	if cfg == nil {
		return nil, &types.X402Error{
			Kind:    types.KindUnsupportedConfig,
			Code:    types.ErrConfigError,
			Message: "configuration is required",
		}
	}

	x := &X402{
		cfg:     cfg,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: cfg.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.timeout <= 0 {
		x.timeout = 30 * time.Second
	}

	x.verifier = verification.NewVerificationService(x.logger)

	n, err := negotiation.New(cfg,
		negotiation.WithLogger(x.logger),
		negotiation.WithMetrics(x.metrics),
		negotiation.WithVerifier(x.verifierFor(cfg)),
	)
	if err != nil {
		return nil, err
	}
	x.negotiator = n
	x.discovery = discovery.NewResponder(cfg, x.logger)
	x.gateway = settlement.NewGateway(cfg.Gateway.URL,
		settlement.WithAPIKey(cfg.Gateway.APIKey),
		settlement.WithTimeout(x.timeout),
		settlement.WithLogger(x.logger),
		settlement.WithMetrics(x.metrics),
	)
	return x, nil
}

// NewWithDefaults creates an instance over the devnet defaults with the given
// payment addresses.
func NewWithDefaults(resourceServer, facilitator string, opts ...Option) (*X402, error) {
	cfg := config.Default()
	cfg.Payment.ResourceServer = resourceServer
	cfg.Payment.Facilitator = facilitator
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return New(cfg, opts...)
}

func (x *X402) verifierFor(cfg *config.Config) verification.Verifier {
	if !cfg.VerifyPayments {
		return nil
	}
	return x.verifier
}

// Negotiate answers a request for the resource protected at path.
func (x *X402) Negotiate(path string, header negotiation.Header) (*negotiation.Outcome, error) {
	res, ok := x.cfg.Resource(path)
	if !ok {
		return nil, &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    types.ErrInvalidRequirements,
			Message: fmt.Sprintf("no resource is protected at %s", path),
		}
	}
	return x.negotiator.Negotiate(res, header), nil
}

// Discover lists the payable resources.
func (x *X402) Discover() (*types.DiscoveryPayload, error) {
	return x.discovery.Discover()
}

// Verify checks an X-PAYMENT header pays requirements on behalf of payer.
func (x *X402) Verify(req *VerifyRequest) (*types.VerificationResult, error) {
	if req == nil || req.Requirements == nil {
		return nil, &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    types.ErrInvalidPayload,
			Message: "verify request requires a payment and its requirements",
		}
	}
	return x.verifier.Verify(req.Payment, req.Requirements, req.Payer)
}

// BatchVerify verifies multiple payments concurrently. Results keep the
// order of requests; the first error aborts the batch.
func (x *X402) BatchVerify(ctx context.Context, requests []*VerifyRequest) ([]*types.VerificationResult, error) {
	if len(requests) == 0 {
		return nil, &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    types.ErrInvalidPayload,
			Message: "at least one verify request is required",
		}
	}

	results := make([]*types.VerificationResult, len(requests))
	errs := make([]error, len(requests))

	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req *VerifyRequest) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			results[i], errs[i] = x.Verify(req)
		}(i, req)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
	}
	return results, nil
}

// Settle broadcasts the transaction carried by an X-PAYMENT header through
// the gateway. The transaction must already carry every signature.
func (x *X402) Settle(ctx context.Context, header string, network types.Network) (*types.SettlementResult, error) {
	tx, err := payload.DecodeTransaction(header)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()
	return x.gateway.Settle(ctx, tx, network)
}

// Supported lists the chains payments are accepted on.
func (x *X402) Supported() []types.Network {
	ids := x.cfg.ChainIDs()
	out := make([]types.Network, 0, len(ids))
	for _, id := range ids {
		if network, _, ok := x.cfg.Chain(id); ok {
			out = append(out, network)
		}
	}
	return out
}

// IsNetworkSupported checks if a network is supported
func (x *X402) IsNetworkSupported(network types.Network) bool {
	_, _, ok := x.cfg.Chain(network.String())
	return ok
}

// Version information
const (
	Version         = "1.0.0"
	ProtocolVersion = 1
)

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	networks := make([]string, 0, len(types.Networks))
	for _, n := range types.Networks {
		networks = append(networks, n.String())
	}
	return map[string]interface{}{
		"library_version":    Version,
		"protocol_version":   ProtocolVersion,
		"supported_networks": networks,
		"supported_schemes":  []string{string(types.SchemeExact)},
		"supported_standards": []string{
			"spl-token", "spl-token-2022", "native",
		},
	}
}
