// Package settlement forwards payment transactions to a JSON-RPC transaction
// gateway that optimizes and broadcasts them on behalf of a facilitator.
package settlement

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/metrics"
	"github.com/vitwit/x402pay/payload"
	"github.com/vitwit/x402pay/transaction"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
)

const (
	methodBuild = "buildGatewayTransaction"
	methodSend  = "sendTransaction"

	// DeliveryMethod is the delivery method requested from the gateway.
	DeliveryMethod = "sanctum-sender"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer = jsonrpc.HTTPClient

// Settler interface defines the contract for payment settlement
type Settler interface {
	Settle(ctx context.Context, tx *solana.Transaction, network types.Network) (*types.SettlementResult, error)
}

// BuildResult is the result of buildGatewayTransaction.
type BuildResult struct {
	Transaction     string          `json:"transaction"`
	LatestBlockhash LatestBlockhash `json:"latestBlockhash"`
}

type LatestBlockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight string `json:"lastValidBlockHeight"`
}

// Gateway calls the transaction gateway.
type Gateway struct {
	url     string
	apiKey  string
	doer    Doer
	rpc     *rpc.Client
	timeout time.Duration
	logger  logger.Logger
	metrics metrics.Recorder
}

var _ Settler = (*Gateway)(nil)

type Option func(*Gateway)

func WithDoer(d Doer) Option {
	return func(g *Gateway) {
		g.doer = d
	}
}

func WithAPIKey(key string) Option {
	return func(g *Gateway) {
		g.apiKey = key
	}
}

// WithTimeout bounds each call. Non-positive values keep the default.
func WithTimeout(t time.Duration) Option {
	return func(g *Gateway) {
		if t > 0 {
			g.timeout = t
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(g *Gateway) {
		g.metrics = r
	}
}

// NewGateway creates a gateway client for url.
func NewGateway(url string, opts ...Option) *Gateway {
	g := &Gateway{
		url:     url,
		timeout: 30 * time.Second,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.doer == nil {
		g.doer = &http.Client{Timeout: g.timeout}
	}
	if g.url == "" {
		return g
	}

	headers := map[string]string{}
	if g.apiKey != "" {
		headers["Authorization"] = "Bearer " + g.apiKey
	}
	g.rpc = rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(g.url, &jsonrpc.RPCClientOpts{
		HTTPClient:    g.doer,
		CustomHeaders: headers,
	}))
	return g
}

// Close releases idle gateway connections.
func (g *Gateway) Close() error {
	if g.rpc == nil {
		return nil
	}
	return g.rpc.Close()
}

// Optimize asks the gateway to rebuild txBase64 with priority fees and tips.
// The returned transaction must be signed again before it is sent.
func (g *Gateway) Optimize(ctx context.Context, txBase64 string) (*types.TxBase64, error) {
	if err := ValidateTransaction(txBase64); err != nil {
		return nil, err
	}

	var out BuildResult
	params := []any{txBase64, map[string]string{"deliveryMethodType": DeliveryMethod}}
	if err := g.call(ctx, methodBuild, params, &out); err != nil {
		return nil, err
	}

	return &types.TxBase64{Data: out.Transaction}, nil
}

// Send broadcasts a fully signed transaction through the gateway and returns
// its signature.
func (g *Gateway) Send(ctx context.Context, txBase64 string) (string, error) {
	if err := ValidateTransaction(txBase64); err != nil {
		return "", err
	}

	var sig string
	if err := g.call(ctx, methodSend, []any{txBase64}, &sig); err != nil {
		return "", err
	}

	if err := utils.ValidateTransactionSignature(sig); err != nil {
		return "", g.downstream(methodSend, "gateway returned an invalid signature", err)
	}
	return sig, nil
}

// Settle sends tx, which must carry every required signature.
func (g *Gateway) Settle(ctx context.Context, tx *solana.Transaction, network types.Network) (*types.SettlementResult, error) {
	if missing := transaction.MissingSigners(tx); len(missing) > 0 {
		return &types.SettlementResult{
			Success:   false,
			NetworkId: network.String(),
			Error:     fmt.Sprintf("transaction is missing %d signatures, first %s", len(missing), missing[0]),
		}, nil
	}

	b, err := transaction.Serialize(tx)
	if err != nil {
		return nil, err
	}

	sig, err := g.Send(ctx, base64.StdEncoding.EncodeToString(b))
	if err != nil {
		return &types.SettlementResult{
			Success:   false,
			NetworkId: network.String(),
			Error:     err.Error(),
		}, nil
	}

	return &types.SettlementResult{
		Success:   true,
		TxHash:    sig,
		NetworkId: network.String(),
	}, nil
}

// ValidateTransaction checks txBase64 decodes into a Solana transaction.
func ValidateTransaction(txBase64 string) error {
	b, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    types.ErrInvalidTransaction,
			Message: "Invalid transaction",
			Err:     err,
		}
	}
	if _, err := payload.ParseTransaction(b); err != nil {
		return &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    types.ErrInvalidTransaction,
			Message: "Invalid transaction",
			Err:     err,
		}
	}
	return nil
}

func (g *Gateway) call(ctx context.Context, method string, params []any, out any) error {
	start := time.Now()
	defer func() {
		g.metrics.ObserveLatency("gateway_"+method, time.Since(start), nil)
	}()

	if g.rpc == nil {
		return &types.X402Error{
			Kind:    types.KindUnsupportedConfig,
			Code:    types.ErrConfigError,
			Message: "no transaction gateway configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := g.rpc.RPCCallForInto(ctx, out, method, params)
	if err == nil {
		return nil
	}

	var rpcErr *jsonrpc.RPCError
	var httpErr *jsonrpc.HTTPError
	switch {
	case errors.As(err, &rpcErr):
		return g.downstream(method, fmt.Sprintf("gateway error %d: %s", rpcErr.Code, rpcErr.Message), nil)
	case errors.As(err, &httpErr):
		return g.downstream(method, fmt.Sprintf("gateway answered %d", httpErr.Code), err)
	default:
		return g.downstream(method, "request failed", err)
	}
}

func (g *Gateway) downstream(method, msg string, err error) error {
	g.metrics.IncCounter("gateway_failure", map[string]string{"network": ""})
	g.logger.Error("gateway call failed", map[string]any{
		"method": method,
		"error":  msg,
	})
	return &types.X402Error{
		Kind:    types.KindDownstream,
		Code:    types.ErrSettlementFailed,
		Message: fmt.Sprintf("%s: %s", method, msg),
		Err:     err,
	}
}
