// Package payer is the paying side of x402: it answers a 402 challenge with a
// partially signed Solana transfer and resubmits the request.
package payer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/vitwit/x402pay/clients"
	"github.com/vitwit/x402pay/instructions"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/metrics"
	"github.com/vitwit/x402pay/payload"
	"github.com/vitwit/x402pay/store"
	"github.com/vitwit/x402pay/transaction"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/uri"
	"github.com/vitwit/x402pay/utils"
)

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is the final answer of a resource server.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Payment is the X-PAYMENT header sent with the final request, empty when
	// the resource was served without a challenge.
	Payment string
	// Requirement is the entry of the challenge that was paid.
	Requirement *types.PaymentRequirements
}

// Client pays for x402 resources with one Solana key on one chain.
type Client struct {
	key     solana.PrivateKey
	ledger  clients.LedgerRPC
	doer    Doer
	store   *store.Store
	timeout time.Duration
	logger  logger.Logger
	metrics metrics.Recorder
}

type Option func(*Client)

func WithDoer(d Doer) Option {
	return func(c *Client) {
		c.doer = d
	}
}

// WithStore records the payer identity and every paid or discovered resource.
func WithStore(s *store.Store) Option {
	return func(c *Client) {
		c.store = s
	}
}

// WithTimeout bounds each call. Non-positive values keep the default.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) {
		if t > 0 {
			c.timeout = t
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}

// New creates a client paying with key. The chain it pays on is the one
// ledger is connected to.
func New(key solana.PrivateKey, ledger clients.LedgerRPC, opts ...Option) *Client {
	c := &Client{
		key:     key,
		ledger:  ledger,
		timeout: 30 * time.Second,
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doer == nil {
		c.doer = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Address is the base58 address sent as X402-Client-Address.
func (c *Client) Address() string {
	return c.key.PublicKey().String()
}

// Fetch requests resource and pays for it when the server answers 402.
func (c *Client) Fetch(ctx context.Context, resource string) (*Response, error) {
	start := time.Now()
	network := c.ledger.GetNetwork()
	labels := map[string]string{"network": network.String()}
	defer func() {
		c.metrics.ObserveLatency("payer_fetch", time.Since(start), labels)
	}()

	if c.store != nil {
		if err := c.store.SetIdentity(c.Address()); err != nil {
			return nil, err
		}
	}

	first, err := c.get(ctx, resource, "")
	if err != nil {
		return nil, err
	}
	if first.StatusCode != http.StatusPaymentRequired {
		return first, nil
	}

	challenge, err := utils.ParsePaymentRequirementsResponse(first.Body)
	if err != nil {
		return nil, err
	}

	req, err := pick(challenge, network)
	if err != nil {
		return nil, err
	}

	header, err := c.Pay(ctx, req)
	if err != nil {
		return nil, err
	}

	final, err := c.get(ctx, resource, header)
	if err != nil {
		return nil, err
	}
	final.Payment = header
	final.Requirement = req

	c.metrics.IncCounter("payer_paid", labels)
	c.logger.Info("paid for resource", map[string]any{
		"resource": resource,
		"network":  network.String(),
		"amount":   req.MaxAmountRequired,
		"asset":    req.Asset,
		"status":   final.StatusCode,
	})

	if c.store != nil && final.StatusCode == http.StatusOK {
		if u, ok := onceURI(resource); ok {
			if err := c.store.SaveResource(&store.SavedResource{URI: u, Transaction: header}); err != nil {
				return nil, err
			}
		}
	}
	return final, nil
}

// Pay builds and partially signs the transfer satisfying req and returns it
// encoded as an X-PAYMENT header value. The fee payer signature, when the fee
// payer is not this client, is left for the facilitator.
func (c *Client) Pay(ctx context.Context, req *types.PaymentRequirements) (string, error) {
	sel, err := instructions.Select(req, c.key.PublicKey(), req.Extra.FeePayer)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.checkMint(ctx, req, sel); err != nil {
		return "", err
	}

	blockhash, err := c.ledger.LatestBlockhash(ctx)
	if err != nil {
		return "", err
	}

	tx, err := transaction.Assemble([]solana.Instruction{sel.Instruction}, sel.FeePayer, blockhash)
	if err != nil {
		return "", err
	}
	if err := transaction.PartialSign(tx, c.key); err != nil {
		return "", err
	}

	c.logger.Debug("built payment", map[string]any{
		"kind":      sel.Kind.String(),
		"fee_payer": sel.FeePayer.String(),
		"pay_to":    sel.PayTo.String(),
		"missing":   len(transaction.MissingSigners(tx)),
	})
	return payload.EncodeTransaction(tx)
}

// checkMint refuses a token requirement whose token program or decimals
// disagree with the mint on chain.
func (c *Client) checkMint(ctx context.Context, req *types.PaymentRequirements, sel *instructions.Selection) error {
	if req.IsNative() {
		return nil
	}
	info, err := c.ledger.MintInfo(ctx, sel.Mint)
	if err != nil {
		return err
	}
	if clients.TokenExtensionsMint(info) != req.Extra.TokenExtensionsMint || info.Decimals != req.Extra.Decimals {
		return &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    types.ErrInvalidRequirements,
			Message: fmt.Sprintf("requirement does not match mint %s: program %s, decimals %d", sel.Mint, info.ProgramID, info.Decimals),
		}
	}
	return nil
}

// Discover resolves an x402://discover/https://... URI into the discovery
// payload it names. Discovered items are saved when a store is configured.
func (c *Client) Discover(ctx context.Context, raw string) (*types.DiscoveryPayload, error) {
	u, err := uri.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Action != uri.ActionDiscover {
		return nil, &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    uri.ErrInvalidAction.Code,
			Message: fmt.Sprintf("expected a discover URI, got action %s", u.Action),
		}
	}
	if u.Scheme != uri.SchemeHTTPS {
		return nil, &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    types.ErrUnsupportedScheme,
			Message: fmt.Sprintf("discovery over %s is not supported", u.Scheme),
		}
	}

	resp, err := c.get(ctx, u.URI, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, downstream(fmt.Sprintf("discovery answered %d", resp.StatusCode), nil)
	}

	out, err := utils.ParseDiscoveryPayload(resp.Body)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		for i := range out.Items {
			item := out.Items[i]
			scheme, err := uri.ParseScheme(item.Resource)
			if err != nil {
				continue
			}
			saved := &store.SavedResource{
				URI:  uri.X402Uri{Scheme: scheme, Action: uri.ActionDiscover, URI: item.Resource}.String(),
				Info: &item,
			}
			if err := c.store.SaveResource(saved); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, resource, payment string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resource, nil)
	if err != nil {
		return nil, &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    types.ErrInvalidRequirements,
			Message: "invalid resource URL",
			Err:     err,
		}
	}
	req.Header.Set(types.HeaderClientAddress, c.Address())
	req.Header.Set(types.HeaderChain, c.ledger.GetNetwork().String())
	if payment != "" {
		req.Header.Set(types.HeaderPayment, payment)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, downstream("request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, downstream("failed to read response", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// pick returns the first exact requirement for network.
func pick(challenge *types.PaymentRequirementsResponse, network types.Network) (*types.PaymentRequirements, error) {
	for i := range challenge.Accepts {
		req := &challenge.Accepts[i]
		if req.Scheme == string(types.SchemeExact) && strings.EqualFold(req.Network, network.String()) {
			return req, nil
		}
	}
	return nil, &types.X402Error{
		Kind:    types.KindUnsupportedConfig,
		Code:    types.ErrUnsupportedNetwork,
		Message: fmt.Sprintf("no accepted payment on %s", network),
	}
}

func onceURI(resource string) (string, bool) {
	scheme, err := uri.ParseScheme(resource)
	if err != nil {
		return "", false
	}
	return uri.X402Uri{Scheme: scheme, Action: uri.ActionOnce, URI: resource}.String(), true
}

func downstream(msg string, err error) error {
	return &types.X402Error{
		Kind:    types.KindDownstream,
		Code:    types.ErrNetworkError,
		Message: msg,
		Err:     err,
	}
}
