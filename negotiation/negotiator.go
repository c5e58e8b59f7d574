// Package negotiation implements the x402 challenge/response state machine
// that decides, from request headers alone, whether a protected resource is
// released, challenged with a 402 or rejected.
package negotiation

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vitwit/x402pay/config"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/metrics"
	"github.com/vitwit/x402pay/requirements"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
	"github.com/vitwit/x402pay/verification"
)

// State is a step of the negotiation. Accepted and Rejected are terminal.
type State int

const (
	StateAwaitingIdentity State = iota
	StateAwaitingChain
	StateAwaitingPayment
	StateAccepted
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateAwaitingIdentity:
		return "awaiting_identity"
	case StateAwaitingChain:
		return "awaiting_chain"
	case StateAwaitingPayment:
		return "awaiting_payment"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

const (
	identityMissing = "Bad request. The `" + types.HeaderClientAddress + "` header is missing or malformed. " +
		"It requires a base58 encoded Ed25519 public address"
	chainMissing = "Bad request. The `" + types.HeaderChain + "` header is missing or malformed. " +
		"It requires the chain identification in x402 format"
)

// Header is the read side of request headers. http.Header satisfies it.
type Header interface {
	Get(key string) string
	Values(key string) []string
}

// Outcome is the terminal result of one negotiation.
//
// State is the state the negotiation stopped in: AwaitingIdentity or
// AwaitingChain for a 400, AwaitingPayment for a 402, Accepted for a 200 and
// Rejected for a server side failure.
type Outcome struct {
	State  State
	Status int
	// Body is one of *types.BadRequest, *types.PaymentRequirementsResponse,
	// *types.Accepted or *types.X402Error.
	Body any
	// Err is set for a 400 and for a server side failure.
	Err error
}

// Negotiator answers requests for protected resources.
type Negotiator struct {
	cfg      *config.Config
	builder  *requirements.Builder
	logger   logger.Logger
	metrics  metrics.Recorder
	verifier verification.Verifier
}

type Option func(*Negotiator)

func WithLogger(l logger.Logger) Option {
	return func(n *Negotiator) {
		n.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(n *Negotiator) {
		n.metrics = r
	}
}

// WithVerifier checks every X-PAYMENT header with v before accepting it.
// Without a verifier a present header is accepted as is.
func WithVerifier(v verification.Verifier) Option {
	return func(n *Negotiator) {
		n.verifier = v
	}
}

// New builds a negotiator over cfg. It fails when no fee payer can ever be
// named: no facilitator is configured and clients are not facilitators.
func New(cfg *config.Config, opts ...Option) (*Negotiator, error) {
	if cfg == nil {
		return nil, &types.X402Error{
			Kind:    types.KindUnsupportedConfig,
			Code:    types.ErrConfigError,
			Message: "negotiator requires a configuration",
		}
	}
	if cfg.Payment.Facilitator == "" && !cfg.Payment.ClientIsFacilitator {
		return nil, &types.X402Error{
			Kind:    types.KindUnsupportedConfig,
			Code:    types.ErrConfigError,
			Message: "a facilitator address is required unless the client is the facilitator",
		}
	}

	n := &Negotiator{
		cfg:     cfg,
		builder: requirements.NewBuilder(cfg),
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.verifier == nil && cfg.VerifyPayments {
		n.verifier = verification.NewVerificationService(n.logger)
	}
	return n, nil
}

// Negotiate runs the state machine for one request of resource.
func (n *Negotiator) Negotiate(resource config.Resource, header Header) *Outcome {
	start := time.Now()

	client := strings.TrimSpace(header.Get(types.HeaderClientAddress))
	chain := strings.TrimSpace(header.Get(types.HeaderChain))

	out := n.negotiate(resource, header, client, chain)

	labels := map[string]string{"network": strings.ToLower(chain)}
	n.metrics.IncCounter("negotiation_"+out.State.String(), labels)
	n.metrics.ObserveLatency("negotiate", time.Since(start), labels)

	fields := map[string]any{
		"resource": resource.URL,
		"chain":    chain,
		"client":   client,
		"status":   out.Status,
		"state":    out.State.String(),
	}
	switch {
	case out.Err != nil && out.Status >= http.StatusInternalServerError:
		fields["error"] = out.Err.Error()
		n.logger.Error("negotiation failed", fields)
	case out.Err != nil:
		fields["error"] = out.Err.Error()
		n.logger.Warn("negotiation refused", fields)
	default:
		n.logger.Info("negotiation finished", fields)
	}
	return out
}

func (n *Negotiator) negotiate(resource config.Resource, header Header, client, chain string) *Outcome {
	if client == "" {
		// The header field names the chain header even here; clients depend on it.
		return badRequest(StateAwaitingIdentity, missingHeader(identityMissing), resource.URL, types.HeaderChain)
	}

	if chain == "" {
		return badRequest(StateAwaitingChain, missingHeader(chainMissing), resource.URL, types.HeaderChain)
	}

	// A present header counts even when its value is empty.
	payments := header.Values(types.HeaderPayment)
	if len(payments) > 0 && n.verifier == nil {
		return accepted()
	}

	if n.verifier != nil {
		if err := utils.ValidateSolanaAddress(client); err != nil {
			return badRequest(StateAwaitingIdentity, &types.X402Error{
				Kind:    types.KindMalformedInput,
				Code:    types.ErrInvalidAddress,
				Message: identityMissing,
				Err:     err,
			}, resource.URL, types.HeaderClientAddress)
		}
	}

	feePayer, err := n.cfg.FeePayer(client)
	if err != nil {
		return rejected(err)
	}

	resp, err := n.builder.Response(resource, chain, feePayer)
	if err != nil {
		return rejected(err)
	}

	if len(payments) == 0 {
		return &Outcome{
			State:  StateAwaitingPayment,
			Status: http.StatusPaymentRequired,
			Body:   resp,
		}
	}

	result, err := n.verifier.Verify(payments[0], &resp.Accepts[0], client)
	if err != nil {
		if types.KindOf(err) == types.KindMalformedInput {
			return badRequest(StateAwaitingPayment, &types.X402Error{
				Kind:    types.KindMalformedInput,
				Code:    types.ErrInvalidPayload,
				Message: fmt.Sprintf("Bad request. The `%s` header is malformed: %v", types.HeaderPayment, err),
				Err:     err,
			}, resource.URL, types.HeaderPayment)
		}
		return rejected(err)
	}
	if !result.IsValid {
		resp.Error = result.InvalidReason
		return &Outcome{
			State:  StateAwaitingPayment,
			Status: http.StatusPaymentRequired,
			Body:   resp,
		}
	}
	return accepted()
}

func missingHeader(msg string) *types.X402Error {
	return &types.X402Error{
		Kind:    types.KindMissingHeader,
		Code:    types.ErrMissingHeader,
		Message: msg,
	}
}

func badRequest(state State, err *types.X402Error, resource, header string) *Outcome {
	return &Outcome{
		State:  state,
		Status: http.StatusBadRequest,
		Body: &types.BadRequest{
			Error:    err.Message,
			Status:   http.StatusBadRequest,
			Resource: resource,
			Header:   header,
		},
		Err: err,
	}
}

func accepted() *Outcome {
	return &Outcome{
		State:  StateAccepted,
		Status: http.StatusOK,
		Body:   &types.Accepted{Status: http.StatusOK},
	}
}

func rejected(err error) *Outcome {
	body, ok := err.(*types.X402Error)
	if !ok {
		body = &types.X402Error{Kind: types.KindDownstream, Code: types.ErrVerificationFailed, Message: err.Error()}
	}
	return &Outcome{
		State:  StateRejected,
		Status: types.HTTPStatus(err),
		Body:   body,
		Err:    err,
	}
}
