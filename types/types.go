package types

import (
	"fmt"
	"strconv"
	"time"
)

// X402Version represents the version of the x402 protocol
type X402Version int

const (
	X402Version1 X402Version = 1
)

// PaymentScheme represents different payment schemes
type PaymentScheme string

const (
	SchemeExact PaymentScheme = "exact"
)

// Header names are part of the wire contract.
const (
	HeaderClientAddress = "X402-Client-Address"
	HeaderChain         = "X402-Chain"
	HeaderPayment       = "X-PAYMENT"
)

// NativeAsset is the System Program id. A requirement whose asset equals it
// is paid in lamports instead of an SPL token.
const NativeAsset = "11111111111111111111111111111111"

// ResourceType tags a discovered resource with the transport it is served over.
type ResourceType string

const (
	ResourceTypeHTTP ResourceType = "http"
	ResourceTypeA2A  ResourceType = "a2a"
)

// PaymentExtra carries the per-asset metadata a client needs to build the
// transfer without a round trip to the ledger.
type PaymentExtra struct {
	// Address that pays the network fee. Empty means the payer covers it.
	FeePayer string `json:"feePayer" validate:"omitempty,base58"`

	// Whether the mint is owned by the Token-2022 (token extensions) program.
	TokenExtensionsMint bool `json:"tokenExtensionsMint"`

	// Decimals of the mint, checked by TransferChecked.
	Decimals uint8 `json:"decimals"`
}

// PaymentRequirements defines the requirements a resource server accepts for payment.
type PaymentRequirements struct {
	// Scheme of the payment protocol to use. Only "exact" is defined.
	Scheme string `json:"scheme" validate:"required,eq=exact"`

	// Network of the blockchain to send payment on (e.g., "solana-devnet").
	Network string `json:"network" validate:"required,network"`

	// Maximum amount required to pay for the resource in atomic units of the asset.
	// Kept as a decimal string on the wire, see Amount.
	MaxAmountRequired string `json:"maxAmountRequired" validate:"required,atomic"`

	// URL of the resource to pay for.
	Resource string `json:"resource" validate:"required"`

	// Description of the resource being purchased.
	Description string `json:"description"`

	// MIME type of the resource response (e.g., "application/json").
	MimeType string `json:"mimeType"`

	// Address to which the payment must be sent.
	PayTo string `json:"payTo" validate:"required,base58"`

	// Maximum time in seconds for the resource server to respond.
	MaxTimeoutSeconds uint32 `json:"maxTimeoutSeconds" validate:"gt=0"`

	// Mint address of the asset, or NativeAsset for SOL.
	Asset string `json:"asset" validate:"required,base58"`

	Extra PaymentExtra `json:"extra"`
}

// Amount parses MaxAmountRequired into smallest units of the asset.
func (pr *PaymentRequirements) Amount() (uint64, error) {
	amount, err := strconv.ParseUint(pr.MaxAmountRequired, 10, 64)
	if err != nil {
		return 0, &X402Error{
			Kind:    KindMalformedInput,
			Code:    ErrAmountOutOfRange,
			Message: fmt.Sprintf("maxAmountRequired %q is not an unsigned 64 bit integer", pr.MaxAmountRequired),
			Err:     err,
		}
	}
	return amount, nil
}

// IsNative reports whether the requirement is paid in the chain's native coin.
func (pr *PaymentRequirements) IsNative() bool {
	return pr.Asset == NativeAsset
}

// MaxTimeout returns MaxTimeoutSeconds as a duration.
func (pr *PaymentRequirements) MaxTimeout() time.Duration {
	return time.Duration(pr.MaxTimeoutSeconds) * time.Second
}

// Validate checks the fields every requirement must carry.
func (pr *PaymentRequirements) Validate() error {
	if pr.Scheme == "" {
		return fmt.Errorf("paymentRequirements.scheme is required")
	}

	if pr.Network == "" {
		return fmt.Errorf("paymentRequirements.network is required")
	}

	if pr.MaxAmountRequired == "" {
		return fmt.Errorf("paymentRequirements.maxAmountRequired is required")
	}

	if pr.PayTo == "" {
		return fmt.Errorf("paymentRequirements.payTo is required")
	}

	if pr.Asset == "" {
		return fmt.Errorf("paymentRequirements.asset is required")
	}

	if pr.MaxTimeoutSeconds == 0 {
		return fmt.Errorf("paymentRequirements.maxTimeoutSeconds must be greater than 0")
	}

	return nil
}

// PaymentRequirementsResponse is the body of a 402 response.
type PaymentRequirementsResponse struct {
	// Version of the x402 payment protocol.
	X402Version X402Version `json:"x402Version"`

	// Payment options the resource server accepts. A client fulfils any one of them.
	Accepts []PaymentRequirements `json:"accepts" validate:"min=1,dive"`

	// Message from the resource server indicating any processing error.
	Error string `json:"error,omitempty"`
}

// NewPaymentRequirementsResponse returns an empty version 1 response.
func NewPaymentRequirementsResponse() *PaymentRequirementsResponse {
	return &PaymentRequirementsResponse{
		X402Version: X402Version1,
		Accepts:     make([]PaymentRequirements, 0, 1),
	}
}

// Add appends a payment option.
func (r *PaymentRequirementsResponse) Add(req PaymentRequirements) {
	r.Accepts = append(r.Accepts, req)
}

// Validate checks that at least one payment option is present and valid.
func (r *PaymentRequirementsResponse) Validate() error {
	if len(r.Accepts) == 0 {
		return &X402Error{
			Kind:    KindMalformedInput,
			Code:    ErrInvalidRequirements,
			Message: "the x402 resource needs at least one payment method in `accepts`",
		}
	}
	for i := range r.Accepts {
		if err := r.Accepts[i].Validate(); err != nil {
			return &X402Error{
				Kind:    KindMalformedInput,
				Code:    ErrInvalidRequirements,
				Message: fmt.Sprintf("accepts[%d]: %v", i, err),
			}
		}
	}
	return nil
}

// XPaymentPayload is the JSON envelope carried, base64 encoded, in the X-PAYMENT header.
type XPaymentPayload struct {
	// Canonical binary encoding of the Solana transaction.
	Transaction []byte `json:"transaction"`
}

// BadRequest is the body returned with a 400 when a protocol header is missing.
type BadRequest struct {
	Error    string `json:"error"`
	Status   uint16 `json:"status"`
	Resource string `json:"resource"`
	Header   string `json:"header"`
}

// Accepted is the minimal body returned once a payment header is supplied.
type Accepted struct {
	Status uint16 `json:"status"`
}

// ResourceInfo is one discoverable payable resource.
type ResourceInfo struct {
	Resource    string                `json:"resource"`
	Type        ResourceType          `json:"type"`
	X402Version X402Version           `json:"x402Version"`
	Accepts     []PaymentRequirements `json:"accepts"`
	Title       string                `json:"title,omitempty"`
	Description string                `json:"description,omitempty"`
	HeaderImage string                `json:"headerImage,omitempty"`
	LastUpdated uint64                `json:"lastUpdated"`
	Metadata    map[string]string     `json:"metadata,omitempty"`
}

// DiscoveryPagination contains pagination info for a discovery list.
type DiscoveryPagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// DiscoveryPayload is the body of a discovery query.
type DiscoveryPayload struct {
	X402Version X402Version         `json:"x402Version"`
	Items       []ResourceInfo      `json:"items"`
	Pagination  DiscoveryPagination `json:"pagination"`
}

// MintInfo describes an SPL mint as read from its account.
type MintInfo struct {
	ProgramID       string `json:"programId"`
	Decimals        uint8  `json:"decimals"`
	MintAuthority   string `json:"mintAuthority,omitempty"`
	FreezeAuthority string `json:"freezeAuthority,omitempty"`
}

// TxBase64 is the body exchanged with the transaction gateway routes.
type TxBase64 struct {
	Data string `json:"data"`
}

// SendTxResponse is the JSON-RPC shaped answer of /send-optimized-tx. Result
// carries the transaction signature.
type SendTxResponse struct {
	ID      int    `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Result  string `json:"result"`
}

func NewSendTxResponse(signature string) *SendTxResponse {
	return &SendTxResponse{ID: 1, JSONRPC: "2.0", Result: signature}
}

// ExtraData contains additional payment-specific data
type ExtraData map[string]interface{}

// VerificationResult contains the result of payment verification
type VerificationResult struct {
	IsValid       bool      `json:"isValid"`
	InvalidReason string    `json:"invalidReason,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Asset         string    `json:"asset,omitempty"`
	Recipient     string    `json:"recipient,omitempty"`
	Payer         string    `json:"payer,omitempty"`
	FeePayer      string    `json:"feePayer,omitempty"`
	Extra         ExtraData `json:"extra,omitempty"`
}

// SettlementResult contains the result of forwarding a payment to the gateway
type SettlementResult struct {
	Success   bool      `json:"success"`
	TxHash    string    `json:"txHash,omitempty"`
	NetworkId string    `json:"networkId,omitempty"`
	Error     string    `json:"error,omitempty"`
	Extra     ExtraData `json:"extra,omitempty"`
}
