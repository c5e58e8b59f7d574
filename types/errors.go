package types

import (
	"errors"
	"net/http"
)

// ErrorKind classifies a failure by who caused it and how it surfaces.
type ErrorKind int

const (
	// KindMalformedInput covers bad URIs, base58, base64, JSON and amounts.
	KindMalformedInput ErrorKind = iota
	// KindMissingHeader is a request missing a mandatory protocol header.
	KindMissingHeader
	// KindUnsupportedConfig is a deployment problem: unknown chain, no facilitator.
	KindUnsupportedConfig
	// KindDownstream is a failed call to the ledger RPC or the gateway.
	KindDownstream
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformedInput:
		return "malformed_input"
	case KindMissingHeader:
		return "missing_header"
	case KindUnsupportedConfig:
		return "unsupported_config"
	case KindDownstream:
		return "downstream"
	default:
		return "unknown"
	}
}

// X402Error is the error type returned by every package of the module.
type X402Error struct {
	Kind    ErrorKind   `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Err     error       `json:"-"`
}

func (e *X402Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *X402Error) Unwrap() error {
	return e.Err
}

// Is matches any X402Error carrying the same code.
func (e *X402Error) Is(target error) bool {
	t, ok := target.(*X402Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Common error codes
const (
	ErrInvalidPayload      = "INVALID_PAYLOAD"
	ErrInvalidRequirements = "INVALID_REQUIREMENTS"
	ErrInvalidAddress      = "INVALID_ADDRESS"
	ErrAmountOutOfRange    = "AMOUNT_OUT_OF_RANGE"
	ErrInvalidInstruction  = "INVALID_INSTRUCTION"
	ErrInvalidTransaction  = "INVALID_TRANSACTION"
	ErrMissingHeader       = "MISSING_HEADER"
	ErrUnsupportedNetwork  = "UNSUPPORTED_NETWORK"
	ErrUnsupportedScheme   = "UNSUPPORTED_SCHEME"
	ErrVerificationFailed  = "VERIFICATION_FAILED"
	ErrSettlementFailed    = "SETTLEMENT_FAILED"
	ErrNetworkError        = "NETWORK_ERROR"
	ErrConfigError         = "CONFIG_ERROR"
	ErrStorageError        = "STORAGE_ERROR"
)

// KindOf returns the kind of err, treating foreign errors as downstream failures.
func KindOf(err error) ErrorKind {
	var xe *X402Error
	if errors.As(err, &xe) {
		return xe.Kind
	}
	return KindDownstream
}

// HTTPStatus maps an error to the status code a resource server answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindMalformedInput, KindMissingHeader:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
