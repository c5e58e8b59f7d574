package utils

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/go-playground/validator/v10"

	"github.com/vitwit/x402pay/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Register custom validators
	validate.RegisterValidation("base58", validateBase58Tag)
	validate.RegisterValidation("network", validateNetworkTag)
	validate.RegisterValidation("atomic", validateAtomicTag)
}

// ValidateStruct runs the struct tag validation shared by every package.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

// ParsePaymentRequirementsResponse parses the body of a 402 response.
func ParsePaymentRequirementsResponse(data []byte) (*types.PaymentRequirementsResponse, error) {
	var resp types.PaymentRequirementsResponse

	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, invalidRequirements("failed to parse payment requirements response", err)
	}

	if err := resp.Validate(); err != nil {
		return nil, err
	}

	if err := validate.Struct(&resp); err != nil {
		return nil, invalidRequirements("validation failed", err)
	}

	return &resp, nil
}

// ParseDiscoveryPayload parses the body returned by a discovery endpoint.
func ParseDiscoveryPayload(data []byte) (*types.DiscoveryPayload, error) {
	var payload types.DiscoveryPayload

	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    types.ErrInvalidPayload,
			Message: "failed to parse discovery payload",
			Err:     err,
		}
	}

	for i := range payload.Items {
		for j := range payload.Items[i].Accepts {
			if err := validate.Struct(&payload.Items[i].Accepts[j]); err != nil {
				return nil, invalidRequirements(fmt.Sprintf("items[%d].accepts[%d]", i, j), err)
			}
		}
	}

	return &payload, nil
}

// NormalizeJSON formats JSON with consistent indentation
func NormalizeJSON(data interface{}) ([]byte, error) {
	return json.MarshalIndent(data, "", "  ")
}

func invalidRequirements(msg string, err error) error {
	return &types.X402Error{
		Kind:    types.KindMalformedInput,
		Code:    types.ErrInvalidRequirements,
		Message: msg,
		Err:     err,
	}
}

// Custom validator functions
func validateBase58Tag(fl validator.FieldLevel) bool {
	_, err := solana.PublicKeyFromBase58(fl.Field().String())
	return err == nil
}

func validateNetworkTag(fl validator.FieldLevel) bool {
	_, ok := types.ParseNetwork(fl.Field().String())
	return ok
}

func validateAtomicTag(fl validator.FieldLevel) bool {
	_, err := strconv.ParseUint(fl.Field().String(), 10, 64)
	return err == nil
}
