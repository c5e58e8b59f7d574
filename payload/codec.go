// Package payload encodes and decodes the X-PAYMENT header: the base64 text of
// a JSON object carrying one serialized Solana transaction.
package payload

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/vitwit/x402pay/transaction"
	"github.com/vitwit/x402pay/types"
)

// Encode wraps txBytes into the X-PAYMENT header value.
func Encode(txBytes []byte) (string, error) {
	if len(txBytes) == 0 {
		return "", invalid("transaction bytes are empty", nil)
	}

	data, err := json.Marshal(&types.XPaymentPayload{Transaction: txBytes})
	if err != nil {
		return "", invalid("failed to marshal payment payload", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode parses an X-PAYMENT header value. The transaction bytes must
// deserialize into exactly one Solana transaction.
func Decode(header string) (*types.XPaymentPayload, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, invalid("invalid base64", err)
	}

	var p types.XPaymentPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, invalid("invalid payment payload JSON", err)
	}

	if len(p.Transaction) == 0 {
		return nil, invalid("payment payload has no transaction", nil)
	}

	if _, err := ParseTransaction(p.Transaction); err != nil {
		return nil, err
	}
	return &p, nil
}

// EncodeTransaction serializes tx and wraps it into a header value.
func EncodeTransaction(tx *solana.Transaction) (string, error) {
	b, err := transaction.Serialize(tx)
	if err != nil {
		return "", err
	}
	return Encode(b)
}

// DecodeTransaction parses a header value all the way to a transaction.
func DecodeTransaction(header string) (*solana.Transaction, error) {
	p, err := Decode(header)
	if err != nil {
		return nil, err
	}
	return ParseTransaction(p.Transaction)
}

// ParseTransaction decodes the canonical wire bytes of one transaction.
// Trailing bytes are rejected.
func ParseTransaction(b []byte) (*solana.Transaction, error) {
	dec := bin.NewBinDecoder(b)
	tx, err := solana.TransactionFromDecoder(dec)
	if err != nil {
		return nil, invalid("transaction bytes do not decode", err)
	}
	if rest := dec.Remaining(); rest > 0 {
		return nil, invalid(fmt.Sprintf("%d trailing bytes after transaction", rest), nil)
	}
	return tx, nil
}

func invalid(msg string, err error) error {
	return &types.X402Error{
		Kind:    types.KindMalformedInput,
		Code:    types.ErrInvalidPayload,
		Message: msg,
		Err:     err,
	}
}
