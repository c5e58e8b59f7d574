package utils

import (
	"fmt"
	"math"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// ValidateAmount checks if an amount string is a valid decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

// ValidateSolanaAddress checks that address is a base58 encoded public key.
func ValidateSolanaAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("Solana address must be valid base58: %w", err)
	}
	return nil
}

// ValidateTransactionSignature checks a base58 transaction signature.
func ValidateTransactionSignature(sig string) error {
	if sig == "" {
		return fmt.Errorf("transaction signature cannot be empty")
	}
	if _, err := solana.SignatureFromBase58(sig); err != nil {
		return fmt.Errorf("Solana transaction signature must be valid base58: %w", err)
	}
	return nil
}

// ToAtomicUnits converts a human readable amount ("0.10") into the smallest
// unit of an asset with the given decimals. Fractions finer than the asset
// supports are rejected.
func ToAtomicUnits(amount string, decimals uint8) (uint64, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return 0, err
	}

	atomic := dec.Shift(int32(decimals))
	if !atomic.IsInteger() {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	if atomic.GreaterThan(uint64Decimal(math.MaxUint64)) {
		return 0, fmt.Errorf("amount %s overflows 64 bits at %d decimals", amount, decimals)
	}

	return atomic.BigInt().Uint64(), nil
}

// FormatAtomicUnits formats an amount in smallest units with the asset's decimals.
func FormatAtomicUnits(amount uint64, decimals uint8) string {
	return uint64Decimal(amount).Shift(-int32(decimals)).String()
}

func uint64Decimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
