package clients

import (
	"context"

	"github.com/gagliardetto/solana-go"

	x402types "github.com/vitwit/x402pay/types"
)

// LedgerRPC is the read-only view of a Solana cluster the payment flow needs.
type LedgerRPC interface {
	// LatestBlockhash returns a recent blockhash to bind a transaction to.
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	// MintInfo reads and decodes a token mint account.
	MintInfo(ctx context.Context, mint solana.PublicKey) (*x402types.MintInfo, error)
	GetNetwork() x402types.Network
	Close()
}
