package clients

import (
	"context"
	"errors"
	"fmt"

	binary "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	x402types "github.com/vitwit/x402pay/types"
)

// rpcAPI is the part of *rpc.Client the SolanaClient calls.
type rpcAPI interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// SolanaClient provides minimal Solana functionality
type SolanaClient struct {
	network x402types.Network
	rpcURL  string
	client  rpcAPI
}

var _ LedgerRPC = (*SolanaClient)(nil)

// NewSolanaClient creates a minimal Solana client
func NewSolanaClient(network x402types.Network, rpcURL string) (*SolanaClient, error) {
	if !network.IsSolana() {
		return nil, &x402types.X402Error{
			Kind:    x402types.KindUnsupportedConfig,
			Code:    x402types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("network %s is not a Solana network", network),
		}
	}
	if rpcURL == "" {
		rpcURL = network.DefaultRPCURL()
	}

	return &SolanaClient{
		network: network,
		rpcURL:  rpcURL,
		client:  rpc.New(rpcURL),
	}, nil
}

// LatestBlockhash returns the latest finalized blockhash.
func (c *SolanaClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	res, err := c.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, c.downstream("failed to get latest blockhash", err)
	}
	if res == nil || res.Value == nil {
		return solana.Hash{}, c.downstream("empty latest blockhash response", nil)
	}
	return res.Value.Blockhash, nil
}

// MintInfo reads mint and decodes it. The account must be owned by the
// Token or the Token-2022 program.
func (c *SolanaClient) MintInfo(ctx context.Context, mint solana.PublicKey) (*x402types.MintInfo, error) {
	res, err := c.client.GetAccountInfo(ctx, mint)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, &x402types.X402Error{
				Kind:    x402types.KindMalformedInput,
				Code:    x402types.ErrInvalidAddress,
				Message: fmt.Sprintf("mint %s does not exist on %s", mint, c.network),
				Err:     err,
			}
		}
		return nil, c.downstream(fmt.Sprintf("failed to get account %s", mint), err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return nil, c.downstream(fmt.Sprintf("empty account response for %s", mint), nil)
	}

	owner := res.Value.Owner
	if !owner.Equals(solana.TokenProgramID) && !owner.Equals(solana.Token2022ProgramID) {
		return nil, &x402types.X402Error{
			Kind:    x402types.KindMalformedInput,
			Code:    x402types.ErrInvalidAddress,
			Message: fmt.Sprintf("account %s is owned by %s, not a token program", mint, owner),
		}
	}

	var m token.Mint
	if err := binary.NewBinDecoder(res.Value.Data.GetBinary()).Decode(&m); err != nil {
		return nil, &x402types.X402Error{
			Kind:    x402types.KindMalformedInput,
			Code:    x402types.ErrInvalidAddress,
			Message: fmt.Sprintf("account %s is not a mint", mint),
			Err:     err,
		}
	}

	info := &x402types.MintInfo{
		ProgramID: owner.String(),
		Decimals:  m.Decimals,
	}
	if m.MintAuthority != nil {
		info.MintAuthority = m.MintAuthority.String()
	}
	if m.FreezeAuthority != nil {
		info.FreezeAuthority = m.FreezeAuthority.String()
	}
	return info, nil
}

// TokenExtensionsMint reports whether info describes a Token-2022 mint.
func TokenExtensionsMint(info *x402types.MintInfo) bool {
	return info.ProgramID == solana.Token2022ProgramID.String()
}

func (c *SolanaClient) GetNetwork() x402types.Network { return c.network }

func (c *SolanaClient) Close() {}

func (c *SolanaClient) downstream(msg string, err error) error {
	return &x402types.X402Error{
		Kind:    x402types.KindDownstream,
		Code:    x402types.ErrNetworkError,
		Message: fmt.Sprintf("%s: %s", c.network, msg),
		Err:     err,
	}
}
