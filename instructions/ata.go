package instructions

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/vitwit/x402pay/types"
)

// DeriveAssociatedTokenAddress returns the associated token account of owner
// for mint under tokenProgram: the PDA of [owner, tokenProgram, mint] owned by
// the associated token account program. It never touches the network.
func DeriveAssociatedTokenAddress(owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			owner[:],
			tokenProgram[:],
			mint[:],
		},
		solana.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    types.ErrInvalidAddress,
			Message: fmt.Sprintf("failed to derive associated token account of %s for mint %s", owner, mint),
			Err:     err,
		}
	}
	return addr, nil
}
