// Package instructions turns a payment requirement into the on-chain transfer
// instruction that satisfies it.
package instructions

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/vitwit/x402pay/types"
)

// TransferKind names the branch the selector took.
type TransferKind int

const (
	TransferNative TransferKind = iota
	TransferToken
	TransferTokenExtensions
)

func (k TransferKind) String() string {
	switch k {
	case TransferNative:
		return "native"
	case TransferToken:
		return "spl-token"
	case TransferTokenExtensions:
		return "spl-token-2022"
	}
	return "unknown"
}

// Selection is the instruction built for a requirement plus the parties it binds.
type Selection struct {
	Kind        TransferKind
	Instruction solana.Instruction
	Payer       solana.PublicKey
	FeePayer    solana.PublicKey
	PayTo       solana.PublicKey
	Amount      uint64

	// Set for token transfers only.
	Mint         solana.PublicKey
	TokenProgram solana.PublicKey
	Source       solana.PublicKey
	Destination  solana.PublicKey
}

// Select builds the transfer instruction for req paid by payer.
// declaredFeePayer is the base58 fee payer named by the requirement; when it
// is empty the payer covers its own fees.
func Select(req *types.PaymentRequirements, payer solana.PublicKey, declaredFeePayer string) (*Selection, error) {
	payTo, err := DecodeAddress("payTo", req.PayTo)
	if err != nil {
		return nil, err
	}

	asset, err := DecodeAddress("asset", req.Asset)
	if err != nil {
		return nil, err
	}

	feePayer := payer
	if declaredFeePayer != "" {
		feePayer, err = DecodeAddress("feePayer", declaredFeePayer)
		if err != nil {
			return nil, err
		}
	}

	amount, err := req.Amount()
	if err != nil {
		return nil, err
	}

	sel := &Selection{
		Payer:    payer,
		FeePayer: feePayer,
		PayTo:    payTo,
		Amount:   amount,
	}

	if req.IsNative() {
		sel.Kind = TransferNative
		sel.Instruction, err = system.NewTransferInstruction(amount, payer, payTo).ValidateAndBuild()
		if err != nil {
			return nil, instructionError("system transfer", err)
		}
		return sel, nil
	}

	sel.Kind = TransferToken
	sel.TokenProgram = solana.TokenProgramID
	if req.Extra.TokenExtensionsMint {
		sel.Kind = TransferTokenExtensions
		sel.TokenProgram = solana.Token2022ProgramID
	}
	sel.Mint = asset

	if sel.Source, err = DeriveAssociatedTokenAddress(payer, asset, sel.TokenProgram); err != nil {
		return nil, err
	}
	if sel.Destination, err = DeriveAssociatedTokenAddress(payTo, asset, sel.TokenProgram); err != nil {
		return nil, err
	}

	sel.Instruction, err = transferChecked(
		sel.TokenProgram,
		amount,
		req.Extra.Decimals,
		sel.Source,
		asset,
		sel.Destination,
		payer,
		payer, feePayer,
	)
	if err != nil {
		return nil, err
	}

	return sel, nil
}

// transferChecked builds a TransferChecked instruction and rebinds it to
// tokenProgram. The instruction layout is shared by Token and Token-2022.
func transferChecked(
	tokenProgram solana.PublicKey,
	amount uint64,
	decimals uint8,
	source, mint, destination, owner solana.PublicKey,
	signers ...solana.PublicKey,
) (solana.Instruction, error) {
	ix, err := token.NewTransferCheckedInstructionBuilder().
		SetAmount(amount).
		SetDecimals(decimals).
		SetSourceAccount(source).
		SetMintAccount(mint).
		SetDestinationAccount(destination).
		SetOwnerAccount(owner, signers...).
		ValidateAndBuild()
	if err != nil {
		return nil, instructionError("transfer checked", err)
	}

	if tokenProgram.Equals(solana.TokenProgramID) {
		return ix, nil
	}

	data, err := ix.Data()
	if err != nil {
		return nil, instructionError("transfer checked data", err)
	}
	return solana.NewInstruction(tokenProgram, ix.Accounts(), data), nil
}

// DecodeAddress parses a base58 public key, naming field in the error.
func DecodeAddress(field, value string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, &types.X402Error{
			Kind:    types.KindMalformedInput,
			Code:    types.ErrInvalidAddress,
			Message: fmt.Sprintf("%s %q is not a valid base58 public key", field, value),
			Err:     err,
		}
	}
	return pk, nil
}

func instructionError(what string, err error) error {
	return &types.X402Error{
		Kind:    types.KindMalformedInput,
		Code:    types.ErrInvalidInstruction,
		Message: fmt.Sprintf("failed to build %s instruction", what),
		Err:     err,
	}
}
