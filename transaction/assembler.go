// Package transaction assembles payment instructions into a single legacy
// Solana message and handles the partial signing a fee-paying facilitator
// completes later.
package transaction

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/vitwit/x402pay/types"
)

// Assemble wraps instructions into an unsigned legacy transaction with
// feePayer as the first signer. One zeroed signature slot is allocated per
// required signer so the transaction serializes before anyone signs it.
func Assemble(instructions []solana.Instruction, feePayer solana.PublicKey, blockhash solana.Hash) (*solana.Transaction, error) {
	if len(instructions) == 0 {
		return nil, invalid("no instructions to assemble", nil)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, invalid("failed to assemble transaction", err)
	}

	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	return tx, nil
}

// PartialSign signs the message with key and stores the signature in the
// slot of key's public key. Slots of other signers are left untouched.
func PartialSign(tx *solana.Transaction, key solana.PrivateKey) error {
	signer := key.PublicKey()

	idx, err := signerIndex(tx, signer)
	if err != nil {
		return err
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return invalid("failed to serialize message", err)
	}

	sig, err := key.Sign(msg)
	if err != nil {
		return invalid(fmt.Sprintf("failed to sign message with %s", signer), err)
	}

	if len(tx.Signatures) != int(tx.Message.Header.NumRequiredSignatures) {
		sigs := make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}
	tx.Signatures[idx] = sig
	return nil
}

// MissingSigners lists the required signers whose slot is still zero.
func MissingSigners(tx *solana.Transaction) []solana.PublicKey {
	n := int(tx.Message.Header.NumRequiredSignatures)
	missing := make([]solana.PublicKey, 0, n)
	for i := 0; i < n && i < len(tx.Message.AccountKeys); i++ {
		if i >= len(tx.Signatures) || tx.Signatures[i] == (solana.Signature{}) {
			missing = append(missing, tx.Message.AccountKeys[i])
		}
	}
	return missing
}

// FeePayer returns the account paying the network fee.
func FeePayer(tx *solana.Transaction) (solana.PublicKey, error) {
	if len(tx.Message.AccountKeys) == 0 {
		return solana.PublicKey{}, invalid("transaction has no accounts", nil)
	}
	return tx.Message.AccountKeys[0], nil
}

// Serialize returns the canonical wire bytes of tx, signed or not.
func Serialize(tx *solana.Transaction) ([]byte, error) {
	b, err := tx.MarshalBinary()
	if err != nil {
		return nil, invalid("failed to serialize transaction", err)
	}
	return b, nil
}

func signerIndex(tx *solana.Transaction, signer solana.PublicKey) (int, error) {
	n := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < n && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(signer) {
			return i, nil
		}
	}
	return 0, invalid(fmt.Sprintf("%s is not a required signer of the transaction", signer), nil)
}

func invalid(msg string, err error) error {
	return &types.X402Error{
		Kind:    types.KindMalformedInput,
		Code:    types.ErrInvalidTransaction,
		Message: msg,
		Err:     err,
	}
}
