package verification

import (
	"bytes"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/vitwit/x402pay/instructions"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/payload"
	"github.com/vitwit/x402pay/transaction"
	"github.com/vitwit/x402pay/types"
)

// Verifier interface defines the contract for payment verification
type Verifier interface {
	Verify(header string, requirements *types.PaymentRequirements, payer string) (*types.VerificationResult, error)
}

// VerificationService checks X-PAYMENT headers against the requirement they pay.
type VerificationService struct {
	logger logger.Logger
}

var _ Verifier = (*VerificationService)(nil)

// NewVerificationService creates a new verification service
func NewVerificationService(l logger.Logger) *VerificationService {
	if l == nil {
		l = logger.NoopLogger{}
	}
	return &VerificationService{logger: l}
}

// Verify decodes header and checks it pays requirements on behalf of payer.
// Malformed input is returned as an error; a well formed transaction that does
// not pay is reported through VerificationResult.InvalidReason.
func (s *VerificationService) Verify(
	header string,
	requirements *types.PaymentRequirements,
	payer string,
) (*types.VerificationResult, error) {
	payerKey, err := instructions.DecodeAddress(types.HeaderClientAddress, payer)
	if err != nil {
		return nil, err
	}

	tx, err := payload.DecodeTransaction(header)
	if err != nil {
		return nil, err
	}

	result, err := VerifyTransaction(tx, requirements, payerKey)
	if err != nil {
		return nil, err
	}

	if !result.IsValid {
		s.logger.Debug("payment rejected", map[string]any{
			"reason":   result.InvalidReason,
			"payer":    payer,
			"resource": requirements.Resource,
			"network":  requirements.Network,
		})
	}
	return result, nil
}

// VerifyTransaction re-derives the transfer that satisfies requirements and
// checks tx carries exactly one instance of it, with the expected fee payer
// and a valid payer signature.
func VerifyTransaction(
	tx *solana.Transaction,
	requirements *types.PaymentRequirements,
	payer solana.PublicKey,
) (*types.VerificationResult, error) {
	sel, err := instructions.Select(requirements, payer, requirements.Extra.FeePayer)
	if err != nil {
		return nil, err
	}

	result := &types.VerificationResult{
		Amount:    strconv.FormatUint(sel.Amount, 10),
		Asset:     requirements.Asset,
		Recipient: requirements.PayTo,
		Payer:     payer.String(),
		FeePayer:  sel.FeePayer.String(),
	}

	feePayer, err := transaction.FeePayer(tx)
	if err != nil {
		return nil, err
	}
	if !feePayer.Equals(sel.FeePayer) {
		return invalid(result, ErrFeePayerMismatch), nil
	}

	if reason := checkSignature(tx, payer); reason != "" {
		return invalid(result, reason), nil
	}

	expectedData, err := sel.Instruction.Data()
	if err != nil {
		return nil, err
	}
	expectedProgram := sel.Instruction.ProgramID()
	expectedAccounts := sel.Instruction.Accounts()

	reason := ErrNotATransferCheckedInstruction
	if sel.Kind == instructions.TransferNative {
		reason = ErrNotATransferInstruction
	}

	matches := 0
	for _, inst := range tx.Message.Instructions {
		program, ok := accountAt(tx, inst.ProgramIDIndex)
		if !ok {
			return invalid(result, ErrInvalidExactSvmPayload), nil
		}
		if !program.Equals(expectedProgram) {
			continue
		}

		if !sameAccounts(tx, inst.Accounts, expectedAccounts) {
			reason = ErrTransferToIncorrectATA
			if sel.Kind == instructions.TransferNative {
				reason = ErrRecipientMismatch
			}
			continue
		}

		if !bytes.Equal(inst.Data, expectedData) {
			reason = ErrAmountMismatch
			continue
		}
		matches++
	}

	switch {
	case matches == 1:
		result.IsValid = true
		return result, nil
	case matches > 1:
		return invalid(result, ErrDuplicateTransfer), nil
	default:
		return invalid(result, reason), nil
	}
}

func checkSignature(tx *solana.Transaction, payer solana.PublicKey) string {
	n := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < n && i < len(tx.Message.AccountKeys); i++ {
		if !tx.Message.AccountKeys[i].Equals(payer) {
			continue
		}
		if i >= len(tx.Signatures) || tx.Signatures[i] == (solana.Signature{}) {
			return ErrTransactionSignerMissingSignatures
		}
		msg, err := tx.Message.MarshalBinary()
		if err != nil || !tx.Signatures[i].Verify(payer, msg) {
			return ErrInvalidPayerSignature
		}
		return ""
	}
	return ErrTransactionSignerMissingSignatures
}

func sameAccounts(tx *solana.Transaction, indexes []uint16, expected []*solana.AccountMeta) bool {
	if len(indexes) != len(expected) {
		return false
	}
	for i, idx := range indexes {
		key, ok := accountAt(tx, idx)
		if !ok || !key.Equals(expected[i].PublicKey) {
			return false
		}
	}
	return true
}

func accountAt(tx *solana.Transaction, idx uint16) (solana.PublicKey, bool) {
	if int(idx) >= len(tx.Message.AccountKeys) {
		return solana.PublicKey{}, false
	}
	return tx.Message.AccountKeys[idx], true
}

func invalid(result *types.VerificationResult, reason string) *types.VerificationResult {
	result.IsValid = false
	result.InvalidReason = reason
	return result
}
