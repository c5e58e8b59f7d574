package verification

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402pay/instructions"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/payload"
	"github.com/vitwit/x402pay/transaction"
	"github.com/vitwit/x402pay/types"
)

const usdc = "Gh9ZwEmdLJ8DscKNTkTqPbNwLNNBjuSzaG9Vp2KGtKJr"

type fixture struct {
	payer    solana.PrivateKey
	feePayer solana.PrivateKey
	payTo    solana.PublicKey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	keys := make([]solana.PrivateKey, 3)
	for i := range keys {
		k, err := solana.NewRandomPrivateKey()
		require.NoError(t, err)
		keys[i] = k
	}
	return &fixture{payer: keys[0], feePayer: keys[1], payTo: keys[2].PublicKey()}
}

func (f *fixture) requirement(asset string) *types.PaymentRequirements {
	return &types.PaymentRequirements{
		Scheme:            "exact",
		Network:           "solana-devnet",
		MaxAmountRequired: "100000",
		Resource:          "https://lagoon.markets/latest_newsletter",
		PayTo:             f.payTo.String(),
		MaxTimeoutSeconds: 100,
		Asset:             asset,
		Extra: types.PaymentExtra{
			FeePayer: f.feePayer.PublicKey().String(),
			Decimals: 6,
		},
	}
}

// pay builds the transaction a client would send for req, signed by the payer only.
func (f *fixture) pay(t *testing.T, req *types.PaymentRequirements, extra ...solana.Instruction) *solana.Transaction {
	t.Helper()
	sel, err := instructions.Select(req, f.payer.PublicKey(), req.Extra.FeePayer)
	require.NoError(t, err)

	ixs := append([]solana.Instruction{sel.Instruction}, extra...)
	tx, err := transaction.Assemble(ixs, sel.FeePayer, solana.Hash{0x1})
	require.NoError(t, err)
	require.NoError(t, transaction.PartialSign(tx, f.payer))
	return tx
}

func TestVerify_Valid(t *testing.T) {
	for _, asset := range []string{types.NativeAsset, usdc} {
		t.Run(asset, func(t *testing.T) {
			f := newFixture(t)
			req := f.requirement(asset)

			header, err := payload.EncodeTransaction(f.pay(t, req))
			require.NoError(t, err)

			result, err := NewVerificationService(logger.NoopLogger{}).Verify(header, req, f.payer.PublicKey().String())
			require.NoError(t, err)
			assert.True(t, result.IsValid, result.InvalidReason)
			assert.Equal(t, "100000", result.Amount)
			assert.Equal(t, f.feePayer.PublicKey().String(), result.FeePayer)
		})
	}
}

func TestVerify_Invalid(t *testing.T) {
	f := newFixture(t)

	t.Run("amount mismatch", func(t *testing.T) {
		paid := f.requirement(usdc)
		paid.MaxAmountRequired = "1"
		result, err := VerifyTransaction(f.pay(t, paid), f.requirement(usdc), f.payer.PublicKey())
		require.NoError(t, err)
		assert.False(t, result.IsValid)
		assert.Equal(t, ErrAmountMismatch, result.InvalidReason)
	})

	t.Run("wrong recipient", func(t *testing.T) {
		paid := f.requirement(types.NativeAsset)
		paid.PayTo = f.feePayer.PublicKey().String()
		result, err := VerifyTransaction(f.pay(t, paid), f.requirement(types.NativeAsset), f.payer.PublicKey())
		require.NoError(t, err)
		assert.Equal(t, ErrRecipientMismatch, result.InvalidReason)
	})

	t.Run("token paid to wrong account", func(t *testing.T) {
		paid := f.requirement(usdc)
		paid.PayTo = f.feePayer.PublicKey().String()
		result, err := VerifyTransaction(f.pay(t, paid), f.requirement(usdc), f.payer.PublicKey())
		require.NoError(t, err)
		assert.Equal(t, ErrTransferToIncorrectATA, result.InvalidReason)
	})

	t.Run("native paid for token", func(t *testing.T) {
		result, err := VerifyTransaction(f.pay(t, f.requirement(types.NativeAsset)), f.requirement(usdc), f.payer.PublicKey())
		require.NoError(t, err)
		assert.Equal(t, ErrNotATransferCheckedInstruction, result.InvalidReason)
	})

	t.Run("fee payer mismatch", func(t *testing.T) {
		paid := f.requirement(usdc)
		paid.Extra.FeePayer = ""
		result, err := VerifyTransaction(f.pay(t, paid), f.requirement(usdc), f.payer.PublicKey())
		require.NoError(t, err)
		assert.Equal(t, ErrFeePayerMismatch, result.InvalidReason)
	})

	t.Run("duplicate transfer", func(t *testing.T) {
		req := f.requirement(types.NativeAsset)
		sel, err := instructions.Select(req, f.payer.PublicKey(), req.Extra.FeePayer)
		require.NoError(t, err)
		result, err := VerifyTransaction(f.pay(t, req, sel.Instruction), req, f.payer.PublicKey())
		require.NoError(t, err)
		assert.Equal(t, ErrDuplicateTransfer, result.InvalidReason)
	})

	t.Run("unsigned", func(t *testing.T) {
		req := f.requirement(types.NativeAsset)
		sel, err := instructions.Select(req, f.payer.PublicKey(), req.Extra.FeePayer)
		require.NoError(t, err)
		tx, err := transaction.Assemble([]solana.Instruction{sel.Instruction}, sel.FeePayer, solana.Hash{0x1})
		require.NoError(t, err)

		result, err := VerifyTransaction(tx, req, f.payer.PublicKey())
		require.NoError(t, err)
		assert.Equal(t, ErrTransactionSignerMissingSignatures, result.InvalidReason)
	})

	t.Run("signed by someone else", func(t *testing.T) {
		req := f.requirement(types.NativeAsset)
		tx := f.pay(t, req)
		tx.Signatures[1][0] ^= 0xff

		result, err := VerifyTransaction(tx, req, f.payer.PublicKey())
		require.NoError(t, err)
		assert.Equal(t, ErrInvalidPayerSignature, result.InvalidReason)
	})
}

func TestVerify_MalformedInput(t *testing.T) {
	f := newFixture(t)
	svc := NewVerificationService(nil)
	req := f.requirement(usdc)

	_, err := svc.Verify("not-a-header", req, f.payer.PublicKey().String())
	assert.ErrorIs(t, err, &types.X402Error{Code: types.ErrInvalidPayload})

	header, err := payload.EncodeTransaction(f.pay(t, req))
	require.NoError(t, err)
	_, err = svc.Verify(header, req, "not-an-address")
	assert.ErrorIs(t, err, &types.X402Error{Code: types.ErrInvalidAddress})
}
