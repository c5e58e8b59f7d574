package transaction

import (
	"crypto/ed25519"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402pay/types"
)

var blockhash = solana.Hash{0x4, 0x0, 0x2, 0x9, 0x1}

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return key
}

// transfer builds an instruction that needs both payer and extra as signers.
func transfer(payer, extra, to solana.PublicKey) solana.Instruction {
	ix := system.NewTransferInstruction(1000, payer, to).Build()
	accounts := append(ix.Accounts(), solana.Meta(extra).SIGNER())
	data, _ := ix.Data()
	return solana.NewInstruction(solana.SystemProgramID, accounts, data)
}

func TestAssemble(t *testing.T) {
	payer, feePayer, to := newKey(t), newKey(t), newKey(t)

	tx, err := Assemble(
		[]solana.Instruction{transfer(payer.PublicKey(), feePayer.PublicKey(), to.PublicKey())},
		feePayer.PublicKey(),
		blockhash,
	)
	require.NoError(t, err)

	assert.Equal(t, blockhash, tx.Message.RecentBlockhash)
	assert.Equal(t, uint8(2), tx.Message.Header.NumRequiredSignatures)
	assert.Equal(t, feePayer.PublicKey(), tx.Message.AccountKeys[0])
	require.Len(t, tx.Signatures, 2)
	for _, sig := range tx.Signatures {
		assert.Equal(t, solana.Signature{}, sig)
	}

	fp, err := FeePayer(tx)
	require.NoError(t, err)
	assert.Equal(t, feePayer.PublicKey(), fp)

	assert.ElementsMatch(t, []solana.PublicKey{feePayer.PublicKey(), payer.PublicKey()}, MissingSigners(tx))

	_, err = Serialize(tx)
	assert.NoError(t, err)
}

func TestAssemble_NoInstructions(t *testing.T) {
	_, err := Assemble(nil, newKey(t).PublicKey(), blockhash)
	assert.ErrorIs(t, err, &types.X402Error{Code: types.ErrInvalidTransaction})
}

func TestPartialSign(t *testing.T) {
	payer, feePayer, to := newKey(t), newKey(t), newKey(t)

	tx, err := Assemble(
		[]solana.Instruction{transfer(payer.PublicKey(), feePayer.PublicKey(), to.PublicKey())},
		feePayer.PublicKey(),
		blockhash,
	)
	require.NoError(t, err)

	require.NoError(t, PartialSign(tx, payer))

	assert.Equal(t, []solana.PublicKey{feePayer.PublicKey()}, MissingSigners(tx))

	msg, err := tx.Message.MarshalBinary()
	require.NoError(t, err)

	pk := payer.PublicKey()
	assert.True(t, ed25519.Verify(pk[:], msg, tx.Signatures[1][:]))
	assert.Equal(t, solana.Signature{}, tx.Signatures[0])

	require.NoError(t, PartialSign(tx, feePayer))
	assert.Empty(t, MissingSigners(tx))
	assert.NoError(t, tx.VerifySignatures())
}

func TestPartialSign_NotASigner(t *testing.T) {
	payer, feePayer, to := newKey(t), newKey(t), newKey(t)

	tx, err := Assemble(
		[]solana.Instruction{transfer(payer.PublicKey(), feePayer.PublicKey(), to.PublicKey())},
		feePayer.PublicKey(),
		blockhash,
	)
	require.NoError(t, err)

	err = PartialSign(tx, to)
	assert.ErrorIs(t, err, &types.X402Error{Code: types.ErrInvalidTransaction})
	assert.Len(t, MissingSigners(tx), 2)
}
