package verification

// Invalid reasons reported in VerificationResult.InvalidReason.
const (
	// -----------------------------
	// GENERIC PAYLOAD
	// -----------------------------
	ErrInvalidExactSvmPayload = "invalid_exact_svm_payload_transaction"

	// -----------------------------
	// FEE PAYER SAFETY
	// -----------------------------
	ErrFeePayerMismatch = "invalid_exact_svm_payload_transaction_fee_payer_mismatch"

	// -----------------------------
	// TRANSFER CHECKS
	// -----------------------------
	ErrTransferToIncorrectATA = "invalid_exact_svm_payload_transaction_transfer_to_incorrect_ata"
	ErrRecipientMismatch      = "invalid_exact_svm_payload_transaction_recipient_mismatch"
	ErrAmountMismatch         = "invalid_exact_svm_payload_transaction_amount_mismatch"
	ErrDuplicateTransfer      = "invalid_exact_svm_payload_transaction_duplicate_transfer"

	// -----------------------------
	// TRANSFER PARSING ERRORS
	// -----------------------------
	ErrNotATransferInstruction        = "invalid_exact_svm_payload_transaction_not_a_transfer_instruction"
	ErrNotATransferCheckedInstruction = "invalid_exact_svm_payload_transaction_instruction_not_transfer_checked"

	// -----------------------------
	// SIGNATURES
	// -----------------------------
	ErrTransactionSignerMissingSignatures = "transaction_signer_missing_signatures"
	ErrInvalidPayerSignature              = "invalid_exact_svm_payload_transaction_payer_signature"
)
