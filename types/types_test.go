package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentRequirements_Amount(t *testing.T) {
	tests := []struct {
		raw     string
		want    uint64
		wantErr bool
	}{
		{"100000", 100000, false},
		{"0", 0, false},
		{"18446744073709551615", 18446744073709551615, false},
		{"18446744073709551616", 0, true},
		{"-1", 0, true},
		{"0.1", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			req := &PaymentRequirements{MaxAmountRequired: tt.raw}
			got, err := req.Amount()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindMalformedInput, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaymentRequirements_Helpers(t *testing.T) {
	req := &PaymentRequirements{Asset: NativeAsset, MaxTimeoutSeconds: 100}
	assert.True(t, req.IsNative())
	assert.Equal(t, 100*time.Second, req.MaxTimeout())

	req.Asset = "Gh9ZwEmdLJ8DscKNTkTqPbNwLNNBjuSzaG9Vp2KGtKJr"
	assert.False(t, req.IsNative())
}

func TestPaymentRequirementsResponse_Validate(t *testing.T) {
	resp := NewPaymentRequirementsResponse()
	err := resp.Validate()
	require.Error(t, err)
	assert.Equal(t, KindMalformedInput, KindOf(err))

	resp.Add(PaymentRequirements{Scheme: "exact"})
	assert.Error(t, resp.Validate())
}

func TestX402Error(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("settle: %w", &X402Error{
		Kind:    KindDownstream,
		Code:    ErrSettlementFailed,
		Message: "sendTransaction: request failed",
		Err:     cause,
	})

	assert.ErrorIs(t, err, &X402Error{Code: ErrSettlementFailed})
	assert.NotErrorIs(t, err, &X402Error{Code: ErrNetworkError})
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")

	assert.Equal(t, KindDownstream, KindOf(errors.New("plain")))
	assert.Equal(t, "downstream", KindDownstream.String())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(&X402Error{Kind: KindMalformedInput}))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(&X402Error{Kind: KindMissingHeader}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(&X402Error{Kind: KindUnsupportedConfig}))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestParseNetwork(t *testing.T) {
	n, ok := ParseNetwork(" Solana-Devnet ")
	assert.True(t, ok)
	assert.Equal(t, NetworkSolanaDevnet, n)

	_, ok = ParseNetwork("base-sepolia")
	assert.False(t, ok)

	assert.Equal(t, "https://api.devnet.solana.com", NetworkSolanaDevnet.DefaultRPCURL())
}
