package requirements

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402pay/config"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
)

const (
	resourceServer = "67JmfPZkcYZm5wkzwF7csDCrNpNwWD8AiyWcLZYWmpyP"
	facilitator    = "AejHuZdNpDUiAiwuV2NKXz8K6eLzChYGpTcxptinWbar"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Payment.ResourceServer = resourceServer
	cfg.Payment.Facilitator = facilitator
	return cfg
}

func TestResponse_DevnetNewsletter(t *testing.T) {
	cfg := testConfig()
	r, _ := cfg.Resource("/latest_newsletter")

	resp, err := NewBuilder(cfg).Response(r, "Solana-Devnet", facilitator)
	require.NoError(t, err)
	require.NoError(t, resp.Validate())

	assert.Equal(t, types.X402Version1, resp.X402Version)
	require.Len(t, resp.Accepts, 1)

	req := resp.Accepts[0]
	assert.Equal(t, "exact", req.Scheme)
	assert.Equal(t, "solana-devnet", req.Network)
	assert.Equal(t, "100000", req.MaxAmountRequired)
	assert.Equal(t, "https://lagoon.markets/latest_newsletter", req.Resource)
	assert.Equal(t, "Read the latest on Solana developer tooling.", req.Description)
	assert.Equal(t, "application/json", req.MimeType)
	assert.Equal(t, resourceServer, req.PayTo)
	assert.Equal(t, uint32(100), req.MaxTimeoutSeconds)
	assert.Equal(t, config.DevnetUSDC, req.Asset)
	assert.Equal(t, types.PaymentExtra{FeePayer: facilitator, Decimals: 6}, req.Extra)

	assert.NoError(t, utils.ValidateStruct(&req))
}

func TestResponse_FreshEachCall(t *testing.T) {
	cfg := testConfig()
	r, _ := cfg.Resource("/latest_newsletter")
	b := NewBuilder(cfg)

	first, err := b.Response(r, "solana-devnet", facilitator)
	require.NoError(t, err)
	first.Accepts[0].PayTo = "mutated"

	second, err := b.Response(r, "solana-devnet", facilitator)
	require.NoError(t, err)
	assert.Equal(t, resourceServer, second.Accepts[0].PayTo)
}

func TestRequirement_UnsupportedChain(t *testing.T) {
	cfg := testConfig()
	r, _ := cfg.Resource("/latest_newsletter")

	for _, chain := range []string{"solana-mainnet", "base-sepolia", ""} {
		t.Run(chain, func(t *testing.T) {
			_, err := NewBuilder(cfg).Requirement(r, chain, facilitator)
			require.Error(t, err)
			assert.ErrorIs(t, err, &types.X402Error{Code: types.ErrUnsupportedNetwork})
			assert.Equal(t, http.StatusInternalServerError, types.HTTPStatus(err))
		})
	}
}

func TestAll(t *testing.T) {
	cfg := testConfig()
	cfg.Chains["solana-mainnet"] = config.ChainConfig{
		Asset: config.Asset{Mint: types.NativeAsset, Decimals: 9},
	}
	r, _ := cfg.Resource("/latest_newsletter")

	accepts, err := NewBuilder(cfg).All(r, "")
	require.NoError(t, err)
	require.Len(t, accepts, 2)

	assert.Equal(t, "solana-devnet", accepts[0].Network)
	assert.Equal(t, "solana-mainnet", accepts[1].Network)
	assert.Equal(t, "100000000", accepts[1].MaxAmountRequired)
	assert.True(t, accepts[1].IsNative())
	assert.Empty(t, accepts[1].Extra.FeePayer)
}
