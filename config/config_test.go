package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/x402pay/types"
)

const (
	resourceServer = "67JmfPZkcYZm5wkzwF7csDCrNpNwWD8AiyWcLZYWmpyP"
	facilitator    = "AejHuZdNpDUiAiwuV2NKXz8K6eLzChYGpTcxptinWbar"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.ListenAddress)
	assert.Equal(t, []string{"solana-devnet"}, cfg.ChainIDs())
	assert.Equal(t, DevnetUSDC, cfg.Chains["solana-devnet"].Asset.Mint)

	r, ok := cfg.Resource("latest_newsletter")
	require.True(t, ok)
	assert.Equal(t, "https://lagoon.markets/latest_newsletter", r.URL)

	// no payment addresses
	assert.ErrorIs(t, cfg.Validate(), &types.X402Error{Code: types.ErrConfigError})
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
listen_address: ":9000"
default_timeout: 5s
payment:
  resource_server: ` + resourceServer + `
  facilitator: ` + facilitator + `
`))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.ListenAddress)
	assert.Equal(t, 5*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, "info", cfg.LogLevel)

	feePayer, err := cfg.FeePayer("EAx3oF6kmpAa6aR9G6LjhuWoqKJLpYsufSDoGp2dDWkh")
	require.NoError(t, err)
	assert.Equal(t, facilitator, feePayer)
	assert.Equal(t, facilitator, cfg.DiscoveryFeePayer())
}

func TestParse_ChainsReplaceDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
payment:
  resource_server: ` + resourceServer + `
  client_is_facilitator: true
chains:
  solana-mainnet:
    asset:
      mint: "11111111111111111111111111111111"
      decimals: 9
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"solana-mainnet"}, cfg.ChainIDs())

	network, chain, ok := cfg.Chain("SOLANA-MAINNET")
	require.True(t, ok)
	assert.Equal(t, types.NetworkSolanaMainnet, network)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", chain.RPCURLFor(network))

	_, _, ok = cfg.Chain("solana-devnet")
	assert.False(t, ok)

	client := "EAx3oF6kmpAa6aR9G6LjhuWoqKJLpYsufSDoGp2dDWkh"
	feePayer, err := cfg.FeePayer(client)
	require.NoError(t, err)
	assert.Equal(t, client, feePayer)
	assert.Empty(t, cfg.DiscoveryFeePayer())
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"not yaml", "listen_address: [\n"},
		{"no facilitator", "payment:\n  resource_server: " + resourceServer + "\n"},
		{"bad resource server", "payment:\n  resource_server: nope\n  client_is_facilitator: true\n"},
		{"bad facilitator", "payment:\n  resource_server: " + resourceServer + "\n  facilitator: \"0xabc\"\n"},
		{"unknown chain", "payment:\n  resource_server: " + resourceServer + "\n  client_is_facilitator: true\nchains:\n  base-sepolia:\n    asset:\n      mint: " + DevnetUSDC + "\n"},
		{"uppercase chain key", "payment:\n  resource_server: " + resourceServer + "\n  client_is_facilitator: true\nchains:\n  Solana-Devnet:\n    asset:\n      mint: " + DevnetUSDC + "\n"},
		{"price too precise", "payment:\n  resource_server: " + resourceServer + "\n  client_is_facilitator: true\nchains:\n  solana-devnet:\n    asset:\n      mint: " + DevnetUSDC + "\n      decimals: 0\n"},
		{"bad log level", "log_level: trace\npayment:\n  resource_server: " + resourceServer + "\n  client_is_facilitator: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, &types.X402Error{Code: types.ErrConfigError})
			assert.Equal(t, types.KindUnsupportedConfig, types.KindOf(err))
		})
	}
}

func TestFeePayer_NoFacilitator(t *testing.T) {
	cfg := Default()
	_, err := cfg.FeePayer(resourceServer)
	assert.ErrorIs(t, err, &types.X402Error{Code: types.ErrConfigError})
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x402.yaml")
	require.NoError(t, os.WriteFile(path, []byte("payment:\n  resource_server: "+resourceServer+"\n  facilitator: "+facilitator+"\n"), 0o600))

	t.Setenv(EnvConfigPath, path)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, resourceServer, cfg.Payment.ResourceServer)

	t.Setenv(EnvConfigPath, "")
	_, err = Load()
	assert.Error(t, err)
}
