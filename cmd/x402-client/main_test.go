package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKey(t *testing.T) {
	_, err := loadKey("", false)
	assert.EqualError(t, err, "--keypair is required")

	key, err := loadKey("", true)
	require.NoError(t, err)
	assert.Len(t, key, 64)

	want, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	ints := make([]int, len(want))
	for i, b := range want {
		ints[i] = int(b)
	}
	data, err := json.Marshal(ints)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	for _, discover := range []bool{false, true} {
		got, err := loadKey(path, discover)
		require.NoError(t, err)
		assert.Equal(t, want.PublicKey(), got.PublicKey())
	}

	_, err = loadKey(filepath.Join(t.TempDir(), "missing.json"), true)
	assert.Error(t, err)
}

func TestRun_DiscoverWithoutKeypair(t *testing.T) {
	err := run([]string{"--discover", "x402://subscribe/https://lagoon.markets/latest_newsletter"})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "--keypair")
}
