package types

import "strings"

// Network represents a Solana cluster by its x402 chain id.
type Network string

const (
	NetworkSolanaMainnet  Network = "solana-mainnet"
	NetworkSolanaTestnet  Network = "solana-testnet"
	NetworkSolanaDevnet   Network = "solana-devnet"
	NetworkSolanaLocalnet Network = "solana-localnet"
)

// Networks lists every chain id the X402-Chain header may carry.
var Networks = []Network{
	NetworkSolanaMainnet,
	NetworkSolanaTestnet,
	NetworkSolanaDevnet,
	NetworkSolanaLocalnet,
}

// ParseNetwork lowercases a header value and reports whether it is a known chain id.
func ParseNetwork(s string) (Network, bool) {
	n := Network(strings.ToLower(strings.TrimSpace(s)))
	return n, n.IsSolana()
}

func (n Network) IsSolana() bool {
	switch n {
	case NetworkSolanaMainnet, NetworkSolanaTestnet, NetworkSolanaDevnet, NetworkSolanaLocalnet:
		return true
	}
	return false
}

// DefaultRPCURL returns the public RPC endpoint of the cluster.
func (n Network) DefaultRPCURL() string {
	switch n {
	case NetworkSolanaMainnet:
		return "https://api.mainnet-beta.solana.com"
	case NetworkSolanaTestnet:
		return "https://api.testnet.solana.com"
	case NetworkSolanaDevnet:
		return "https://api.devnet.solana.com"
	case NetworkSolanaLocalnet:
		return "http://127.0.0.1:8899"
	}
	return ""
}

func (n Network) String() string {
	return string(n)
}
