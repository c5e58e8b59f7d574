// Package config loads the resource server configuration.
//
// Configuration is read from a single YAML file named by the --config flag
// or the X402_CONFIG environment variable. Values missing from the file keep
// the defaults of Default.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "X402_CONFIG"

// DevnetUSDC is the USDC mint on solana-devnet.
const DevnetUSDC = "Gh9ZwEmdLJ8DscKNTkTqPbNwLNNBjuSzaG9Vp2KGtKJr"

// Config is the master configuration of an x402 resource server.
type Config struct {
	// ListenAddress is the host:port the HTTP server binds.
	ListenAddress string `yaml:"listen_address" validate:"required"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	// EnableMetrics exposes /metrics and records Prometheus metrics.
	EnableMetrics bool `yaml:"enable_metrics"`

	// DefaultTimeout bounds every call to the ledger RPC and the gateway.
	DefaultTimeout time.Duration `yaml:"default_timeout" validate:"gt=0"`

	// VerifyPayments makes the negotiator check the X-PAYMENT transaction
	// against the requirement instead of only checking it is present.
	VerifyPayments bool `yaml:"verify_payments"`

	Payment PaymentDetails `yaml:"payment"`

	// Chains maps chain ids (X402-Chain values) to their settings. Only
	// chains listed here are accepted.
	Chains map[string]ChainConfig `yaml:"chains" validate:"required,min=1,dive"`

	Gateway GatewayConfig `yaml:"gateway"`

	// Resources is the catalog of protected resources, in discovery order.
	Resources []Resource `yaml:"resources" validate:"dive"`

	// DiscoveryLastUpdated is reported as lastUpdated on every discovered item.
	DiscoveryLastUpdated uint64 `yaml:"discovery_last_updated"`
}

// PaymentDetails names who receives payments and who pays the network fee.
type PaymentDetails struct {
	// ResourceServer is the base58 address that receives payments.
	ResourceServer string `yaml:"resource_server" validate:"required,base58"`

	// Facilitator is the base58 address that pays fees when the client does not.
	Facilitator string `yaml:"facilitator" validate:"omitempty,base58"`

	// ClientIsFacilitator makes every paying client cover its own fees.
	ClientIsFacilitator bool `yaml:"client_is_facilitator"`
}

// ChainConfig configures one chain.
type ChainConfig struct {
	RPCURL string `yaml:"rpc_url" validate:"omitempty,url"`
	Asset  Asset  `yaml:"asset"`
}

// Asset is the one asset a chain accepts payment in.
type Asset struct {
	// Mint is the base58 mint, or the System Program id for native SOL.
	Mint                string `yaml:"mint" validate:"required,base58"`
	Decimals            uint8  `yaml:"decimals"`
	TokenExtensionsMint bool   `yaml:"token_extensions_mint"`
}

// GatewayConfig points at the JSON-RPC transaction gateway.
type GatewayConfig struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	APIKey string `yaml:"api_key"`
}

// Resource is one protected resource.
type Resource struct {
	// Path is the route the server protects, e.g. /latest_newsletter.
	Path string `yaml:"path" validate:"required,startswith=/"`

	// URL is the canonical resource URI echoed in requirements.
	URL string `yaml:"url" validate:"required,url"`

	// Price in whole units of the chain's asset, e.g. "0.10".
	Price string `yaml:"price" validate:"required"`

	Description       string            `yaml:"description"`
	MimeType          string            `yaml:"mime_type"`
	MaxTimeoutSeconds uint32            `yaml:"max_timeout_seconds" validate:"gt=0"`
	Title             string            `yaml:"title"`
	HeaderImage       string            `yaml:"header_image"`
	Types             []string          `yaml:"types" validate:"dive,oneof=http a2a"`
	Metadata          map[string]string `yaml:"metadata"`
}

// Default returns the configuration of the devnet newsletter server.
// It carries no payment addresses, so it does not validate on its own.
func Default() *Config {
	return &Config{
		ListenAddress:  ":8080",
		LogLevel:       "info",
		DefaultTimeout: 30 * time.Second,
		Chains: map[string]ChainConfig{
			types.NetworkSolanaDevnet.String(): {
				RPCURL: types.NetworkSolanaDevnet.DefaultRPCURL(),
				Asset: Asset{
					Mint:     DevnetUSDC,
					Decimals: 6,
				},
			},
		},
		Resources: []Resource{
			{
				Path:              "/latest_newsletter",
				URL:               "https://lagoon.markets/latest_newsletter",
				Price:             "0.10",
				Description:       "Read the latest on Solana developer tooling.",
				MimeType:          "application/json",
				MaxTimeoutSeconds: 100,
				Title:             "Latest Newsletter",
				HeaderImage:       "https://lagoon.markets/typewriter.jpg",
				Types:             []string{string(types.ResourceTypeHTTP), string(types.ResourceTypeA2A)},
			},
		},
	}
}

// Load reads the file named by X402_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return nil, configError(EnvConfigPath+" environment variable not set; "+
			"set it to the path of your x402 config file, or use --config flag", nil)
	}
	return LoadFile(path)
}

// LoadFile reads path over Default and validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configError("failed to read config file", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (*Config, error) {
	var probe struct {
		Chains map[string]yaml.Node `yaml:"chains"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, configError("failed to parse config", err)
	}

	cfg := Default()
	// A chains section replaces the default chain table instead of merging into it.
	if probe.Chains != nil {
		cfg.Chains = nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, configError("failed to parse config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and the rules spanning several fields.
func (c *Config) Validate() error {
	var errs []error

	if err := utils.ValidateStruct(c); err != nil {
		errs = append(errs, err)
	}

	if c.Payment.Facilitator == "" && !c.Payment.ClientIsFacilitator {
		errs = append(errs, fmt.Errorf("payment.facilitator is required unless payment.client_is_facilitator is true"))
	}

	for id, chain := range c.Chains {
		network, ok := types.ParseNetwork(id)
		if !ok || network.String() != id {
			errs = append(errs, fmt.Errorf("chains.%s is not a known lowercase chain id", id))
			continue
		}
		for _, r := range c.Resources {
			if _, err := utils.ToAtomicUnits(r.Price, chain.Asset.Decimals); err != nil {
				errs = append(errs, fmt.Errorf("resources[%s].price on %s: %w", r.Path, id, err))
			}
		}
	}

	seen := make(map[string]bool, len(c.Resources))
	for _, r := range c.Resources {
		if seen[r.Path] {
			errs = append(errs, fmt.Errorf("resources[%s] is declared twice", r.Path))
		}
		seen[r.Path] = true
	}

	if len(errs) > 0 {
		return configError("invalid configuration", errors.Join(errs...))
	}
	return nil
}

// FeePayer returns the address that pays the network fee for a request from
// clientAddress.
func (c *Config) FeePayer(clientAddress string) (string, error) {
	if c.Payment.ClientIsFacilitator {
		return clientAddress, nil
	}
	if c.Payment.Facilitator != "" {
		return c.Payment.Facilitator, nil
	}
	return "", configError("no facilitator configured and the client is not the facilitator", nil)
}

// DiscoveryFeePayer is the fee payer advertised to anonymous discovery
// queries: the facilitator, or empty when each client pays its own fees.
func (c *Config) DiscoveryFeePayer() string {
	if c.Payment.ClientIsFacilitator {
		return ""
	}
	return c.Payment.Facilitator
}

// Chain looks up a chain by its header value, ignoring case.
func (c *Config) Chain(id string) (types.Network, ChainConfig, bool) {
	network, ok := types.ParseNetwork(id)
	if !ok {
		return "", ChainConfig{}, false
	}
	chain, ok := c.Chains[network.String()]
	return network, chain, ok
}

// ChainIDs returns the configured chain ids, sorted.
func (c *Config) ChainIDs() []string {
	ids := make([]string, 0, len(c.Chains))
	for id := range c.Chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resource returns the resource protected at path.
func (c *Config) Resource(path string) (Resource, bool) {
	path = "/" + strings.TrimPrefix(path, "/")
	for _, r := range c.Resources {
		if r.Path == path {
			return r, true
		}
	}
	return Resource{}, false
}

// RPCURLFor returns the configured endpoint of network, or its public default.
func (c ChainConfig) RPCURLFor(network types.Network) string {
	if c.RPCURL != "" {
		return c.RPCURL
	}
	return network.DefaultRPCURL()
}

func configError(msg string, err error) error {
	return &types.X402Error{
		Kind:    types.KindUnsupportedConfig,
		Code:    types.ErrConfigError,
		Message: msg,
		Err:     err,
	}
}
