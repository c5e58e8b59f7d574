// x402-client fetches a payable resource, paying the 402 challenge with a
// Solana keypair, or resolves an x402://discover/ URI.
//
//	x402-client --keypair ~/.config/solana/id.json https://lagoon.markets/latest_newsletter
//	x402-client --discover x402://discover/https://lagoon.markets/discover
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/pflag"

	"github.com/vitwit/x402pay/clients"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/payer"
	"github.com/vitwit/x402pay/store"
	"github.com/vitwit/x402pay/types"
	"github.com/vitwit/x402pay/utils"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		keypairPath string
		chain       string
		rpcURL      string
		discoverURI string
		logLevel    string
		timeout     time.Duration
	)

	flagSet := pflag.NewFlagSet("x402-client", pflag.ContinueOnError)
	flagSet.StringVar(&keypairPath, "keypair", "", "path to a solana-keygen JSON keypair file")
	flagSet.StringVar(&chain, "chain", types.NetworkSolanaDevnet.String(), "chain id sent as X402-Chain")
	flagSet.StringVar(&rpcURL, "rpc-url", "", "RPC endpoint (default: the chain's public endpoint)")
	flagSet.StringVar(&discoverURI, "discover", "", "resolve an x402://discover/ URI instead of fetching")
	flagSet.StringVar(&logLevel, "log-level", "warn", "debug, info, warn or error")
	flagSet.DurationVar(&timeout, "timeout", 30*time.Second, "timeout of each request")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	network, ok := types.ParseNetwork(chain)
	if !ok {
		return fmt.Errorf("unknown chain %q", chain)
	}

	key, err := loadKey(keypairPath, discoverURI != "")
	if err != nil {
		return err
	}

	ledger, err := clients.NewSolanaClient(network, rpcURL)
	if err != nil {
		return err
	}
	defer ledger.Close()

	log := logger.NewZapLogger(logLevel)
	defer func() { _ = log.Sync() }()

	client := payer.New(key, ledger,
		payer.WithTimeout(timeout),
		payer.WithLogger(log),
		payer.WithStore(store.New(store.NewMemoryKV())),
	)

	ctx := context.Background()

	if discoverURI != "" {
		out, err := client.Discover(ctx, discoverURI)
		if err != nil {
			return err
		}
		b, err := utils.NormalizeJSON(out)
		if err != nil {
			return err
		}
		_, err = fmt.Println(string(b))
		return err
	}

	rest := flagSet.Args()
	if len(rest) != 1 {
		return fmt.Errorf("expected exactly one resource URL, got %d", len(rest))
	}

	resp, err := client.Fetch(ctx, rest[0])
	if err != nil {
		return err
	}
	if resp.Payment != "" {
		req := resp.Requirement
		amount, err := req.Amount()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "paid %s of %s on %s\n", utils.FormatAtomicUnits(amount, req.Extra.Decimals), req.Asset, network)
	}
	fmt.Fprintf(os.Stderr, "status %d\n", resp.StatusCode)
	_, err = os.Stdout.Write(resp.Body)
	return err
}

// loadKey reads the payer keypair. Discovery signs nothing, so without a
// keypair it runs under a throwaway identity.
func loadKey(path string, discover bool) (solana.PrivateKey, error) {
	if path == "" {
		if !discover {
			return nil, fmt.Errorf("--keypair is required")
		}
		return solana.NewRandomPrivateKey()
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair: %w", err)
	}
	return key, nil
}
