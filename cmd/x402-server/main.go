// x402-server serves payable resources over HTTP. Requests without a payment
// are answered with a 402 challenge naming the Solana transfer that unlocks
// the resource.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/vitwit/x402pay/config"
	"github.com/vitwit/x402pay/logger"
	"github.com/vitwit/x402pay/server"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		configPath string
		listen     string
		logLevel   string
	)

	flagSet := pflag.NewFlagSet("x402-server", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (default: $"+config.EnvConfigPath+")")
	flagSet.StringVar(&listen, "listen", "", "override listen_address")
	flagSet.StringVar(&logLevel, "log-level", "", "override log_level")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.ListenAddress = listen
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	log := logger.NewZapLogger(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	srv, err := server.New(cfg, server.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting x402 server", map[string]any{
		"address":   cfg.ListenAddress,
		"chains":    cfg.ChainIDs(),
		"resources": len(cfg.Resources),
		"metrics":   cfg.EnableMetrics,
	})
	return srv.Run(ctx)
}
