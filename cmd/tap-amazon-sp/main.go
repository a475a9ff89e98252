package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	tapsync "github.com/datastitch/tap-amazon-sp/internal/sync"
	"github.com/datastitch/tap-amazon-sp/pkg/auth"
	"github.com/datastitch/tap-amazon-sp/pkg/clients"
	"github.com/datastitch/tap-amazon-sp/pkg/config"
	"github.com/datastitch/tap-amazon-sp/pkg/logger"
	"github.com/datastitch/tap-amazon-sp/pkg/singer"
	"github.com/datastitch/tap-amazon-sp/pkg/spapi"
	"github.com/datastitch/tap-amazon-sp/pkg/streams"
)

var version = "0.2.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var configFile, catalogFile, stateFile, logLevel string

	root := &cobra.Command{
		Use:   "tap-amazon-sp",
		Short: "Singer tap for the Amazon Selling Partner API",
		Long: `tap-amazon-sp extracts orders, order items, and sales metrics from the
Amazon Selling Partner API and emits them as Singer messages on stdout.
Run with --discover to produce a catalog, or with a config file to sync.`,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to the JSON config file")
	root.PersistentFlags().StringVar(&catalogFile, "catalog", "", "path to a catalog file selecting streams and fields")
	root.PersistentFlags().StringVar(&stateFile, "state", "", "path to a state file from a prior run")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("tap-amazon-sp v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "discover",
		Short: "Print the stream catalog as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(configFile, logLevel)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Sync all selected streams and emit Singer messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), configFile, catalogFile, stateFile, logLevel)
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initLogger(level string) error {
	return logger.Init(logger.Config{Level: level, Encoding: "json"})
}

func runDiscover(configFile, logLevel string) error {
	if err := initLogger(logLevel); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	// Discovery never talks to the API; the client is wiring only.
	tapStreams := streams.BuildAll(spapi.NewClient(cfg.Endpoint(), nil), cfg)
	return tapsync.Discover(tapStreams, os.Stdout)
}

func runSync(ctx context.Context, configFile, catalogFile, stateFile, logLevel string) error {
	if err := initLogger(logLevel); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	catalog, err := singer.LoadCatalog(catalogFile)
	if err != nil {
		return err
	}
	state, err := singer.LoadState(stateFile)
	if err != nil {
		return err
	}

	creds := auth.FromConfig(cfg)
	signer, err := auth.NewSigner(ctx, creds, cfg.Region())
	if err != nil {
		return err
	}
	authorizer := auth.NewAuthorizer(auth.NewTokenProvider(creds), signer)

	executor := clients.NewExecutor(authorizer, spapi.Budgets(), clients.DefaultExecutorConfig())
	client := spapi.NewClient(cfg.Endpoint(), executor)

	tapStreams := streams.BuildAll(client, cfg)
	orchestrator := tapsync.New(cfg, tapStreams, catalog, state, singer.NewWriter(os.Stdout))

	logger.Get().Info("starting sync",
		zap.String("endpoint", cfg.Endpoint()),
		zap.String("region", cfg.Region()),
		zap.Strings("marketplaces", spapi.MarketplaceIDs(cfg.ResolvedMarketplaces())))

	return orchestrator.Run(ctx)
}
