package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fortunebridge/internal/chain"
	"fortunebridge/internal/config"
	"fortunebridge/internal/fortune"
	"fortunebridge/internal/ingest"
	"fortunebridge/internal/ipfs"
	"fortunebridge/internal/mint"
	"fortunebridge/internal/model"
	"fortunebridge/internal/server"
	"fortunebridge/internal/store"
	"fortunebridge/internal/store/memory"
	"fortunebridge/internal/store/postgres"
	"fortunebridge/internal/webhook"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(cfg.Networks) == 0 {
		logger.Warn("no blockchain networks configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docStore, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := chain.NewRegistry(ctx, cfg.Networks, logger)
	defer registry.Close()

	engineCfg := ingest.Config{
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		PollInterval: cfg.PollInterval,
	}

	consultEngine, err := ingest.NewEngine(model.KindConsult, engineCfg, docStore, logger)
	if err != nil {
		return err
	}
	mintingEngine, err := ingest.NewEngine(model.KindMinting, engineCfg, docStore, logger)
	if err != nil {
		return err
	}
	consultEngine.FromRegistry(registry)
	mintingEngine.FromRegistry(registry)

	uploader := ipfs.NewClient(ctx, ipfs.Config{
		APIKey:    cfg.IPFSAPIKey,
		APISecret: cfg.IPFSAPISecret,
		Gateway:   cfg.IPFSGateway,
	}, logger)

	var minter fortune.Minter
	if cfg.MinterPrivateKey != "" {
		pipeline, err := mint.NewPipeline(
			mint.Config{
				PrivateKey:   cfg.MinterPrivateKey,
				Gateway:      cfg.IPFSGateway,
				AssetBaseURL: cfg.AssetBaseURL,
			},
			mint.RegistryNetworks{Registry: registry},
			uploader,
			docStore,
			docStore,
			logger,
		)
		if err != nil {
			return fmt.Errorf("build mint pipeline: %w", err)
		}
		minter = pipeline
	} else {
		logger.Warn("minter private key not configured, mint-nft endpoint disabled")
		minter = disabledMinter{}
	}

	fortuneSvc := fortune.NewService(
		fortune.NewClient(cfg.FortuneAPIURL, cfg.FortuneAPIKey, logger),
		docStore,
		minter,
		logger,
	)

	webhookSvc := webhook.NewService(
		docStore,
		[]webhook.Backfiller{consultEngine, mintingEngine},
		cfg.BlockMargin,
		logger,
	)

	consultEngine.Start(ctx)
	mintingEngine.Start(ctx)

	httpServer := server.New(
		cfg.HTTPAddr,
		registry,
		consultEngine,
		mintingEngine,
		docStore,
		fortuneSvc,
		webhookSvc,
		logger,
	)

	logger.Info("fortunebridge start",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.Int("networks", len(registry.Networks())),
		zap.Bool("postgres", cfg.PGDSN != ""))

	return httpServer.Run(ctx)
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, func(), error) {
	if cfg.PGDSN == "" {
		logger.Warn("no postgres dsn configured, using in-memory store")
		return memory.New(), func() {}, nil
	}

	pg, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pg.Init(ctx); err != nil {
		pg.Close()
		return nil, nil, fmt.Errorf("init schema: %w", err)
	}
	return pg, pg.Close, nil
}

type disabledMinter struct{}

func (disabledMinter) MintFromConsult(context.Context, string, string) (model.MintResult, error) {
	return model.MintResult{}, fmt.Errorf("minting is not configured")
}
