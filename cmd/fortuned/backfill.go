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
	"fortunebridge/internal/ingest"
	"fortunebridge/internal/model"
)

func runBackfill(cmd *cobra.Command, _ []string) error {
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

	kindFlag, _ := cmd.Flags().GetString("kind")
	var kind model.EventKind
	switch kindFlag {
	case "consult":
		kind = model.KindConsult
	case "minting":
		kind = model.KindMinting
	default:
		return fmt.Errorf("unknown event kind: %s", kindFlag)
	}

	fromBlock, _ := cmd.Flags().GetUint64("from")
	toBlock, _ := cmd.Flags().GetUint64("to")
	if fromBlock == 0 {
		return fmt.Errorf("from block is required")
	}
	if len(cfg.Networks) == 0 {
		return fmt.Errorf("no blockchain networks configured")
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

	engine, err := ingest.NewEngine(kind, ingest.Config{
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, docStore, logger)
	if err != nil {
		return err
	}
	engine.FromRegistry(registry)

	logger.Info("backfill start",
		zap.String("kind", kindFlag),
		zap.Uint64("from", fromBlock),
		zap.Uint64("to", toBlock),
		zap.Int("networks", len(registry.Networks())))

	engine.Backfill(ctx, fromBlock, toBlock)
	return nil
}
