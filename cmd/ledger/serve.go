package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rewardLedger/internal/api"
	"rewardLedger/internal/chain"
	"rewardLedger/internal/indexer"
	"rewardLedger/internal/metrics"
	"rewardLedger/internal/reward"
	"rewardLedger/internal/scheduler"
)

const shutdownGrace = 30 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	rec := metrics.NewRecorder()

	syncer, err := buildSyncer(cfg, chainClient, store, rec, logger)
	if err != nil {
		return err
	}
	reconciler, err := buildReconciler(cfg, chainClient, store, rec, logger)
	if err != nil {
		return err
	}
	priceService, closePrice, err := buildPrice(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePrice()

	events := scheduler.New[indexer.SyncResult](syncer, scheduler.Config{Interval: cfg.PollInterval}, logger, rec)
	rewards := scheduler.New[reward.Result](reconciler, scheduler.Config{Interval: cfg.RewardInterval}, logger, rec)

	server, err := api.NewServer(api.Config{
		Listen:      cfg.Listen,
		CORSOrigins: cfg.CORSOrigins,
	}, api.Deps{
		Rewards:       rewards,
		Events:        events,
		Store:         store,
		Price:         priceService,
		Metrics:       rec.Handler(),
		Operator:      reconciler.Operator(),
		TokenDecimals: cfg.TokenDecimals,
	}, logger)
	if err != nil {
		return err
	}

	logger.Info("ledger start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("store", cfg.StoreDriver),
		zap.String("contract", cfg.ContractAddress),
		zap.String("operator", reconciler.Operator()),
		zap.String("strategy", cfg.RewardStrategy),
		zap.String("listen", cfg.Listen),
	)

	// A failing first pass keeps the process from coming up half-initialized.
	if err := events.Start(ctx); err != nil {
		return err
	}
	if err := rewards.Start(ctx); err != nil {
		if drainErr := drain(events); drainErr != nil {
			logger.Warn("drain after failed start", zap.Error(drainErr))
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		if err := drain(events, rewards); err != nil {
			return err
		}
		logger.Info("schedulers drained")
		return nil
	})

	return g.Wait()
}

type drainable interface {
	Stop()
	Wait(ctx context.Context) error
}

// drain stops every scheduler and then waits, within shutdownGrace, for
// in-flight passes so the store outlives them.
func drain(loops ...drainable) error {
	for _, l := range loops {
		l.Stop()
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	for _, l := range loops {
		if err := l.Wait(waitCtx); err != nil {
			return fmt.Errorf("wait for scheduler: %w", err)
		}
	}
	return nil
}
