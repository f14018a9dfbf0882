package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rewardLedger/internal/chain"
	"rewardLedger/internal/config"
	"rewardLedger/internal/indexer"
	"rewardLedger/internal/metrics"
	"rewardLedger/internal/price"
	"rewardLedger/internal/reward"
	"rewardLedger/internal/storage"
	"rewardLedger/internal/storage/memory"
	"rewardLedger/internal/storage/postgres"
)

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Store, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, err
	}
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory store, state is lost on exit")
		return memory.NewStore(), nil
	default:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return store, nil
	}
}

func buildSyncer(cfg config.Config, client *chain.Client, store storage.CursorStore, rec *metrics.Recorder, logger *zap.Logger) (*indexer.Syncer, error) {
	if err := cfg.ValidateEvents(); err != nil {
		return nil, err
	}
	address, err := indexer.ParseAddress(cfg.ContractAddress)
	if err != nil {
		return nil, err
	}
	topic0, err := indexer.ParseTopic0(cfg.Topic0)
	if err != nil {
		return nil, err
	}
	return indexer.NewSyncer(indexer.SyncConfig{
		Address:       address,
		Topic0:        topic0,
		StartBlock:    cfg.StartBlock,
		MaxBlockRange: cfg.MaxBlockRange,
		Retry: indexer.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			Backoff:    cfg.RetryBackoff,
			MaxBackoff: cfg.PollInterval,
		},
	}, client, store, rec, logger)
}

func buildReconciler(cfg config.Config, client *chain.Client, store storage.RewardStore, rec *metrics.Recorder, logger *zap.Logger) (*reward.Reconciler, error) {
	if err := cfg.ValidateRewards(); err != nil {
		return nil, err
	}
	strategy, err := reward.ParseStrategy(cfg.RewardStrategy)
	if err != nil {
		return nil, err
	}
	operator, err := indexer.ParseAddress(cfg.OperatorAddress)
	if err != nil {
		return nil, fmt.Errorf("operator-address: %w", err)
	}

	var addrs chain.ContractAddresses
	for _, field := range []struct {
		name  string
		value string
		dst   *common.Address
	}{
		{"distributor-address", cfg.DistributorAddress, &addrs.Distributor},
		{"epoch-feeder-address", cfg.EpochFeederAddress, &addrs.EpochFeeder},
		{"contribution-feed-address", cfg.ContributionFeedAddress, &addrs.ContributionFeed},
		{"validator-manager-address", cfg.ValidatorManagerAddress, &addrs.ValidatorManager},
		{"emission-address", cfg.EmissionAddress, &addrs.Emission},
	} {
		parsed, err := indexer.ParseOptionalAddress(field.value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field.name, err)
		}
		*field.dst = parsed
	}

	return reward.NewReconciler(reward.Config{
		Operator:         operator,
		Strategy:         strategy,
		StartEpoch:       cfg.RewardStartEpoch,
		MaxEpochsPerPass: cfg.MaxEpochsPerPass,
	}, chain.NewRewardContracts(client, addrs), store, rec, logger)
}

// buildPrice wires the price service, sharing the quote through Redis when
// an address is configured. The returned func releases the Redis client.
func buildPrice(ctx context.Context, cfg config.Config, logger *zap.Logger) (*price.Service, func(), error) {
	var cache price.Cache = price.NewMemoryCache()
	closeFn := func() {}

	if cfg.RedisAddr != "" {
		rds := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rds.Ping(ctx).Err(); err != nil {
			_ = rds.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		logger.Info("price cache on redis", zap.String("addr", cfg.RedisAddr))
		cache = price.NewRedisCache(rds, cfg.CoingeckoCoinID)
		closeFn = func() { _ = rds.Close() }
	}

	client := price.NewCoingeckoClient(cfg.CoingeckoURL, cfg.CoingeckoAPIKey, logger)
	return price.NewService(price.Config{CoinID: cfg.CoingeckoCoinID}, client, cache, logger), closeFn, nil
}
