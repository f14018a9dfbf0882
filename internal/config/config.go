package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL      string
	StoreDriver string
	PGDSN       string

	ContractAddress string
	Topic0          string
	StartBlock      uint64
	MaxBlockRange   uint64
	PollInterval    time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration

	OperatorAddress  string
	RewardStrategy   string
	RewardStartEpoch uint64
	MaxEpochsPerPass int
	RewardInterval   time.Duration

	DistributorAddress      string
	EpochFeederAddress      string
	ContributionFeedAddress string
	ValidatorManagerAddress string
	EmissionAddress         string

	Listen          string
	CORSOrigins     []string
	CoingeckoURL    string
	CoingeckoAPIKey string
	CoingeckoCoinID string
	RedisAddr       string
	TokenDecimals   int32

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("store-driver", StoreDriverPostgres)
	v.SetDefault("poll-interval", 15*time.Second)
	v.SetDefault("reward-interval", 60*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("reward-strategy", "epoch")
	v.SetDefault("max-epochs-per-pass", 100)
	v.SetDefault("listen", ":8080")
	v.SetDefault("coingecko-url", "https://api.coingecko.com/api/v3")
	v.SetDefault("coingecko-coin-id", "mitosis")
	v.SetDefault("token-decimals", 18)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:      v.GetString("rpc"),
		StoreDriver: strings.ToLower(v.GetString("store-driver")),
		PGDSN:       v.GetString("pg-dsn"),

		ContractAddress: v.GetString("contract-address"),
		Topic0:          v.GetString("topic0"),
		StartBlock:      v.GetUint64("start-block"),
		MaxBlockRange:   v.GetUint64("max-block-range"),
		PollInterval:    v.GetDuration("poll-interval"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),

		OperatorAddress:  v.GetString("operator-address"),
		RewardStrategy:   strings.ToLower(v.GetString("reward-strategy")),
		RewardStartEpoch: v.GetUint64("reward-start-epoch"),
		MaxEpochsPerPass: v.GetInt("max-epochs-per-pass"),
		RewardInterval:   v.GetDuration("reward-interval"),

		DistributorAddress:      v.GetString("distributor-address"),
		EpochFeederAddress:      v.GetString("epoch-feeder-address"),
		ContributionFeedAddress: v.GetString("contribution-feed-address"),
		ValidatorManagerAddress: v.GetString("validator-manager-address"),
		EmissionAddress:         v.GetString("emission-address"),

		Listen:          v.GetString("listen"),
		CORSOrigins:     getStringSlice(v, "cors-origins"),
		CoingeckoURL:    v.GetString("coingecko-url"),
		CoingeckoAPIKey: v.GetString("coingecko-api-key"),
		CoingeckoCoinID: v.GetString("coingecko-coin-id"),
		RedisAddr:       v.GetString("redis-addr"),
		TokenDecimals:   v.GetInt32("token-decimals"),

		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the settings shared by every command that talks to the
// chain and the store.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	return c.ValidateStore()
}

// ValidateStore checks only the storage settings.
func (c Config) ValidateStore() error {
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for store-driver %s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store-driver %q", c.StoreDriver)
	}
	return nil
}

// ValidateEvents checks the event syncer settings.
func (c Config) ValidateEvents() error {
	if c.ContractAddress == "" {
		return fmt.Errorf("contract-address is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	return nil
}

// ValidateRewards checks the reconciler settings for the configured strategy.
func (c Config) ValidateRewards() error {
	if c.OperatorAddress == "" {
		return fmt.Errorf("operator-address is required")
	}
	if c.RewardInterval <= 0 {
		return fmt.Errorf("reward-interval must be positive")
	}
	if c.DistributorAddress == "" {
		return fmt.Errorf("distributor-address is required")
	}
	switch c.RewardStrategy {
	case "diff":
	case "", "epoch":
		missing := make([]string, 0, 4)
		for key, value := range map[string]string{
			"epoch-feeder-address":      c.EpochFeederAddress,
			"contribution-feed-address": c.ContributionFeedAddress,
			"validator-manager-address": c.ValidatorManagerAddress,
			"emission-address":          c.EmissionAddress,
		} {
			if value == "" {
				missing = append(missing, key)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("epoch strategy requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unknown reward-strategy %q", c.RewardStrategy)
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
