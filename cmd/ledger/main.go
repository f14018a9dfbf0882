package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "ledger",
		Short:        "Validator reward ledger and contract event syncer",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path")
	pf.String("rpc", "", "EVM RPC URL")
	pf.String("store-driver", "postgres", "storage backend (postgres, memory)")
	pf.String("pg-dsn", "", "Postgres DSN")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")

	pf.String("contract-address", "", "contract whose logs are synced")
	pf.String("topic0", "", "optional topic0 filter")
	pf.Uint64("start-block", 0, "first block to sync when no cursor exists")
	pf.Uint64("max-block-range", 0, "max blocks per getLogs query, 0 for unbounded")
	pf.Duration("poll-interval", 15*time.Second, "event syncer interval")
	pf.Int("max-retries", 5, "maximum retry attempts per RPC call")
	pf.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")

	pf.String("operator-address", "", "validator operator address")
	pf.String("reward-strategy", "epoch", "reward strategy (epoch, diff)")
	pf.Uint64("reward-start-epoch", 0, "first epoch computed for an empty ledger")
	pf.Int("max-epochs-per-pass", 100, "maximum epochs appended per pass")
	pf.Duration("reward-interval", 60*time.Second, "reward reconciler interval")
	pf.String("distributor-address", "", "reward distributor contract")
	pf.String("epoch-feeder-address", "", "epoch feeder contract")
	pf.String("contribution-feed-address", "", "validator contribution feed contract")
	pf.String("validator-manager-address", "", "validator manager contract")
	pf.String("emission-address", "", "validator emission contract")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the event syncer, the reward reconciler and the HTTP API",
		RunE:  runServe,
	}
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().StringSlice("cors-origins", nil, "allowed CORS origins (comma-separated)")
	serveCmd.Flags().String("coingecko-url", "https://api.coingecko.com/api/v3", "Coingecko API base URL")
	serveCmd.Flags().String("coingecko-api-key", "", "Coingecko API key")
	serveCmd.Flags().String("coingecko-coin-id", "mitosis", "Coingecko coin id")
	serveCmd.Flags().String("redis-addr", "", "Redis address for the shared price cache")
	serveCmd.Flags().Int32("token-decimals", 18, "reward token decimals")
	root.AddCommand(serveCmd)

	root.AddCommand(&cobra.Command{
		Use:   "sync-events",
		Short: "Run a single event syncer pass",
		RunE:  runSyncEvents,
	})

	root.AddCommand(&cobra.Command{
		Use:   "reconcile-rewards",
		Short: "Run a single reward reconciliation pass",
		RunE:  runReconcileRewards,
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres schema migrations",
		RunE:  runMigrate,
	})

	exportCmd := &cobra.Command{
		Use:   "export-events",
		Short: "Export stored contract events as JSONL",
		RunE:  runExportEvents,
	}
	exportCmd.Flags().String("out", "./data/events.jsonl", "output JSONL path")
	exportCmd.Flags().Int("batch-size", 500, "rows read per page")
	root.AddCommand(exportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
