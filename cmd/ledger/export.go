package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rewardLedger/internal/storage"
)

func runExportEvents(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	out, _ := cmd.Flags().GetString("out")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	if out == "" {
		return fmt.Errorf("out path is required")
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sink, err := storage.CreateJsonlFile(out)
	if err != nil {
		return err
	}
	written, err := exportEvents(ctx, store, sink, batchSize)
	if cerr := sink.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	logger.Info("export complete", zap.String("out", out), zap.Int("events", written))
	return nil
}

func exportEvents(ctx context.Context, store storage.EventStore, sink *storage.JsonlSink, batchSize int) (int, error) {
	for offset := 0; ; offset += batchSize {
		if err := ctx.Err(); err != nil {
			return sink.Written(), err
		}
		events, _, err := store.ListEvents(ctx, offset, batchSize)
		if err != nil {
			return sink.Written(), fmt.Errorf("list events at %d: %w", offset, err)
		}
		if err := sink.Write(events); err != nil {
			return sink.Written(), err
		}
		if len(events) < batchSize {
			return sink.Written(), nil
		}
	}
}
