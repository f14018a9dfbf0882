package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rewardLedger/internal/config"
	"rewardLedger/internal/storage/postgres/migrations"
)

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.StoreDriver != config.StoreDriverPostgres {
		return fmt.Errorf("migrate requires store-driver %s", config.StoreDriverPostgres)
	}
	if err := cfg.ValidateStore(); err != nil {
		return err
	}

	db, err := migrations.NewGorm(cfg.PGDSN)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("gorm sql handle: %w", err)
	}
	defer sqlDB.Close()

	migrator := migrations.NewMigrator(db, logger)
	logger.Info("migrate start", zap.String("dsn", redactDSN(cfg.PGDSN)), zap.Strings("migrations", migrator.Names()))
	if err := migrator.MigrateAll(); err != nil {
		return err
	}
	logger.Info("migrate complete")
	return nil
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
