package migrations

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Migration is a single schema change.
type Migration interface {
	Up(grm *gorm.DB) error
	GetName() string
}

// AppliedMigration records a migration that has run.
type AppliedMigration struct {
	Name      string `gorm:"primaryKey;type:varchar"`
	CreatedAt time.Time
}

func (AppliedMigration) TableName() string {
	return "migrations"
}

// Migrator applies the registered migrations in order.
type Migrator struct {
	db         *gorm.DB
	logger     *zap.Logger
	migrations []Migration
}

// NewGorm opens a gorm handle on the Postgres DSN.
func NewGorm(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return db, nil
}

func NewMigrator(db *gorm.DB, l *zap.Logger) *Migrator {
	if l == nil {
		l = zap.NewNop()
	}
	return &Migrator{
		db:     db,
		logger: l,
		migrations: []Migration{
			&createPollingState{},
			&createContractEvents{},
			&createValidatorRewards{},
			&createRewardStrategyLocks{},
			&createRewardActions{},
		},
	}
}

// Names returns the registered migration names in apply order.
func (m *Migrator) Names() []string {
	names := make([]string, 0, len(m.migrations))
	for _, migration := range m.migrations {
		names = append(names, migration.GetName())
	}
	return names
}

// MigrateAll runs every migration that has not been recorded yet.
func (m *Migrator) MigrateAll() error {
	if err := m.db.AutoMigrate(&AppliedMigration{}); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	for _, migration := range m.migrations {
		name := migration.GetName()

		var applied AppliedMigration
		err := m.db.Where("name = ?", name).First(&applied).Error
		if err == nil {
			m.logger.Debug("migration already applied", zap.String("name", name))
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check migration %s: %w", name, err)
		}

		err = m.db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return tx.Create(&AppliedMigration{Name: name, CreatedAt: time.Now().UTC()}).Error
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		m.logger.Info("migration applied", zap.String("name", name))
	}
	return nil
}
