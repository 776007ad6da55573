package database

import (
	"fmt"
	"sync"

	"github.com/synaptica-ai/mlprofile/pkg/common/config"
	"github.com/synaptica-ai/mlprofile/pkg/common/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
	dbErr  error
)

// DSN renders the Postgres connection string for cfg.
func DSN(cfg *config.Config) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.PostgresHost,
		cfg.PostgresUser,
		cfg.PostgresPassword,
		cfg.PostgresDB,
		cfg.PostgresPort,
		cfg.PostgresSSLMode,
	)
}

// GetPostgres opens the shared connection once; later calls return the
// same handle and the same error.
func GetPostgres(cfg *config.Config) (*gorm.DB, error) {
	dbOnce.Do(func() {
		db, dbErr = gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{})
		if dbErr != nil {
			logger.Log.WithError(dbErr).Error("Failed to connect to PostgreSQL")
			return
		}
		logger.Log.WithField("database", cfg.PostgresDB).Info("Connected to PostgreSQL")
	})
	return db, dbErr
}

// Ping reports whether the shared connection is usable.
func Ping() error {
	if db == nil {
		return fmt.Errorf("postgres not connected")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func ClosePostgres() error {
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}
