package db

import (
	"context" // Context for ping with timeout
	"fmt"     // Error wrapping
	"time"    // Retry backoff

	"bank_ledger/internal/config" // Configuration

	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/logger"        // GORM logger levels
)

const connectAttempts = 5

// Open connects to MySQL, retrying while the server comes up, and applies pool limits.
// The returned handle is owned by the caller and released with Close.
func Open(cfg *config.Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{TranslateError: true}
	if cfg.IsProd {
		gcfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	var (
		gdb *gorm.DB
		err error
	)
	for i := 0; i < connectAttempts; i++ {
		gdb, err = gorm.Open(mysql.Open(cfg.DSN()), gcfg)
		if err == nil {
			if err = ping(gdb); err == nil {
				break
			}
		}
		logrus.WithFields(logrus.Fields{
			"attempt": i + 1,           // Current attempt
			"of":      connectAttempts, // Attempt budget
			"error":   err.Error(),     // Last error
		}).Warn("waiting for database")
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("could not reach database after %d attempts: %w", connectAttempts, err)
	}

	if err := Configure(gdb, cfg); err != nil {
		return nil, err
	}
	logrus.WithField("host", cfg.DBHost).Info("database connection established")
	return gdb, nil
}

// Configure applies the pool limits from cfg to an open handle.
func Configure(gdb *gorm.DB, cfg *config.Config) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("accessing sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	return nil
}

// Close releases the pool behind gdb.
func Close(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ping(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
