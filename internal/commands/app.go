package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bank_ledger/internal/cache"
	"bank_ledger/internal/config"
	"bank_ledger/internal/db"
	"bank_ledger/internal/directory"
	"bank_ledger/internal/ledger"
	"bank_ledger/internal/registry"
	"bank_ledger/internal/vault"
)

// App is the set of wired services one command invocation runs against.
type App struct {
	Config   *config.Config
	Banks    *directory.Directory
	Accounts *registry.Registry
	Vault    *vault.Vault
	Ledger   *ledger.Ledger
	Log      logrus.FieldLogger

	closers []func() error
}

// Build wires every component over an open store handle. rdb may be nil.
func Build(cfg *config.Config, gdb *gorm.DB, rdb redis.UniversalClient, log logrus.FieldLogger) *App {
	c := cache.New(rdb, cfg.CacheTTL)
	banks := directory.New(gdb, c, log)
	enroller := vault.Enroller{Cost: cfg.PINHashCost}
	accounts := registry.New(gdb, banks, enroller, registry.Options{
		AccountNumberAttempts: cfg.AccountNumberAttempts,
	}, log)
	limiter := cache.NewLimiter(rdb, "bank:pin_attempts", cfg.PINAttemptLimit, cfg.PINAttemptWindow)

	return &App{
		Config:   cfg,
		Banks:    banks,
		Accounts: accounts,
		Vault:    vault.New(accounts, enroller, limiter, log),
		Ledger: ledger.New(gdb, accounts, c, ledger.Options{
			Timeout:    cfg.LedgerTimeout,
			MaxRetries: cfg.LedgerMaxRetries,
		}, log),
		Log: log,
	}
}

// Open connects to MySQL and, when configured, Redis, then wires the App.
// The caller releases both with Close.
func Open(cfg *config.Config) (*App, error) {
	gdb, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}

	rdb := OpenRedis(cfg)
	app := Build(cfg, gdb, rdb, logrus.StandardLogger())
	app.closers = append(app.closers, func() error { return db.Close(gdb) })
	if rdb != nil {
		app.closers = append(app.closers, rdb.Close)
	}
	return app, nil
}

// OpenRedis returns a pinged client, or nil when Redis is not configured or
// unreachable. Everything that takes the client treats nil as "no cache".
func OpenRedis(cfg *config.Config) redis.UniversalClient {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logrus.WithField("error", err.Error()).Warn("Redis unavailable, running without cache")
		_ = client.Close()
		return nil
	}
	return client
}

// Close releases the store handle and Redis client opened by Open.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing app: %w", errors.Join(errs...))
	}
	return nil
}
