package main

import (
	"context" // Context for the bank sync

	"bank_ledger/internal/cache"     // Bank list cache
	"bank_ledger/internal/commands"  // Logging and Redis setup
	"bank_ledger/internal/config"    // Configuration
	"bank_ledger/internal/db"        // Database
	"bank_ledger/internal/directory" // Bank directory

	"github.com/sirupsen/logrus" // Logrus for structured logging
)

// Main entry point for migration
func main() {
	cfg := config.LoadConfig() // Load configuration
	commands.SetupLogging(cfg)

	gdb, err := db.Open(cfg)
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	defer db.Close(gdb)

	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("migration failed: %v", err)
	}
	logrus.Info("schema migrated")

	// Bank rows come from the directory seed file; without one the table is left as is.
	if cfg.BanksFile == "" {
		logrus.Warn("BANKS_FILE not set, skipping bank directory seed")
		return
	}
	banks, err := db.LoadBankSeed(cfg.BanksFile)
	if err != nil {
		logrus.Fatalf("loading bank seed: %v", err)
	}
	// Sync also drops the cached bank list so bankctl sees the new rows at once.
	rdb := commands.OpenRedis(cfg)
	if rdb != nil {
		defer rdb.Close()
	}
	dir := directory.New(gdb, cache.New(rdb, cfg.CacheTTL), logrus.StandardLogger())
	if err := dir.Sync(context.Background(), banks); err != nil {
		logrus.Fatalf("seeding banks: %v", err)
	}
	logrus.WithField("banks", len(banks)).Info("bank directory seeded")
}
