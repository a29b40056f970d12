package main

import (
	"os"

	"bank_ledger/internal/commands" // Command tree
	"bank_ledger/internal/config"   // Configuration
)

// Main entry point for the bankctl CLI
func main() {
	cfg := config.LoadConfig() // Load configuration
	commands.SetupLogging(cfg) // Logger format and level

	rootCmd := commands.NewRootCommand(func() (*commands.App, error) {
		return commands.Open(cfg)
	})
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
