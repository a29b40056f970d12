package db

import (
	"fmt" // Error wrapping
	"os"  // Reading the seed file

	"bank_ledger/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logrus for structured logging
	"gopkg.in/yaml.v3"           // Bank seed format
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/clause"        // ON CONFLICT support
)

// Migrate performs automatic migration for the ledger schema
func Migrate(gdb *gorm.DB) error {
	// AutoMigrate will create tables, missing constraints, columns and indexes
	err := gdb.AutoMigrate(&domain.Bank{}, &domain.User{}, &domain.Wallet{}, &domain.TransactionRecord{})
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logrus.Info("Migration completed.")
	return nil
}

// BankSeed is the on-disk shape of a bank directory snapshot.
type BankSeed struct {
	Banks []domain.Bank `yaml:"banks"`
}

// LoadBankSeed reads a YAML bank list.
func LoadBankSeed(path string) ([]domain.Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bank seed: %w", err)
	}
	var seed BankSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parsing bank seed: %w", err)
	}
	return seed.Banks, nil
}

// SeedBanks inserts banks by code, leaving existing codes untouched.
func SeedBanks(gdb *gorm.DB, banks []domain.Bank) error {
	if len(banks) == 0 {
		return nil
	}
	rows := make([]domain.Bank, len(banks))
	for i, b := range banks {
		rows[i] = domain.Bank{Code: b.Code, Name: b.Name} // Let the store assign bank_id
	}
	err := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoNothing: true,
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seeding banks: %w", err)
	}
	logrus.WithField("count", len(rows)).Info("Bank directory seeded.")
	return nil
}
