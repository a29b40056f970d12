package domain

// Bank Model, populated by the bank directory and read-only for the ledger
type Bank struct {
	BankID uint   `gorm:"primaryKey;column:bank_id" json:"bank_id" yaml:"-"`    // Primary key
	Code   string `gorm:"uniqueIndex;size:16;not null" json:"code" yaml:"code"` // Bank code (e.g. "044")
	Name   string `gorm:"size:128;not null" json:"name" yaml:"name"`            // Display name
}

// TableName maps Bank to the Banks table
func (Bank) TableName() string {
	return "banks"
}
