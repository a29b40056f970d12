package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a ledger entry from its owner's point of view.
type TransactionType string

const (
	Debit  TransactionType = "DEBIT"
	Credit TransactionType = "CREDIT"
)

// TransactionRecord Model, append-only
type TransactionRecord struct {
	TransactionID         uint            `gorm:"primaryKey;column:transaction_id" json:"transaction_id"` // Primary key
	UserID                uint            `gorm:"index;not null" json:"user_id"`                          // Whose ledger this entry belongs to
	Reference             string          `gorm:"index;size:36;not null" json:"reference"`                // Shared by both legs of a transfer
	Timestamp             time.Time       `gorm:"index;not null" json:"timestamp"`                        // Commit time
	Amount                decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`              // Always a positive magnitude
	TransactionType       TransactionType `gorm:"size:8;not null" json:"transaction_type"`                // DEBIT or CREDIT
	Description           string          `gorm:"size:255" json:"description"`                            // Free text
	SenderAccountNumber   string          `gorm:"size:10" json:"sender_account_number"`                   // Empty for deposits
	ReceiverAccountNumber string          `gorm:"size:10" json:"receiver_account_number"`                 // Empty for withdrawals
	SenderBankID          *uint           `json:"sender_bank_id"`                                         // Nil for deposits
	ReceiverBankID        *uint           `json:"receiver_bank_id"`                                       // Nil for withdrawals
}

// TableName maps TransactionRecord to the TransactionsHistory table
func (TransactionRecord) TableName() string {
	return "transactions_history"
}

// Signed returns the amount as it affects the owner's balance.
func (t TransactionRecord) Signed() decimal.Decimal {
	if t.TransactionType == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}
