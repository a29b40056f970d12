package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// WalletType is the card scheme a wallet is issued under.
type WalletType string

const (
	WalletVisa       WalletType = "VISA"
	WalletVerve      WalletType = "Verve"
	WalletMasterCard WalletType = "MasterCard"
)

// DefaultWalletType is assigned when registration does not pick one.
const DefaultWalletType = WalletVerve

// ParseWalletType accepts a wallet type case-insensitively. Empty means the default.
func ParseWalletType(s string) (WalletType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultWalletType, nil
	case "visa":
		return WalletVisa, nil
	case "verve":
		return WalletVerve, nil
	case "mastercard":
		return WalletMasterCard, nil
	}
	return "", fmt.Errorf("%w: unknown wallet type %q", ErrValidation, s)
}

// Wallet Model
type Wallet struct {
	WalletID uint            `gorm:"primaryKey;column:wallet_id"`           // Primary key
	UserID   uint            `gorm:"uniqueIndex;not null"`                  // Owning user, one wallet per user
	BankID   uint            `gorm:"index;not null"`                        // Issuing bank
	Balance  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0"` // Never negative after a debit
	Type     WalletType      `gorm:"size:16;not null;default:Verve"`        // VISA, Verve or MasterCard
}

// TableName maps Wallet to the Wallets table
func (Wallet) TableName() string {
	return "wallets"
}
