package domain

import "github.com/shopspring/decimal"

// AccountView is the denormalized User + Wallet + Bank view returned by the registry.
type AccountView struct {
	UserID        uint            `json:"user_id"`
	Username      string          `json:"username"`
	AccountNumber string          `json:"account_number"`
	WalletID      uint            `json:"wallet_id"`
	WalletType    WalletType      `json:"wallet_type"`
	Balance       decimal.Decimal `json:"balance"`
	BankID        uint            `json:"bank_id"`
	BankCode      string          `json:"bank_code"`
	BankName      string          `json:"bank_name"`
}
