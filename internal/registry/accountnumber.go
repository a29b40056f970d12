package registry

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"bank_ledger/internal/domain"
)

// AccountNumberLength is the fixed width of every account number.
const AccountNumberLength = 10

var ten = big.NewInt(10)

// GenerateAccountNumber returns AccountNumberLength random decimal digits.
func GenerateAccountNumber() (string, error) {
	buf := make([]byte, AccountNumberLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generating account number: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}

// ValidateAccountNumber checks the fixed-width numeric shape.
func ValidateAccountNumber(s string) error {
	if !isAccountNumber(s) {
		return fmt.Errorf("%w: account number must be %d digits", domain.ErrValidation, AccountNumberLength)
	}
	return nil
}

func isAccountNumber(s string) bool {
	return len(s) == AccountNumberLength && allDigits(s)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
