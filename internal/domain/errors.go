package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the vault, registry and ledger. Callers match with errors.Is.
var (
	ErrValidation            = errors.New("validation failed")
	ErrAccountNotFound       = errors.New("account not found")
	ErrBankNotFound          = errors.New("bank not found")
	ErrDuplicateAccount      = errors.New("duplicate account")
	ErrAuthenticationFailure = errors.New("invalid credentials")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrLedgerBusy            = errors.New("ledger busy")
	ErrStorage               = errors.New("storage failure")
)

// OpError records which operation failed and for which account.
type OpError struct {
	Op      string // deposit, transfer, withdraw, register, ...
	Account string // account number or identifier the caller supplied
	Err     error
}

func (e *OpError) Error() string {
	if e.Account == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Account, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// StorageError wraps a persistence failure so it matches ErrStorage.
func StorageError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
