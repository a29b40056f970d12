// Package registry creates users with their wallets and resolves identifiers
// to account views. It is the only package that reads Users and Wallets rows;
// the ledger goes through it for every lookup and row lock.
package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bank_ledger/internal/db"
	"bank_ledger/internal/domain"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{1,31}$`)

// BankLookup is the part of the bank directory the registry needs.
type BankLookup interface {
	FindBank(ctx context.Context, bankID uint) (*domain.Bank, error)
}

// PINEnroller turns a PIN into its persisted (salt, hash) pair.
type PINEnroller interface {
	Enroll(pin string) (salt, hash string, err error)
}

// Options tune account number assignment.
type Options struct {
	AccountNumberAttempts int                    // Generations tried before ErrDuplicateAccount
	GenerateAccountNumber func() (string, error) // Defaults to GenerateAccountNumber
}

// Registry is the account registry.
type Registry struct {
	db       *gorm.DB
	banks    BankLookup
	enroller PINEnroller
	opts     Options
	log      logrus.FieldLogger
}

// New returns a Registry bound to db.
func New(db *gorm.DB, banks BankLookup, enroller PINEnroller, opts Options, log logrus.FieldLogger) *Registry {
	if opts.AccountNumberAttempts <= 0 {
		opts.AccountNumberAttempts = 5
	}
	if opts.GenerateAccountNumber == nil {
		opts.GenerateAccountNumber = GenerateAccountNumber
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{db: db, banks: banks, enroller: enroller, opts: opts, log: log}
}

// WithTx returns a copy of r whose queries run inside tx.
func (r *Registry) WithTx(tx *gorm.DB) *Registry {
	cp := *r
	cp.db = tx
	return &cp
}

// RegisterParams holds the input for Register.
type RegisterParams struct {
	Username   string
	PIN        string
	BankID     uint
	WalletType string // optional, defaults to Verve
}

// Register creates a user and its zero-balance wallet as one unit.
func (r *Registry) Register(ctx context.Context, p RegisterParams) (*domain.User, error) {
	fail := func(err error) (*domain.User, error) {
		return nil, &domain.OpError{Op: "register", Account: p.Username, Err: err}
	}

	if !usernamePattern.MatchString(p.Username) {
		return fail(fmt.Errorf("%w: username must start with a letter and use 2-32 letters, digits or underscores", domain.ErrValidation))
	}
	walletType, err := domain.ParseWalletType(p.WalletType)
	if err != nil {
		return fail(err)
	}
	if _, err := r.banks.FindBank(ctx, p.BankID); err != nil {
		return fail(err)
	}
	salt, hash, err := r.enroller.Enroll(p.PIN)
	if err != nil {
		return fail(err)
	}

	for attempt := 1; attempt <= r.opts.AccountNumberAttempts; attempt++ {
		number, err := r.opts.GenerateAccountNumber()
		if err != nil {
			return fail(err)
		}
		if err := ValidateAccountNumber(number); err != nil {
			return fail(err)
		}

		user := domain.User{Username: p.Username, AccountNumber: number, PinSalt: salt, PinHash: hash}
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var taken int64
			if err := tx.Model(&domain.User{}).Where("username = ?", p.Username).Count(&taken).Error; err != nil {
				return domain.StorageError(err)
			}
			if taken > 0 {
				return fmt.Errorf("%w: username %q already registered", domain.ErrDuplicateAccount, p.Username)
			}
			if err := tx.Model(&domain.User{}).Where("account_number = ?", number).Count(&taken).Error; err != nil {
				return domain.StorageError(err)
			}
			if taken > 0 {
				return errAccountNumberTaken
			}
			if err := tx.Create(&user).Error; err != nil {
				if db.IsDuplicate(err) {
					return errAccountNumberTaken
				}
				return domain.StorageError(err)
			}
			wallet := domain.Wallet{UserID: user.UserID, BankID: p.BankID, Balance: decimal.Zero, Type: walletType}
			if err := tx.Create(&wallet).Error; err != nil {
				return domain.StorageError(err)
			}
			return nil
		})
		if errors.Is(err, errAccountNumberTaken) {
			r.log.WithFields(logrus.Fields{
				"username": p.Username,
				"attempt":  attempt,
			}).Warn("account number collision, regenerating")
			continue
		}
		if err != nil {
			return fail(err)
		}

		r.log.WithFields(logrus.Fields{
			"user_id":        user.UserID,
			"username":       user.Username,
			"account_number": user.AccountNumber,
			"bank_id":        p.BankID,
			"wallet_type":    walletType,
		}).Info("User registered")
		return &user, nil
	}
	return fail(fmt.Errorf("%w: no free account number after %d attempts", domain.ErrDuplicateAccount, r.opts.AccountNumberAttempts))
}

var errAccountNumberTaken = errors.New("account number taken")

// Resolve accepts a username, account number or user id and returns the
// joined account view. Ten digits are an account number, any other all-digit
// string is a user id, anything else is a username.
func (r *Registry) Resolve(ctx context.Context, identifier string) (*domain.AccountView, error) {
	identifier = strings.TrimSpace(identifier)
	switch {
	case identifier == "":
		return nil, fmt.Errorf("%w: empty identifier", domain.ErrValidation)
	case isAccountNumber(identifier):
		return r.view(ctx, identifier, "users.account_number = ?", identifier)
	case allDigits(identifier):
		id, err := strconv.ParseUint(identifier, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: user id %q out of range", domain.ErrValidation, identifier)
		}
		return r.view(ctx, identifier, "users.user_id = ?", id)
	default:
		return r.view(ctx, identifier, "users.username = ?", identifier)
	}
}

// ResolveAccount resolves an account number held at a specific bank.
func (r *Registry) ResolveAccount(ctx context.Context, accountNumber string, bankID uint) (*domain.AccountView, error) {
	if err := ValidateAccountNumber(accountNumber); err != nil {
		return nil, err
	}
	return r.view(ctx, accountNumber, "users.account_number = ? AND wallets.bank_id = ?", accountNumber, bankID)
}

// ResolveUser resolves by internal user id.
func (r *Registry) ResolveUser(ctx context.Context, userID uint) (*domain.AccountView, error) {
	return r.view(ctx, strconv.FormatUint(uint64(userID), 10), "users.user_id = ?", userID)
}

func (r *Registry) view(ctx context.Context, label string, query string, args ...any) (*domain.AccountView, error) {
	var v domain.AccountView
	err := r.db.WithContext(ctx).
		Table("users").
		Select(`users.user_id, users.username, users.account_number,
			wallets.wallet_id, wallets.type AS wallet_type, wallets.balance,
			banks.bank_id, banks.code AS bank_code, banks.name AS bank_name`).
		Joins("JOIN wallets ON wallets.user_id = users.user_id").
		Joins("JOIN banks ON banks.bank_id = wallets.bank_id").
		Where(query, args...).
		Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, label)
	}
	if err != nil {
		return nil, domain.StorageError(fmt.Errorf("resolving %s: %w", label, err))
	}
	return &v, nil
}

// LockWallet reads a wallet with a row lock. Only meaningful on a registry
// returned by WithTx; the lock is held until that transaction ends.
func (r *Registry) LockWallet(ctx context.Context, walletID uint) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("wallet_id = ?", walletID).
		Take(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: wallet %d", domain.ErrAccountNotFound, walletID)
	}
	if err != nil {
		return nil, domain.StorageError(fmt.Errorf("locking wallet %d: %w", walletID, err))
	}
	return &w, nil
}

// Credentials returns the stored PIN salt and hash for username.
func (r *Registry) Credentials(ctx context.Context, username string) (string, string, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Select("pin_salt", "pin_hash").Where("username = ?", username).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", "", domain.ErrAccountNotFound
	}
	if err != nil {
		return "", "", domain.StorageError(err)
	}
	return u.PinSalt, u.PinHash, nil
}
