// Package ledger moves money between wallets and keeps the transaction
// history that must reconcile with every balance.
//
// Each money movement runs as one unit: the affected wallets are locked in
// process (ascending wallet id), then a store transaction re-resolves the
// accounts, re-reads the wallets FOR UPDATE, checks the balance, applies the
// new balances and appends the records. A rejected or failed unit leaves no
// trace.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bank_ledger/internal/cache"
	"bank_ledger/internal/db"
	"bank_ledger/internal/domain"
	"bank_ledger/internal/registry"
)

// Amounts carry at most this many fractional digits.
const amountScale = 2

// maxDescriptionLength matches the transactions_history.description column.
const maxDescriptionLength = 255

// balanceLimit is the first value a decimal(20,2) column cannot hold.
var balanceLimit = decimal.New(1, 20-amountScale)

// Options bound how long an operation may wait.
type Options struct {
	Timeout    time.Duration // Lock wait and retry budget per operation
	MaxRetries int           // Retries on transient store contention
	Backoff    time.Duration // First retry delay, doubled each time
}

// Ledger is the ledger engine.
type Ledger struct {
	db       *gorm.DB
	accounts *registry.Registry
	cache    *cache.Cache
	locks    *walletLocks
	opts     Options
	log      logrus.FieldLogger
	now      func() time.Time
}

// New returns a Ledger. c and log may be nil.
func New(db *gorm.DB, accounts *registry.Registry, c *cache.Cache, opts Options, log logrus.FieldLogger) *Ledger {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 25 * time.Millisecond
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ledger{
		db:       db,
		accounts: accounts,
		cache:    c,
		locks:    newWalletLocks(),
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// ValidateAmount accepts positive amounts with at most two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", domain.ErrValidation)
	}
	if !amount.Equal(amount.Truncate(amountScale)) {
		return fmt.Errorf("%w: amount has more than %d decimal places", domain.ErrValidation, amountScale)
	}
	if amount.GreaterThanOrEqual(balanceLimit) {
		return fmt.Errorf("%w: amount must be below %s", domain.ErrValidation, balanceLimit)
	}
	return nil
}

// credit returns balance+amount, refusing results the balance column cannot store.
func credit(balance, amount decimal.Decimal) (decimal.Decimal, error) {
	next := balance.Add(amount)
	if next.GreaterThanOrEqual(balanceLimit) {
		return decimal.Zero, fmt.Errorf("%w: balance would exceed %s", domain.ErrValidation, balanceLimit)
	}
	return next, nil
}

// Deposit credits the wallet identified by accountNumber at bankID.
func (l *Ledger) Deposit(ctx context.Context, accountNumber string, bankID uint, amount decimal.Decimal) (*domain.TransactionRecord, error) {
	const op = "deposit"
	if err := ValidateAmount(amount); err != nil {
		return nil, l.reject(op, accountNumber, amount, err)
	}
	target, err := l.accounts.ResolveAccount(ctx, accountNumber, bankID)
	if err != nil {
		return nil, l.reject(op, accountNumber, amount, err)
	}

	var rec domain.TransactionRecord
	err = l.run(ctx, op, []uint{target.WalletID}, func(ctx context.Context, tx *gorm.DB) error {
		acc := l.accounts.WithTx(tx)
		fresh, err := acc.ResolveAccount(ctx, accountNumber, bankID)
		if err != nil {
			return err
		}
		w, err := acc.LockWallet(ctx, fresh.WalletID)
		if err != nil {
			return err
		}
		next, err := credit(w.Balance, amount)
		if err != nil {
			return err
		}
		if err := setBalance(tx, w.WalletID, next); err != nil {
			return err
		}
		rec = domain.TransactionRecord{
			UserID:                fresh.UserID,
			Reference:             uuid.NewString(),
			Timestamp:             l.now().UTC(),
			Amount:                amount,
			TransactionType:       domain.Credit,
			Description:           "Deposit",
			ReceiverAccountNumber: fresh.AccountNumber,
			ReceiverBankID:        &bankID,
		}
		return appendRecords(tx, &rec)
	})
	if err != nil {
		return nil, l.reject(op, accountNumber, amount, err)
	}

	l.invalidate(ctx, rec.UserID)
	l.log.WithFields(logrus.Fields{
		"operation":      op,
		"account_number": accountNumber,
		"amount":         amount.StringFixed(amountScale),
		"reference":      rec.Reference,
	}).Info("Deposit transaction")
	return &rec, nil
}

// TransferParams describes a transfer. The sender must already be authenticated.
type TransferParams struct {
	SenderIdentifier       string // Username, account number or user id
	RecipientAccountNumber string
	RecipientBankID        uint
	Amount                 decimal.Decimal
	Description            string
}

// TransferResult holds the two records a committed transfer appends.
type TransferResult struct {
	Reference string
	Debit     domain.TransactionRecord
	Credit    domain.TransactionRecord
}

// Transfer debits the sender and credits the recipient as one unit, appending
// a DEBIT owned by the sender and a CREDIT owned by the recipient.
func (l *Ledger) Transfer(ctx context.Context, p TransferParams) (*TransferResult, error) {
	const op = "transfer"
	if err := ValidateAmount(p.Amount); err != nil {
		return nil, l.reject(op, p.SenderIdentifier, p.Amount, err)
	}
	if utf8.RuneCountInString(p.Description) > maxDescriptionLength {
		err := fmt.Errorf("%w: description longer than %d characters", domain.ErrValidation, maxDescriptionLength)
		return nil, l.reject(op, p.SenderIdentifier, p.Amount, err)
	}
	sender, err := l.accounts.Resolve(ctx, p.SenderIdentifier)
	if err != nil {
		return nil, l.reject(op, p.SenderIdentifier, p.Amount, err)
	}
	recipient, err := l.accounts.ResolveAccount(ctx, p.RecipientAccountNumber, p.RecipientBankID)
	if err != nil {
		return nil, l.reject(op, p.SenderIdentifier, p.Amount, err)
	}
	if sender.AccountNumber == recipient.AccountNumber {
		return nil, l.reject(op, sender.AccountNumber, p.Amount, fmt.Errorf("%w: cannot transfer to the same account", domain.ErrValidation))
	}

	var res TransferResult
	err = l.run(ctx, op, []uint{sender.WalletID, recipient.WalletID}, func(ctx context.Context, tx *gorm.DB) error {
		acc := l.accounts.WithTx(tx)
		from, err := acc.ResolveUser(ctx, sender.UserID)
		if err != nil {
			return err
		}
		to, err := acc.ResolveAccount(ctx, p.RecipientAccountNumber, p.RecipientBankID)
		if err != nil {
			return err
		}
		fromWallet, toWallet, err := lockPair(ctx, acc, from.WalletID, to.WalletID)
		if err != nil {
			return err
		}
		if fromWallet.Balance.LessThan(p.Amount) {
			return fmt.Errorf("%w: balance %s, requested %s", domain.ErrInsufficientFunds,
				fromWallet.Balance.StringFixed(amountScale), p.Amount.StringFixed(amountScale))
		}
		toBalance, err := credit(toWallet.Balance, p.Amount)
		if err != nil {
			return err
		}
		if err := setBalance(tx, fromWallet.WalletID, fromWallet.Balance.Sub(p.Amount)); err != nil {
			return err
		}
		if err := setBalance(tx, toWallet.WalletID, toBalance); err != nil {
			return err
		}

		res.Reference = uuid.NewString()
		leg := domain.TransactionRecord{
			Reference:             res.Reference,
			Timestamp:             l.now().UTC(),
			Amount:                p.Amount,
			Description:           p.Description,
			SenderAccountNumber:   from.AccountNumber,
			ReceiverAccountNumber: to.AccountNumber,
			SenderBankID:          &from.BankID,
			ReceiverBankID:        &to.BankID,
		}
		res.Debit, res.Credit = leg, leg
		res.Debit.UserID, res.Debit.TransactionType = from.UserID, domain.Debit
		res.Credit.UserID, res.Credit.TransactionType = to.UserID, domain.Credit
		return appendRecords(tx, &res.Debit, &res.Credit)
	})
	if err != nil {
		return nil, l.reject(op, sender.AccountNumber, p.Amount, err)
	}

	l.invalidate(ctx, sender.UserID, recipient.UserID)
	l.log.WithFields(logrus.Fields{
		"operation":      op,
		"account_number": sender.AccountNumber,
		"recipient":      recipient.AccountNumber,
		"recipient_bank": recipient.BankID,
		"amount":         p.Amount.StringFixed(amountScale),
		"reference":      res.Reference,
	}).Info("Transfer transaction")
	return &res, nil
}

// Withdraw debits the wallet of identifier, appending a single DEBIT record.
func (l *Ledger) Withdraw(ctx context.Context, identifier string, amount decimal.Decimal) (*domain.TransactionRecord, error) {
	const op = "withdraw"
	if err := ValidateAmount(amount); err != nil {
		return nil, l.reject(op, identifier, amount, err)
	}
	owner, err := l.accounts.Resolve(ctx, identifier)
	if err != nil {
		return nil, l.reject(op, identifier, amount, err)
	}

	var rec domain.TransactionRecord
	err = l.run(ctx, op, []uint{owner.WalletID}, func(ctx context.Context, tx *gorm.DB) error {
		acc := l.accounts.WithTx(tx)
		fresh, err := acc.ResolveUser(ctx, owner.UserID)
		if err != nil {
			return err
		}
		w, err := acc.LockWallet(ctx, fresh.WalletID)
		if err != nil {
			return err
		}
		if w.Balance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, requested %s", domain.ErrInsufficientFunds,
				w.Balance.StringFixed(amountScale), amount.StringFixed(amountScale))
		}
		if err := setBalance(tx, w.WalletID, w.Balance.Sub(amount)); err != nil {
			return err
		}
		rec = domain.TransactionRecord{
			UserID:              fresh.UserID,
			Reference:           uuid.NewString(),
			Timestamp:           l.now().UTC(),
			Amount:              amount,
			TransactionType:     domain.Debit,
			Description:         "Withdrawal",
			SenderAccountNumber: fresh.AccountNumber,
			SenderBankID:        &fresh.BankID,
		}
		return appendRecords(tx, &rec)
	})
	if err != nil {
		return nil, l.reject(op, owner.AccountNumber, amount, err)
	}

	l.invalidate(ctx, owner.UserID)
	l.log.WithFields(logrus.Fields{
		"operation":      op,
		"account_number": owner.AccountNumber,
		"amount":         amount.StringFixed(amountScale),
		"reference":      rec.Reference,
	}).Info("Withdrawal transaction")
	return &rec, nil
}

// TransactionHistory returns every record owned by userID, newest first. A
// user with no records gets an empty slice.
func (l *Ledger) TransactionHistory(ctx context.Context, userID uint) ([]domain.TransactionRecord, error) {
	key := cache.HistoryKey(userID)
	records := []domain.TransactionRecord{}
	if found, err := l.cache.Get(ctx, key, &records); err == nil && found {
		return records, nil
	}
	versionKey := cache.HistoryVersionKey(userID)
	version, verr := l.cache.Version(ctx, versionKey)
	records, err := l.history(ctx, l.db, userID)
	if err != nil {
		return nil, &domain.OpError{Op: "history", Account: fmt.Sprint(userID), Err: err}
	}
	if verr != nil {
		l.log.WithError(verr).WithField("user_id", userID).Warn("Failed to read history cache version")
		return records, nil
	}
	if _, err := l.cache.SetIfVersion(ctx, key, versionKey, version, records); err != nil {
		l.log.WithError(err).WithField("user_id", userID).Warn("Failed to cache transaction history")
	}
	return records, nil
}

func (l *Ledger) history(ctx context.Context, tx *gorm.DB, userID uint) ([]domain.TransactionRecord, error) {
	records := []domain.TransactionRecord{}
	err := tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Order("transaction_id DESC").
		Find(&records).Error
	if err != nil {
		return nil, domain.StorageError(fmt.Errorf("reading history: %w", err))
	}
	return records, nil
}

// Reconciliation compares a wallet balance with its recorded history.
type Reconciliation struct {
	UserID        uint            `json:"user_id"`
	AccountNumber string          `json:"account_number"`
	Balance       decimal.Decimal `json:"balance"`
	Credits       decimal.Decimal `json:"credits"`
	Debits        decimal.Decimal `json:"debits"`
	Records       int             `json:"records"`
	OK            bool            `json:"ok"`
}

// Reconcile checks balance == sum(CREDIT) - sum(DEBIT) for userID. Balance and
// history are read in one transaction so the comparison is consistent.
func (l *Ledger) Reconcile(ctx context.Context, userID uint) (*Reconciliation, error) {
	var rec Reconciliation
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view, err := l.accounts.WithTx(tx).ResolveUser(ctx, userID)
		if err != nil {
			return err
		}
		records, err := l.history(ctx, tx, userID)
		if err != nil {
			return err
		}
		rec = Reconciliation{
			UserID:        view.UserID,
			AccountNumber: view.AccountNumber,
			Balance:       view.Balance,
			Credits:       decimal.Zero,
			Debits:        decimal.Zero,
			Records:       len(records),
		}
		for _, r := range records {
			if r.TransactionType == domain.Debit {
				rec.Debits = rec.Debits.Add(r.Amount)
			} else {
				rec.Credits = rec.Credits.Add(r.Amount)
			}
		}
		rec.OK = rec.Balance.Equal(rec.Credits.Sub(rec.Debits))
		return nil
	})
	if err != nil {
		return nil, &domain.OpError{Op: "reconcile", Account: fmt.Sprint(userID), Err: err}
	}
	if !rec.OK {
		l.log.WithFields(logrus.Fields{
			"user_id":        rec.UserID,
			"account_number": rec.AccountNumber,
			"balance":        rec.Balance.StringFixed(amountScale),
			"net":            rec.Credits.Sub(rec.Debits).StringFixed(amountScale),
		}).Error("Ledger does not reconcile")
	}
	return &rec, nil
}

// run executes fn as one store transaction while holding the wallet locks.
// Lock waits and retry backoff share opts.Timeout; once a transaction has
// begun it is not cancelled by the caller's context.
func (l *Ledger) run(ctx context.Context, op string, walletIDs []uint, fn func(ctx context.Context, tx *gorm.DB) error) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	release, err := l.locks.acquire(waitCtx, walletIDs...)
	if err != nil {
		return err
	}
	defer release()

	txCtx := context.WithoutCancel(ctx)
	backoff := l.opts.Backoff
	for attempt := 0; ; attempt++ {
		err := l.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
			return fn(txCtx, tx)
		})
		if err == nil || !db.IsTransient(err) {
			return err
		}
		if attempt >= l.opts.MaxRetries {
			return fmt.Errorf("%w: %w", domain.ErrLedgerBusy, err)
		}
		l.log.WithFields(logrus.Fields{
			"operation": op,
			"attempt":   attempt + 1,
			"error":     err.Error(),
		}).Warn("Transient storage contention, retrying")
		select {
		case <-time.After(backoff):
		case <-waitCtx.Done():
			return fmt.Errorf("%w: %w", domain.ErrLedgerBusy, err)
		}
		backoff *= 2
	}
}

// lockPair locks both wallets in ascending id order and returns them as (from, to).
func lockPair(ctx context.Context, acc *registry.Registry, fromID, toID uint) (*domain.Wallet, *domain.Wallet, error) {
	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	a, err := acc.LockWallet(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := acc.LockWallet(ctx, second)
	if err != nil {
		return nil, nil, err
	}
	if a.WalletID == fromID {
		return a, b, nil
	}
	return b, a, nil
}

func setBalance(tx *gorm.DB, walletID uint, balance decimal.Decimal) error {
	err := tx.Model(&domain.Wallet{}).Where("wallet_id = ?", walletID).Update("balance", balance).Error
	if err != nil {
		return domain.StorageError(fmt.Errorf("updating wallet %d: %w", walletID, err))
	}
	return nil
}

func appendRecords(tx *gorm.DB, records ...*domain.TransactionRecord) error {
	for _, r := range records {
		if err := tx.Create(r).Error; err != nil {
			return domain.StorageError(fmt.Errorf("appending %s record: %w", r.TransactionType, err))
		}
	}
	return nil
}

func (l *Ledger) invalidate(ctx context.Context, userIDs ...uint) {
	for _, id := range userIDs {
		if err := l.cache.Bump(ctx, cache.HistoryVersionKey(id), cache.HistoryKey(id)); err != nil {
			l.log.WithError(err).WithField("user_id", id).Warn("Failed to invalidate transaction history cache")
		}
	}
}

// reject logs a refused or failed operation and wraps err with its context.
func (l *Ledger) reject(op, account string, amount decimal.Decimal, err error) error {
	entry := l.log.WithFields(logrus.Fields{
		"operation":      op,
		"account_number": account,
		"amount":         amount.String(),
		"error":          err.Error(),
	})
	if errors.Is(err, domain.ErrStorage) || errors.Is(err, domain.ErrLedgerBusy) {
		entry.Error("Ledger operation failed")
	} else {
		entry.Warn("Ledger operation rejected")
	}
	return &domain.OpError{Op: op, Account: account, Err: err}
}
