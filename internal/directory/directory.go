// Package directory is the read side of the bank directory. Bank rows are
// written by the directory sync (see db.SeedBanks); the ledger only reads them.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"bank_ledger/internal/cache"
	"bank_ledger/internal/db"
	"bank_ledger/internal/domain"
)

// Directory lists and looks up banks.
type Directory struct {
	db    *gorm.DB
	cache *cache.Cache
	log   logrus.FieldLogger
}

// New returns a Directory. c and log may be nil.
func New(db *gorm.DB, c *cache.Cache, log logrus.FieldLogger) *Directory {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Directory{db: db, cache: c, log: log}
}

// ListBanks returns every bank ordered by id.
func (d *Directory) ListBanks(ctx context.Context) ([]domain.Bank, error) {
	var banks []domain.Bank
	if found, err := d.cache.Get(ctx, cache.BanksKey, &banks); err == nil && found {
		return banks, nil
	}
	if err := d.db.WithContext(ctx).Order("bank_id").Find(&banks).Error; err != nil {
		return nil, domain.StorageError(fmt.Errorf("listing banks: %w", err))
	}
	if err := d.cache.Set(ctx, cache.BanksKey, banks); err != nil {
		d.log.WithField("error", err.Error()).Warn("caching bank list failed")
	}
	return banks, nil
}

// FindBank returns the bank with bankID or domain.ErrBankNotFound.
func (d *Directory) FindBank(ctx context.Context, bankID uint) (*domain.Bank, error) {
	var bank domain.Bank
	err := d.db.WithContext(ctx).Where("bank_id = ?", bankID).Take(&bank).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: bank_id %d", domain.ErrBankNotFound, bankID)
	}
	if err != nil {
		return nil, domain.StorageError(fmt.Errorf("finding bank %d: %w", bankID, err))
	}
	return &bank, nil
}

// Sync seeds banks into the store and drops the cached listing so the next
// ListBanks sees them.
func (d *Directory) Sync(ctx context.Context, banks []domain.Bank) error {
	if err := db.SeedBanks(d.db.WithContext(ctx), banks); err != nil {
		return domain.StorageError(err)
	}
	if err := d.cache.Delete(ctx, cache.BanksKey); err != nil {
		return fmt.Errorf("invalidating bank list: %w", err)
	}
	return nil
}
