// Package dbtest opens a migrated, seeded SQLite database for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bank_ledger/internal/db"
	"bank_ledger/internal/domain"
)

// Banks are seeded in order, so bank_id 1 is "Access Bank".
var Banks = []domain.Bank{
	{Code: "044", Name: "Access Bank"},
	{Code: "058", Name: "Guaranty Trust Bank"},
	{Code: "057", Name: "Zenith Bank"},
}

// Open returns a fresh database in t.TempDir(). A single connection keeps SQLite
// writers serialized; the pool hands it out in turn.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "ledger.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	require.NoError(t, db.SeedBanks(gdb, Banks))
	return gdb
}
