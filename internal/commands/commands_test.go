package commands_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bank_ledger/internal/commands"
	"bank_ledger/internal/config"
	"bank_ledger/internal/db/dbtest"
	"bank_ledger/internal/domain"
	"bank_ledger/internal/session"
)

type harness struct {
	app *commands.App
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := &config.Config{
		CacheTTL:              time.Minute,
		SessionSecret:         "test-secret",
		SessionTTL:            time.Minute,
		SessionFile:           filepath.Join(t.TempDir(), "session"),
		PINHashCost:           bcrypt.MinCost,
		AccountNumberAttempts: 5,
		LedgerTimeout:         5 * time.Second,
		LedgerMaxRetries:      3,
	}
	log, _ := test.NewNullLogger()
	return &harness{app: commands.Build(cfg, dbtest.Open(t), nil, log)}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand(func() (*commands.App, error) { return h.app, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) register(t *testing.T, username, bank string) domain.AccountView {
	t.Helper()
	out, err := h.run(t, "register", "--username", username, "--pin", "1234", "--bank", bank, "--json")
	require.NoError(t, err, out)
	var view domain.AccountView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	return view
}

func TestBanks(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "banks")
	require.NoError(t, err)
	assert.Contains(t, out, "Access Bank")
	assert.Contains(t, out, "058")

	out, err = h.run(t, "banks", "--json")
	require.NoError(t, err)
	var banks []domain.Bank
	require.NoError(t, json.Unmarshal([]byte(out), &banks))
	assert.Len(t, banks, len(dbtest.Banks))
}

func TestSessionFlow(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "alice", "1")
	bob := h.register(t, "bob", "1")
	assert.Len(t, alice.AccountNumber, 10)
	assert.Equal(t, domain.WalletVerve, alice.WalletType)

	_, err := h.run(t, "history")
	assert.ErrorIs(t, err, session.ErrNoSession)

	_, err = h.run(t, "login", "--username", "alice", "--pin", "9999")
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailure)
	_, err = h.run(t, "login", "--username", "nobody", "--pin", "1234")
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailure)

	out, err := h.run(t, "login", "--username", "alice", "--pin", "1234")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as alice")

	out, err = h.run(t, "deposit", "--amount", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "Deposited 100.00 to "+alice.AccountNumber)

	out, err = h.run(t, "transfer", "--to", bob.AccountNumber, "--bank", "1", "--amount", "40", "--description", "rent")
	require.NoError(t, err)
	assert.Contains(t, out, "Transferred 40.00 to "+bob.AccountNumber)

	_, err = h.run(t, "transfer", "--to", bob.AccountNumber, "--bank", "1", "--amount", "1000")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	out, err = h.run(t, "account")
	require.NoError(t, err)
	assert.Contains(t, out, "Balance:   60.00")

	out, err = h.run(t, "history", "--json")
	require.NoError(t, err)
	var records []domain.TransactionRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 2)
	assert.Equal(t, domain.Debit, records[0].TransactionType)
	assert.Equal(t, "rent", records[0].Description)

	out, err = h.run(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "DEBIT")
	assert.Contains(t, out, "Deposit")

	out, err = h.run(t, "withdraw", "--amount", "10.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Withdrew 10.50")

	out, err = h.run(t, "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "Balance 49.50, credits 100.00, debits 50.50 over 3 records: OK")

	_, err = h.run(t, "logout")
	require.NoError(t, err)
	_, err = h.run(t, "account")
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestDepositToOtherAccount(t *testing.T) {
	h := newHarness(t)
	bob := h.register(t, "bob", "2")

	_, err := h.run(t, "deposit", "--account", bob.AccountNumber, "--amount", "25")
	assert.ErrorIs(t, err, domain.ErrValidation, "--bank is required")

	_, err = h.run(t, "deposit", "--account", bob.AccountNumber, "--bank", "1", "--amount", "25")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = h.run(t, "deposit", "--account", bob.AccountNumber, "--bank", "2", "--amount", "abc")
	assert.ErrorIs(t, err, domain.ErrValidation)

	out, err := h.run(t, "deposit", "--account", bob.AccountNumber, "--bank", "2", "--amount", "25", "--json")
	require.NoError(t, err)
	var rec domain.TransactionRecord
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, domain.Credit, rec.TransactionType)
	assert.Equal(t, bob.UserID, rec.UserID)
}

func TestRegisterErrors(t *testing.T) {
	h := newHarness(t)
	h.register(t, "alice", "1")

	_, err := h.run(t, "register", "--username", "alice", "--pin", "1234", "--bank", "1")
	assert.ErrorIs(t, err, domain.ErrDuplicateAccount)
	_, err = h.run(t, "register", "--username", "carol", "--pin", "1234", "--bank", "42")
	assert.ErrorIs(t, err, domain.ErrBankNotFound)
	_, err = h.run(t, "register", "--username", "carol", "--pin", "1234")
	assert.Error(t, err, "missing --bank")

	out, err := h.run(t, "register", "--username", "carol", "--pin", "4321", "--bank", "3", "--wallet-type", "mastercard")
	require.NoError(t, err)
	assert.Contains(t, out, "Zenith Bank (MasterCard wallet)")
}

func TestExpiredSession(t *testing.T) {
	h := newHarness(t)
	alice := h.register(t, "alice", "1")

	token, err := session.Issue(alice.UserID, alice.Username, alice.AccountNumber, "test-secret", -time.Minute)
	require.NoError(t, err)
	require.NoError(t, session.Save(h.app.Config.SessionFile, token))

	_, err = h.run(t, "withdraw", "--amount", "1")
	assert.ErrorIs(t, err, session.ErrInvalidToken)
}
