// Package vault salts, hashes and verifies account PINs.
//
// A PIN is four ASCII digits. Each user gets a random 16-byte salt, stored hex
// encoded next to a bcrypt hash computed over salt || pin. Verification never
// tells the caller whether the username exists; the two failure modes are only
// distinguished in the audit log.
package vault

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"bank_ledger/internal/cache"
	"bank_ledger/internal/domain"
)

const (
	saltBytes = 16
	pinLength = 4
)

// CredentialLookup returns the stored salt and hash for a username, or
// domain.ErrAccountNotFound.
type CredentialLookup interface {
	Credentials(ctx context.Context, username string) (salt, hash string, err error)
}

// Enroller derives the persisted (salt, hash) pair for a new PIN.
type Enroller struct {
	Cost int // bcrypt cost, zero means bcrypt.DefaultCost
}

// Enroll generates a salt and hashes salt || pin.
func (e Enroller) Enroll(pin string) (salt, hash string, err error) {
	if err := ValidatePIN(pin); err != nil {
		return "", "", err
	}
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generating salt: %w", err)
	}
	salt = hex.EncodeToString(buf)

	h, err := bcrypt.GenerateFromPassword([]byte(salt+pin), e.cost())
	if err != nil {
		return "", "", fmt.Errorf("hashing pin: %w", err)
	}
	return salt, string(h), nil
}

func (e Enroller) cost() int {
	if e.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return e.Cost
}

// ValidatePIN accepts exactly four ASCII digits.
func ValidatePIN(pin string) error {
	if len(pin) != pinLength {
		return fmt.Errorf("%w: pin must be %d digits", domain.ErrValidation, pinLength)
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return fmt.Errorf("%w: pin must be numeric", domain.ErrValidation)
		}
	}
	return nil
}

// Vault verifies credentials against the registry.
type Vault struct {
	Enroller
	lookup  CredentialLookup
	limiter *cache.Limiter
	log     logrus.FieldLogger
	decoy   []byte
}

// New returns a Vault. limiter and log may be nil.
func New(lookup CredentialLookup, enroller Enroller, limiter *cache.Limiter, log logrus.FieldLogger) *Vault {
	if log == nil {
		log = logrus.StandardLogger()
	}
	// Unknown users are compared against this hash so both failures cost one bcrypt comparison.
	decoy, err := bcrypt.GenerateFromPassword([]byte("decoy-salt-0000"), enroller.cost())
	if err != nil {
		decoy = nil
	}
	return &Vault{Enroller: enroller, lookup: lookup, limiter: limiter, log: log, decoy: decoy}
}

// Verify reports whether pin matches the stored credentials for username.
// It returns false, never an error, for unknown users and wrong PINs alike.
func (v *Vault) Verify(ctx context.Context, username, pin string) bool {
	salt, hash, err := v.lookup.Credentials(ctx, username)
	if err != nil {
		if v.decoy != nil {
			_ = bcrypt.CompareHashAndPassword(v.decoy, []byte(pin))
		}
		entry := v.log.WithField("username", username)
		if errors.Is(err, domain.ErrAccountNotFound) {
			entry.Warn("Authentication failed: unknown user")
		} else {
			entry.WithField("error", err.Error()).Error("Authentication failed: credential lookup error")
		}
		return false
	}
	// bcrypt compares in constant time.
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(salt+pin)); err != nil {
		v.log.WithField("username", username).Warn("Authentication failed: wrong pin")
		return false
	}
	return true
}

// Authenticate is Verify with attempt throttling. Every rejection, including a
// throttled attempt, is domain.ErrAuthenticationFailure.
func (v *Vault) Authenticate(ctx context.Context, username, pin string) error {
	ok, retry, err := v.limiter.Allow(ctx, "pin", username)
	if err != nil {
		// Redis trouble must not lock everyone out.
		v.log.WithField("error", err.Error()).Warn("pin attempt limiter unavailable")
		ok = true
	}
	if !ok {
		v.log.WithFields(logrus.Fields{
			"username":    username,
			"retry_after": retry.String(),
		}).Warn("Authentication throttled")
		return &domain.OpError{Op: "authenticate", Err: domain.ErrAuthenticationFailure}
	}
	if !v.Verify(ctx, username, pin) {
		return &domain.OpError{Op: "authenticate", Err: domain.ErrAuthenticationFailure}
	}
	// Only failed attempts count against the window.
	if err := v.limiter.Reset(ctx, "pin", username); err != nil {
		v.log.WithField("error", err.Error()).Warn("pin attempt limiter reset failed")
	}
	return nil
}
