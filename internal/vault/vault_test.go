package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bank_ledger/internal/cache"
	"bank_ledger/internal/domain"
)

type credential struct{ salt, hash string }

type mockLookup struct {
	creds map[string]credential
	err   error
}

func (m *mockLookup) Credentials(_ context.Context, username string) (string, string, error) {
	if m.err != nil {
		return "", "", m.err
	}
	c, ok := m.creds[username]
	if !ok {
		return "", "", domain.ErrAccountNotFound
	}
	return c.salt, c.hash, nil
}

var testEnroller = Enroller{Cost: bcrypt.MinCost}

func enrolled(t *testing.T, users map[string]string) *mockLookup {
	t.Helper()
	m := &mockLookup{creds: map[string]credential{}}
	for name, pin := range users {
		salt, hash, err := testEnroller.Enroll(pin)
		require.NoError(t, err)
		m.creds[name] = credential{salt: salt, hash: hash}
	}
	return m
}

func TestEnroll(t *testing.T) {
	salt, hash, err := testEnroller.Enroll("1234")
	require.NoError(t, err)
	assert.Len(t, salt, 2*saltBytes, "hex encoded 16 bytes")
	assert.NotContains(t, hash, "1234")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(salt+"1234")))

	salt2, _, err := testEnroller.Enroll("1234")
	require.NoError(t, err)
	assert.NotEqual(t, salt, salt2, "salts are unique per enrollment")
}

func TestEnroll_InvalidPIN(t *testing.T) {
	for _, pin := range []string{"", "123", "12345", "12a4", "１２３４", " 123"} {
		_, _, err := testEnroller.Enroll(pin)
		assert.ErrorIs(t, err, domain.ErrValidation, "pin %q", pin)
	}
}

func TestVerify(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	v := New(enrolled(t, map[string]string{"alice": "1234"}), testEnroller, nil, log)
	ctx := context.Background()

	assert.True(t, v.Verify(ctx, "alice", "1234"))
	assert.False(t, v.Verify(ctx, "alice", "9999"))
	assert.Equal(t, "Authentication failed: wrong pin", hook.LastEntry().Message)

	assert.False(t, v.Verify(ctx, "unknown_user", "1234"))
	assert.Equal(t, "Authentication failed: unknown user", hook.LastEntry().Message)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestVerify_LookupError(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	v := New(&mockLookup{err: domain.StorageError(errors.New("connection refused"))}, testEnroller, nil, log)

	assert.False(t, v.Verify(context.Background(), "alice", "1234"))
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestAuthenticate_IndistinguishableFailures(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	v := New(enrolled(t, map[string]string{"alice": "1234"}), testEnroller, nil, log)
	ctx := context.Background()

	require.NoError(t, v.Authenticate(ctx, "alice", "1234"))

	wrongPIN := v.Authenticate(ctx, "alice", "9999")
	unknown := v.Authenticate(ctx, "unknown_user", "1234")
	assert.ErrorIs(t, wrongPIN, domain.ErrAuthenticationFailure)
	assert.ErrorIs(t, unknown, domain.ErrAuthenticationFailure)
	assert.Equal(t, wrongPIN.Error(), unknown.Error())
}

func TestAuthenticate_Throttled(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log, hook := logtest.NewNullLogger()
	limiter := cache.NewLimiter(rdb, "test", 3, time.Minute)
	v := New(enrolled(t, map[string]string{"alice": "1234"}), testEnroller, limiter, log)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, v.Authenticate(ctx, "alice", "0000"), domain.ErrAuthenticationFailure)
	}
	// Fourth attempt is rejected even with the right PIN.
	assert.ErrorIs(t, v.Authenticate(ctx, "alice", "1234"), domain.ErrAuthenticationFailure)
	assert.Equal(t, "Authentication throttled", hook.LastEntry().Message)

	mr.FastForward(2 * time.Minute)
	assert.NoError(t, v.Authenticate(ctx, "alice", "1234"))
}

func TestAuthenticate_SuccessDoesNotConsumeBudget(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	limiter := cache.NewLimiter(rdb, "test", 3, time.Minute)
	v := New(enrolled(t, map[string]string{"alice": "1234"}), testEnroller, limiter, nil)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		assert.NoError(t, v.Authenticate(ctx, "alice", "1234"), "login %d", i+1)
	}

	// A success clears earlier failures too.
	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, v.Authenticate(ctx, "alice", "0000"), domain.ErrAuthenticationFailure)
	}
	require.NoError(t, v.Authenticate(ctx, "alice", "1234"))
	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, v.Authenticate(ctx, "alice", "0000"), domain.ErrAuthenticationFailure)
	}
	assert.ErrorIs(t, v.Authenticate(ctx, "alice", "1234"), domain.ErrAuthenticationFailure, "budget spent by failures alone")
}
