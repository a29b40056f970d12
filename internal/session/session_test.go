package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	tok, err := Issue(7, "alice", "1234567890", "s3cret", time.Minute)
	require.NoError(t, err)

	claims, err := Parse(tok, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "1234567890", claims.AccountNumber)
	assert.Equal(t, "alice", claims.Subject)
}

func TestParse_Rejects(t *testing.T) {
	good, err := Issue(1, "alice", "1234567890", "s3cret", time.Minute)
	require.NoError(t, err)
	expired, err := Issue(1, "alice", "1234567890", "s3cret", -time.Minute)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name, token, secret string
	}{
		{"wrong secret", good, "other"},
		{"expired", expired, "s3cret"},
		{"garbage", "not.a.token", "s3cret"},
		{"unsigned", none, "s3cret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.token, tt.secret)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = Parse(good, "")
	assert.ErrorIs(t, err, ErrMissingSecret)
	_, err = Issue(1, "alice", "1234567890", "", time.Minute)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestSaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session")

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, Save(path, "abc.def.ghi"))
	tok, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	require.NoError(t, Clear(path))
	require.NoError(t, Clear(path))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrNoSession)
}
