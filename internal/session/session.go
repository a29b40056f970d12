// Package session issues and checks the signed tokens bankctl keeps between
// invocations after a successful PIN login.
package session

import (
	"errors"        // Sentinel errors
	"fmt"           // Error wrapping
	"os"            // Token file persistence
	"path/filepath" // Token file directory
	"strings"       // Token trimming
	"time"          // Token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

var (
	ErrNoSession     = errors.New("not logged in")                    // No token file
	ErrInvalidToken  = errors.New("session expired or invalid")       // Bad signature, expired, malformed
	ErrMissingSecret = errors.New("SESSION_SECRET is not configured") // Signing key unset
)

// Claims carried by a session token
type Claims struct {
	UserID               uint   `json:"user_id"`        // Internal user id
	Username             string `json:"username"`       // Display name
	AccountNumber        string `json:"account_number"` // Authenticated account
	jwt.RegisteredClaims        // Standard JWT claims
}

// Issue creates a signed token for an authenticated account
func Issue(userID uint, username, accountNumber, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	now := time.Now()
	claims := Claims{
		UserID:        userID,        // Custom claim for user ID
		Username:      username,      // Custom claim for username
		AccountNumber: accountNumber, // Custom claim for account number
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,                         // Token subject
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)), // Token lifetime
			IssuedAt:  jwt.NewNumericDate(now),          // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// Parse validates a token string and returns its claims
func Parse(tokenStr, secret string) (*Claims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// Save writes the token to path, readable only by the owner
func Save(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	return os.WriteFile(path, []byte(token+"\n"), 0o600)
}

// Load reads the token at path, ErrNoSession if there is none
func Load(path string) (string, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("reading session: %w", err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", ErrNoSession
	}
	return token, nil
}

// Clear removes the token file; a missing file is not an error
func Clear(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
