package api

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialProvider supplies the bearer token for authenticated requests.
// Storage lives outside the core (keychain, secure prefs); the transport only
// reads through this interface and signals expiry back through it.
type CredentialProvider interface {
	// Token returns the current bearer token, or ok=false when logged out.
	Token() (token string, ok bool)
	// Expired is called when the server rejects the token (HTTP 401), exactly
	// once per rejected response. Implementations should wipe the credential.
	Expired()
}

// MemoryCredentials is an in-process CredentialProvider. The real app backs
// this with secure storage; tests and the CLI use it directly.
type MemoryCredentials struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryCredentials(token string) *MemoryCredentials {
	return &MemoryCredentials{token: token}
}

func (m *MemoryCredentials) Set(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

func (m *MemoryCredentials) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

func (m *MemoryCredentials) Expired() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
}

// TokenExpiry reads the exp claim out of a bearer token without verifying the
// signature. The client has no signing secret; this is only used to decide
// whether a stored session is worth presenting at all.
func TokenExpiry(token string) (time.Time, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("token has no exp claim")
	}
	return exp.Time, nil
}
