package api

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": int64(42),
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestMemoryCredentialsLifecycle(t *testing.T) {
	creds := NewMemoryCredentials("")
	_, ok := creds.Token()
	assert.False(t, ok)

	creds.Set("abc")
	tok, ok := creds.Token()
	assert.True(t, ok)
	assert.Equal(t, "abc", tok)

	creds.Expired()
	_, ok = creds.Token()
	assert.False(t, ok)
}

func TestTokenExpiryReadsExpClaim(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	got, err := TokenExpiry(signedToken(t, exp))
	require.NoError(t, err)
	assert.WithinDuration(t, exp, got, time.Second)
}

func TestTokenExpiryRejectsGarbage(t *testing.T) {
	_, err := TokenExpiry("not-a-jwt")
	assert.Error(t, err)
}
