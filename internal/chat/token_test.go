// internal/chat/token_test.go

package chat

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.RegisteredClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestSessionUserID(t *testing.T) {
	token := signedToken(t, jwt.RegisteredClaims{
		Subject:   "u-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	userID, err := SessionUserID(token)
	require.NoError(t, err)
	assert.Equal(t, "u-123", userID)
}

func TestSessionUserIDNoExpiry(t *testing.T) {
	// Tokens without an exp claim are accepted; the server decides their
	// lifetime.
	token := signedToken(t, jwt.RegisteredClaims{Subject: "u-123"})

	userID, err := SessionUserID(token)
	require.NoError(t, err)
	assert.Equal(t, "u-123", userID)
}

func TestSessionUserIDExpired(t *testing.T) {
	token := signedToken(t, jwt.RegisteredClaims{
		Subject:   "u-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	})

	_, err := SessionUserID(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestSessionUserIDMissingSubject(t *testing.T) {
	token := signedToken(t, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	_, err := SessionUserID(token)
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestSessionUserIDGarbage(t *testing.T) {
	_, err := SessionUserID("not-a-jwt")
	assert.ErrorIs(t, err, ErrBadToken)
}
