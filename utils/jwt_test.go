package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", "issuer")
	token, err := tm.GenerateToken("u1", "staff")
	require.NoError(t, err)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "staff", claims.Role)
	assert.Equal(t, "issuer", claims.Issuer)
}

func TestParseTokenRejects(t *testing.T) {
	tm := NewTokenManager("secret", "issuer")

	other, err := NewTokenManager("other", "issuer").GenerateToken("u1", "user")
	require.NoError(t, err)

	expiredManager := NewTokenManager("secret", "issuer")
	expiredManager.TTL = -time.Minute
	expired, err := expiredManager.GenerateToken("u1", "user")
	require.NoError(t, err)

	noUser, err := tm.GenerateToken("", "user")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &CustomClaims{UserID: "u1", Role: "admin"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": other,
		"expired":      expired,
		"no user":      noUser,
		"alg none":     none,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tm.ParseToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
