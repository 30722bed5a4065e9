package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 42, "SUPER_ADMIN", 15)
	require.NoError(t, err)

	claims, err := ParseAccessToken("s3cret", tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.Equal(t, "SUPER_ADMIN", claims.Role)
}

func TestAccessToken_WrongSecretOrExpired(t *testing.T) {
	tok, err := NewAccessToken("s3cret", 1, "ADMIN", 15)
	require.NoError(t, err)
	_, err = ParseAccessToken("other", tok.Token)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)

	expired, err := NewAccessToken("s3cret", 1, "ADMIN", -5)
	require.NoError(t, err)
	_, err = ParseAccessToken("s3cret", expired.Token)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestAccessToken_NumericSubject(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": 7, "role": "ADMIN"}).SignedString([]byte("k"))
	require.NoError(t, err)
	claims, err := ParseAccessToken("k", raw)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.UserID)
}

func TestRefreshToken_HashIsStable(t *testing.T) {
	rt, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96)
	assert.Equal(t, HashRefreshRaw(rt.Raw), HashRefreshRaw(rt.Raw))
	assert.Len(t, HashRefreshRaw(rt.Raw), 64)
}

func TestPassword_HashAndVerify(t *testing.T) {
	h, err := HashPassword("correct horse", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(h, "correct horse"))
	assert.False(t, VerifyPassword(h, "wrong"))
}
