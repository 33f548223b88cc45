package services

import (
	"testing"
	"time"

	"callplayer/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthService_RoundTrip(t *testing.T) {
	auth := NewAuthService("secret", time.Hour)

	token, err := auth.GenerateToken(12345, "alice")
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID(12345), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "12345", claims.Subject)
}

func TestAuthService_Rejects(t *testing.T) {
	auth := NewAuthService("secret", time.Hour)

	other, err := NewAuthService("other", time.Hour).GenerateToken(1, "")
	require.NoError(t, err)
	_, err = auth.ValidateToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewAuthService("secret", -time.Minute).GenerateToken(1, "")
	require.NoError(t, err)
	_, err = auth.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = auth.ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	anonymous, err := auth.GenerateToken(0, "")
	require.NoError(t, err)
	_, err = auth.ValidateToken(anonymous)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
