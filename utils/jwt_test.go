package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	SetJWTConfig("unit-test-secret", time.Hour)

	token, err := GenerateToken(42, "ADMIN")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "ADMIN", claims.Role)
	assert.Equal(t, "LibrarySeatApp", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestValidateTokenRejects(t *testing.T) {
	SetJWTConfig("unit-test-secret", time.Hour)

	_, err := ValidateToken("not-a-jwt")
	assert.Error(t, err)

	SetJWTConfig("another-secret", time.Hour)
	foreign, err := GenerateToken(1, "USER")
	require.NoError(t, err)
	SetJWTConfig("unit-test-secret", time.Hour)
	_, err = ValidateToken(foreign)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &CustomClaims{
		UserID: 1,
		Role:   "USER",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("unit-test-secret"))
	require.NoError(t, err)
	_, err = ValidateToken(signed)
	assert.Error(t, err)

	noUser := jwt.NewWithClaims(jwt.SigningMethodHS256, &CustomClaims{
		Role: "USER",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err = noUser.SignedString([]byte("unit-test-secret"))
	require.NoError(t, err)
	_, err = ValidateToken(signed)
	assert.EqualError(t, err, "invalid user id in token")
}

func TestBlacklist(t *testing.T) {
	SetJWTConfig("unit-test-secret", time.Hour)
	token, err := GenerateToken(7, "USER")
	require.NoError(t, err)

	BlacklistToken(token, time.Now().Add(time.Hour))
	assert.True(t, IsTokenBlacklisted(token))
	_, err = ValidateToken(token)
	assert.EqualError(t, err, "token has been revoked")

	BlacklistToken("stale", time.Now().Add(-time.Minute))
	assert.False(t, IsTokenBlacklisted("stale"))
	assert.GreaterOrEqual(t, PurgeBlacklist(time.Now()), 1)
	assert.True(t, IsTokenBlacklisted(token))
}
