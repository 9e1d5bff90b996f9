package httpapi

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuth_GenerateAndValidate(t *testing.T) {
	auth := NewJWTAuth(testSecret)

	token, expiresAt, err := auth.GenerateToken("alice", false)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(DefaultTokenTTL), expiresAt, 5*time.Second)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.ClientID)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, tokenIssuer, claims.Issuer)
	assert.False(t, claims.IsAdmin)

	// Bearer prefix is accepted
	claims, err = auth.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.ClientID)
}

func TestJWTAuth_AdminClaim(t *testing.T) {
	auth := NewJWTAuth(testSecret)

	token, _, err := auth.GenerateToken("admin", true)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
}

func TestJWTAuth_EmptyInputs(t *testing.T) {
	auth := NewJWTAuth(testSecret)

	_, _, err := auth.GenerateToken("", false)
	if !errors.Is(err, ErrEmptyClientID) {
		t.Errorf("Expected ErrEmptyClientID, got %v", err)
	}

	_, err = auth.ValidateToken("")
	if !errors.Is(err, ErrEmptyToken) {
		t.Errorf("Expected ErrEmptyToken, got %v", err)
	}
}

func TestJWTAuth_RejectsWrongSecret(t *testing.T) {
	token, _, err := NewJWTAuth("one-secret").GenerateToken("alice", false)
	require.NoError(t, err)

	_, err = NewJWTAuth("another-secret").ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestJWTAuth_RejectsExpiredToken(t *testing.T) {
	auth := NewJWTAuth(testSecret).WithTTL(-time.Minute)

	token, _, err := auth.GenerateToken("alice", false)
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTAuth_RejectsForeignIssuer(t *testing.T) {
	claims := JWTClaims{
		ClientID: "mallory",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewJWTAuth(testSecret).ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestJWTAuth_RejectsUnsignedToken(t *testing.T) {
	claims := JWTClaims{
		ClientID: "mallory",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTAuth(testSecret).ValidateToken(token)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid token"))
}
