package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyIssuedToken(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Issue("user-1", time.Minute)
	require.NoError(t, err)

	userID, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestVerifyNumericIDAndSubject(t *testing.T) {
	v := NewVerifier("secret")

	numeric, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": 42}).SignedString([]byte("secret"))
	require.NoError(t, err)
	userID, err := v.Verify(numeric)
	require.NoError(t, err)
	assert.Equal(t, "42", userID)

	subject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "abc"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	userID, err = v.Verify(subject)
	require.NoError(t, err)
	assert.Equal(t, "abc", userID)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("secret")

	expired, err := v.Issue("user-1", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := NewVerifier("other").Issue("user-1", time.Minute)
	require.NoError(t, err)
	noID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"name": "x"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":     "",
		"garbage":   "not-a-token",
		"expired":   expired,
		"wrong key": wrongKey,
		"no id":     noID,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
