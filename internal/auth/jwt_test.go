package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyRoundTrip(t *testing.T) {
	verifier := NewJWTVerifier("test-secret", "collablearn")

	token, err := verifier.GenerateToken("user-42", time.Minute)
	require.NoError(t, err)

	identity, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", identity)
}

func TestVerifyWrongKey(t *testing.T) {
	issuer := NewJWTVerifier("secret-a", "collablearn")
	verifier := NewJWTVerifier("secret-b", "collablearn")

	token, err := issuer.GenerateToken("user-42", time.Minute)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpired(t *testing.T) {
	verifier := NewJWTVerifier("test-secret", "collablearn")

	token, err := verifier.GenerateToken("user-42", -time.Minute)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyGarbage(t *testing.T) {
	verifier := NewJWTVerifier("test-secret", "collablearn")

	_, err := verifier.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMissingUserID(t *testing.T) {
	verifier := NewJWTVerifier("test-secret", "collablearn")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsUnsignedAlgorithm(t *testing.T) {
	verifier := NewJWTVerifier("test-secret", "collablearn")

	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-42"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = verifier.Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
