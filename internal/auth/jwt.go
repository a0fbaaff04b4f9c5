package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the JWT claim set issued by the account subsystem. The relay only
// cares about the user identity; everything else is standard registered
// claims.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HMAC-signed access tokens shared with the account
// subsystem via a symmetric signing key.
type JWTVerifier struct {
	signingKey []byte
	issuer     string
}

// NewJWTVerifier creates a verifier for tokens signed with the given secret.
// The issuer is recorded on generated tokens but not enforced during
// verification, matching the account subsystem's behavior.
func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{
		signingKey: []byte(secret),
		issuer:     issuer,
	}
}

// Verify parses and validates a bearer token and returns the user identity
// it carries.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return v.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}

	if claims.UserID == "" {
		return "", fmt.Errorf("%w: missing user_id claim", ErrInvalidToken)
	}

	return claims.UserID, nil
}

// GenerateToken issues a signed access token for the given user identity.
// The relay itself never issues tokens in production; this exists for tests
// and operational tooling.
func (v *JWTVerifier) GenerateToken(userID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    v.issuer,
			ID:        uuid.NewString(),
		},
	})

	return token.SignedString(v.signingKey)
}
