// Package auth verifies the bearer credentials presented by clients during
// the WebSocket handshake and resolves them to a user identity.
package auth

import "errors"

// Sentinel errors returned by Verifier implementations. Callers should match
// with errors.Is; the wrapped message carries additional context for logging.
var (
	// ErrInvalidToken indicates the credential is malformed, has a bad
	// signature, or carries no usable identity.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates a well-formed credential whose validity
	// window has passed.
	ErrExpiredToken = errors.New("token expired")
)

// Verifier validates an opaque bearer token and yields the user identity it
// was issued to. The token's internal structure (expiry, signature, issuer)
// is entirely the implementation's concern.
type Verifier interface {
	Verify(token string) (string, error)
}
