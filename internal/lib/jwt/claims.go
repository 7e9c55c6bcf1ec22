// Package jwt implements generation and parsing of the session token.
//
// The token carries the full Session payload so guards can decide access
// without a database round trip on every page load.
package jwt

import (
	"time"
)

// Maker describes generation and parsing of session tokens.
type Maker interface {
	// GenerateToken signs a token for the given session payload.
	GenerateToken(userUID, email, displayName, role string, profileCompleted bool) (string, error)
	// ParseToken returns the CustomClaims when the token is valid.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl implements Maker with an HMAC secret key and a token TTL.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker creates a MakerImpl from a secret key and TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
