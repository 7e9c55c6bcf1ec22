package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/byonco/webgate/internal/models"
)

// CustomClaims is the session payload embedded in the token.
type CustomClaims struct {
	UserUID              string `json:"user_uid"`
	Email                string `json:"email"`
	DisplayName          string `json:"display_name"`
	Role                 string `json:"role"`
	ProfileCompleted     bool   `json:"profile_completed"`
	jwt.RegisteredClaims        // Standard claims (ExpiresAt, IssuedAt etc.)
}

// Session converts the claims into the domain session value.
func (c *CustomClaims) Session() *models.Session {
	return &models.Session{
		UserUID:          c.UserUID,
		Email:            c.Email,
		DisplayName:      c.DisplayName,
		Role:             c.Role,
		ProfileCompleted: c.ProfileCompleted,
	}
}

// GenerateToken signs a JWT carrying the session payload, with a lifetime
// of the maker's tokenTTL.
func (j *MakerImpl) GenerateToken(userUID, email, displayName, role string, profileCompleted bool) (string, error) {
	claims := CustomClaims{
		UserUID:          userUID,
		Email:            email,
		DisplayName:      displayName,
		Role:             role,
		ProfileCompleted: profileCompleted,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken parses and validates a session token, returning its claims.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}
