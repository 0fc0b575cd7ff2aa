package jwt

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"ride-tracker/internal/domain/user"
)

// Issuer is stamped on every token this service mints.
const Issuer = "ride-tracker"

// Claims is the access token payload: the user id travels in Subject.
type Claims struct {
	Role user.Role `json:"role"`
	jwtlib.RegisteredClaims
}

var _ jwtlib.Claims = (*Claims)(nil)

// NewUserClaims builds claims for userID valid for ttl from now.
func NewUserClaims(userID string, role user.Role, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   userID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
}

// UserID returns the subject of the token.
func (c *Claims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
