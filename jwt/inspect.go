package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned by Inspect for values that are not a JWT.
var ErrMalformed = errors.New("malformed access token")

// Claims are the portal access-token claims a client can read.
type Claims struct {
	ID        string
	UserID    string
	Email     string
	Role      string
	Issuer    string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

type accessClaims struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *accessClaims) toClaims() Claims {
	out := Claims{
		ID:     c.ID,
		UserID: c.UserID,
		Email:  c.Email,
		Role:   c.Role,
		Issuer: c.Issuer,
	}
	if out.UserID == "" {
		out.UserID = c.Subject
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	return out
}

// Inspect decodes token claims without verifying the signature.
func Inspect(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMalformed
	}
	var claims accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims.toClaims(), nil
}

// ExpiresAt returns the exp claim of token, or the zero time when the token
// is opaque or carries no expiry.
func ExpiresAt(token string) time.Time {
	claims, err := Inspect(token)
	if err != nil {
		return time.Time{}
	}
	return claims.ExpiresAt
}

// NearExpiry reports whether token expires within skew of now. Opaque
// tokens and tokens without exp are never near expiry.
func NearExpiry(token string, skew time.Duration, now time.Time) bool {
	exp := ExpiresAt(token)
	if exp.IsZero() {
		return false
	}
	return !now.Add(skew).Before(exp)
}
