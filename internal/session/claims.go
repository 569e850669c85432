package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is what the desk reads from a backend token. The signature is
// not checked here; the backend does that on every call.
type Claims struct {
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

type tokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

func Decode(token string) (Claims, error) {
	var tc tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &tc); err != nil {
		return Claims{}, fmt.Errorf("decode token: %w", err)
	}
	c := Claims{Username: tc.Subject, Roles: tc.Roles}
	if c.Roles == nil {
		c.Roles = []string{}
	}
	if tc.ExpiresAt != nil {
		c.ExpiresAt = tc.ExpiresAt.Time
	}
	return c, nil
}

// Expired treats a token without expiry as expired.
func (c Claims) Expired(now time.Time) bool {
	return c.ExpiresAt.IsZero() || now.After(c.ExpiresAt)
}
