// Package auth carries the caller's API credential as an explicit value and
// signs the tokens the Postgres backend hands out.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidCredentials reports a rejected email/password pair.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Credential is the bearer token a data source call is authorised with.
type Credential struct {
	Token     string
	Subject   string
	Role      string
	ExpiresAt time.Time
}

// Valid reports whether the credential carries a token at all.
func (c Credential) Valid() bool {
	return strings.TrimSpace(c.Token) != ""
}

// Expired reports whether the token's own expiry has passed. Opaque tokens
// without an expiry never expire locally; the server still decides.
func (c Credential) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// ParseCredential reads subject and expiry from a JWT without verifying its
// signature. Tokens that are not JWTs are kept as opaque credentials.
func ParseCredential(token string) Credential {
	token = strings.TrimSpace(token)
	cred := Credential{Token: token}
	if token == "" {
		return cred
	}
	claims := &tokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return cred
	}
	cred.Subject = claims.Subject
	cred.Role = claims.Role
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred
}

type tokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
