package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL mirrors the access token lifetime of the compliance API.
const DefaultTokenTTL = 30 * time.Minute

// ErrTokenInvalid reports a token that failed verification or has expired.
var ErrTokenInvalid = errors.New("auth: token invalid")

// Signer issues and verifies HS256 access tokens.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner constructs a Signer. A non-positive ttl falls back to DefaultTokenTTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock overrides the signer clock for testing.
func (s *Signer) WithClock(fn func() time.Time) *Signer {
	if fn != nil {
		s.now = fn
	}
	return s
}

// Issue signs a token for subject carrying role.
func (s *Signer) Issue(subject, role string) (Credential, error) {
	if len(s.secret) == 0 {
		return Credential{}, errors.New("auth: signer secret required")
	}
	now := s.now()
	expires := now.Add(s.ttl)
	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Credential{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return Credential{Token: signed, Subject: subject, Role: role, ExpiresAt: expires}, nil
}

// Verify checks signature and expiry and returns the credential it encodes.
func (s *Signer) Verify(token string) (Credential, error) {
	claims := &tokenClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	cred := Credential{Token: token, Subject: claims.Subject, Role: claims.Role}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred, nil
}
