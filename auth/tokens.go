/*
tokens.go - Signed bearer tokens for staff and customers

PURPOSE:
  Issues and verifies HS256 JWTs that carry the principal (user id, role,
  username, email). The role claim is what RequireRole checks.

CLAIMS:
  sub       user id
  role      "user" | "admin"
  username  display name
  email     login email
  iat, exp  issue time, expiry (TTL from config)

VERIFICATION:
  Only HS256 is accepted. Tokens without exp, expired tokens and tokens
  signed with another key all fail with ledger.ErrUnauthenticated.
*/
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/shopledger/ledger"
)

// Claims is the JWT payload.
type Claims struct {
	Role     ledger.Role `json:"role"`
	Username string      `json:"username"`
	Email    string      `json:"email"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies bearer tokens with one shared secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of t that reads time from now.
func (t *Tokens) WithClock(now func() time.Time) *Tokens {
	c := *t
	c.now = now
	return &c
}

// Issue signs a token for p.
func (t *Tokens) Issue(p ledger.Principal) (string, error) {
	now := t.now()
	claims := Claims{
		Role:     p.Role,
		Username: p.Username,
		Email:    p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(p.UserID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses raw and returns the principal it names.
func (t *Tokens) Verify(raw string) (ledger.Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return ledger.Principal{}, fmt.Errorf("%w: %v", ledger.ErrUnauthenticated, err)
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return ledger.Principal{}, fmt.Errorf("%w: invalid token payload", ledger.ErrUnauthenticated)
	}
	return ledger.Principal{
		UserID:   ledger.UserID(claims.Subject),
		Role:     claims.Role,
		Username: claims.Username,
		Email:    claims.Email,
	}, nil
}
