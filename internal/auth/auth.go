// Package auth verifies bearer tokens and decides which roles may mutate
// financial records.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrJamesThe3rd/billy/internal/billing"
)

var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 tokens.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for actor valid for ttl.
func (a *Authenticator) Issue(actor billing.Actor, ttl time.Duration) (string, error) {
	if actor.ID == "" {
		return "", fmt.Errorf("%w: empty subject", ErrInvalidToken)
	}

	now := a.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims{
		Role: actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

// Parse verifies raw and returns the actor it names.
func (a *Authenticator) Parse(raw string) (billing.Actor, error) {
	c := &claims{}

	token, err := jwt.ParseWithClaims(raw, c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}

		return a.secret, nil
	}, jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil {
		return billing.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid || c.Subject == "" {
		return billing.Actor{}, ErrInvalidToken
	}

	return billing.Actor{ID: c.Subject, Role: c.Role}, nil
}
