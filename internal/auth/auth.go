package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// CookieName carries the access token for browser clients.
	CookieName = "access_token"
	issuer     = "ecoles"
	subject    = "access"
)

var (
	// ErrInvalidPassword indicates a password outside the shared list.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidToken indicates a missing, malformed, expired or forged token.
	ErrInvalidToken = errors.New("invalid access token")
)

// Gate grants access tokens to holders of one of the shared passwords.
type Gate struct {
	passwords []string
	secret    []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewGate builds a gate. An empty password list refuses every password.
func NewGate(passwords []string, secret string, ttl time.Duration) *Gate {
	cleaned := make([]string, 0, len(passwords))
	for _, p := range passwords {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return &Gate{
		passwords: cleaned,
		secret:    []byte(secret),
		ttl:       ttl,
		now:       time.Now,
	}
}

// TTL is the lifetime of issued tokens.
func (g *Gate) TTL() time.Duration {
	return g.ttl
}

// Verify checks password and returns a signed token.
func (g *Gate) Verify(password string) (string, error) {
	password = strings.TrimSpace(password)
	matched := false
	for _, candidate := range g.passwords {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(password)) == 1 {
			matched = true
		}
	}
	if password == "" || !matched {
		return "", ErrInvalidPassword
	}

	now := g.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// Validate checks the signature, issuer and expiry of token.
func (g *Gate) Validate(token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(subject),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil || !parsed.Valid {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
