// Package identity issues and verifies the HS256 tokens that authorise ledger writes.
package identity

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ScopeAppend authorises appending records to the ledger.
const ScopeAppend = "ledger:append"

// ErrMissingScope is returned by Authorize when a valid token lacks the scope.
var ErrMissingScope = errors.New("token lacks required scope")

// WriterClaims are the JWT claims for a ledger write token.
type WriterClaims struct {
	jwt.RegisteredClaims
	Scopes []string `json:"scopes"`
}

// TokenIssuer issues and verifies write tokens signed with HS256 using a
// secret shared between the service and whoever mints tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewTokenIssuer creates a TokenIssuer.
//
//	secret: HMAC key; must be non-empty.
//	issuer: the "iss" claim value.
//	ttl: token lifetime (default: 24 hours).
func NewTokenIssuer(secret, issuer string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}, nil
}

// Issue creates a signed token for subject carrying scopes.
func (t *TokenIssuer) Issue(subject string, scopes []string) (string, error) {
	now := time.Now().UTC()
	claims := WriterClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			ID:        uuid.New().String(),
		},
		Scopes: scopes,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its claims on success.
func (t *TokenIssuer) Verify(tokenStr string) (*WriterClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&WriterClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return t.secret, nil
		},
		jwt.WithIssuer(t.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(*WriterClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// Authorize verifies tokenStr and checks that it carries scope.
func (t *TokenIssuer) Authorize(tokenStr, scope string) (*WriterClaims, error) {
	claims, err := t.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(claims.Scopes, scope) {
		return nil, fmt.Errorf("%w: %s", ErrMissingScope, scope)
	}
	return claims, nil
}

// TTL returns the configured token lifetime.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }
