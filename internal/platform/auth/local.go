package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// LocalVerifier validates HS256-signed tokens for local development and
// tests, where the Firebase Admin SDK is unavailable. Tokens carry the
// subject as the user ID plus arbitrary custom claims.
type LocalVerifier struct {
	secret []byte
	issuer string
}

// NewLocalVerifier constructs a LocalVerifier over the shared secret.
func NewLocalVerifier(secret string, issuer string) (*LocalVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("local verifier: signing secret is required")
	}
	return &LocalVerifier{
		secret: []byte(secret),
		issuer: strings.TrimSpace(issuer),
	}, nil
}

// VerifyToken parses and validates the token signature, expiry, and issuer.
func (v *LocalVerifier) VerifyToken(_ context.Context, token string) (TokenClaims, error) {
	if v == nil || len(v.secret) == 0 {
		return TokenClaims{}, errors.New("local verifier not initialised")
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrTokenExpired
		}
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return TokenClaims{}, ErrTokenInvalid
	}

	if v.issuer != "" {
		if !claims.VerifyIssuer(v.issuer, true) {
			return TokenClaims{}, fmt.Errorf("%w: issuer mismatch", ErrTokenInvalid)
		}
	}

	subject, _ := claims["sub"].(string)
	if strings.TrimSpace(subject) == "" {
		return TokenClaims{}, fmt.Errorf("%w: subject missing", ErrTokenInvalid)
	}

	return TokenClaims{UID: subject, Claims: map[string]any(claims)}, nil
}

var _ TokenVerifier = (*LocalVerifier)(nil)
