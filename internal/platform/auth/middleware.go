package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/velour-beauty/api/internal/platform/httpx"
)

const (
	defaultRoleClaim     = "role"
	defaultEmailClaim    = "email"
	defaultFallbackRole  = RoleUser
	defaultVerifyTimeout = 5 * time.Second
)

var (
	// ErrTokenExpired signals that the provided bearer token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the provided bearer token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// TokenClaims carries the verified token payload independent of the verifier backend.
type TokenClaims struct {
	UID    string
	Claims map[string]any
}

// TokenVerifier verifies bearer tokens and returns the decoded claims.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (TokenClaims, error)
}

// Authenticator wires bearer-token verification into HTTP middleware.
type Authenticator struct {
	verifier TokenVerifier

	roleClaim  string
	emailClaim string

	fallbackRole string
	timeout      time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithRoleClaim overrides the custom claim used for role extraction.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		claim = strings.TrimSpace(claim)
		if claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithFallbackRole sets the default role when no custom claim is present.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		role = normaliseRole(role)
		if role != "" {
			a.fallbackRole = role
		}
	}
}

// WithVerificationTimeout sets the timeout used when verifying tokens.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:     verifier,
		roleClaim:    defaultRoleClaim,
		emailClaim:   defaultEmailClaim,
		fallbackRole: defaultFallbackRole,
		timeout:      defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireAuth enforces a valid bearer token and optionally restricts access to roles.
// A missing token short-circuits with please_login before any service call.
func (a *Authenticator) RequireAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		if r := normaliseRole(role); r != "" {
			allowed[r] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if a == nil || a.verifier == nil {
				httpx.WriteError(ctx, w, httpx.NewError("auth_unavailable", "authentication is unavailable", http.StatusServiceUnavailable))
				return
			}

			token := bearerToken(r)
			if token == "" {
				httpx.WriteError(ctx, w, httpx.NewError("please_login", "please login to continue", http.StatusUnauthorized))
				return
			}

			verifyCtx, cancel := a.contextWithTimeout(ctx)
			if cancel != nil {
				defer cancel()
			}

			claims, err := a.verifier.VerifyToken(verifyCtx, token)
			if err != nil {
				switch {
				case errors.Is(err, ErrTokenExpired):
					httpx.WriteError(ctx, w, httpx.NewError("token_expired", "session expired; please login again", http.StatusUnauthorized))
				default:
					httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "invalid credentials", http.StatusUnauthorized))
				}
				return
			}

			uid := strings.TrimSpace(claims.UID)
			if uid == "" {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "invalid credentials", http.StatusUnauthorized))
				return
			}

			roles := rolesFromClaims(claims.Claims, a.roleClaim)
			if len(roles) == 0 {
				roles = []string{a.fallbackRole}
			}

			identity := &Identity{
				UID:    uid,
				Email:  claimAsString(claims.Claims, a.emailClaim),
				Roles:  roles,
				Claims: claims.Claims,
			}

			if len(allowed) > 0 && !hasAllowedRole(identity.Roles, allowed) {
				httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func (a *Authenticator) contextWithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a == nil || a.timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, a.timeout)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func hasAllowedRole(identityRoles []string, allowed map[string]struct{}) bool {
	for _, role := range identityRoles {
		if _, ok := allowed[normaliseRole(role)]; ok {
			return true
		}
	}
	return false
}

func rolesFromClaims(claims map[string]any, key string) []string {
	if len(claims) == 0 {
		return nil
	}
	switch value := claims[key].(type) {
	case string:
		if role := normaliseRole(value); role != "" {
			return []string{role}
		}
	case []any:
		roles := make([]string, 0, len(value))
		seen := make(map[string]struct{}, len(value))
		for _, entry := range value {
			str, ok := entry.(string)
			if !ok {
				continue
			}
			role := normaliseRole(str)
			if role == "" {
				continue
			}
			if _, dup := seen[role]; dup {
				continue
			}
			seen[role] = struct{}{}
			roles = append(roles, role)
		}
		if len(roles) > 0 {
			return roles
		}
	}
	return nil
}

func claimAsString(claims map[string]any, key string) string {
	if len(claims) == 0 {
		return ""
	}
	if value, ok := claims[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
