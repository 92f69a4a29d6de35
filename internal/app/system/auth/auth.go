// internal/app/system/auth/auth.go

// Package auth issues and validates the bearer tokens the mobile apps send,
// and exposes the current principal to handlers through the request context.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Principal is what we encode in the token & inject into r.Context().
type Principal struct {
	ID            string // user ObjectID hex
	Name          string
	Role          string // parent | teacher | receptionist | admin
	InstitutionID string // ObjectID hex; empty for an unactivated guardian
}

// Claims is the JWT payload for a signed-in principal.
type Claims struct {
	Name          string `json:"name"`
	Role          string `json:"role"`
	InstitutionID string `json:"institution_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager signs and parses principal tokens (HS256).
type TokenManager struct {
	key    []byte
	issuer string
	ttl    time.Duration
	log    *zap.Logger
}

// NewTokenManager creates a token manager. The key must be strong in
// production; weak keys are rejected outside dev mode by config validation.
func NewTokenManager(key, issuer string, ttl time.Duration, logger *zap.Logger) (*TokenManager, error) {
	if key == "" {
		return nil, errors.New("auth: signing key is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenManager{key: []byte(key), issuer: issuer, ttl: ttl, log: logger}, nil
}

// Issue signs a token for the principal and returns it with its expiry.
func (m *TokenManager) Issue(p Principal) (string, time.Time, error) {
	exp := time.Now().Add(m.ttl)
	claims := Claims{
		Name:          p.Name,
		Role:          p.Role,
		InstitutionID: p.InstitutionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   p.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

// Parse validates a token string and reconstructs the principal.
func (m *TokenManager) Parse(tokenStr string) (Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return m.key, nil
	})
	if err != nil {
		return Principal{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return Principal{}, errors.New("issuer mismatch")
	}
	return Principal{
		ID:            claims.Subject,
		Name:          claims.Name,
		Role:          claims.Role,
		InstitutionID: claims.InstitutionID,
	}, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request-context plumbing                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

type ctxKey string

const currentPrincipalKey ctxKey = "currentPrincipal"

// CurrentPrincipal returns the principal & "found?" flag.
func CurrentPrincipal(r *http.Request) (*Principal, bool) {
	p, ok := r.Context().Value(currentPrincipalKey).(*Principal)
	return p, ok
}

// WithPrincipal returns a request whose context carries p. Exported for
// handler tests.
func WithPrincipal(r *http.Request, p *Principal) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentPrincipalKey, p))
}

// BearerToken extracts the token from the Authorization header, falling back
// to the "token" query parameter for websocket clients that cannot set
// headers.
func BearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if authz != "" && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// LoadPrincipal injects the principal into context if a valid token is
// presented. Invalid tokens are treated as anonymous; route guards decide
// whether anonymity is acceptable.
func (m *TokenManager) LoadPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := BearerToken(r); tok != "" {
			p, err := m.Parse(tok)
			if err == nil {
				r = WithPrincipal(r, &p)
			} else {
				m.log.Debug("rejected bearer token", zap.Error(err))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a principal in context (set by
// LoadPrincipal). API callers get a plain 401.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentPrincipal(r); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole ensures the principal holds one of the allowed roles.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := CurrentPrincipal(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, allowed := set[strings.ToLower(p.Role)]; !allowed {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
