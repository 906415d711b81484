// Package api implements the larder REST API using chi.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/starford/larder/internal/store"
)

// Auth modes.
const (
	AuthDisabled = "disabled"
	AuthToken    = "token"
	AuthJWT      = "jwt"
)

// UserHeader names the acting user when auth is disabled.
const UserHeader = "X-User-ID"

// AuthSettings configures AuthMiddleware.
type AuthSettings struct {
	Mode        string
	Token       string
	JWTSecret   string
	DefaultUser string
}

// Claims is the JWT payload. The user id is read from userId, falling back to sub.
type Claims struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// User returns the id the claims identify.
func (c *Claims) User() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

type userKey struct{}

// WithUser stores the acting user id in ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the acting user id, or "" when the request is anonymous.
func UserFromContext(ctx context.Context) string {
	u, _ := ctx.Value(userKey{}).(string)
	return u
}

// AuthMiddleware resolves the acting user for each request.
//
//   - disabled: the user comes from the X-User-ID header, else DefaultUser.
//   - token: requests must carry "Authorization: Bearer <token>" and act as DefaultUser.
//   - jwt: requests must carry an HS256 token signed with JWTSecret. The token is
//     also forwarded to the store so a remote backend sees the caller's session.
func AuthMiddleware(s AuthSettings) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			switch s.Mode {
			case AuthToken:
				if bearer(r) != s.Token || s.Token == "" {
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
				ctx = WithUser(ctx, s.DefaultUser)
			case AuthJWT:
				tok := bearer(r)
				claims, err := ParseToken(tok, s.JWTSecret)
				if err != nil {
					writeJSON(w, http.StatusUnauthorized, errorBody(err.Error()))
					return
				}
				ctx = store.WithAccessToken(WithUser(ctx, claims.User()), tok)
			default:
				user := strings.TrimSpace(r.Header.Get(UserHeader))
				if user == "" {
					user = s.DefaultUser
				}
				ctx = WithUser(ctx, user)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(auth, "Bearer ")
}

// ParseToken validates an HS256 token and returns its claims. Error messages
// carry "JWT" so clients can tell a dead session from other failures.
func ParseToken(tok, secret string) (*Claims, error) {
	if tok == "" {
		return nil, errors.New("JWT missing")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, errors.New("JWT expired")
	case err != nil:
		return nil, fmt.Errorf("JWT invalid: %w", err)
	}
	if claims.User() == "" {
		return nil, errors.New("JWT has no subject")
	}
	return claims, nil
}

// IssueToken signs an HS256 token for userID valid for ttl.
func IssueToken(userID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
