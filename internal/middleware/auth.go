package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/stockpredict/server/internal/app/services/auth"
	"github.com/stockpredict/server/pkg/logger"
)

// AuthMiddleware validates the bearer token on every request except the
// configured skip paths and path prefixes.
type AuthMiddleware struct {
	secret       []byte
	log          *logger.Logger
	skipPaths    map[string]bool
	skipPrefixes []string
}

// NewAuthMiddleware creates an authentication middleware. Paths ending in
// "/" are treated as prefixes; the bare root matches exactly.
func NewAuthMiddleware(secret []byte, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth-middleware")
	}
	m := &AuthMiddleware{
		secret:    secret,
		log:       log,
		skipPaths: make(map[string]bool),
	}
	for _, path := range skipPaths {
		if path != "/" && strings.HasSuffix(path, "/") {
			m.skipPrefixes = append(m.skipPrefixes, path)
			continue
		}
		m.skipPaths[path] = true
	}
	return m
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.unauthorized(w, r, "missing Authorization header")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			m.unauthorized(w, r, "invalid Authorization header format")
			return
		}

		claims, err := auth.ParseToken(parts[1], m.secret)
		if err != nil {
			m.log.WithError(err).WithField("path", r.URL.Path).Warn("token validation failed")
			m.unauthorized(w, r, "invalid or expired token")
			return
		}
		if claims.TokenType != auth.TokenTypeAccess {
			m.unauthorized(w, r, "access token required")
			return
		}
		uid, err := claims.UID()
		if err != nil {
			m.unauthorized(w, r, "invalid token subject")
			return
		}

		ctx := context.WithValue(r.Context(), userUIDKey, uid)
		ctx = context.WithValue(ctx, nicknameKey, claims.Nickname)
		ctx = context.WithValue(ctx, roleKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) skip(path string) bool {
	if m.skipPaths[path] {
		return true
	}
	for _, prefix := range m.skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (m *AuthMiddleware) unauthorized(w http.ResponseWriter, r *http.Request, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})

	m.log.WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
	}).Warn("authentication failed: ", msg)
}

// RequireRole ensures the authenticated user carries the given role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if Role(r.Context()) != role {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "insufficient role"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
