package rest

import (
	"net/http"
	"strings"

	"github.com/ajkula/sendcoordinator/adapter/outbound/auth"
	"github.com/ajkula/sendcoordinator/config"
)

// AuthMiddleware gates the admin REST surface behind a bearer JWT, grounded
// on the teacher's auth middleware but scoped to a single admin principal
// (no role hierarchy — spec.md's core has no user model).
type AuthMiddleware struct {
	tokens *auth.TokenService
	config *config.Config
}

func NewAuthMiddleware(tokens *auth.TokenService, cfg *config.Config) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, config: cfg}
}

func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.config.Security.EnableAuthentication || m.isPublicRoute(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := m.extractToken(r)
		if token == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if _, err := m.tokens.Verify(token); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) isPublicRoute(path string) bool {
	return path == "/healthz" || strings.HasPrefix(path, "/v1/auth/login")
}

func (m *AuthMiddleware) extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
