package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/kunaaa123/ai-mcp-hub/internal/auth"
)

type contextKey string

const roleKey contextKey = "role"

// withRole resolves the Authorization bearer token to a role and stores
// it on the request context. Missing or unknown tokens resolve to
// readonly, never to a rejection.
func withRole(tokens *auth.TokenTable) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
				token = strings.TrimPrefix(header, "Bearer ")
			}
			role := tokens.Resolve(token)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleKey, role)))
		})
	}
}

// roleFrom returns the caller role resolved by the middleware.
func roleFrom(ctx context.Context) auth.Role {
	if role, ok := ctx.Value(roleKey).(auth.Role); ok {
		return role
	}
	return auth.RoleReadonly
}
