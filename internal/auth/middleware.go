package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rjwaters/cineshelf/internal/httputil"
)

type contextKey string

const ContextClaims contextKey = "claims"

type Middleware struct {
	tokens *TokenService
}

func NewMiddleware(tokens *TokenService) *Middleware {
	return &Middleware{tokens: tokens}
}

// RequireAuth rejects requests without a valid bearer token. When no token
// service is configured the API runs open, which is the expected mode for a
// box on a private LAN.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.tokens == nil {
			next.ServeHTTP(w, r)
			return
		}

		token := ExtractToken(r)
		if token == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}

		claims, err := m.tokens.Validate(token)
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ContextClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ClaimsFromContext(ctx context.Context) *Claims {
	if v, ok := ctx.Value(ContextClaims).(*Claims); ok {
		return v
	}
	return nil
}

// ExtractToken pulls the bearer token from the Authorization header, the
// token query parameter (websocket clients), or the session cookie.
func ExtractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	if c, err := r.Cookie("session"); err == nil {
		return c.Value
	}
	return ""
}
