package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/conceptforge/conceptforge/internal/platform/httpx"
)

type contextKey struct{}

// ContextWithToken attaches a resolved token to the request context.
func ContextWithToken(ctx context.Context, token AuthToken) context.Context {
	return context.WithValue(ctx, contextKey{}, token)
}

// TokenFromContext returns the token resolved by RequireToken, or a zero
// token when the request never passed the middleware.
func TokenFromContext(ctx context.Context) AuthToken {
	token, _ := ctx.Value(contextKey{}).(AuthToken)
	return token
}

// RequireToken resolves the bearer session key against the token table and
// rejects requests without a live session. Handlers behind it read the
// caller's identity with TokenFromContext.
func RequireToken(store TokenStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := bearerKey(r)
			if key == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing session token")
				return
			}
			token, err := store.Get(r.Context(), key)
			if err != nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session expired or unknown")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithToken(r.Context(), token)))
		})
	}
}

func bearerKey(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
