package auth

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const ctxKeySub ctxKey = "sub"

// WithUserID stores the authenticated user id on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKeySub, userID)
}

// UserID returns the authenticated user id, or false for guests.
func UserID(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(ctxKeySub).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// Middleware authenticates requests carrying a bearer token (header, or the
// token query parameter for WebSocket clients). Requests without one pass
// through as guests; a bad token is rejected.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r)
			if tok == "" {
				next.ServeHTTP(w, r)
				return
			}
			sub, err := v.Parse(tok)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), sub)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
