package middleware

import (
	"net/http"
	"strings"
)

// TokenValidator checks dashboard session tokens.
type TokenValidator interface {
	Validate(token string) error
}

// AdminAuth guards the admin API. A request passes with either the exact
// shared admin key in X-Admin-Key or a valid Bearer session token.
func AdminAuth(adminKey string, tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := r.Header.Get("X-Admin-Key"); key != "" {
				if key != adminKey {
					unauthorized(w)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if token := extractBearer(r); token != "" && tokens != nil {
				if err := tokens.Validate(token); err != nil {
					unauthorized(w)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			unauthorized(w)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
