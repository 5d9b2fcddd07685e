package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bryanwahyu/heartscan/internal/domain/users"
)

type contextKey string

const (
	SessionKey contextKey = "session"

	// SessionCookie carries the opaque session id.
	SessionCookie = "sid"
)

// SessionResolver maps a cookie value to a live session.
type SessionResolver interface {
	Session(ctx context.Context, id string) (*users.Session, error)
}

// LoadSession attaches the caller's session to the context when the cookie
// resolves; requests without one pass through untouched.
func LoadSession(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(SessionCookie)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}
			sess, err := resolver.Session(r.Context(), c.Value)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), SessionKey, sess)))
		})
	}
}

// GetSessionFromContext returns the session set by LoadSession, or nil.
func GetSessionFromContext(ctx context.Context) *users.Session {
	if s, ok := ctx.Value(SessionKey).(*users.Session); ok {
		return s
	}
	return nil
}

// RequireSession redirects anonymous page requests to /login.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetSessionFromContext(r.Context()) == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSessionAPI answers anonymous API requests with 401.
func RequireSessionAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetSessionFromContext(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "sesión requerida"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
