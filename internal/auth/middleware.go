package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"rag-doc-assistant/internal/session"
)

type contextKey string

// SessionContextKey is the context key for storing the resolved session
const SessionContextKey contextKey = "session"

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthHeader = errors.New("invalid authorization header format")
)

// SessionLookup resolves a session id. session.Manager satisfies it.
type SessionLookup interface {
	Get(id string) (*session.Session, error)
}

// FailureHandler writes the response for a request that could not be
// authenticated. err is one of the header errors above or the lookup error.
type FailureHandler func(w http.ResponseWriter, r *http.Request, err error)

// Middleware resolves the bearer token to a session and adds it to the context
func Middleware(sessions SessionLookup, fail FailureHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := BearerToken(r)
			if err != nil {
				fail(w, r, err)
				return
			}

			s, err := sessions.Get(id)
			if err != nil {
				fail(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), SessionContextKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidAuthHeader
	}
	return parts[1], nil
}

// SessionFromContext extracts the authenticated session from the context
func SessionFromContext(ctx context.Context) *session.Session {
	s, ok := ctx.Value(SessionContextKey).(*session.Session)
	if !ok {
		panic("session not found in context")
	}

	return s
}
