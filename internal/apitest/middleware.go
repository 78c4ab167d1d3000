package apitest

import (
	"context"
	"net/http"
	"strings"

	"github.com/erazemk/garderoba/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// authMiddleware validates the bearer token and adds its claims to the context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			jsonError(w, http.StatusUnauthorized, "missing or invalid authorization header")
			return
		}

		claims, err := auth.ValidateToken(s.secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userID returns the authenticated user's id from the request context.
func userID(r *http.Request) string {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	if claims == nil {
		return ""
	}
	return claims.UserID
}

// instrument counts requests per route and serves injected failures.
func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests[route]++
		f, failing := s.failures[route]
		if failing && f.remaining > 0 {
			f.remaining--
			if f.remaining == 0 {
				delete(s.failures, route)
			} else {
				s.failures[route] = f
			}
		}
		s.mu.Unlock()

		if failing {
			jsonMessage(w, f.status, f.message)
			return
		}
		next.ServeHTTP(w, r)
	})
}
