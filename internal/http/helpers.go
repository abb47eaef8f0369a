package http

import (
	"context"
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "session"

type ctxKey int

const authKey ctxKey = iota

func withAuth(ctx context.Context, a services.Authenticated) context.Context {
	return context.WithValue(ctx, authKey, a)
}

// authFrom returns the authenticated caller stored by requireAuth.
func authFrom(ctx context.Context) (services.Authenticated, bool) {
	a, ok := ctx.Value(authKey).(services.Authenticated)
	return a, ok
}

// currentUser returns the caller of a request that passed requireAuth.
func currentUser(r *http.Request) core.User {
	a, _ := authFrom(r.Context())
	return a.User
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess core.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   int(s.auth.SessionTTL() / time.Second),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionToken reads the token from the session cookie, then from a Bearer
// Authorization header.
func sessionToken(r *http.Request) (token string, fromCookie bool) {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return bearerToken(r), false
}

// requireAuth resolves the session and rejects anonymous requests. A
// renewed cookie session gets a fresh cookie.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := sessionToken(r)
		a, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			if fromCookie {
				s.clearSessionCookie(w)
			}
			s.writeError(w, r, err)
			return
		}
		if a.Renewed && fromCookie {
			s.setSessionCookie(w, a.Session)
		}
		next(w, r.WithContext(withAuth(r.Context(), a)))
	}
}

// requireAdmin is requireAuth limited to admins.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !currentUser(r).IsAdmin() {
			s.writeError(w, r, core.ErrForbidden)
			return
		}
		next(w, r)
	})
}

// optionalAuth attaches the caller when a valid session is present and
// lets anonymous requests through.
func (s *Server) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token, _ := sessionToken(r); token != "" {
			if a, err := s.auth.Authenticate(r.Context(), token); err == nil {
				r = r.WithContext(withAuth(r.Context(), a))
			}
		}
		next(w, r)
	}
}
