package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"parkadmin/internal/gateway"
	"parkadmin/internal/session"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	sessionContextKey contextKey = "session"
	flashCookieName              = "parkadmin_flash"
)

// requestLogger logs one line per request through slog
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// sessionMiddleware resolves the session cookie and redirects to the
// sign-in page when there is no valid session
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.currentSession(r)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrExpired), errors.Is(err, session.ErrNotFound):
				if cookie, cerr := r.Cookie(s.config.Session.CookieName); cerr == nil {
					s.endSession(cookie.Value)
				}
			default:
				s.logger.WarnContext(r.Context(), "session lookup failed", "error", err)
			}
			s.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		s.ensureRealtime(sess)

		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminOnly restricts access to ADMIN sessions
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := getSession(r)
		if sess == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !sess.IsAdmin() {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) currentSession(r *http.Request) (*session.Session, error) {
	cookie, err := r.Cookie(s.config.Session.CookieName)
	if err != nil {
		return nil, session.ErrNotFound
	}
	return s.deps.Sessions.Get(r.Context(), cookie.Value)
}

// authenticateRealtime maps a SockJS request to its dashboard session id
func (s *Server) authenticateRealtime(r *http.Request) (string, bool) {
	sess, err := s.currentSession(r)
	if err != nil {
		return "", false
	}
	return sess.ID, true
}

// getSession extracts the session from request context
func getSession(r *http.Request) *session.Session {
	sess, ok := r.Context().Value(sessionContextKey).(*session.Session)
	if !ok {
		return nil
	}
	return sess
}

// apiFor binds the gateway to the request's session
func (s *Server) apiFor(r *http.Request) *gateway.API {
	return gateway.NewAPI(s.deps.Backend, getSession(r), s.config.Backend.PageSize)
}

func (s *Server) ensureRealtime(sess *session.Session) {
	if s.deps.Realtime == nil {
		return
	}
	if _, err := s.deps.Realtime.Ensure(sess.ID, sess); err != nil {
		s.logger.Warn("realtime channel not started", "session", sess.ID, "error", err)
	}
}

// setSessionCookie sets the session cookie
func (s *Server) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Session.CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   !s.config.Debug,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookie removes the session cookie
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.Session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// setFlash stores a one-shot message shown on the next rendered page
func setFlash(w http.ResponseWriter, flashType, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    url.QueryEscape(flashType + "|" + message),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash reads and clears the flash cookie
func popFlash(w http.ResponseWriter, r *http.Request) *FlashMessage {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookieName, Value: "", Path: "/", MaxAge: -1})

	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return nil
	}
	flashType, message, ok := strings.Cut(raw, "|")
	if !ok || message == "" {
		return nil
	}
	return &FlashMessage{Type: flashType, Message: message}
}

// limiter hands out one token bucket per client address
type limiter struct {
	every rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newLimiter(every rate.Limit, burst int) *limiter {
	return &limiter{every: every, burst: burst, clients: make(map[string]*rate.Limiter)}
}

func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.clients[key]
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.clients[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// rateLimit throttles sign-in attempts per client address
func (s *Server) rateLimit(l *limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if !l.allow(host) {
				http.Error(w, "Too many sign-in attempts. Please wait a moment.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getURLParam is a helper to get URL parameters
func getURLParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
