package server

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"time"

	"parkadmin/internal/gateway"
	"parkadmin/internal/session"
)

// PageData holds common data for all page templates
type PageData struct {
	Title    string
	Nav      string
	Year     int
	Session  *session.Session
	Realtime bool
	Flash    *FlashMessage
	Data     any
}

// FlashMessage represents a flash message
type FlashMessage struct {
	Type    string // success, error, warning, info
	Message string
}

// newPageData creates a new PageData with common fields and consumes any
// pending flash message
func (s *Server) newPageData(w http.ResponseWriter, r *http.Request, title, nav string) *PageData {
	return &PageData{
		Title:    title,
		Nav:      nav,
		Year:     s.now().Year(),
		Session:  getSession(r),
		Realtime: s.deps.Hub != nil && s.deps.Realtime != nil,
		Flash:    popFlash(w, r),
	}
}

// render renders a template with the given data
func (s *Server) render(w http.ResponseWriter, r *http.Request, template string, data *PageData) {
	s.renderStatus(w, r, http.StatusOK, template, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, template string, data *PageData) {
	var buf bytes.Buffer
	if err := s.deps.Templates.Render(&buf, template, data); err != nil {
		s.logger.ErrorContext(r.Context(), "render failed", "template", template, "error", err)
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderError shows a failure page in the dashboard layout
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	data := s.newPageData(w, r, "Something went wrong", "")
	data.Data = map[string]any{"Status": status, "Message": message}
	s.renderStatus(w, r, status, "pages/error.html", data)
}

// backendError renders a gateway failure, sending the user back to sign in
// when the session no longer carries a token
func (s *Server) backendError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, gateway.ErrUnauthenticated) || gateway.IsStatus(err, http.StatusUnauthorized) {
		s.clearSessionCookie(w)
		setFlash(w, "error", gateway.Message(gateway.ErrUnauthenticated))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	s.logger.WarnContext(r.Context(), "backend request failed", "path", r.URL.Path, "error", err)
	s.renderError(w, r, http.StatusBadGateway, gateway.Message(err))
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// handleLoginPage renders the login page
func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	// If already logged in, redirect to the dashboard
	if sess, err := s.currentSession(r); err == nil {
		http.Redirect(w, r, landingFor(sess), http.StatusSeeOther)
		return
	}

	data := s.newPageData(w, r, "Sign in", "")
	s.render(w, r, "pages/login.html", data)
}

// handleLogin exchanges credentials for a backend token and opens a session
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error processing form", http.StatusBadRequest)
		return
	}

	form := loginForm{
		Email:    strings.TrimSpace(r.FormValue("email")),
		Password: r.FormValue("password"),
	}
	fail := func(message string) {
		data := s.newPageData(w, r, "Sign in", "")
		data.Flash = &FlashMessage{Type: "error", Message: message}
		data.Data = map[string]any{"Email": form.Email}
		s.render(w, r, "pages/login.html", data)
	}

	if err := s.validate.Struct(form); err != nil {
		fail("Please enter a valid email and password.")
		return
	}

	ctx := r.Context()
	result, err := s.deps.Backend.Login(ctx, form.Email, form.Password)
	if err != nil {
		s.logger.InfoContext(ctx, "sign-in rejected", "email", form.Email, "error", err)
		if gateway.IsStatus(err, http.StatusUnauthorized) || gateway.IsStatus(err, http.StatusBadRequest) {
			fail("Invalid email or password.")
			return
		}
		fail(gateway.Message(err))
		return
	}

	sess, err := s.deps.Sessions.Create(ctx, form.Email, result.Token, result.ExpiryTime.Time)
	switch {
	case errors.Is(err, session.ErrRoleNotAllowed):
		fail("This account is not allowed to use the dashboard.")
		return
	case err != nil:
		s.logger.ErrorContext(ctx, "session not created", "error", err)
		fail("Could not start a session. Please try again.")
		return
	}

	s.setSessionCookie(w, sess)
	s.ensureRealtime(sess)

	http.Redirect(w, r, landingFor(sess), http.StatusSeeOther)
}

// landingFor is the first page a role sees
func landingFor(sess *session.Session) string {
	if sess.IsAdmin() {
		return "/overview"
	}
	return "/tickets"
}

// handleLanding sends the dashboard root to the role's landing page
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, landingFor(getSession(r)), http.StatusSeeOther)
}

// handleLogout ends the session and its live notification channel
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, err := s.currentSession(r); err == nil {
		if err := s.deps.Sessions.Delete(r.Context(), sess.ID); err != nil {
			s.logger.WarnContext(r.Context(), "session not deleted", "error", err)
		}
		s.endSession(sess.ID)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// monthToDate is the default statistics window
func monthToDate(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, now
}
