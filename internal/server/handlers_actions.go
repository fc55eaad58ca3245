package server

import (
	"errors"
	"net/http"
	"strings"

	"parkadmin/internal/action"
	"parkadmin/internal/gateway"
)

// localPath keeps redirects on this site
func localPath(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}

// handleActionPrompt records a requested action and asks for confirmation.
// Nothing is sent to the backend here
func (s *Server) handleActionPrompt(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error processing form", http.StatusBadRequest)
		return
	}

	sess := getSession(r)
	kind := action.Kind(r.FormValue("kind"))
	recordID := strings.TrimSpace(r.FormValue("id"))
	returnTo := localPath(r.FormValue("return_to"), "/")

	if s.deps.Gate.Busy(recordID) {
		setFlash(w, "warning", "An action for this record is already in progress.")
		http.Redirect(w, r, returnTo, http.StatusSeeOther)
		return
	}

	args := map[string]string{}
	if status := r.FormValue("status"); status != "" {
		args["status"] = status
	}

	pending, err := s.deps.Gate.Prompt(sess.ID, kind, recordID, args, returnTo)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, action.ErrUnknownAction) {
			status = http.StatusNotFound
		}
		s.renderError(w, r, status, "This action is not available.")
		return
	}
	http.Redirect(w, r, "/actions/"+pending.ID, http.StatusSeeOther)
}

// handleActionPage shows the confirmation dialog
func (s *Server) handleActionPage(w http.ResponseWriter, r *http.Request) {
	pending, ok := s.deps.Gate.Get(getSession(r).ID, getURLParam(r, "id"))
	if !ok {
		setFlash(w, "error", "This confirmation has expired. Please try again.")
		http.Redirect(w, r, "/tickets", http.StatusSeeOther)
		return
	}

	data := s.newPageData(w, r, pending.Title, "")
	data.Data = pending
	s.render(w, r, "pages/confirm.html", data)
}

// handleActionConfirm performs the confirmed action
func (s *Server) handleActionConfirm(w http.ResponseWriter, r *http.Request) {
	sess := getSession(r)
	api := s.apiFor(r)

	pending, notice, err := s.deps.Gate.Confirm(r.Context(), sess.ID, getURLParam(r, "id"), api)
	if errors.Is(err, gateway.ErrUnauthenticated) {
		s.backendError(w, r, err)
		return
	}
	setFlash(w, notice.Type, notice.Message)

	if errors.Is(err, action.ErrNotFound) {
		http.Redirect(w, r, "/tickets", http.StatusSeeOther)
		return
	}
	if err == nil {
		s.mu.Lock()
		st := s.states[sess.ID]
		s.mu.Unlock()
		if st != nil {
			st.board.Invalidate()
		}
	}
	http.Redirect(w, r, localPath(pending.ReturnTo, "/"), http.StatusSeeOther)
}

// handleActionCancel discards the pending action
func (s *Server) handleActionCancel(w http.ResponseWriter, r *http.Request) {
	pending, ok := s.deps.Gate.Cancel(getSession(r).ID, getURLParam(r, "id"))
	if !ok {
		http.Redirect(w, r, "/tickets", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, localPath(pending.ReturnTo, "/"), http.StatusSeeOther)
}
