package server

import (
	"net/http"

	"parkadmin/internal/realtime"
)

// handleNotifications lists the live notifications received for this
// session, newest first
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	var events []realtime.Event
	connected := false
	if s.deps.Realtime != nil {
		if feed, ok := s.deps.Realtime.Feed(getSession(r).ID); ok {
			events = feed.Recent()
			connected = true
		}
	}

	data := s.newPageData(w, r, "Notifications", "notifications")
	data.Data = map[string]any{
		"Events":    events,
		"Enabled":   s.deps.Realtime != nil,
		"Connected": connected,
	}
	s.render(w, r, "pages/notifications.html", data)
}
