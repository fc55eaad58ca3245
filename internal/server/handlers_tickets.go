package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"

	"parkadmin/internal/gateway"
	"parkadmin/internal/query"
	"parkadmin/internal/reassign"
	"parkadmin/internal/tickets"
)

const extendTabURL = "/tickets?tab=extend"

// boardPage is the view model of the ticket board
type boardPage struct {
	LocationID string
	Search     string
	Board      tickets.Board
	Tabs       []tickets.Tab
	Active     tickets.Tab
	State      query.State[string, tickets.Board]
	Error      string
	ReturnTo   string
}

// TabURL links to another tab keeping the search
func (p boardPage) TabURL(slug string) string {
	v := url.Values{"tab": {slug}}
	if p.Search != "" {
		v.Set("q", p.Search)
	}
	return "/tickets?" + v.Encode()
}

// handleTicketBoard shows the tabbed ticket board of the selected location
func (s *Server) handleTicketBoard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	params := r.URL.Query()

	locationID := params.Get("location")
	if locationID == "" {
		locationID = s.selectedLocation(r)
	}
	if locationID == "" {
		setFlash(w, "info", "Choose a location to open its ticket board.")
		http.Redirect(w, r, "/locations", http.StatusSeeOther)
		return
	}

	api := s.apiFor(r)
	st := s.stateFor(api, getSession(r).ID)

	var state query.State[string, tickets.Board]
	if params.Get("refresh") != "" || s.now().Sub(st.board.Snapshot().LoadedAt) > boardMaxAge {
		state = st.board.Load(ctx, locationID)
	} else {
		state = st.board.Get(ctx, locationID)
	}
	if errors.Is(state.Err, gateway.ErrUnauthenticated) || gateway.IsStatus(state.Err, http.StatusUnauthorized) {
		s.backendError(w, r, state.Err)
		return
	}

	search := strings.TrimSpace(params.Get("q"))
	registry := tickets.NewRegistry(state.Data, search, s.classifier, s.now())
	tab, ok := tickets.ParseTab(params.Get("tab"))
	if !ok {
		tab = tickets.TabUpComing
	}
	if err := registry.Select(tab); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	page := boardPage{
		LocationID: locationID,
		Search:     search,
		Board:      state.Data,
		Tabs:       registry.Tabs(),
		Active:     registry.Active(),
		State:      state,
		ReturnTo:   r.URL.RequestURI(),
	}
	if state.Err != nil {
		s.logger.WarnContext(ctx, "ticket board load failed", "location", locationID, "error", state.Err)
		page.Error = gateway.Message(state.Err)
	}

	data := s.newPageData(w, r, "Tickets", "tickets")
	data.Data = page
	s.render(w, r, "pages/tickets.html", data)
}

// handleTicketQR renders a ticket's QR code as PNG
func (s *Server) handleTicketQR(w http.ResponseWriter, r *http.Request) {
	ticketID := getURLParam(r, "id")
	content := ticketID

	sess := getSession(r)
	s.mu.Lock()
	st := s.states[sess.ID]
	s.mu.Unlock()
	if st != nil {
		if entry, ok := findEntry(st.board.Snapshot().Data, ticketID); ok && entry.Ticket.QRCode != "" {
			content = entry.Ticket.QRCode
		}
	}

	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		http.Error(w, "Error generating QR code", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	_, _ = w.Write(png)
}

// handleReassignStart opens the slot picker for a conflicted ticket
func (s *Server) handleReassignStart(w http.ResponseWriter, r *http.Request) {
	ticketID := getURLParam(r, "id")
	api := s.apiFor(r)
	st := s.stateFor(api, getSession(r).ID)

	entry, ok := findEntry(st.board.Snapshot().Data, ticketID)
	if !ok {
		setFlash(w, "error", "That ticket is no longer on the board.")
		http.Redirect(w, r, extendTabURL, http.StatusSeeOther)
		return
	}

	// A new pick replaces one the user walked away from
	st.reassign.Cancel()

	err := st.reassign.Start(r.Context(), api, reassign.TargetFrom(entry))
	switch {
	case errors.Is(err, reassign.ErrInvalidState):
		setFlash(w, "warning", "A reassignment is already in progress.")
		http.Redirect(w, r, extendTabURL, http.StatusSeeOther)
		return
	case err != nil:
		if errors.Is(err, gateway.ErrUnauthenticated) {
			s.backendError(w, r, err)
			return
		}
		setFlash(w, "error", gateway.Message(err))
		http.Redirect(w, r, extendTabURL, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/reassign", http.StatusSeeOther)
}

// handleReassignPage shows the grouped slot options
func (s *Server) handleReassignPage(w http.ResponseWriter, r *http.Request) {
	st := s.stateFor(s.apiFor(r), getSession(r).ID)
	view := st.reassign.View()
	if view.State == reassign.Idle {
		http.Redirect(w, r, extendTabURL, http.StatusSeeOther)
		return
	}

	data := s.newPageData(w, r, "Reassign slot", "tickets")
	data.Data = map[string]any{
		"View":  view,
		"Error": gateway.Message(view.Err),
	}
	s.render(w, r, "pages/reassign.html", data)
}

// handleReassignSelect toggles the chosen slot
func (s *Server) handleReassignSelect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error processing form", http.StatusBadRequest)
		return
	}
	st := s.stateFor(s.apiFor(r), getSession(r).ID)
	st.reassign.Select(r.FormValue("slot_id"))
	http.Redirect(w, r, "/reassign", http.StatusSeeOther)
}

// handleReassignConfirm submits the chosen slot
func (s *Server) handleReassignConfirm(w http.ResponseWriter, r *http.Request) {
	api := s.apiFor(r)
	st := s.stateFor(api, getSession(r).ID)

	err := st.reassign.Confirm(r.Context(), api, st.board.Invalidate)
	switch {
	case err == nil:
		setFlash(w, "success", reassign.SuccessMessage)
		http.Redirect(w, r, extendTabURL+"&refresh=1", http.StatusSeeOther)
	case errors.Is(err, reassign.ErrNoSelection):
		setFlash(w, "warning", "Select a slot first.")
		http.Redirect(w, r, "/reassign", http.StatusSeeOther)
	case errors.Is(err, reassign.ErrInvalidState):
		http.Redirect(w, r, extendTabURL, http.StatusSeeOther)
	case errors.Is(err, gateway.ErrUnauthenticated):
		s.backendError(w, r, err)
	default:
		// The page shows the failure; the selection is kept for a retry
		http.Redirect(w, r, "/reassign", http.StatusSeeOther)
	}
}

// handleReassignCancel abandons the slot picker
func (s *Server) handleReassignCancel(w http.ResponseWriter, r *http.Request) {
	st := s.stateFor(s.apiFor(r), getSession(r).ID)
	st.reassign.Cancel()
	http.Redirect(w, r, extendTabURL, http.StatusSeeOther)
}
