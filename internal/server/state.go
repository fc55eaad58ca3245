package server

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"parkadmin/internal/domain"
	"parkadmin/internal/gateway"
	"parkadmin/internal/query"
	"parkadmin/internal/reassign"
	"parkadmin/internal/tickets"
)

// boardMaxAge is how long a loaded ticket board is reused before the next
// visit reloads it
const boardMaxAge = 30 * time.Second

// sessionState is what one dashboard session keeps between requests
type sessionState struct {
	board    *query.Query[string, tickets.Board]
	reassign *reassign.Workflow
}

// stateFor returns the state of the request's session, creating it on first
// use. The board loader is bound to the session's token
func (s *Server) stateFor(api *gateway.API, sessionID string) *sessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[sessionID]
	if !ok {
		st = &sessionState{
			board:    query.New(boardLoader(api)),
			reassign: reassign.New(),
		}
		s.states[sessionID] = st
	}
	return st
}

// endSession releases everything the server holds for a session
func (s *Server) endSession(sessionID string) {
	if s.deps.Realtime != nil {
		s.deps.Realtime.Stop(sessionID)
	}
	s.mu.Lock()
	delete(s.states, sessionID)
	s.mu.Unlock()
}

// trackedSessions lists the sessions with in-memory state or a live channel
func (s *Server) trackedSessions() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	if s.deps.Realtime != nil {
		ids = append(ids, s.deps.Realtime.Sessions()...)
	}
	return ids
}

// Sweep removes expired sessions from the store and releases their
// in-memory state
func (s *Server) Sweep(ctx context.Context) (int64, error) {
	n, err := s.deps.Sessions.Sweep(ctx)
	if err != nil {
		return 0, err
	}

	released := make(map[string]bool)
	for _, id := range s.trackedSessions() {
		if released[id] {
			continue
		}
		alive, err := s.deps.Sessions.Alive(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "session check failed", "error", err)
			continue
		}
		if !alive {
			s.endSession(id)
			released[id] = true
		}
	}
	if len(released) > 0 {
		s.logger.InfoContext(ctx, "session state released", "count", len(released))
	}
	return n, nil
}

// boardLoader reads everything the ticket board shows for a location,
// concurrently
func boardLoader(api *gateway.API) query.Loader[string, tickets.Board] {
	return func(ctx context.Context, locationID string) (tickets.Board, error) {
		board := tickets.Board{LocationID: locationID}
		var slots []domain.Slot

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			board.Tickets, err = api.AllTickets(ctx, locationID)
			return err
		})
		g.Go(func() (err error) {
			board.CheckIns, err = api.CheckinRequests(ctx, locationID)
			return err
		})
		g.Go(func() (err error) {
			board.CheckOuts, err = api.CheckoutRequests(ctx, locationID)
			return err
		})
		g.Go(func() (err error) {
			board.Conflicts, err = api.ConflictGroups(ctx, locationID)
			return err
		})
		g.Go(func() (err error) {
			board.ChangeTimes, err = api.ChangeTimeRequests(ctx, locationID)
			return err
		})
		g.Go(func() (err error) {
			slots, err = api.AllSlots(ctx, locationID)
			return err
		})
		if err := g.Wait(); err != nil {
			return tickets.Board{LocationID: locationID}, err
		}

		board.Slots = make(map[string]domain.Slot, len(slots))
		for _, slot := range slots {
			board.Slots[slot.ID] = slot
		}
		return board, nil
	}
}

// findEntry locates a ticket anywhere on the board
func findEntry(board tickets.Board, ticketID string) (domain.TicketEntry, bool) {
	for _, group := range board.Conflicts {
		if group.Parent.Ticket.ID == ticketID {
			return group.Parent, true
		}
		for _, child := range group.Children {
			if child.Ticket.ID == ticketID {
				return child, true
			}
		}
	}
	for _, list := range [][]domain.TicketEntry{board.ChangeTimes, board.Tickets} {
		for _, e := range list {
			if e.Ticket.ID == ticketID {
				return e, true
			}
		}
	}
	return domain.TicketEntry{}, false
}
