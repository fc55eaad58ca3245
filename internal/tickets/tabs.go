package tickets

import (
	"fmt"
	"strings"
	"time"

	"parkadmin/internal/domain"
)

// TabID identifies a ticket board tab
type TabID int

const (
	TabUpComing TabID = iota
	TabCheckIn
	TabOnService
	TabExtend
	TabChangeTime
	TabOverdue
	TabCheckOut
)

// Order is the order tabs are shown in
var Order = []TabID{TabUpComing, TabCheckIn, TabOnService, TabExtend, TabChangeTime, TabOverdue, TabCheckOut}

func (id TabID) Label() string {
	switch id {
	case TabUpComing:
		return "Up Coming"
	case TabCheckIn:
		return "Check in"
	case TabOnService:
		return "On Service"
	case TabExtend:
		return "Extend"
	case TabChangeTime:
		return "Change Time"
	case TabOverdue:
		return "Overdue"
	case TabCheckOut:
		return "Check out"
	}
	return ""
}

// Slug is the tab's URL form
func (id TabID) Slug() string {
	switch id {
	case TabUpComing:
		return "upcoming"
	case TabCheckIn:
		return "check-in"
	case TabOnService:
		return "on-service"
	case TabExtend:
		return "extend"
	case TabChangeTime:
		return "change-time"
	case TabOverdue:
		return "overdue"
	case TabCheckOut:
		return "check-out"
	}
	return ""
}

func (id TabID) valid() bool {
	return id >= TabUpComing && id <= TabCheckOut
}

// ParseTab maps a slug back to its tab; unknown slugs fall back to Up Coming
func ParseTab(slug string) (TabID, bool) {
	for _, id := range Order {
		if id.Slug() == slug {
			return id, true
		}
	}
	return TabUpComing, false
}

// Board is everything the ticket board shows for one location
type Board struct {
	LocationID  string
	Tickets     []domain.TicketEntry
	CheckIns    []domain.TicketRequest
	CheckOuts   []domain.TicketRequest
	Conflicts   []domain.ConflictGroup
	ChangeTimes []domain.TicketEntry
	Slots       map[string]domain.Slot
}

// SlotLabel renders "number - zone/gate" for a slot id, or N/A
func (b Board) SlotLabel(slotID string, service domain.ServiceType) string {
	slot, ok := b.Slots[slotID]
	if !ok || slot.SlotNumber == "" {
		return "N/A"
	}
	return slot.SlotNumber + " - " + slot.Group(service)
}

// Tab is one board tab. Exactly one of Entries, Requests or Groups carries
// data, chosen by ID
type Tab struct {
	ID       TabID
	Label    string
	Count    int
	Entries  []domain.TicketEntry
	Requests []domain.TicketRequest
	Groups   []domain.ConflictGroup
}

func (t Tab) Slug() string { return t.ID.Slug() }

// Registry is the ordered set of tabs plus the selected one
type Registry struct {
	tabs     []Tab
	selected TabID
}

// NewRegistry builds the tabs for board. search narrows every tab: lifecycle
// tabs match on booking id, request tabs on ticket id, case-insensitively
func NewRegistry(board Board, search string, classifier Classifier, now time.Time) *Registry {
	needle := strings.ToLower(strings.TrimSpace(search))

	var lifecycle []domain.TicketEntry
	for _, e := range board.Tickets {
		if contains(e.Ticket.BookingID, needle) {
			lifecycle = append(lifecycle, e)
		}
	}
	buckets := classifier.Classify(lifecycle, now)

	r := &Registry{tabs: make([]Tab, 0, len(Order))}
	for _, id := range Order {
		tab := Tab{ID: id, Label: id.Label()}
		switch id {
		case TabUpComing:
			tab.Entries = buckets.Upcoming
			tab.Count = len(tab.Entries)
		case TabOnService:
			tab.Entries = buckets.OnService
			tab.Count = len(tab.Entries)
		case TabOverdue:
			tab.Entries = buckets.Overdue
			tab.Count = len(tab.Entries)
		case TabChangeTime:
			tab.Entries = filterEntries(board.ChangeTimes, needle)
			tab.Count = len(tab.Entries)
		case TabCheckIn:
			tab.Requests = filterRequests(board.CheckIns, needle)
			tab.Count = len(tab.Requests)
		case TabCheckOut:
			tab.Requests = filterRequests(board.CheckOuts, needle)
			tab.Count = len(tab.Requests)
		case TabExtend:
			tab.Groups = filterGroups(board.Conflicts, needle)
			tab.Count = len(tab.Groups)
		}
		r.tabs = append(r.tabs, tab)
	}
	return r
}

// Tabs returns the tabs in display order
func (r *Registry) Tabs() []Tab {
	return r.tabs
}

// Select switches the visible tab. It has no other effect
func (r *Registry) Select(id TabID) error {
	if !id.valid() {
		return fmt.Errorf("tickets: unknown tab %d", id)
	}
	r.selected = id
	return nil
}

func (r *Registry) Selected() TabID {
	return r.selected
}

// Active returns the selected tab
func (r *Registry) Active() Tab {
	return r.tabs[r.selected]
}

// Tab looks a tab up by id
func (r *Registry) Tab(id TabID) (Tab, bool) {
	if !id.valid() {
		return Tab{}, false
	}
	return r.tabs[id], true
}

func contains(value, needle string) bool {
	return needle == "" || strings.Contains(strings.ToLower(value), needle)
}

func filterEntries(entries []domain.TicketEntry, needle string) []domain.TicketEntry {
	var out []domain.TicketEntry
	for _, e := range entries {
		if contains(e.Ticket.ID, needle) {
			out = append(out, e)
		}
	}
	return out
}

func filterRequests(requests []domain.TicketRequest, needle string) []domain.TicketRequest {
	var out []domain.TicketRequest
	for _, r := range requests {
		if contains(r.Ticket.ID, needle) {
			out = append(out, r)
		}
	}
	return out
}

func filterGroups(groups []domain.ConflictGroup, needle string) []domain.ConflictGroup {
	var out []domain.ConflictGroup
	for _, g := range groups {
		if contains(g.Parent.Ticket.ID, needle) {
			out = append(out, g)
		}
	}
	return out
}
