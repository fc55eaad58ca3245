// Package tickets sorts a location's tickets into the lifecycle buckets shown
// on the ticket board and keeps the board's tab registry
package tickets

import (
	"time"

	"parkadmin/internal/domain"
)

// Lifecycle is the display state of a paid ticket
type Lifecycle int

const (
	None Lifecycle = iota
	Upcoming
	OnService
	Overdue
)

func (l Lifecycle) String() string {
	switch l {
	case Upcoming:
		return "UPCOMING"
	case OnService:
		return "ON_SERVICE"
	case Overdue:
		return "OVERDUE"
	default:
		return "NONE"
	}
}

// Buckets holds the lifecycle subsets of one ticket listing
type Buckets struct {
	Upcoming  []domain.TicketEntry
	OnService []domain.TicketEntry
	Overdue   []domain.TicketEntry
}

// Classifier buckets tickets. With LegacyOverlap every PAID ticket lands in
// all three buckets, matching the board's historical behaviour
type Classifier struct {
	LegacyOverlap bool
}

// LifecycleOf returns the single bucket a ticket belongs to at now.
//
//	PAID, not checked in, end after now           -> Upcoming
//	PAID, checked in, not out, end after now      -> OnService
//	PAID, checked in, not out, end at/before now  -> Overdue
//
// A PAID ticket not yet checked in whose end has passed is reported as
// Overdue as well: it still holds its slot and staff have to act on it.
// A ticket without an end time cannot be overdue
func LifecycleOf(t domain.Ticket, now time.Time) Lifecycle {
	if t.Status != domain.TicketStatusPaid || t.CheckedOut() {
		return None
	}
	if t.EndDateTime.IsZero() || t.EndDateTime.After(now) {
		if t.CheckedIn() {
			return OnService
		}
		return Upcoming
	}
	return Overdue
}

// Classify buckets entries at now, preserving input order in each bucket
func (c Classifier) Classify(entries []domain.TicketEntry, now time.Time) Buckets {
	var b Buckets
	for _, e := range entries {
		if c.LegacyOverlap {
			if e.Ticket.Status == domain.TicketStatusPaid {
				b.Upcoming = append(b.Upcoming, e)
				b.OnService = append(b.OnService, e)
				b.Overdue = append(b.Overdue, e)
			}
			continue
		}

		switch LifecycleOf(e.Ticket, now) {
		case Upcoming:
			b.Upcoming = append(b.Upcoming, e)
		case OnService:
			b.OnService = append(b.OnService, e)
		case Overdue:
			b.Overdue = append(b.Overdue, e)
		}
	}
	return b
}

// Classify buckets entries with the corrected, mutually exclusive rules
func Classify(entries []domain.TicketEntry, now time.Time) Buckets {
	return Classifier{}.Classify(entries, now)
}
