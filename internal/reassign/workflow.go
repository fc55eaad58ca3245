// Package reassign drives moving a conflicted ticket to another slot:
// fetch the free slots, let staff pick one, submit the move
package reassign

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"parkadmin/internal/domain"
	"parkadmin/internal/gateway"
)

// State of a workflow
type State int

const (
	Idle State = iota
	FetchingSlots
	SelectingSlot
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FetchingSlots:
		return "fetching-slots"
	case SelectingSlot:
		return "selecting-slot"
	case Submitting:
		return "submitting"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrInvalidState is returned for a transition the current state does not allow
	ErrInvalidState = errors.New("reassign: action not allowed in current state")
	// ErrNoSelection is returned by Confirm when no slot is selected
	ErrNoSelection = errors.New("reassign: no slot selected")
)

// SuccessMessage is the notice shown after a slot was reassigned
const SuccessMessage = "Slot reassigned successfully"

// SlotSource lists the slots free over a window
type SlotSource interface {
	AvailableSlots(ctx context.Context, q gateway.SlotQuery) ([]domain.Slot, error)
}

// Reassigner moves a ticket to another slot
type Reassigner interface {
	ReassignSlot(ctx context.Context, conflictedTicketID, newSlotID string) error
}

// Target is the conflicted ticket being moved
type Target struct {
	TicketID   string
	LocationID string
	Service    domain.ServiceType
	Start      time.Time
	End        time.Time
	// Gate is the zone or gate the ticket currently occupies. Charging
	// tickets may only move within it
	Gate string
}

// TargetFrom builds a target from a ticket board row
func TargetFrom(e domain.TicketEntry) Target {
	return Target{
		TicketID:   e.Ticket.ID,
		LocationID: e.Ticket.LocationID,
		Service:    e.Ticket.ServiceProvided,
		Start:      e.Ticket.StartDateTime.Time,
		End:        e.Ticket.EndDateTime.Time,
		Gate:       e.ZoneGate,
	}
}

// Eligible reports whether slot can take the target's ticket
func (t Target) Eligible(slot domain.Slot) bool {
	if slot.Type != "" && t.Service != "" && slot.Type != t.Service {
		return false
	}
	if t.Service == domain.ServiceCharging && slot.Gate != t.Gate {
		return false
	}
	return true
}

// Option is one slot as presented for selection
type Option struct {
	Slot     domain.Slot
	Eligible bool
	Selected bool
}

// Group is the options of one zone (parking) or gate (charging)
type Group struct {
	Name    string
	Options []Option
}

// View is a snapshot of a workflow for rendering
type View struct {
	State      State
	Target     Target
	Groups     []Group
	SelectedID string
	CanConfirm bool
	Err        error
}

// Workflow is one reassignment attempt. It is safe for concurrent use; the
// network calls run without holding the lock and the intermediate states
// reject conflicting transitions
type Workflow struct {
	mu       sync.Mutex
	state    State
	target   Target
	slots    []domain.Slot
	selected string
	err      error
}

// New returns an idle workflow
func New() *Workflow {
	return &Workflow{}
}

// Start fetches the free slots for target. On failure the workflow returns
// to Idle with the error kept for display and nothing else retained
func (w *Workflow) Start(ctx context.Context, source SlotSource, target Target) error {
	w.mu.Lock()
	if w.state != Idle {
		w.mu.Unlock()
		return ErrInvalidState
	}
	w.state = FetchingSlots
	w.target = target
	w.slots = nil
	w.selected = ""
	w.err = nil
	w.mu.Unlock()

	slots, err := source.AvailableSlots(ctx, gateway.SlotQuery{
		LocationID: target.LocationID,
		Service:    target.Service,
		Start:      target.Start,
		End:        target.End,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.reset()
		w.err = fmt.Errorf("fetching available slots: %w", err)
		return w.err
	}
	w.slots = slots
	w.state = SelectingSlot
	return nil
}

// Select toggles slotID. Picking the selected slot again clears the
// selection; ineligible or unknown slots and any state other than
// SelectingSlot leave the workflow unchanged
func (w *Workflow) Select(slotID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != SelectingSlot {
		return false
	}
	if w.selected == slotID {
		w.selected = ""
		return true
	}
	for _, slot := range w.slots {
		if slot.ID == slotID {
			if !w.target.Eligible(slot) {
				return false
			}
			w.selected = slotID
			return true
		}
	}
	return false
}

// Confirm submits the selected slot. Success returns the workflow to Idle
// and calls onSuccess; failure returns it to SelectingSlot with the
// selection kept
func (w *Workflow) Confirm(ctx context.Context, backend Reassigner, onSuccess func()) error {
	w.mu.Lock()
	if w.state != SelectingSlot {
		w.mu.Unlock()
		return ErrInvalidState
	}
	if w.selected == "" {
		w.mu.Unlock()
		return ErrNoSelection
	}
	w.state = Submitting
	w.err = nil
	ticketID, slotID := w.target.TicketID, w.selected
	w.mu.Unlock()

	err := backend.ReassignSlot(ctx, ticketID, slotID)

	w.mu.Lock()
	if err != nil {
		w.state = SelectingSlot
		w.err = fmt.Errorf("reassigning ticket %s: %w", ticketID, err)
		w.mu.Unlock()
		return w.err
	}
	w.reset()
	w.mu.Unlock()

	if onSuccess != nil {
		onSuccess()
	}
	return nil
}

// Cancel abandons the attempt from SelectingSlot, discarding the slot list
func (w *Workflow) Cancel() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != SelectingSlot {
		return false
	}
	w.reset()
	return true
}

// State returns the current state
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// View snapshots the workflow with the slots grouped for display
func (w *Workflow) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	return View{
		State:      w.state,
		Target:     w.target,
		Groups:     groupSlots(w.slots, w.target, w.selected),
		SelectedID: w.selected,
		CanConfirm: w.state == SelectingSlot && w.selected != "",
		Err:        w.err,
	}
}

func (w *Workflow) reset() {
	w.state = Idle
	w.target = Target{}
	w.slots = nil
	w.selected = ""
}

func groupSlots(slots []domain.Slot, target Target, selected string) []Group {
	if len(slots) == 0 {
		return nil
	}

	index := map[string]int{}
	var groups []Group
	for _, slot := range slots {
		name := slot.Group(target.Service)
		i, ok := index[name]
		if !ok {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name})
		}
		groups[i].Options = append(groups[i].Options, Option{
			Slot:     slot,
			Eligible: target.Eligible(slot),
			Selected: slot.ID == selected,
		})
	}

	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Name < groups[b].Name })
	return groups
}
