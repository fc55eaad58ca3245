package tickets

import (
	"testing"
	"time"

	"parkadmin/internal/domain"
)

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func boolPtr(b bool) *bool { return &b }

func entry(id, status string, checkIn, checkOut *bool, end time.Time) domain.TicketEntry {
	return domain.TicketEntry{Ticket: domain.Ticket{
		ID:          id,
		BookingID:   "BK-" + id,
		Status:      status,
		IsCheckIn:   checkIn,
		IsCheckOut:  checkOut,
		EndDateTime: domain.Time{Time: end},
	}}
}

func TestLifecycleOf(t *testing.T) {
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		e    domain.TicketEntry
		want Lifecycle
	}{
		{"paid not checked in future", entry("a", "PAID", nil, nil, future), Upcoming},
		{"paid explicit false check-in", entry("b", "PAID", boolPtr(false), nil, future), Upcoming},
		{"paid checked in future", entry("c", "PAID", boolPtr(true), nil, future), OnService},
		{"paid checked in past", entry("d", "PAID", boolPtr(true), boolPtr(false), past), Overdue},
		{"paid checked in ends now", entry("e", "PAID", boolPtr(true), nil, now), Overdue},
		{"paid never checked in past", entry("f", "PAID", nil, nil, past), Overdue},
		{"paid no end time", entry("i", "PAID", nil, nil, time.Time{}), Upcoming},
		{"paid checked in no end time", entry("j", "PAID", boolPtr(true), nil, time.Time{}), OnService},
		{"paid checked out", entry("g", "PAID", boolPtr(true), boolPtr(true), past), None},
		{"cancelled", entry("h", "CANCELLED", nil, nil, future), None},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LifecycleOf(tt.e.Ticket, now); got != tt.want {
				t.Errorf("LifecycleOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyPaidTicketsAreExclusive(t *testing.T) {
	flags := []*bool{nil, boolPtr(false), boolPtr(true)}
	ends := []time.Time{now.Add(-48 * time.Hour), now.Add(-time.Second), now, now.Add(time.Second), now.Add(48 * time.Hour)}

	var entries []domain.TicketEntry
	for _, in := range flags {
		for _, out := range []*bool{nil, boolPtr(false)} {
			for _, end := range ends {
				entries = append(entries, entry("t", "PAID", in, out, end))
			}
		}
	}

	for i, e := range entries {
		b := Classify([]domain.TicketEntry{e}, now)
		n := len(b.Upcoming) + len(b.OnService) + len(b.Overdue)
		if n != 1 {
			t.Fatalf("entry %d (%+v) landed in %d buckets", i, e.Ticket, n)
		}
	}
}

func TestClassifyScenario(t *testing.T) {
	future := now.Add(2 * time.Hour)
	entries := []domain.TicketEntry{
		entry("1", "PAID", nil, nil, future),
		entry("2", "PAID", nil, nil, future),
		entry("3", "CANCELLED", nil, nil, future),
	}

	b := Classify(entries, now)
	if len(b.Upcoming) != 2 || b.Upcoming[0].Ticket.ID != "1" || b.Upcoming[1].Ticket.ID != "2" {
		t.Errorf("Upcoming = %+v", b.Upcoming)
	}
	if len(b.OnService) != 0 || len(b.Overdue) != 0 {
		t.Errorf("OnService=%d Overdue=%d, want 0 and 0", len(b.OnService), len(b.Overdue))
	}
}

func TestClassifyLegacyOverlap(t *testing.T) {
	entries := []domain.TicketEntry{
		entry("1", "PAID", nil, nil, now.Add(time.Hour)),
		entry("2", "CANCELLED", nil, nil, now.Add(time.Hour)),
	}

	b := Classifier{LegacyOverlap: true}.Classify(entries, now)
	if len(b.Upcoming) != 1 || len(b.OnService) != 1 || len(b.Overdue) != 1 {
		t.Fatalf("legacy buckets = %d/%d/%d, want 1/1/1", len(b.Upcoming), len(b.OnService), len(b.Overdue))
	}
}

func testBoard() Board {
	return Board{
		LocationID: "loc-1",
		Tickets: []domain.TicketEntry{
			entry("aaa111", "PAID", nil, nil, now.Add(time.Hour)),
			entry("bbb222", "PAID", boolPtr(true), nil, now.Add(time.Hour)),
			entry("ccc333", "PAID", boolPtr(true), nil, now.Add(-time.Hour)),
		},
		CheckIns: []domain.TicketRequest{
			{ID: "r1", Ticket: domain.Ticket{ID: "AAA111"}},
			{ID: "r2", Ticket: domain.Ticket{ID: "zzz999"}},
		},
		CheckOuts: []domain.TicketRequest{{ID: "r3", Ticket: domain.Ticket{ID: "ccc333"}}},
		Conflicts: []domain.ConflictGroup{{Parent: domain.TicketEntry{Ticket: domain.Ticket{ID: "ddd444"}}}},
		ChangeTimes: []domain.TicketEntry{
			{Ticket: domain.Ticket{ID: "eee555"}},
		},
		Slots: map[string]domain.Slot{"s1": {ID: "s1", SlotNumber: "07", Zone: "B"}},
	}
}

func TestRegistryTabsAndBadges(t *testing.T) {
	r := NewRegistry(testBoard(), "", Classifier{}, now)

	want := map[TabID]int{
		TabUpComing: 1, TabCheckIn: 2, TabOnService: 1, TabExtend: 1,
		TabChangeTime: 1, TabOverdue: 1, TabCheckOut: 1,
	}
	tabs := r.Tabs()
	if len(tabs) != len(Order) {
		t.Fatalf("got %d tabs", len(tabs))
	}
	for i, tab := range tabs {
		if tab.ID != Order[i] {
			t.Errorf("tab %d is %v, want %v", i, tab.ID, Order[i])
		}
		if tab.Count != want[tab.ID] {
			t.Errorf("%s badge = %d, want %d", tab.Label, tab.Count, want[tab.ID])
		}
	}
	if r.Selected() != TabUpComing {
		t.Errorf("default selection = %v", r.Selected())
	}
}

func TestRegistrySearch(t *testing.T) {
	r := NewRegistry(testBoard(), "aaa", Classifier{}, now)

	up, _ := r.Tab(TabUpComing)
	if up.Count != 1 {
		t.Errorf("Up Coming badge = %d, want 1 (booking id BK-aaa111)", up.Count)
	}
	on, _ := r.Tab(TabOnService)
	if on.Count != 0 {
		t.Errorf("On Service badge = %d, want 0", on.Count)
	}
	checkIn, _ := r.Tab(TabCheckIn)
	if checkIn.Count != 1 || checkIn.Requests[0].ID != "r1" {
		t.Errorf("Check in = %+v, want r1 only (case-insensitive)", checkIn.Requests)
	}
	extend, _ := r.Tab(TabExtend)
	if extend.Count != 0 {
		t.Errorf("Extend badge = %d, want 0", extend.Count)
	}
}

func TestRegistrySelect(t *testing.T) {
	r := NewRegistry(testBoard(), "", Classifier{}, now)
	before := r.Tabs()[TabCheckOut].Count

	if err := r.Select(TabExtend); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if r.Active().ID != TabExtend || len(r.Active().Groups) != 1 {
		t.Errorf("Active = %+v", r.Active())
	}
	if r.Tabs()[TabCheckOut].Count != before {
		t.Error("Select changed tab data")
	}

	if err := r.Select(TabID(42)); err == nil {
		t.Error("expected error for unknown tab")
	}
	if r.Selected() != TabExtend {
		t.Error("failed Select must keep the previous selection")
	}
}

func TestParseTab(t *testing.T) {
	for _, id := range Order {
		got, ok := ParseTab(id.Slug())
		if !ok || got != id {
			t.Errorf("ParseTab(%q) = %v, %v", id.Slug(), got, ok)
		}
	}
	if _, ok := ParseTab("nope"); ok {
		t.Error("unknown slug accepted")
	}
}

func TestSlotLabel(t *testing.T) {
	b := testBoard()
	if got := b.SlotLabel("s1", domain.ServiceParking); got != "07 - B" {
		t.Errorf("SlotLabel = %q", got)
	}
	if got := b.SlotLabel("missing", domain.ServiceParking); got != "N/A" {
		t.Errorf("SlotLabel(missing) = %q", got)
	}
}
