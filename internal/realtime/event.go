// Package realtime receives the backend's push notifications over STOMP and
// fans them out to the dashboard's browser sessions
package realtime

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Topic is a STOMP destination and the label events from it carry
type Topic struct {
	Destination string
	Label       string
}

// Topics are the destinations every channel subscribes to
var Topics = []Topic{
	{Destination: "/topic/check-in", Label: "Check-In"},
	{Destination: "/topic/check-out", Label: "Check-Out"},
	{Destination: "/topic/verify", Label: "Verify Conflict"},
	{Destination: "/topic/overdue", Label: "Overdue"},
}

// Event is one notification received from a topic
type Event struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Label      string          `json:"type"`
	Title      string          `json:"title"`
	Content    string          `json:"content"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"receivedAt"`
}

// decodeEvent parses a message body. The body must be JSON; the id, title
// and content fields are lifted out when present
func decodeEvent(topic Topic, body []byte, now time.Time) (Event, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return Event{}, fmt.Errorf("realtime: undecodable message on %s: %w", topic.Destination, err)
	}

	return Event{
		ID:         stringField(fields, "id"),
		Topic:      topic.Destination,
		Label:      topic.Label,
		Title:      stringField(fields, "title"),
		Content:    stringField(fields, "content"),
		Payload:    json.RawMessage(body),
		ReceivedAt: now,
	}, nil
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Feed keeps the most recent events, newest first
type Feed struct {
	mu     sync.RWMutex
	events []Event
	next   int
	full   bool
}

// NewFeed creates a feed holding up to size events
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 50
	}
	return &Feed{events: make([]Event, size)}
}

// Add appends an event, evicting the oldest when full
func (f *Feed) Add(e Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[f.next] = e
	f.next = (f.next + 1) % len(f.events)
	if f.next == 0 {
		f.full = true
	}
}

// Recent returns the held events, newest first
func (f *Feed) Recent() []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := f.next
	if f.full {
		n = len(f.events)
	}
	out := make([]Event, 0, n)
	for i := 1; i <= n; i++ {
		idx := (f.next - i + len(f.events)) % len(f.events)
		out = append(out, f.events[idx])
	}
	return out
}

// Len returns the number of held events
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.full {
		return len(f.events)
	}
	return f.next
}
