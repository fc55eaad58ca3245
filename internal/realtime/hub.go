package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
)

// Client is one browser tab listening for a dashboard session's events
type Client struct {
	ID        string
	SessionID string
	Send      chan []byte
}

// Hub fans events out to the browser tabs of the session they belong to
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{logger: logger, clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

// Count returns the number of connected tabs
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends event to every tab of sessionID. Slow tabs drop messages
// rather than block the channel
func (h *Hub) Broadcast(sessionID string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("encoding realtime event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.SessionID != sessionID {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			h.logger.Warn("dropping realtime event for slow client", "client", client.ID)
		}
	}
}

// Handler serves the browser-facing SockJS endpoint under prefix.
// authenticate maps the request to a dashboard session id
func (h *Hub) Handler(prefix string, authenticate func(*http.Request) (string, bool)) http.Handler {
	return sockjs.NewHandler(prefix, sockjs.DefaultOptions, func(session sockjs.Session) {
		sessionID, ok := authenticate(session.Request())
		if !ok {
			_ = session.Close(4001, "missing session")
			return
		}

		client := &Client{ID: uuid.NewString(), SessionID: sessionID, Send: make(chan []byte, 16)}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				if err := session.Send(string(msg)); err != nil {
					return
				}
			}
		}()

		for {
			if _, err := session.Recv(); err != nil {
				return
			}
		}
	})
}
