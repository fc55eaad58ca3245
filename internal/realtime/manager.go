package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"parkadmin/internal/gateway"
)

// ManagerConfig holds configuration for a Manager
type ManagerConfig struct {
	Channel  ChannelConfig
	FeedSize int
	Hub      *Hub
	Logger   *slog.Logger
}

type run struct {
	cancel context.CancelFunc
	done   chan struct{}
	feed   *Feed
}

// Manager keeps one channel per signed-in dashboard session, each feeding
// that session's event feed and browser tabs
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger

	mu   sync.Mutex
	runs map[string]*run
}

// NewManager creates a manager
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Channel.Logger == nil {
		cfg.Channel.Logger = logger
	}
	return &Manager{cfg: cfg, logger: logger, runs: make(map[string]*run)}
}

// Ensure starts the channel for sessionID unless it is already running and
// returns the session's feed
func (m *Manager) Ensure(sessionID string, tokens gateway.TokenSource) (*Feed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.runs[sessionID]; ok {
		return r.feed, nil
	}

	feed := NewFeed(m.cfg.FeedSize)
	channel, err := NewChannel(m.cfg.Channel, tokens, func(e Event) {
		feed.Add(e)
		if m.cfg.Hub != nil {
			m.cfg.Hub.Broadcast(sessionID, e)
		}
		m.logger.Info("notification received", "type", e.Label, "id", e.ID)
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{cancel: cancel, done: make(chan struct{}), feed: feed}
	m.runs[sessionID] = r

	go func() {
		defer close(r.done)
		if err := channel.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("realtime channel stopped", "error", err)
		}
		m.mu.Lock()
		if m.runs[sessionID] == r {
			delete(m.runs, sessionID)
		}
		m.mu.Unlock()
	}()
	return feed, nil
}

// Feed returns the feed of a running session
func (m *Manager) Feed(sessionID string) (*Feed, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[sessionID]
	if !ok {
		return nil, false
	}
	return r.feed, true
}

// Sessions lists the sessions with a running channel
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	return ids
}

// Stop tears down the session's connection and waits for it to finish
func (m *Manager) Stop(sessionID string) {
	m.mu.Lock()
	r, ok := m.runs[sessionID]
	delete(m.runs, sessionID)
	m.mu.Unlock()

	if ok {
		r.cancel()
		<-r.done
	}
}

// Close stops every session
func (m *Manager) Close() {
	m.mu.Lock()
	runs := m.runs
	m.runs = make(map[string]*run)
	m.mu.Unlock()

	for _, r := range runs {
		r.cancel()
	}
	for _, r := range runs {
		<-r.done
	}
}
