package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"parkadmin/internal/gateway"
)

var (
	ErrUnknownAction = errors.New("action: unknown action")
	ErrNotFound      = errors.New("action: no such pending confirmation")
	ErrBusy          = errors.New("action: record already has an action in progress")
)

// Doer performs backend requests for one session. *gateway.API implements it
type Doer interface {
	Do(ctx context.Context, method, path string, query url.Values, body, out any) error
}

// Pending is an action waiting for the user to confirm it
type Pending struct {
	ID        string
	Owner     string
	Kind      Kind
	RecordID  string
	Args      map[string]string
	ReturnTo  string
	CreatedAt time.Time
	Definition
}

// Notice is the outcome reported to the user
type Notice struct {
	Type    string // "success" or "error"
	Message string
}

// Config holds configuration for a Gate
type Config struct {
	// TTL bounds how long an unconfirmed prompt stays valid
	TTL    time.Duration
	Logger *slog.Logger
}

// Gate holds pending confirmations and the set of records with an action
// in flight
type Gate struct {
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	pending map[string]Pending
	busy    map[string]struct{}
}

// NewGate creates a gate
func NewGate(cfg Config) *Gate {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gate{
		ttl:     cfg.TTL,
		logger:  cfg.Logger,
		now:     time.Now,
		pending: make(map[string]Pending),
		busy:    make(map[string]struct{}),
	}
}

// Prompt records that owner asked for kind on recordID. No request is made
func (g *Gate) Prompt(owner string, kind Kind, recordID string, args map[string]string, returnTo string) (Pending, error) {
	def, ok := Lookup(kind)
	if !ok {
		return Pending{}, fmt.Errorf("%w: %q", ErrUnknownAction, kind)
	}
	if recordID == "" {
		return Pending{}, fmt.Errorf("action: %s needs a record id", kind)
	}

	p := Pending{
		ID:         uuid.NewString(),
		Owner:      owner,
		Kind:       kind,
		RecordID:   recordID,
		Args:       args,
		ReturnTo:   returnTo,
		CreatedAt:  g.now(),
		Definition: def,
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweep()
	g.pending[p.ID] = p
	return p, nil
}

// Get returns owner's pending confirmation id
func (g *Gate) Get(owner, id string) (Pending, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pending[id]
	if !ok || p.Owner != owner || g.expired(p) {
		return Pending{}, false
	}
	return p, true
}

// Cancel discards owner's pending confirmation id
func (g *Gate) Cancel(owner, id string) (Pending, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pending[id]
	if !ok || p.Owner != owner {
		return Pending{}, false
	}
	delete(g.pending, id)
	return p, true
}

// Confirm performs owner's pending action through doer. The returned
// pending value lets the caller navigate back to where the prompt started
func (g *Gate) Confirm(ctx context.Context, owner, id string, doer Doer) (Pending, Notice, error) {
	g.mu.Lock()
	p, ok := g.pending[id]
	if !ok || p.Owner != owner || g.expired(p) {
		g.mu.Unlock()
		return Pending{}, Notice{Type: "error", Message: "This confirmation has expired. Please try again."}, ErrNotFound
	}
	if _, inFlight := g.busy[p.RecordID]; inFlight {
		g.mu.Unlock()
		return p, Notice{Type: "error", Message: "An action for this record is already in progress."}, ErrBusy
	}
	delete(g.pending, id)
	g.busy[p.RecordID] = struct{}{}
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.busy, p.RecordID)
		g.mu.Unlock()
	}()

	var body any
	if p.Body != nil {
		body = p.Body(p.Args)
	}

	if err := doer.Do(ctx, p.Method, p.URL(p.RecordID), nil, body, nil); err != nil {
		g.logger.WarnContext(ctx, "action failed",
			"action", p.Kind,
			"record", p.RecordID,
			"error", err,
		)
		message := p.Failure
		if detail := gateway.Message(err); detail != "" {
			message += ": " + detail
		}
		return p, Notice{Type: "error", Message: message}, err
	}

	g.logger.InfoContext(ctx, "action performed", "action", p.Kind, "record", p.RecordID)
	return p, Notice{Type: "success", Message: p.Success}, nil
}

// Busy reports whether recordID has an action in flight
func (g *Gate) Busy(recordID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.busy[recordID]
	return ok
}

func (g *Gate) expired(p Pending) bool {
	return g.now().Sub(p.CreatedAt) > g.ttl
}

// sweep drops expired prompts. Callers hold g.mu
func (g *Gate) sweep() {
	for id, p := range g.pending {
		if g.expired(p) {
			delete(g.pending, id)
		}
	}
}
