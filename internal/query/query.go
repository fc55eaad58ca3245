// Package query keeps the result of a parameterised backend read together
// with its loading and error state. Every load starts a new generation;
// a result that arrives after a newer load started is discarded, so a
// superseded request can never overwrite fresher state
package query

import (
	"context"
	"sync"
	"time"
)

// Loader reads data for one set of parameters
type Loader[P comparable, T any] func(ctx context.Context, params P) (T, error)

// State is a snapshot of a query
type State[P comparable, T any] struct {
	Params     P
	Data       T
	Err        error
	Loading    bool
	Loaded     bool
	Generation uint64
	LoadedAt   time.Time
}

// Query caches the latest result of a Loader
type Query[P comparable, T any] struct {
	load Loader[P, T]
	now  func() time.Time

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  State[P, T]
	stale  bool
}

// New creates a query around load
func New[P comparable, T any](load Loader[P, T]) *Query[P, T] {
	return &Query[P, T]{load: load, now: time.Now}
}

// Load fetches params, cancelling any load still in flight. The returned
// state is the one this call produced, even if a newer load has already
// replaced it in the cache
func (q *Query[P, T]) Load(ctx context.Context, params P) State[P, T] {
	q.mu.Lock()
	if q.cancel != nil {
		q.cancel()
	}
	q.gen++
	gen := q.gen
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.state.Params = params
	q.state.Loading = true
	q.state.Generation = gen
	q.mu.Unlock()

	data, err := q.load(ctx, params)
	cancel()

	result := State[P, T]{
		Params:     params,
		Data:       data,
		Err:        err,
		Loaded:     err == nil,
		Generation: gen,
		LoadedAt:   q.now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen {
		return result
	}
	q.cancel = nil
	q.state = result
	q.stale = false
	return result
}

// Get returns the cached state when it is current for params, loading
// otherwise
func (q *Query[P, T]) Get(ctx context.Context, params P) State[P, T] {
	q.mu.Lock()
	state := q.state
	fresh := state.Loaded && !state.Loading && !q.stale && state.Params == params
	q.mu.Unlock()

	if fresh {
		return state
	}
	return q.Load(ctx, params)
}

// Snapshot returns the cached state without loading
func (q *Query[P, T]) Snapshot() State[P, T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Invalidate marks the cache stale so the next Get reloads. It is called
// after a mutation the cached data depends on
func (q *Query[P, T]) Invalidate() {
	q.mu.Lock()
	q.stale = true
	q.mu.Unlock()
}
