package cart

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Store is the single writer of cart state. Consumers dispatch actions and
// read snapshots; Reduce is the only code that produces a new state.
type Store struct {
	mu          sync.Mutex
	state       State
	subscribers []func(State)
}

// NewStore returns a store holding initial.
func NewStore(initial State) *Store {
	return &Store{state: initial.clone()}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Line returns the current line for productID, if any.
func (s *Store) Line(productID string) (Line, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Line(productID)
}

// Dispatch reduces a into the current state and notifies subscribers with the
// resulting snapshot. Subscribers run on the dispatching goroutine, in
// dispatch order.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(a)
}

// Update runs decide on the current state and dispatches the action it
// returns, with no other dispatch in between. A nil action or a non-nil error
// leaves the state unchanged; the error is returned as is.
func (s *Store) Update(decide func(State) (Action, error)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := decide(s.state.clone())
	if err != nil || a == nil {
		return s.state.clone(), err
	}
	return s.apply(a), nil
}

// apply must be called with s.mu held.
func (s *Store) apply(a Action) State {
	s.state = Reduce(s.state, a)
	for _, fn := range s.subscribers {
		fn(s.state.clone())
	}
	return s.state.clone()
}

// Subscribe registers fn to be called after every dispatch.
func (s *Store) Subscribe(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Repository persists a session's cart between store instances.
type Repository interface {
	// Load returns the saved state, or an empty state if nothing is saved.
	Load(ctx context.Context, session string) (State, error)
	Save(ctx context.Context, session string, state State) error
}

// NewSessionStore returns a store seeded from the session's saved cart that
// writes every new state back to repo. Save failures are logged; the in-memory
// state stays authoritative for the lifetime of the store.
func NewSessionStore(ctx context.Context, repo Repository, session string) (*Store, error) {
	initial, err := repo.Load(ctx, session)
	if err != nil {
		return nil, errors.Wrapf(err, "load cart for session %q", session)
	}

	lg := zctx.From(ctx).With(zap.String("session", session))
	s := NewStore(initial)
	s.Subscribe(func(state State) {
		if err := repo.Save(context.WithoutCancel(ctx), session, state); err != nil {
			lg.Warn("Cart save failed", zap.Error(err))
		}
	})
	return s, nil
}
