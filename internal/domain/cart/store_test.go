package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCartRepo struct {
	saved   map[string]State
	loadErr error
	saveErr error
	saves   int
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{saved: make(map[string]State)}
}

func (m *mockCartRepo) Load(_ context.Context, session string) (State, error) {
	if m.loadErr != nil {
		return State{}, m.loadErr
	}
	return m.saved[session], nil
}

func (m *mockCartRepo) Save(_ context.Context, session string, state State) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[session] = state
	return nil
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore(State{})
	s.Dispatch(AddItem{Line: line("p1", 1)})

	snap := s.Snapshot()
	snap.Lines[0].Quantity = 99

	l, ok := s.Line("p1")
	require.True(t, ok)
	assert.Equal(t, 1, l.Quantity)
}

func TestStore_SubscribersSeeEveryDispatch(t *testing.T) {
	s := NewStore(State{})

	var seen []int
	s.Subscribe(func(st State) { seen = append(seen, st.Count()) })

	s.Dispatch(AddItem{Line: line("p1", 1)})
	s.Dispatch(AddItem{Line: line("p1", 2)})
	s.Dispatch(Clear{})

	assert.Equal(t, []int{1, 2, 0}, seen)
}

func TestSessionStore_LoadsAndSaves(t *testing.T) {
	repo := newMockCartRepo()
	repo.saved["s1"] = State{Lines: []Line{line("p1", 1)}}

	s, err := NewSessionStore(context.Background(), repo, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Snapshot().Count())

	s.Dispatch(AddItem{Line: line("p2", 2)})

	assert.Equal(t, 1, repo.saves)
	assert.Equal(t, 3, repo.saved["s1"].Count())
}

func TestSessionStore_LoadError(t *testing.T) {
	repo := newMockCartRepo()
	repo.loadErr = errors.New("redis down")

	_, err := NewSessionStore(context.Background(), repo, "s1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load cart")
}

func TestSessionStore_SaveErrorKeepsMemoryState(t *testing.T) {
	repo := newMockCartRepo()
	repo.saveErr = errors.New("redis down")

	s, err := NewSessionStore(context.Background(), repo, "s1")
	require.NoError(t, err)

	s.Dispatch(AddItem{Line: line("p1", 1)})
	assert.Equal(t, 1, s.Snapshot().Count())
}

func TestStore_Update(t *testing.T) {
	s := NewStore(State{Lines: []Line{line("p1", 1)}})
	var notified int
	s.Subscribe(func(State) { notified++ })

	state, err := s.Update(func(cur State) (Action, error) {
		l, _ := cur.Line("p1")
		return AddItem{Line: line("p1", l.Quantity+1)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, state.Lines[0].Quantity)
	assert.Equal(t, 1, notified)

	boom := errors.New("rejected")
	state, err = s.Update(func(State) (Action, error) { return AddItem{Line: line("p1", 9)}, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, state.Lines[0].Quantity)

	state, err = s.Update(func(State) (Action, error) { return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, state.Lines[0].Quantity)
	assert.Equal(t, 1, notified)
}
