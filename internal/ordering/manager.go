package ordering

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotMember is returned by Manager.Remove for an id outside the collection.
var ErrNotMember = errors.New("ordering: not a member of the collection")

// Collection is the storage view of one ordered set: the slot list, or one slot's items.
type Collection interface {
	// Key identifies the collection for serialisation.
	Key() string
	Members(ctx context.Context) ([]Position, error)
	// SetPositions persists new sort orders for the given members only.
	SetPositions(ctx context.Context, changed []Position) error
}

// Manager serialises ordering operations per collection, so a reorder racing an
// insert or a remove can never produce duplicate or missing positions.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewManager() *Manager {
	return &Manager{locks: make(map[string]*keyLock)}
}

// Lock takes the collection lock for key and returns its release func.
func (m *Manager) Lock(key string) func() {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}

// Reorder sets positions to the index of each id in orderedIDs. Reordering into the
// current order writes nothing.
func (m *Manager) Reorder(ctx context.Context, c Collection, orderedIDs []string) ([]Position, error) {
	unlock := m.Lock(c.Key())
	defer unlock()

	current, err := c.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.Key(), err)
	}
	next, err := Apply(c.Key(), current, orderedIDs)
	if err != nil {
		return nil, err
	}
	if changed := Changed(current, next); len(changed) > 0 {
		if err := c.SetPositions(ctx, changed); err != nil {
			return nil, fmt.Errorf("reorder %s: %w", c.Key(), err)
		}
	}
	return next, nil
}

// InsertAtEnd calls insert with the next free position, n, where n is the current size.
func (m *Manager) InsertAtEnd(ctx context.Context, c Collection, insert func(ctx context.Context, pos int) error) (int, error) {
	unlock := m.Lock(c.Key())
	defer unlock()

	current, err := c.Members(ctx)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", c.Key(), err)
	}
	pos := len(current)
	if err := insert(ctx, pos); err != nil {
		return 0, err
	}
	return pos, nil
}

// Remove calls remove for id and then closes the gap it leaves behind.
func (m *Manager) Remove(ctx context.Context, c Collection, id string, remove func(ctx context.Context) error) error {
	unlock := m.Lock(c.Key())
	defer unlock()

	current, err := c.Members(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", c.Key(), err)
	}
	next, ok := Remove(current, id)
	if !ok {
		return ErrNotMember
	}
	if err := remove(ctx); err != nil {
		return err
	}
	if changed := Changed(current, next); len(changed) > 0 {
		if err := c.SetPositions(ctx, changed); err != nil {
			return fmt.Errorf("compact %s: %w", c.Key(), err)
		}
	}
	return nil
}

// Normalize rewrites positions so they are dense again. Used after writes that can
// leave gaps, such as bulk deletes.
func (m *Manager) Normalize(ctx context.Context, c Collection) ([]Position, error) {
	unlock := m.Lock(c.Key())
	defer unlock()

	current, err := c.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.Key(), err)
	}
	next := Compact(current)
	if changed := Changed(current, next); len(changed) > 0 {
		if err := c.SetPositions(ctx, changed); err != nil {
			return nil, fmt.Errorf("normalize %s: %w", c.Key(), err)
		}
	}
	return next, nil
}
