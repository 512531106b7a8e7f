// Package reconcile keeps client-side state that is updated optimistically and
// then replaced by what the server answers.
package reconcile

import (
	"context"
	"sync"
)

// Optimistic holds a value of S that callers mutate through Apply. S is treated as
// immutable: guess functions must return a new value instead of editing the one
// they are given.
type Optimistic[S any] struct {
	applyMu sync.Mutex

	mu     sync.RWMutex
	state  S
	subs   map[int]func(S)
	nextID int
}

func New[S any](initial S) *Optimistic[S] {
	return &Optimistic[S]{state: initial, subs: make(map[int]func(S))}
}

func (o *Optimistic[S]) Get() S {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Set replaces the state with a canonical value fetched out of band. It waits for
// any Apply in flight.
func (o *Optimistic[S]) Set(s S) {
	o.applyMu.Lock()
	defer o.applyMu.Unlock()
	o.set(s)
}

// OnChange registers fn for every local state transition, guesses and rollbacks
// included. The returned func unregisters it.
func (o *Optimistic[S]) OnChange(fn func(S)) func() {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.mu.Unlock()
	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// Apply shows guess locally, then runs commit. On success the state becomes the
// canonical value commit returned; on failure the pre-mutation snapshot comes back
// and the error is returned. Applies run one at a time.
func (o *Optimistic[S]) Apply(ctx context.Context, guess func(S) S, commit func(ctx context.Context) (S, error)) (S, error) {
	o.applyMu.Lock()
	defer o.applyMu.Unlock()

	snapshot := o.Get()
	if err := ctx.Err(); err != nil {
		return snapshot, err
	}
	if guess != nil {
		o.set(guess(snapshot))
	}

	canonical, err := commit(ctx)
	if err != nil {
		o.set(snapshot)
		return snapshot, err
	}
	o.set(canonical)
	return canonical, nil
}

func (o *Optimistic[S]) set(s S) {
	o.mu.Lock()
	o.state = s
	subs := make([]func(S), 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}
