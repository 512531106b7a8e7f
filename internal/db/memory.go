package db

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/ordering"
)

// MemoryStore is the single-process fallback used when no DATABASE_URL is set, and
// by tests. Transactions run on a private copy that replaces the live state on
// success, so readers only ever see committed snapshots.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]model.Slot
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		slots: make(map[string]model.Slot),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{state: memState{slots: cloneSlots(s.slots)}, now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.slots = tx.state.slots
	return nil
}

func (s *MemoryStore) ListSlots(context.Context) ([]model.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memState{slots: s.slots}.list(), nil
}

func (s *MemoryStore) GetSlot(_ context.Context, slotID string) (model.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memState{slots: s.slots}.get(slotID)
}

func (s *MemoryStore) GetItem(_ context.Context, slotID, itemID string) (model.SlotItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memState{slots: s.slots}.item(slotID, itemID)
}

func (s *MemoryStore) SlotPositions(context.Context) ([]ordering.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memState{slots: s.slots}.slotPositions(), nil
}

func (s *MemoryStore) ItemPositions(_ context.Context, slotID string) ([]ordering.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return memState{slots: s.slots}.itemPositions(slotID)
}

// memState is a slot map with read helpers. Values are copied in and out.
type memState struct {
	slots map[string]model.Slot
}

func cloneSlots(in map[string]model.Slot) map[string]model.Slot {
	out := make(map[string]model.Slot, len(in))
	for id, s := range in {
		out[id] = s.Clone()
	}
	return out
}

func (m memState) list() []model.Slot {
	out := make([]model.Slot, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, withSortedItems(s.Clone()))
	}
	slices.SortFunc(out, func(a, b model.Slot) int {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder - b.SortOrder
		}
		if a.ID < b.ID {
			return -1
		}
		return 1
	})
	return out
}

func (m memState) get(slotID string) (model.Slot, error) {
	s, ok := m.slots[slotID]
	if !ok {
		return model.Slot{}, ErrNotFound
	}
	return withSortedItems(s.Clone()), nil
}

func (m memState) item(slotID, itemID string) (model.SlotItem, error) {
	s, ok := m.slots[slotID]
	if !ok {
		return model.SlotItem{}, ErrNotFound
	}
	for _, it := range s.Items {
		if it.ID == itemID {
			return it.Clone(), nil
		}
	}
	return model.SlotItem{}, ErrNotFound
}

func (m memState) slotPositions() []ordering.Position {
	out := make([]ordering.Position, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, ordering.Position{ID: s.ID, SortOrder: s.SortOrder})
	}
	return ordering.Sorted(out)
}

func (m memState) itemPositions(slotID string) ([]ordering.Position, error) {
	s, ok := m.slots[slotID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]ordering.Position, len(s.Items))
	for i, it := range s.Items {
		out[i] = ordering.Position{ID: it.ID, SortOrder: it.SortOrder}
	}
	return ordering.Sorted(out), nil
}

func withSortedItems(s model.Slot) model.Slot {
	if s.Items == nil {
		s.Items = []model.SlotItem{}
	}
	slices.SortStableFunc(s.Items, func(a, b model.SlotItem) int { return a.SortOrder - b.SortOrder })
	return s
}

type memTx struct {
	state memState
	now   func() time.Time
}

var _ Tx = (*memTx)(nil)

func (t *memTx) ListSlots(context.Context) ([]model.Slot, error) { return t.state.list(), nil }

func (t *memTx) GetSlot(_ context.Context, slotID string) (model.Slot, error) {
	return t.state.get(slotID)
}

func (t *memTx) GetItem(_ context.Context, slotID, itemID string) (model.SlotItem, error) {
	return t.state.item(slotID, itemID)
}

func (t *memTx) SlotPositions(context.Context) ([]ordering.Position, error) {
	return t.state.slotPositions(), nil
}

func (t *memTx) ItemPositions(_ context.Context, slotID string) ([]ordering.Position, error) {
	return t.state.itemPositions(slotID)
}

func (t *memTx) InsertSlot(_ context.Context, s *model.Slot) error {
	now := t.now()
	s.Version = 1
	s.CreatedAt, s.UpdatedAt = now, now
	stored := s.Clone()
	stored.Items = nil
	t.state.slots[s.ID] = stored
	return nil
}

func (t *memTx) UpdateSlot(_ context.Context, s *model.Slot) error {
	cur, ok := t.state.slots[s.ID]
	if !ok {
		return ErrNotFound
	}
	s.Version = cur.Version + 1
	s.UpdatedAt = t.now()
	s.CreatedAt = cur.CreatedAt
	s.SortOrder = cur.SortOrder

	stored := s.Clone()
	stored.Items = cur.Items
	t.state.slots[s.ID] = stored
	return nil
}

func (t *memTx) DeleteSlot(_ context.Context, slotID string) error {
	if _, ok := t.state.slots[slotID]; !ok {
		return ErrNotFound
	}
	delete(t.state.slots, slotID)
	return nil
}

func (t *memTx) ClearDefault(_ context.Context, keepSlotID string) ([]string, error) {
	var cleared []string
	for id, s := range t.state.slots {
		if id == keepSlotID || !s.IsDefault {
			continue
		}
		s.IsDefault = false
		s.Version++
		s.UpdatedAt = t.now()
		t.state.slots[id] = s
		cleared = append(cleared, id)
	}
	slices.Sort(cleared)
	return cleared, nil
}

func (t *memTx) SetSlotPositions(_ context.Context, changed []ordering.Position) error {
	for _, p := range changed {
		s, ok := t.state.slots[p.ID]
		if !ok {
			return ErrNotFound
		}
		s.SortOrder = p.SortOrder
		t.state.slots[p.ID] = s
	}
	return nil
}

func (t *memTx) InsertItem(_ context.Context, it *model.SlotItem) error {
	s, ok := t.state.slots[it.SlotID]
	if !ok {
		return ErrNotFound
	}
	it.CreatedAt = t.now()
	stored := it.Clone()
	stored.Asset, stored.Dangling = nil, false
	s.Items = append(s.Items, stored)
	t.state.slots[it.SlotID] = s
	return nil
}

func (t *memTx) UpdateItem(_ context.Context, it *model.SlotItem) error {
	return t.editItem(it.SlotID, it.ID, func(cur *model.SlotItem) {
		cur.DurationOverride = it.DurationOverride
		cur.Volume = it.Volume
		cur.Mute = it.Mute
	})
}

func (t *memTx) DeleteItem(_ context.Context, slotID, itemID string) error {
	s, ok := t.state.slots[slotID]
	if !ok {
		return ErrNotFound
	}
	idx := slices.IndexFunc(s.Items, func(it model.SlotItem) bool { return it.ID == itemID })
	if idx < 0 {
		return ErrNotFound
	}
	s.Items = slices.Delete(s.Items, idx, idx+1)
	t.state.slots[slotID] = s
	return nil
}

func (t *memTx) SetItemPositions(_ context.Context, slotID string, changed []ordering.Position) error {
	for _, p := range changed {
		if err := t.editItem(slotID, p.ID, func(cur *model.SlotItem) { cur.SortOrder = p.SortOrder }); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTx) editItem(slotID, itemID string, edit func(*model.SlotItem)) error {
	s, ok := t.state.slots[slotID]
	if !ok {
		return ErrNotFound
	}
	for i := range s.Items {
		if s.Items[i].ID == itemID {
			edit(&s.Items[i])
			t.state.slots[slotID] = s
			return nil
		}
	}
	return ErrNotFound
}

// MemoryAssets is an in-process asset catalog for development and tests.
type MemoryAssets struct {
	mu     sync.RWMutex
	assets map[string]model.Asset
}

var _ AssetCatalog = (*MemoryAssets)(nil)

func NewMemoryAssets(assets ...model.Asset) *MemoryAssets {
	m := &MemoryAssets{assets: make(map[string]model.Asset, len(assets))}
	for _, a := range assets {
		m.assets[a.ID] = a
	}
	return m
}

func (m *MemoryAssets) Put(a model.Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[a.ID] = a
}

func (m *MemoryAssets) Delete(assetID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assets, assetID)
}

func (m *MemoryAssets) GetAsset(_ context.Context, assetID string) (model.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[assetID]
	if !ok {
		return model.Asset{}, ErrNotFound
	}
	return a, nil
}

func (m *MemoryAssets) GetAssets(_ context.Context, ids []string) (map[string]model.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]model.Asset, len(ids))
	for _, id := range ids {
		if a, ok := m.assets[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}
